package hrtime

import (
	"time"
)

var (
	appStartTime           = time.Now()
	GoMonotonicClock Clock = goMonotonicClock{}
)

// goMonotonicClock reads the monotonic part carried by time.Time.
type goMonotonicClock struct{}

func (goMonotonicClock) MonotonicNanos() int64 {
	return int64(time.Since(appStartTime))
}

func (g goMonotonicClock) MonotonicElapsed() time.Duration {
	return time.Duration(g.MonotonicNanos())
}

func (g goMonotonicClock) Since(beginNanos int64) time.Duration {
	return time.Duration(g.MonotonicNanos() - beginNanos)
}

func MonotonicElapsed() time.Duration {
	return DefaultClock.MonotonicElapsed()
}
