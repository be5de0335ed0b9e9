//go:build unix

package hrtime

import (
	"time"

	"github.com/samber/lo"
	"golang.org/x/sys/unix"
)

var (
	UnixMonotonicClock   Clock = unixMonotonicClock{}
	DefaultClock               = UnixMonotonicClock
	unixMonotonicStartTs int64
)

func init() {
	unixMonotonicStartTs = unixMonotonicNanos()
}

func unixMonotonicNanos() int64 {
	ts := unix.Timespec{}
	lo.Must0(unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts))
	return ts.Nano()
}

// unixMonotonicClock reads CLOCK_MONOTONIC directly.
type unixMonotonicClock struct{}

func (unixMonotonicClock) MonotonicNanos() int64 {
	return unixMonotonicNanos()
}

func (unixMonotonicClock) MonotonicElapsed() time.Duration {
	return time.Duration(unixMonotonicNanos() - unixMonotonicStartTs)
}

func (unixMonotonicClock) Since(beginNanos int64) time.Duration {
	return time.Duration(unixMonotonicNanos() - beginNanos)
}
