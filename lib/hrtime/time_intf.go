package hrtime

import "time"

// Clock is a monotonic clock. Readings are only meaningful relative to each
// other; they never follow wall clock adjustments.
type Clock interface {
	// MonotonicNanos returns the current reading in nanoseconds.
	MonotonicNanos() int64
	// MonotonicElapsed returns the time passed since the process started.
	MonotonicElapsed() time.Duration
	// Since returns the time passed since the reading beginNanos.
	Since(beginNanos int64) time.Duration
}

// Stopwatch measures one interval against a Clock.
type Stopwatch struct {
	clock Clock
	begin int64
}

func StartStopwatch(clock Clock) Stopwatch {
	if clock == nil {
		clock = DefaultClock
	}
	return Stopwatch{clock: clock, begin: clock.MonotonicNanos()}
}

func (sw Stopwatch) Elapsed() time.Duration {
	return sw.clock.Since(sw.begin)
}
