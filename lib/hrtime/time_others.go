//go:build !unix

package hrtime

var DefaultClock = GoMonotonicClock
