package infra

import (
	_ "unsafe"
)

//go:linkname osYield runtime.osyield
func osYield()

// OsYield gives up the OS thread time slice (sched_yield on linux).
func OsYield() {
	osYield()
}

//go:linkname procYield runtime.procyield
func procYield(cycles uint32)

// ProcYield executes the CPU idle hint (PAUSE on amd64, YIELD on arm64)
// cycles times without leaving user space.
func ProcYield(cycles uint32) {
	procYield(cycles)
}
