package process

import "sync/atomic"

// Accnt accumulates per-process CPU usage, split the way the kernel's
// own accounting record does: time spent actually executing
// instructions versus time spent blocked in a Sleep instruction.
// Both counters are nanoseconds and safe for concurrent access, since
// the report generator may read them while a core is still updating.
type Accnt struct {
	execNs atomic.Int64
	waitNs atomic.Int64
}

// AddExec records delta nanoseconds of instruction-execution time.
func (a *Accnt) AddExec(delta int64) {
	a.execNs.Add(delta)
}

// AddWait records delta nanoseconds spent inside a Sleep instruction.
func (a *Accnt) AddWait(delta int64) {
	a.waitNs.Add(delta)
}

// Totals returns a consistent-enough snapshot of (exec, wait)
// nanoseconds. The two loads aren't atomic as a pair, but each field
// only ever increases, so a reader never sees a total go backwards.
func (a *Accnt) Totals() (execNs, waitNs int64) {
	return a.execNs.Load(), a.waitNs.Load()
}
