// Package clock provides the shared notion of time used across the
// emulator: a monotonic tick counter for ordering events and a
// timestamp formatter for process log lines and reports.
package clock

import (
	"sync/atomic"
	"time"
)

const layout = "01/02/2006 03:04:05PM"

// Clock hands out monotonically increasing ticks and formats wall-clock
// timestamps. A zero Clock is usable.
type Clock struct {
	ticks atomic.Uint64
}

// New returns a ready Clock.
func New() *Clock {
	return &Clock{}
}

// Tick advances and returns the emulator's logical tick counter. Callers
// use this to order events that happen within the same wall-clock
// millisecond across cores.
func (c *Clock) Tick() uint64 {
	return c.ticks.Add(1)
}

// Value reads the current tick count without advancing it.
func (c *Clock) Value() uint64 {
	return c.ticks.Load()
}

// Now formats the current wall-clock time the way the per-process log
// files and csopesy-log.txt expect.
func Now() string {
	return time.Now().Format(layout)
}

// Format renders an arbitrary instant using the emulator's timestamp
// layout, used when replaying recorded arrival/start/end times.
func Format(t time.Time) string {
	return t.Format(layout)
}
