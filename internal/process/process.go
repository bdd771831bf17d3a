// Package process defines the Process record, its instruction set, and
// its lifecycle state machine. A Process is owned by exactly one core at
// a time; fields not guarded by an atomic are mutated only by that core,
// per the single-mutation-domain rule the emulator relies on throughout.
package process

import (
	"sync"
	"sync/atomic"
	"time"
)

// Status is a position in the process lifecycle state machine:
// Ready -> Running -> {Ready, Done}. Done is terminal.
type Status int

const (
	Ready Status = iota
	Running
	Done
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// AddressMode selects how a process's variable addresses are computed
// (§4.2, §9): Generator processes hash their variable names, while
// user-authored text programs get a bump-allocated, capacity-32
// symbol table.
type AddressMode int

const (
	GeneratorMode AddressMode = iota
	UserMode
)

// PageTableEntry is one virtual page's mapping state.
type PageTableEntry struct {
	Frame int // meaningful only when Valid
	Valid bool
	Dirty bool
}

// Process is a unit of schedulable work. Logs, InstructionPointer, and
// Status are mutated only by the core currently running the process;
// Completed is read concurrently by the shell/report layer and so is
// kept atomic.
type Process struct {
	ID   uint64
	Name string

	Instructions []Instruction

	InstructionPointer int
	completed           atomic.Uint64

	status atomic.Int32
	core   atomic.Int64 // -1 when unassigned

	Arrival time.Time
	Start   time.Time
	End     time.Time

	VMLimit uint32
	Mode    AddressMode

	// PageTable and Symbols are owned by the Memory Manager / Instruction
	// Engine respectively while the process is Running; safe to read once
	// the process is Done.
	PageTable map[uint32]*PageTableEntry
	Symbols   map[string]uint32

	violated      atomic.Bool
	violationAddr atomic.Uint32

	Accnt Accnt

	logMu   sync.Mutex
	Logs    []string
	logFile *LogFile
}

// AttachLogFile wires up the external text log (§6) that LogAt mirrors
// every message to, in addition to the in-memory trail.
func (p *Process) AttachLogFile(lf *LogFile) {
	p.logFile = lf
}

// New constructs a Ready process with empty page and symbol tables.
func New(id uint64, name string, instructions []Instruction, vmLimit uint32, mode AddressMode) *Process {
	p := &Process{
		ID:           id,
		Name:         name,
		Instructions: instructions,
		Arrival:      time.Now(),
		VMLimit:      vmLimit,
		Mode:         mode,
		PageTable:    make(map[uint32]*PageTableEntry),
		Symbols:      make(map[string]uint32),
	}
	p.core.Store(-1)
	p.status.Store(int32(Ready))
	return p
}

// Status returns the process's current lifecycle state.
func (p *Process) Status() Status {
	return Status(p.status.Load())
}

// SetStatus transitions the process to s. Callers are responsible for
// respecting the state machine (Done is terminal).
func (p *Process) SetStatus(s Status) {
	p.status.Store(int32(s))
}

// Core returns the id of the core currently running this process, or -1
// if unassigned.
func (p *Process) Core() int {
	return int(p.core.Load())
}

// SetCore assigns or clears (-1) the owning core.
func (p *Process) SetCore(id int) {
	p.core.Store(int64(id))
}

// Completed returns the number of top-level instructions executed so
// far. Safe to call from any goroutine.
func (p *Process) Completed() uint64 {
	return p.completed.Load()
}

// advance records the successful completion of one top-level
// instruction, matching §4.2's accounting rule: a For loop counts once
// regardless of its body length.
func (p *Process) advance() {
	p.completed.Add(1)
	p.InstructionPointer++
}

// Advance is the exported form used by the instruction engine.
func (p *Process) Advance() {
	p.advance()
}

// Finished reports whether the instruction pointer has reached the end of
// the program.
func (p *Process) Finished() bool {
	return p.InstructionPointer >= len(p.Instructions)
}

// Next returns the instruction at the current instruction pointer. The
// caller must check Finished first.
func (p *Process) Next() Instruction {
	return p.Instructions[p.InstructionPointer]
}

// Log appends a message to the process's in-memory log trail under
// its own mutex, independent of the core executing it, since the
// report generator may read Logs concurrently.
func (p *Process) Log(msg string) {
	p.logMu.Lock()
	p.Logs = append(p.Logs, msg)
	p.logMu.Unlock()
}

// LogAt appends a message the same way Log does, and additionally
// mirrors it to the external <name>.txt file if one is attached,
// tagging the line with the core that produced it (§6's log format).
func (p *Process) LogAt(coreID int, msg string) {
	p.Log(msg)
	if p.logFile != nil {
		if err := p.logFile.Append(coreID, msg); err != nil {
			// The external log is a convenience mirror; a write failure
			// here must not take down the process (§7: I/O errors are
			// logged and otherwise ignored).
			p.Log("WARN: failed to persist log line: " + err.Error())
		}
	}
}

// LogSnapshot returns a copy of the log trail, safe to hand to a
// concurrent reader like the report generator.
func (p *Process) LogSnapshot() []string {
	p.logMu.Lock()
	defer p.logMu.Unlock()
	out := make([]string, len(p.Logs))
	copy(out, p.Logs)
	return out
}

// MarkViolation records a fatal out-of-bounds memory access and
// terminates the process. Safe to call concurrently with Violated and
// ViolationAddress, which the report generator and shell read from a
// different goroutine than the core running the process.
func (p *Process) MarkViolation(addr uint32) {
	p.violationAddr.Store(addr)
	p.violated.Store(true)
	p.SetStatus(Done)
}

// Violated reports whether the process was terminated by a memory
// violation. Safe to call from any goroutine.
func (p *Process) Violated() bool {
	return p.violated.Load()
}

// ViolationAddress returns the address that faulted, meaningful only
// when Violated reports true. Safe to call from any goroutine.
func (p *Process) ViolationAddress() uint32 {
	return p.violationAddr.Load()
}
