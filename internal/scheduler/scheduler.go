// Package scheduler drives N worker cores over a shared FIFO ready
// queue, applying either FCFS or preemptive Round Robin (§4.3). Each
// core is an OS-thread-equivalent goroutine; their lifetimes are owned
// by an errgroup.Group so a graceful stop can join cleanly once the
// queue drains and every core goes idle.
package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oichkatz/csopesy/internal/clock"
	"github.com/oichkatz/csopesy/internal/emuerr"
	"github.com/oichkatz/csopesy/internal/engine"
	"github.com/oichkatz/csopesy/internal/memory"
	"github.com/oichkatz/csopesy/internal/process"
	"github.com/oichkatz/csopesy/internal/util"
)

// Policy selects the dispatch discipline.
type Policy int

const (
	FCFS Policy = iota
	RR
)

// Config fixes the scheduler's shape for its lifetime.
type Config struct {
	NumCPU          int
	Policy          Policy
	Quantum         int // instructions, RR only
	DelayPerInstr   time.Duration
	AdmitRetryDelay time.Duration
}

// Scheduler owns the ready queue and the pool of core goroutines.
type Scheduler struct {
	cfg Config
	mem *memory.Manager
	eng *engine.Engine
	log *zap.Logger

	queue *readyQueue
	clk   *clock.Clock

	runningMu sync.Mutex
	running   map[int]*process.Process // coreID -> process, nil when idle

	idleCores atomic.Int32

	group *errgroup.Group

	errMu        sync.Mutex
	shutdownErrs []error

	onDone func(*process.Process)
}

// New constructs a Scheduler over mem/eng with N idle cores. onDone, if
// non-nil, is invoked once per process as it reaches Done (the emulator
// uses it to log each finished process).
func New(cfg Config, mem *memory.Manager, eng *engine.Engine, log *zap.Logger, onDone func(*process.Process)) *Scheduler {
	s := &Scheduler{
		cfg:     cfg,
		mem:     mem,
		eng:     eng,
		log:     log,
		queue:   newReadyQueue(),
		clk:     clock.New(),
		running: make(map[int]*process.Process, cfg.NumCPU),
		onDone:  onDone,
	}
	return s
}

// Ticks reports the scheduler's logical tick counter, advanced once
// per executed instruction across every core, for report-util
// snapshots that need a core-independent ordering of activity.
func (s *Scheduler) Ticks() uint64 {
	return s.clk.Value()
}

// Enqueue admits p onto the tail of the ready queue.
func (s *Scheduler) Enqueue(p *process.Process) {
	s.queue.Enqueue(p)
}

// QueueDepth reports the number of processes currently waiting, for
// report-util snapshots.
func (s *Scheduler) QueueDepth() int {
	return s.queue.Len()
}

// RunningSnapshot returns a copy of the coreID -> process assignment,
// for report-util snapshots.
func (s *Scheduler) RunningSnapshot() map[int]*process.Process {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	out := make(map[int]*process.Process, len(s.running))
	for k, v := range s.running {
		out[k] = v
	}
	return out
}

// Start launches NumCPU core goroutines, each the equivalent of one of
// the teacher's OS threads (§5). It returns immediately; call Stop to
// request a graceful shutdown and Wait to join — that blocking join is
// the "background shutdown thread" of §5, collapsed into a single call
// rather than a dedicated goroutine, since Go's errgroup already gives
// us a place to park it.
func (s *Scheduler) Start() {
	group := &errgroup.Group{}
	s.group = group

	s.idleCores.Store(int32(s.cfg.NumCPU))
	for i := 0; i < s.cfg.NumCPU; i++ {
		coreID := i
		group.Go(func() error {
			s.coreLoop(coreID)
			return nil
		})
	}
}

// Stop flips the should_stop flag: the ready queue drains but no
// longer blocks new dequeues once empty, and in-flight instructions
// finish naturally (§5's "no per-operation timeouts, in-flight work
// isn't interrupted").
func (s *Scheduler) Stop() {
	s.queue.Stop()
}

// Wait joins every core goroutine, then returns every memory-release
// failure collected during teardown combined with multierr rather than
// just the first (mirrors the teacher's habit of walking every
// per-CPU structure on teardown instead of stopping early, e.g.
// mem/mem.go's Pgcount).
func (s *Scheduler) Wait() error {
	if s.group == nil {
		return nil
	}
	if err := s.group.Wait(); err != nil {
		return err
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return multierr.Combine(s.shutdownErrs...)
}

func (s *Scheduler) setRunning(coreID int, p *process.Process) {
	s.runningMu.Lock()
	if p == nil {
		delete(s.running, coreID)
	} else {
		s.running[coreID] = p
	}
	s.runningMu.Unlock()
}

// coreLoop is one logical core: wait on the ready queue, admit,
// execute a slice, re-enqueue or finalize, repeat — exactly the
// infinite-loop shape of §5.
func (s *Scheduler) coreLoop(coreID int) {
	for {
		p, ok := s.queue.Dequeue()
		if !ok {
			return
		}

		if !s.admit(p) {
			// §4.3: admission currently always succeeds once eviction is
			// unconditional; this path exists for the open question in §9
			// and simply requeues at the tail after a brief pause.
			time.Sleep(s.cfg.AdmitRetryDelay)
			s.queue.Enqueue(p)
			continue
		}

		s.idleCores.Add(-1)
		p.SetCore(coreID)
		p.SetStatus(process.Running)
		if p.Start.IsZero() {
			p.Start = time.Now()
		}
		s.setRunning(coreID, p)

		s.runSlice(p, coreID)

		s.setRunning(coreID, nil)
		p.SetCore(-1)
		s.idleCores.Add(1)
	}
}

// IdleCores reports how many cores currently hold no process, for
// report-util snapshots and shutdown-join diagnostics.
func (s *Scheduler) IdleCores() int {
	return int(s.idleCores.Load())
}

// admit requests memory admission before a core begins executing p.
// Per §4.3/§9 this always succeeds today since eviction is
// unconditional; the bool return preserves the hook for a future
// capacity-aware policy.
func (s *Scheduler) admit(p *process.Process) bool {
	s.mem.Admit(p)
	return true
}

// runSlice executes p for at most Quantum top-level instructions under
// RR, or to completion/fault under FCFS, per §4.3.
func (s *Scheduler) runSlice(p *process.Process, coreID int) {
	limit := len(p.Instructions) - p.InstructionPointer
	if s.cfg.Policy == RR {
		limit = util.Min(limit, s.cfg.Quantum)
	}

	for i := 0; i < limit; i++ {
		if p.Finished() {
			break
		}
		_, waitBefore := p.Accnt.Totals()
		start := time.Now()
		if err := s.eng.ExecuteNext(p, coreID); err != nil {
			s.fail(p, coreID, err)
			return
		}
		elapsed := time.Since(start).Nanoseconds()
		_, waitAfter := p.Accnt.Totals()
		if execDelta := elapsed - (waitAfter - waitBefore); execDelta > 0 {
			p.Accnt.AddExec(execDelta)
		}
		s.clk.Tick()
		if s.cfg.DelayPerInstr > 0 {
			time.Sleep(s.cfg.DelayPerInstr)
		}
	}

	if p.Finished() {
		s.complete(p, coreID)
		return
	}

	// RR quantum expired with instructions remaining: preempt back to
	// the tail of the ready queue in Ready status (§4.3).
	p.SetStatus(process.Ready)
	s.queue.Enqueue(p)
}

func (s *Scheduler) fail(p *process.Process, coreID int, err error) {
	var mv *emuerr.MemoryViolation
	if errors.As(err, &mv) {
		p.MarkViolation(mv.Address)
		p.LogAt(coreID, fmt.Sprintf("TERMINATED: memory violation at address 0x%x", mv.Address))
	} else {
		p.SetStatus(process.Done)
		p.LogAt(coreID, "TERMINATED: "+err.Error())
	}
	p.End = time.Now()
	s.finalize(p, coreID)
}

func (s *Scheduler) complete(p *process.Process, coreID int) {
	p.SetStatus(process.Done)
	p.End = time.Now()
	s.finalize(p, coreID)
}

func (s *Scheduler) finalize(p *process.Process, coreID int) {
	if err := s.mem.Release(p); err != nil {
		s.log.Warn("memory release failed", zap.Uint64("pid", p.ID), zap.Error(err))
		s.errMu.Lock()
		s.shutdownErrs = append(s.shutdownErrs, fmt.Errorf("release pid %d: %w", p.ID, err))
		s.errMu.Unlock()
	}
	if s.onDone != nil {
		s.onDone(p)
	}
}
