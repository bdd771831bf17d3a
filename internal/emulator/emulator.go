// Package emulator wires the Memory Manager, Instruction Engine,
// Scheduler, and Process Factory into the single Emulator value the
// CLI layer drives. Per §9's "global mutable state" note, nothing here
// lives at file scope: the process registry, pid counter, and
// scheduler singleton are all fields of Emulator, constructed once at
// startup and passed by reference.
package emulator

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oichkatz/csopesy/internal/config"
	"github.com/oichkatz/csopesy/internal/engine"
	"github.com/oichkatz/csopesy/internal/factory"
	"github.com/oichkatz/csopesy/internal/memory"
	"github.com/oichkatz/csopesy/internal/process"
	"github.com/oichkatz/csopesy/internal/scheduler"
)

// Emulator is the one non-static entry point for every CLI command.
type Emulator struct {
	RunID string

	cfg config.Config
	log *zap.Logger

	fs      afero.Fs
	mem     *memory.Manager
	eng     *engine.Engine
	sched   *scheduler.Scheduler
	factory *factory.Factory

	regMu    sync.Mutex
	registry map[uint64]*process.Process
	byName   map[string]*process.Process

	started bool
	genDone chan struct{}
}

// New builds an Emulator from a validated Config. fs is the filesystem
// backing both the per-process backing store and the per-process text
// logs; pass afero.NewOsFs() in production and afero.NewMemMapFs() in
// tests.
func New(cfg config.Config, fs afero.Fs, log *zap.Logger, seed int64) *Emulator {
	backing := memory.NewBackingStore(fs, cfg.MemPerFrame)
	mem := memory.New(memory.Config{PageSize: cfg.MemPerFrame, TotalMemory: cfg.MaxOverallMem}, backing, log)
	eng := engine.New(mem, log)

	e := &Emulator{
		RunID:    uuid.NewString(),
		cfg:      cfg,
		log:      log,
		fs:       fs,
		mem:      mem,
		eng:      eng,
		registry: make(map[uint64]*process.Process),
		byName:   make(map[string]*process.Process),
	}

	e.factory = factory.New(factory.Config{
		MinIns:      cfg.MinIns,
		MaxIns:      cfg.MaxIns,
		MemoryLimit: uint32(cfg.MaxMemPerProc),
	}, seed, log)

	e.sched = scheduler.New(scheduler.Config{
		NumCPU:          cfg.NumCPU,
		Policy:          cfg.Scheduler,
		Quantum:         cfg.QuantumCycles,
		DelayPerInstr:   cfg.DelayPerExec,
		AdmitRetryDelay: time.Millisecond,
	}, mem, eng, log, e.onProcessDone)

	return e
}

// MemPerFrame exposes the configured page size.
func (e *Emulator) MemPerFrame() int { return e.cfg.MemPerFrame }

func (e *Emulator) register(p *process.Process) {
	logFile, err := process.OpenLogFile(e.fs, p.Name)
	if err != nil {
		e.log.Warn("could not open process log file", zap.String("name", p.Name), zap.Error(err))
	} else {
		p.AttachLogFile(logFile)
	}

	e.regMu.Lock()
	e.registry[p.ID] = p
	e.byName[p.Name] = p
	e.regMu.Unlock()
}

func (e *Emulator) onProcessDone(p *process.Process) {
	e.log.Info("process done",
		zap.String("run_id", e.RunID),
		zap.Uint64("pid", p.ID),
		zap.String("name", p.Name),
		zap.Bool("violated", p.Violated()),
	)
}

// StartScheduler launches the core pool and the generator goroutine.
// It is idempotent: calling it twice is a no-op (mirrors "initialize"
// + "scheduler-start" being separate CLI commands that must tolerate a
// redundant second start per §6).
func (e *Emulator) StartScheduler() {
	if e.started {
		return
	}
	e.started = true
	e.sched.Start()

	e.genDone = make(chan struct{})
	go e.generatorLoop(e.genDone)
}

// generatorLoop is the generator thread of §5: it creates one randomly
// generated process every BatchProcessFreq seconds until told to stop.
func (e *Emulator) generatorLoop(done chan struct{}) {
	ticker := time.NewTicker(e.cfg.BatchProcessFreq)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p := e.factory.Generate()
			e.register(p)
			e.sched.Enqueue(p)
		}
	}
}

// StopScheduler requests a graceful shutdown: halts the generator,
// lets workers drain the ready queue, and joins once every core is
// idle (§4.3's "Shutdown").
func (e *Emulator) StopScheduler() error {
	if !e.started {
		return nil
	}
	close(e.genDone)
	e.sched.Stop()
	err := e.sched.Wait()
	e.started = false
	return err
}

// SubmitProgram parses src as a user-authored text program (§4.4's
// grammar) and enqueues it as a Ready process named name, backing
// "screen -s <name>".
func (e *Emulator) SubmitProgram(name, src string) (*process.Process, error) {
	p, err := e.factory.FromProgram(name, src, uint32(e.cfg.MaxMemPerProc))
	if err != nil {
		return nil, err
	}
	e.register(p)
	e.sched.Enqueue(p)
	return p, nil
}

// Lookup finds a process by name, for "screen -r <name>".
func (e *Emulator) Lookup(name string) (*process.Process, bool) {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	p, ok := e.byName[name]
	return p, ok
}

// List returns every process the emulator has ever created, for
// "screen -ls".
func (e *Emulator) List() []*process.Process {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	out := make([]*process.Process, 0, len(e.registry))
	for _, p := range e.registry {
		out = append(out, p)
	}
	return out
}

// Snapshot is the read-only view report-util and the shell consume
// (§1: "external collaborators consuming read-only snapshots of core
// state"). Building it never blocks a core: it copies scalars and log
// trails under their own fine-grained locks.
type Snapshot struct {
	RunID      string
	Processes   []ProcessView
	QueueDepth  int
	IdleCores   int
	Ticks       uint64
	PageIns     uint64
	PageOuts    uint64
	UsedFrames  uint64
	TotalFrames uint64
}

// ProcessView is the read-only projection of a Process exposed outside
// the core.
type ProcessView struct {
	ID                uint64
	Name              string
	Status            string
	Core              int
	Completed         uint64
	TotalInstructions int
	Violated          bool
	ViolationAddress  uint32
	ExecNs            int64
	WaitNs            int64
	Logs              []string
}

// Snapshot captures the current state of every tracked process plus
// scheduler/memory-manager aggregates.
func (e *Emulator) Snapshot() Snapshot {
	pageIns, pageOuts, used, total := e.mem.Stats()

	e.regMu.Lock()
	procs := make([]*process.Process, 0, len(e.registry))
	for _, p := range e.registry {
		procs = append(procs, p)
	}
	e.regMu.Unlock()

	views := make([]ProcessView, 0, len(procs))
	for _, p := range procs {
		execNs, waitNs := p.Accnt.Totals()
		views = append(views, ProcessView{
			ID:                p.ID,
			Name:              p.Name,
			Status:            p.Status().String(),
			Core:              p.Core(),
			Completed:         p.Completed(),
			TotalInstructions: len(p.Instructions),
			Violated:          p.Violated(),
			ViolationAddress:  p.ViolationAddress(),
			ExecNs:            execNs,
			WaitNs:            waitNs,
			Logs:              p.LogSnapshot(),
		})
	}

	return Snapshot{
		RunID:       e.RunID,
		Processes:   views,
		QueueDepth:  e.sched.QueueDepth(),
		IdleCores:   e.sched.IdleCores(),
		Ticks:       e.sched.Ticks(),
		PageIns:     pageIns,
		PageOuts:    pageOuts,
		UsedFrames:  used,
		TotalFrames: total,
	}
}
