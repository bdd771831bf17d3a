// Package memory implements the demand-paged Memory Manager of §4.1:
// a fixed pool of physical frames shared by every process, FIFO page
// replacement, and a per-process backing store. Frame-table state and
// the FIFO eviction queue are owned exclusively by Manager's mutex;
// nothing touches them while holding a Process's own log mutex, which
// keeps the two lock domains from ever nesting.
package memory

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/oichkatz/csopesy/internal/emuerr"
	"github.com/oichkatz/csopesy/internal/process"
	"github.com/oichkatz/csopesy/internal/util"
)

// Config fixes the geometry of the frame pool for the lifetime of the
// Manager.
type Config struct {
	PageSize    int
	TotalMemory int
}

// Manager is the emulator's single Memory Manager instance, shared by
// every core.
type Manager struct {
	pageSize  int
	numFrames int

	mu     sync.Mutex
	frames []Frame
	fifo   fifoQueue
	procs  map[uint64]*process.Process

	backing *BackingStore

	pageIns    atomic.Uint64
	pageOuts   atomic.Uint64
	usedFrames atomic.Int64

	log *zap.Logger
}

// New constructs a Manager over the given backing-store filesystem.
func New(cfg Config, backing *BackingStore, log *zap.Logger) *Manager {
	numFrames := cfg.TotalMemory / cfg.PageSize
	frames := make([]Frame, numFrames)
	for i := range frames {
		frames[i].Data = make([]byte, cfg.PageSize)
	}
	return &Manager{
		pageSize:  cfg.PageSize,
		numFrames: numFrames,
		frames:    frames,
		procs:     make(map[uint64]*process.Process),
		backing:   backing,
		log:       log,
	}
}

// PageSize reports the frame size in bytes.
func (m *Manager) PageSize() int { return m.pageSize }

// Admit registers p with the Memory Manager so that eviction can find
// its page table by pid. Per §4.3/§9, admission always succeeds:
// eviction is unconditional, so there is never a reason to reject.
func (m *Manager) Admit(p *process.Process) {
	m.mu.Lock()
	m.procs[p.ID] = p
	m.mu.Unlock()
}

// Stats reports (page_ins, page_outs, used_frames, total_frames).
func (m *Manager) Stats() (pageIns, pageOuts, used, total uint64) {
	return m.pageIns.Load(), m.pageOuts.Load(), uint64(m.usedFrames.Load()), uint64(m.numFrames)
}

func resolve(pageSize int, addr uint32) (vpn uint32, off uint32) {
	base := util.Rounddown(addr, uint32(pageSize))
	return base / uint32(pageSize), addr - base
}

// Read resolves addr against p's page table, paging in on a fault, and
// returns the byte at that address.
func (m *Manager) Read(p *process.Process, addr uint32) (byte, error) {
	if addr >= p.VMLimit {
		return 0, &emuerr.MemoryViolation{Address: addr}
	}
	vpn, off := resolve(m.pageSize, addr)

	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, err := m.ensureResident(p, vpn)
	if err != nil {
		return 0, err
	}
	return m.frames[frameID].Data[off], nil
}

// Write resolves addr against p's page table, paging in on a fault,
// stores b, and marks the page dirty.
func (m *Manager) Write(p *process.Process, addr uint32, b byte) error {
	if addr >= p.VMLimit {
		return &emuerr.MemoryViolation{Address: addr}
	}
	vpn, off := resolve(m.pageSize, addr)

	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, err := m.ensureResident(p, vpn)
	if err != nil {
		return err
	}
	m.frames[frameID].Data[off] = b
	p.PageTable[vpn].Dirty = true
	return nil
}

// ReadU16 reads a little-endian u16 at addr. The high byte is treated
// as zero when addr+1 would exceed the process's VM limit — a
// compatibility quirk preserved verbatim from the source (§4.1, §9).
func (m *Manager) ReadU16(p *process.Process, addr uint32) (uint16, error) {
	lo, err := m.Read(p, addr)
	if err != nil {
		return 0, err
	}
	if addr+1 >= p.VMLimit {
		return uint16(lo), nil
	}
	hi, err := m.Read(p, addr+1)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// WriteU16 writes a little-endian u16 at addr, skipping the high byte
// when addr+1 would exceed the process's VM limit (§4.1, §9).
func (m *Manager) WriteU16(p *process.Process, addr uint32, v uint16) error {
	if err := m.Write(p, addr, byte(v)); err != nil {
		return err
	}
	if addr+1 >= p.VMLimit {
		return nil
	}
	return m.Write(p, addr+1, byte(v>>8))
}

// ensureResident performs the page-fault handler contract of §4.1:
// find-or-evict a free frame, load the page image, and install the
// mapping. Called with m.mu held.
func (m *Manager) ensureResident(p *process.Process, vpn uint32) (int, error) {
	pte := p.PageTable[vpn]
	if pte != nil && pte.Valid {
		return pte.Frame, nil
	}

	frameID, ok := m.findFree()
	if !ok {
		frameID = m.evict()
	}

	image, err := m.backing.ReadPage(p.ID, vpn)
	if err != nil {
		m.log.Warn("backing store read failed, treating as zero page",
			zap.Uint64("pid", p.ID), zap.Uint32("vpn", vpn), zap.Error(err))
		image = make([]byte, m.pageSize)
	}

	f := &m.frames[frameID]
	f.PID = p.ID
	f.VPN = vpn
	f.Occupied = true
	copy(f.Data, image)

	if pte == nil {
		pte = &process.PageTableEntry{}
		p.PageTable[vpn] = pte
	}
	pte.Frame = frameID
	pte.Valid = true
	pte.Dirty = false

	m.fifo.push(frameID)
	m.pageIns.Add(1)
	m.usedFrames.Add(1)

	m.log.Debug("page in", zap.Uint64("pid", p.ID), zap.Uint32("vpn", vpn), zap.Int("frame", frameID))
	return frameID, nil
}

func (m *Manager) findFree() (int, bool) {
	for i := range m.frames {
		if !m.frames[i].Occupied {
			return i, true
		}
	}
	return 0, false
}

// evict pops the FIFO head, writes it back if dirty, and returns its
// now-free frame id. Tie-break is strictly FIFO regardless of
// dirtiness or owning process, per §4.1.
func (m *Manager) evict() int {
	victim, ok := m.fifo.pop()
	if !ok {
		panic("memory: evict called with no occupied frames")
	}
	f := &m.frames[victim]

	owner, known := m.procs[f.PID]
	if known {
		if pte := owner.PageTable[f.VPN]; pte != nil {
			if pte.Dirty {
				if err := m.backing.WritePage(f.PID, f.VPN, f.Data); err != nil {
					m.log.Warn("backing store write failed, dropping page",
						zap.Uint64("pid", f.PID), zap.Uint32("vpn", f.VPN), zap.Error(err))
				} else {
					m.pageOuts.Add(1)
				}
			}
			pte.Valid = false
			pte.Dirty = false
		}
	}

	f.Occupied = false
	m.usedFrames.Add(-1)
	m.log.Debug("evicted frame", zap.Int("frame", victim), zap.Uint64("pid", f.PID), zap.Uint32("vpn", f.VPN))
	return victim
}

// Release frees every frame held by p and deletes its backing store.
// Idempotent, per §4.1's failure semantics.
func (m *Manager) Release(p *process.Process) error {
	m.mu.Lock()
	for _, pte := range p.PageTable {
		if pte.Valid {
			m.frames[pte.Frame].Occupied = false
			m.fifo.remove(pte.Frame)
			m.usedFrames.Add(-1)
			pte.Valid = false
		}
	}
	delete(m.procs, p.ID)
	m.mu.Unlock()

	return m.backing.Delete(p.ID)
}
