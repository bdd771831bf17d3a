// Package factory produces Process records, either by random
// generation from a deterministic-per-seed distribution (§4.4) or by
// parsing a line-oriented text program (grammar in §4.4). It also owns
// the pid counter and the unique-name guarantee.
package factory

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/oichkatz/csopesy/internal/process"
)

// Config bounds the shape of randomly generated programs.
type Config struct {
	MinIns      int
	MaxIns      int
	MemoryLimit uint32
}

// maxForNestingDepth caps how deep randomly generated For loops may
// nest, per §4.4's "bounded depth" requirement.
const maxForNestingDepth = 2

// Factory generates and names processes. One Factory is shared by the
// generator goroutine and any CLI-driven "screen -s" creation path, so
// its pid counter is atomic and its name set is guarded by a mutex.
type Factory struct {
	cfg Config
	rng *rand.Rand
	log *zap.Logger

	nextID atomic.Uint64

	mu        sync.Mutex
	usedNames map[string]bool
	nameSeq   uint64
}

// New returns a Factory seeded deterministically by seed, matching
// §4.4's "deterministic-per-seed distribution" requirement.
func New(cfg Config, seed int64, log *zap.Logger) *Factory {
	return &Factory{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(seed)),
		log:       log,
		usedNames: make(map[string]bool),
	}
}

// allocID returns the next unique pid.
func (f *Factory) allocID() uint64 {
	return f.nextID.Add(1)
}

// allocName returns a unique generated process name, skipping
// collisions against a monotonically increasing counter (§4.4).
func (f *Factory) allocName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		f.nameSeq++
		name := fmt.Sprintf("process_%02d", f.nameSeq)
		if !f.usedNames[name] {
			f.usedNames[name] = true
			return name
		}
	}
}

// reserveName claims an explicit name (used by "screen -s <name>"),
// returning false if it is already taken.
func (f *Factory) reserveName(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usedNames[name] {
		return false
	}
	f.usedNames[name] = true
	return true
}

// preAllocationWrites returns the sentinel writes §4.4 requires the
// factory to seed before a generated process's program runs: byte i+1
// at each slot of a stride-spaced prefix of virtual memory, used so
// later Read instructions have deterministic content even before any
// Declare touches that address.
func preAllocationWrites(vmLimit uint32, stride uint32) []process.Write {
	if stride == 0 {
		stride = 2
	}
	var writes []process.Write
	for addr, i := uint32(0), 1; addr+1 < vmLimit; addr, i = addr+stride, i+1 {
		writes = append(writes, process.Write{
			Addr:    addr,
			Literal: uint16(byte(i)),
		})
		if i == 255 {
			i = 0
		}
	}
	return writes
}
