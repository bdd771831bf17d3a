package engine

import (
	"hash/fnv"

	"github.com/oichkatz/csopesy/internal/emuerr"
	"github.com/oichkatz/csopesy/internal/process"
)

// userSymbolCap is the maximum number of distinct variables a
// user-authored text program may declare (§4.2).
const userSymbolCap = 32

// userStrideBytes spaces consecutive bump-allocated user addresses two
// bytes apart, enough room for the u16 values this engine deals in.
const userStrideBytes = 2

// userBaseAddr is the fixed low offset user-mode addresses start from.
const userBaseAddr = 0

// hashAddress implements the generator-mode addressing rule of §9:
// hash(name) mod max(1, vmLimit-2). Collisions between distinct names
// are possible and intentionally tolerated.
func hashAddress(name string, vmLimit uint32) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	mod := vmLimit - 2
	if vmLimit < 2 {
		mod = 1
	}
	if mod == 0 {
		mod = 1
	}
	return h.Sum32() % mod
}

// addressFor returns the address backing variable name in p's address
// space, allocating a new slot on first use. User-mode allocation is
// capped at userSymbolCap entries; overflow is SymbolTableFull.
func addressFor(p *process.Process, name string) (uint32, error) {
	if addr, ok := p.Symbols[name]; ok {
		return addr, nil
	}

	switch p.Mode {
	case process.GeneratorMode:
		addr := hashAddress(name, p.VMLimit)
		p.Symbols[name] = addr
		return addr, nil
	default:
		if len(p.Symbols) >= userSymbolCap {
			return 0, &emuerr.SymbolTableFull{}
		}
		addr := userBaseAddr + uint32(len(p.Symbols))*userStrideBytes
		p.Symbols[name] = addr
		return addr, nil
	}
}

// lookupAddress resolves an existing variable without allocating,
// returning UnknownVariable in user mode if it was never declared.
// Generator mode never fails this way: any name hashes to a valid slot.
func lookupAddress(p *process.Process, name string) (uint32, error) {
	if addr, ok := p.Symbols[name]; ok {
		return addr, nil
	}
	if p.Mode == process.GeneratorMode {
		return addressFor(p, name)
	}
	return 0, &emuerr.UnknownVariable{Name: name}
}
