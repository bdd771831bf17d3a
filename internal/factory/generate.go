package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/oichkatz/csopesy/internal/process"
)

// variablePoolSize bounds how many distinct variable names a generated
// program draws operands from, per §4.4's "modest pool of declared
// variable names".
const variablePoolSize = 6

// Generate produces one randomly generated, Ready process named
// uniquely within this Factory's lifetime. n is chosen uniformly from
// [MinIns, MaxIns]; MinIns == MaxIns == 0 is legal and yields an empty
// program that completes instantly when dispatched (§8).
func (f *Factory) Generate() *process.Process {
	id := f.allocID()
	name := f.allocName()

	n := f.cfg.MinIns
	if f.cfg.MaxIns > f.cfg.MinIns {
		n += f.rng.Intn(f.cfg.MaxIns - f.cfg.MinIns + 1)
	}

	pool := f.variableNames()
	instrs := make([]process.Instruction, 0, n)
	declared := make(map[string]bool)
	for i := 0; i < n; i++ {
		instrs = append(instrs, f.randomInstruction(pool, declared, 0))
	}

	p := process.New(id, name, instrs, f.cfg.MemoryLimit, process.GeneratorMode)
	if n > 0 {
		p.Instructions = append(preAllocationWritesAsInstructions(f.cfg.MemoryLimit, 4), p.Instructions...)
	}

	f.log.Debug("generated process", zap.Uint64("pid", id), zap.String("name", name), zap.Int("instructions", n))
	return p
}

func preAllocationWritesAsInstructions(vmLimit uint32, stride uint32) []process.Instruction {
	writes := preAllocationWrites(vmLimit, stride)
	out := make([]process.Instruction, len(writes))
	for i, w := range writes {
		out[i] = w
	}
	return out
}

func (f *Factory) variableNames() []string {
	names := make([]string, variablePoolSize)
	for i := range names {
		names[i] = fmt.Sprintf("v%d", i)
	}
	return names
}

func (f *Factory) pick(pool []string) string {
	return pool[f.rng.Intn(len(pool))]
}

// randAddr returns a random valid address within the process's memory
// limit, or 0 when the limit is too small to offer a nonzero range.
func (f *Factory) randAddr() uint32 {
	if f.cfg.MemoryLimit <= 1 {
		return 0
	}
	return uint32(f.rng.Intn(int(f.cfg.MemoryLimit)))
}

// randomInstruction picks one opcode uniformly from the opcode set
// available at depth, nesting For bodies no deeper than
// maxForNestingDepth (§4.4).
func (f *Factory) randomInstruction(pool []string, declared map[string]bool, depth int) process.Instruction {
	opcodes := []string{"declare", "add", "sub", "print", "sleep", "read", "write"}
	if depth < maxForNestingDepth {
		opcodes = append(opcodes, "for")
	}
	switch opcodes[f.rng.Intn(len(opcodes))] {
	case "declare":
		v := f.pick(pool)
		declared[v] = true
		return process.Declare{Var: v, Value: uint16(f.rng.Intn(1 << 16))}
	case "add":
		return process.Add{Dst: f.pick(pool), A: f.pick(pool), B: f.pick(pool)}
	case "sub":
		return process.Sub{Dst: f.pick(pool), A: f.pick(pool), B: f.pick(pool)}
	case "print":
		v := f.pick(pool)
		return process.Print{Literal: fmt.Sprintf("%s=", v), Var: v}
	case "sleep":
		return process.Sleep{Millis: uint32(f.rng.Intn(50))}
	case "read":
		v := f.pick(pool)
		return process.Read{Var: v, Addr: f.randAddr()}
	case "write":
		return process.Write{Addr: f.randAddr(), Var: f.pick(pool), HasVar: true}
	case "for":
		body := make([]process.Instruction, 0, 2)
		for i := 0; i < 2; i++ {
			body = append(body, f.randomInstruction(pool, declared, depth+1))
		}
		return process.For{Iterations: 1 + f.rng.Intn(3), Body: body}
	default:
		panic("factory: unreachable opcode selection")
	}
}
