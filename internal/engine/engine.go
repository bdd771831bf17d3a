// Package engine interprets one Process's instruction stream, issuing
// byte-level reads and writes through the Memory Manager and
// dispatching on the opcode table of §4.2.
package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oichkatz/csopesy/internal/memory"
	"github.com/oichkatz/csopesy/internal/process"
)

// Engine executes instructions for processes against a shared Memory
// Manager. It holds no per-process state of its own; everything it
// touches lives on the Process or in the Memory Manager.
type Engine struct {
	mem *memory.Manager
	log *zap.Logger
}

// New returns an Engine bound to mem.
func New(mem *memory.Manager, log *zap.Logger) *Engine {
	return &Engine{mem: mem, log: log}
}

// ExecuteNext runs the single top-level instruction at p's instruction
// pointer on behalf of coreID. On success it advances Completed and
// InstructionPointer by exactly one, regardless of how many nested
// instructions a For body ran. On error the process is left exactly
// where it was — callers terminate it and record the failure.
func (e *Engine) ExecuteNext(p *process.Process, coreID int) error {
	instr := p.Next()
	if err := e.exec(p, coreID, instr); err != nil {
		return err
	}
	p.Advance()
	return nil
}

// exec dispatches a single instruction, recursing for For bodies. Only
// ExecuteNext calls Advance; exec never does, so nested For-body
// instructions don't perturb the completion/quantum counters (§4.2).
func (e *Engine) exec(p *process.Process, coreID int, instr process.Instruction) error {
	switch ins := instr.(type) {
	case process.Declare:
		return e.execDeclare(p, ins)
	case process.Add:
		return e.execAdd(p, ins)
	case process.Sub:
		return e.execSub(p, ins)
	case process.Print:
		return e.execPrint(p, coreID, ins)
	case process.Sleep:
		d := time.Duration(ins.Millis) * time.Millisecond
		time.Sleep(d)
		p.Accnt.AddWait(d.Nanoseconds())
		return nil
	case process.For:
		for i := 0; i < ins.Iterations; i++ {
			for _, body := range ins.Body {
				if err := e.exec(p, coreID, body); err != nil {
					return err
				}
			}
		}
		return nil
	case process.Read:
		return e.execRead(p, ins)
	case process.Write:
		return e.execWrite(p, ins)
	default:
		return fmt.Errorf("engine: unrecognized instruction %T", instr)
	}
}

func (e *Engine) execDeclare(p *process.Process, ins process.Declare) error {
	addr, err := addressFor(p, ins.Var)
	if err != nil {
		return err
	}
	return e.mem.WriteU16(p, addr, ins.Value)
}

func (e *Engine) execAdd(p *process.Process, ins process.Add) error {
	a, err := e.readOperand(p, ins.A)
	if err != nil {
		return err
	}
	b, err := e.readOperand(p, ins.B)
	if err != nil {
		return err
	}
	sum := uint32(a) + uint32(b)
	if sum > 0xFFFF {
		sum = 0xFFFF
	}
	addr, err := addressFor(p, ins.Dst)
	if err != nil {
		return err
	}
	return e.mem.WriteU16(p, addr, uint16(sum))
}

func (e *Engine) execSub(p *process.Process, ins process.Sub) error {
	a, err := e.readOperand(p, ins.A)
	if err != nil {
		return err
	}
	b, err := e.readOperand(p, ins.B)
	if err != nil {
		return err
	}
	var diff uint32
	if uint32(a) > uint32(b) {
		diff = uint32(a) - uint32(b)
	}
	addr, err := addressFor(p, ins.Dst)
	if err != nil {
		return err
	}
	return e.mem.WriteU16(p, addr, uint16(diff))
}

// readOperand resolves an existing variable's u16 value.
func (e *Engine) readOperand(p *process.Process, name string) (uint16, error) {
	addr, err := lookupAddress(p, name)
	if err != nil {
		return 0, err
	}
	return e.mem.ReadU16(p, addr)
}

func (e *Engine) execPrint(p *process.Process, coreID int, ins process.Print) error {
	var msg string
	switch {
	case ins.Var == "":
		msg = ins.Literal
	case ins.Literal == "":
		v, err := e.readOperand(p, ins.Var)
		if err != nil {
			return err
		}
		msg = fmt.Sprintf("%d", v)
	default:
		v, err := e.readOperand(p, ins.Var)
		if err != nil {
			return err
		}
		msg = fmt.Sprintf("%s%d", ins.Literal, v)
	}
	p.LogAt(coreID, fmt.Sprintf("PRINT: %q", msg))
	e.log.Debug("print", zap.Uint64("pid", p.ID), zap.Int("core", coreID), zap.String("text", msg))
	return nil
}

func (e *Engine) execRead(p *process.Process, ins process.Read) error {
	v, err := e.mem.ReadU16(p, ins.Addr)
	if err != nil {
		return err
	}
	addr, err := addressFor(p, ins.Var)
	if err != nil {
		return err
	}
	return e.mem.WriteU16(p, addr, v)
}

func (e *Engine) execWrite(p *process.Process, ins process.Write) error {
	v := ins.Literal
	if ins.HasVar {
		resolved, err := e.readOperand(p, ins.Var)
		if err != nil {
			return err
		}
		v = resolved
	}
	return e.mem.WriteU16(p, ins.Addr, v)
}
