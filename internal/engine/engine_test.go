package engine_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oichkatz/csopesy/internal/emuerr"
	"github.com/oichkatz/csopesy/internal/engine"
	"github.com/oichkatz/csopesy/internal/factory"
	"github.com/oichkatz/csopesy/internal/memory"
	"github.com/oichkatz/csopesy/internal/process"
)

func newEngine(t *testing.T, pageSize, totalMemory int) (*engine.Engine, *memory.Manager) {
	t.Helper()
	backing := memory.NewBackingStore(afero.NewMemMapFs(), pageSize)
	mem := memory.New(memory.Config{PageSize: pageSize, TotalMemory: totalMemory}, backing, zap.NewNop())
	return engine.New(mem, zap.NewNop()), mem
}

func runToCompletion(t *testing.T, eng *engine.Engine, p *process.Process) error {
	t.Helper()
	for !p.Finished() {
		if err := eng.ExecuteNext(p, 0); err != nil {
			return err
		}
	}
	return nil
}

func mustParse(t *testing.T, src string) []process.Instruction {
	t.Helper()
	instrs, err := factory.ParseProgram(src)
	require.NoError(t, err)
	return instrs
}

// TestSimpleRun is spec scenario 1.
func TestSimpleRun(t *testing.T) {
	eng, _ := newEngine(t, 16, 64)
	instrs := mustParse(t, `DECLARE x 7
DECLARE y 5
ADD z x y
PRINT ("z=" + z)
`)
	p := process.New(1, "p1", instrs, 64, process.UserMode)

	require.NoError(t, runToCompletion(t, eng, p))

	assert.Equal(t, uint64(4), p.Completed())
	assert.True(t, p.Finished())
	assert.Contains(t, p.LogSnapshot(), `PRINT: "z=12"`)
}

// TestAddSaturation is spec scenario 2.
func TestAddSaturation(t *testing.T) {
	eng, mem := newEngine(t, 16, 64)
	instrs := mustParse(t, `DECLARE a 65535
DECLARE b 1
ADD c a b
`)
	p := process.New(1, "p1", instrs, 64, process.UserMode)

	require.NoError(t, runToCompletion(t, eng, p))

	v, err := mem.ReadU16(p, p.Symbols["c"])
	require.NoError(t, err)
	assert.Equal(t, uint16(0xFFFF), v)
}

// TestSubUnderflow is spec scenario 3.
func TestSubUnderflow(t *testing.T) {
	eng, mem := newEngine(t, 16, 64)
	instrs := mustParse(t, `DECLARE a 3
DECLARE b 10
SUB c a b
`)
	p := process.New(1, "p1", instrs, 64, process.UserMode)

	require.NoError(t, runToCompletion(t, eng, p))

	v, err := mem.ReadU16(p, p.Symbols["c"])
	require.NoError(t, err)
	assert.Equal(t, uint16(0), v)
}

// TestMemoryViolationTerminatesProcess is spec scenario 6.
func TestMemoryViolationTerminatesProcess(t *testing.T) {
	eng, _ := newEngine(t, 16, 64)
	instrs := mustParse(t, `WRITE 0xFFFF 1
`)
	p := process.New(1, "p1", instrs, 64, process.UserMode)

	err := eng.ExecuteNext(p, 0)
	var mv *emuerr.MemoryViolation
	require.ErrorAs(t, err, &mv)
	assert.Equal(t, uint32(0xFFFF), mv.Address)
	assert.Equal(t, uint64(0), p.Completed(), "the failing instruction must not be counted as completed")
}

// TestForLoopCountsAsOneInstruction verifies §4.2's accounting rule.
func TestForLoopCountsAsOneInstruction(t *testing.T) {
	eng, _ := newEngine(t, 16, 64)
	body := []process.Instruction{
		process.Declare{Var: "x", Value: 1},
		process.Declare{Var: "y", Value: 2},
	}
	instrs := []process.Instruction{process.For{Iterations: 5, Body: body}}
	p := process.New(1, "p1", instrs, 64, process.UserMode)

	require.NoError(t, runToCompletion(t, eng, p))
	assert.Equal(t, uint64(1), p.Completed())
}
