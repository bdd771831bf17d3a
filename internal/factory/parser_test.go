package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oichkatz/csopesy/internal/factory"
	"github.com/oichkatz/csopesy/internal/process"
)

func TestParseProgramBasicOpcodes(t *testing.T) {
	src := `DECLARE x 7
ADD y x x
SUB z y x
READ w 0x10
WRITE 0x20 w
PRINT ("y=" + y)
`
	instrs, err := factory.ParseProgram(src)
	require.NoError(t, err)
	require.Len(t, instrs, 6)

	assert.Equal(t, process.Declare{Var: "x", Value: 7}, instrs[0])
	assert.Equal(t, process.Add{Dst: "y", A: "x", B: "x"}, instrs[1])
	assert.Equal(t, process.Sub{Dst: "z", A: "y", B: "x"}, instrs[2])
	assert.Equal(t, process.Read{Var: "w", Addr: 0x10}, instrs[3])
	assert.Equal(t, process.Write{Addr: 0x20, Var: "w", HasVar: true}, instrs[4])
	assert.Equal(t, process.Print{Literal: "y=", Var: "y"}, instrs[5])
}

func TestParseProgramIgnoresUnknownOpcodes(t *testing.T) {
	instrs, err := factory.ParseProgram("NOPE 1 2 3\nDECLARE x 1\n")
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, process.Declare{Var: "x", Value: 1}, instrs[0])
}

func TestParseProgramOpcodesAreCaseInsensitive(t *testing.T) {
	instrs, err := factory.ParseProgram("declare x 1\n")
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, process.Declare{Var: "x", Value: 1}, instrs[0])
}

func TestParsePrintBareLiteral(t *testing.T) {
	instrs, err := factory.ParseProgram(`PRINT ("hello")` + "\n")
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, process.Print{Literal: "hello"}, instrs[0])
}

func TestParsePrintBareVariable(t *testing.T) {
	instrs, err := factory.ParseProgram("PRINT (x)\n")
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, process.Print{Var: "x"}, instrs[0])
}

func TestParseWriteWithLiteralOperand(t *testing.T) {
	instrs, err := factory.ParseProgram("WRITE 4 99\n")
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, process.Write{Addr: 4, Literal: 99}, instrs[0])
}

func TestParseProgramRejectsMalformedDeclare(t *testing.T) {
	_, err := factory.ParseProgram("DECLARE x\n")
	require.Error(t, err)
}
