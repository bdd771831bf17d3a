package process_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oichkatz/csopesy/internal/process"
)

func TestLogFileHeaderAndAppend(t *testing.T) {
	fs := afero.NewMemMapFs()
	lf, err := process.OpenLogFile(fs, "proc1")
	require.NoError(t, err)

	require.NoError(t, lf.Append(0, "hello"))

	contents, err := afero.ReadFile(fs, "proc1.txt")
	require.NoError(t, err)
	s := string(contents)

	assert.Contains(t, s, "Process name: proc1")
	assert.Contains(t, s, "Logs:")
	assert.Contains(t, s, `Core:0 "hello"`)
}

func TestLogAtMirrorsToAttachedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	lf, err := process.OpenLogFile(fs, "proc2")
	require.NoError(t, err)

	p := process.New(1, "proc2", nil, 64, process.UserMode)
	p.AttachLogFile(lf)
	p.LogAt(2, "PRINT: \"hi\"")

	assert.Contains(t, p.LogSnapshot(), `PRINT: "hi"`)

	contents, err := afero.ReadFile(fs, "proc2.txt")
	require.NoError(t, err)
	assert.Contains(t, string(contents), "Core:2")
	assert.Contains(t, string(contents), "PRINT")
}
