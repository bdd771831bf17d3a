package report_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oichkatz/csopesy/internal/emulator"
	"github.com/oichkatz/csopesy/internal/report"
)

func TestWriteRendersRunIDAndCounters(t *testing.T) {
	snap := emulator.Snapshot{
		RunID:       "abc-123",
		QueueDepth:  2,
		IdleCores:   1,
		Ticks:       1000,
		PageIns:     12000,
		PageOuts:    3000,
		UsedFrames:  4,
		TotalFrames: 16,
		Processes: []emulator.ProcessView{
			{Name: "p1", Status: "Done", Core: -1, Completed: 4, TotalInstructions: 4},
			{Name: "p2", Status: "Running", Core: 0, Completed: 2, TotalInstructions: 6, Violated: true, ViolationAddress: 0xFFFF},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, snap))

	out := buf.String()
	assert.Contains(t, out, "abc-123")
	assert.Contains(t, out, "p1")
	assert.Contains(t, out, "p2")
	assert.Contains(t, out, "memory violation at 0xffff")
	assert.Contains(t, out, "12,000", "page-ins should be thousands-separated")
	assert.Contains(t, out, "16")
}
