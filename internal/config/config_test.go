package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oichkatz/csopesy/internal/config"
	"github.com/oichkatz/csopesy/internal/emuerr"
	"github.com/oichkatz/csopesy/internal/scheduler"
)

const validConfig = `
num-cpu 4
scheduler rr
quantum-cycles 5
batch-process-freq 1
min-ins 1000
max-ins 2000
delay-per-exec 0
max-overall-mem 16384
mem-per-frame 16
min-mem-per-proc 64
max-mem-per-proc 64
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := config.Load(strings.NewReader(validConfig))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.NumCPU)
	assert.Equal(t, scheduler.RR, cfg.Scheduler)
	assert.Equal(t, 5, cfg.QuantumCycles)
	assert.Equal(t, time.Second, cfg.BatchProcessFreq)
	assert.Equal(t, 16, cfg.MemPerFrame)
}

func TestLoadIgnoresCommentsAndBlankLines(t *testing.T) {
	src := "# a comment\n\n" + validConfig
	_, err := config.Load(strings.NewReader(src))
	require.NoError(t, err)
}

func TestLoadRejectsNonPositiveNumCPU(t *testing.T) {
	src := strings.Replace(validConfig, "num-cpu 4", "num-cpu 0", 1)
	_, err := config.Load(strings.NewReader(src))
	var ce *emuerr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "num-cpu", ce.Key)
}

func TestLoadRejectsNonPositiveBatchProcessFreq(t *testing.T) {
	src := strings.Replace(validConfig, "batch-process-freq 1", "batch-process-freq 0", 1)
	_, err := config.Load(strings.NewReader(src))
	var ce *emuerr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "batch-process-freq", ce.Key)
}

func TestLoadRejectsUnrecognizedScheduler(t *testing.T) {
	src := strings.Replace(validConfig, "scheduler rr", "scheduler bogus", 1)
	_, err := config.Load(strings.NewReader(src))
	require.Error(t, err)
}

func TestLoadRejectsNonPowerOfTwoFrameSize(t *testing.T) {
	src := strings.Replace(validConfig, "mem-per-frame 16", "mem-per-frame 17", 1)
	_, err := config.Load(strings.NewReader(src))
	require.Error(t, err)
}

func TestLoadRejectsMinInsGreaterThanMaxIns(t *testing.T) {
	src := strings.Replace(validConfig, "min-ins 1000\nmax-ins 2000", "min-ins 2000\nmax-ins 1000", 1)
	_, err := config.Load(strings.NewReader(src))
	require.Error(t, err)
}

func TestLoadRejectsMissingKey(t *testing.T) {
	src := strings.Replace(validConfig, "num-cpu 4\n", "", 1)
	_, err := config.Load(strings.NewReader(src))
	var ce *emuerr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "num-cpu", ce.Key)
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	_, err := config.Load(strings.NewReader("num-cpu 4 extra\n"))
	require.Error(t, err)
}
