// Package config loads the emulator's whitespace "key value" config
// file (§6). The format is bespoke to this emulator — no line in it
// resembles YAML/TOML/INI — so this is a small hand-rolled scanner
// rather than an imported parser; see DESIGN.md for the stdlib-only
// justification.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/oichkatz/csopesy/internal/emuerr"
	"github.com/oichkatz/csopesy/internal/scheduler"
)

// Config is the fully validated, typed form of §6's recognized keys.
type Config struct {
	NumCPU            int
	Scheduler         scheduler.Policy
	QuantumCycles     int
	BatchProcessFreq  time.Duration
	MinIns, MaxIns    int
	DelayPerExec      time.Duration
	MaxOverallMem     int
	MemPerFrame       int
	MinMemPerProc     int
	MaxMemPerProc     int
}

// Load parses r as the §6 config format and validates every field,
// surfacing a ConfigError for any problem rather than letting an
// invalid value panic later at runtime (§7: "config errors prevent
// start-up but never occur at runtime").
func Load(r io.Reader) (Config, error) {
	raw := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return Config{}, &emuerr.ConfigError{Key: line, Err: fmt.Errorf("expected \"key value\"")}
		}
		raw[strings.ToLower(fields[0])] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return Config{}, &emuerr.ConfigError{Key: "<read>", Err: err}
	}

	cfg := Config{}
	var err error

	if cfg.NumCPU, err = reqInt(raw, "num-cpu"); err != nil {
		return Config{}, err
	}
	if cfg.NumCPU <= 0 {
		return Config{}, &emuerr.ConfigError{Key: "num-cpu", Err: fmt.Errorf("must be positive")}
	}

	policy, err := reqString(raw, "scheduler")
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(policy) {
	case "fcfs":
		cfg.Scheduler = scheduler.FCFS
	case "rr":
		cfg.Scheduler = scheduler.RR
	default:
		return Config{}, &emuerr.ConfigError{Key: "scheduler", Err: fmt.Errorf("must be fcfs or rr, got %q", policy)}
	}

	if cfg.QuantumCycles, err = reqInt(raw, "quantum-cycles"); err != nil {
		return Config{}, err
	}
	if cfg.Scheduler == scheduler.RR && cfg.QuantumCycles <= 0 {
		return Config{}, &emuerr.ConfigError{Key: "quantum-cycles", Err: fmt.Errorf("must be positive under rr")}
	}

	batchFreq, err := reqInt(raw, "batch-process-freq")
	if err != nil {
		return Config{}, err
	}
	if batchFreq <= 0 {
		return Config{}, &emuerr.ConfigError{Key: "batch-process-freq", Err: fmt.Errorf("must be positive")}
	}
	cfg.BatchProcessFreq = time.Duration(batchFreq) * time.Second

	if cfg.MinIns, err = reqInt(raw, "min-ins"); err != nil {
		return Config{}, err
	}
	if cfg.MaxIns, err = reqInt(raw, "max-ins"); err != nil {
		return Config{}, err
	}
	if cfg.MinIns < 0 || cfg.MaxIns < cfg.MinIns {
		return Config{}, &emuerr.ConfigError{Key: "min-ins/max-ins", Err: fmt.Errorf("require 0 <= min-ins <= max-ins")}
	}

	delay, err := reqInt(raw, "delay-per-exec")
	if err != nil {
		return Config{}, err
	}
	if delay < 0 {
		return Config{}, &emuerr.ConfigError{Key: "delay-per-exec", Err: fmt.Errorf("must be non-negative")}
	}
	cfg.DelayPerExec = time.Duration(delay) * time.Millisecond

	if cfg.MaxOverallMem, err = reqInt(raw, "max-overall-mem"); err != nil {
		return Config{}, err
	}
	if cfg.MemPerFrame, err = reqInt(raw, "mem-per-frame"); err != nil {
		return Config{}, err
	}
	if !isPowerOfTwo(cfg.MemPerFrame) {
		return Config{}, &emuerr.ConfigError{Key: "mem-per-frame", Err: fmt.Errorf("must be a power of two, got %d", cfg.MemPerFrame)}
	}
	if cfg.MaxOverallMem < cfg.MemPerFrame {
		return Config{}, &emuerr.ConfigError{Key: "max-overall-mem", Err: fmt.Errorf("must be at least mem-per-frame")}
	}

	if cfg.MinMemPerProc, err = reqInt(raw, "min-mem-per-proc"); err != nil {
		return Config{}, err
	}
	if cfg.MaxMemPerProc, err = reqInt(raw, "max-mem-per-proc"); err != nil {
		return Config{}, err
	}
	if cfg.MinMemPerProc <= 0 || cfg.MaxMemPerProc < cfg.MinMemPerProc {
		return Config{}, &emuerr.ConfigError{Key: "min-mem-per-proc/max-mem-per-proc", Err: fmt.Errorf("require 0 < min-mem-per-proc <= max-mem-per-proc")}
	}

	return cfg, nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func reqInt(raw map[string]string, key string) (int, error) {
	s, err := reqString(raw, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &emuerr.ConfigError{Key: key, Err: err}
	}
	return v, nil
}

func reqString(raw map[string]string, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", &emuerr.ConfigError{Key: key, Err: fmt.Errorf("missing required key")}
	}
	return v, nil
}
