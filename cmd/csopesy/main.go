// Command csopesy is the interactive console for the emulator: it
// reads one line at a time and dispatches it through a cobra command
// tree, matching the CLI surface of §6 (initialize, scheduler-start,
// scheduler-stop, screen -ls/-s/-r, report-util, exit).
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oichkatz/csopesy/internal/config"
	"github.com/oichkatz/csopesy/internal/emulator"
)

func main() {
	os.Exit(run())
}

func run() int {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "csopesy: logger init:", err)
		return 1
	}
	defer log.Sync()

	console := &console{
		fs:  afero.NewOsFs(),
		log: log,
		out: os.Stdout,
	}

	fmt.Fprintln(console.out, "csopesy emulator. Type \"initialize\" to load config.txt, or \"exit\" to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(console.out, "> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if shouldExit := console.dispatch(line); shouldExit {
			break
		}
	}
	if console.emu != nil {
		if err := console.emu.StopScheduler(); err != nil {
			fmt.Fprintln(console.out, "error during shutdown:", err)
			return 1
		}
	}
	return 0
}

// loadEmulator opens config.txt from configPath and constructs an
// Emulator over the real filesystem, wiring the same *zap.Logger the
// console was built with (§6's "initialize" command).
func loadEmulator(fs afero.Fs, log *zap.Logger, configPath string) (*emulator.Emulator, error) {
	f, err := fs.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", configPath, err)
	}
	defer f.Close()

	cfg, err := config.Load(f)
	if err != nil {
		return nil, err
	}
	return emulator.New(cfg, fs, log, defaultSeed()), nil
}

// defaultSeed is fixed, not time-derived, so repeated runs over the
// same config.txt generate the same process stream.
func defaultSeed() int64 {
	return 1
}
