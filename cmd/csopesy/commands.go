package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oichkatz/csopesy/internal/emulator"
	"github.com/oichkatz/csopesy/internal/report"
)

// console holds the state that survives across REPL lines: the
// filesystem, logger, and (once "initialize" has run) the Emulator.
type console struct {
	fs  afero.Fs
	log *zap.Logger
	out io.Writer

	emu           *emulator.Emulator
	exitRequested bool
}

// dispatch parses one line of input and runs it. It returns true when
// the console should exit.
func (c *console) dispatch(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	root := c.newRootCmd()
	root.SetArgs(fields)
	root.SetOut(c.out)
	root.SetErr(c.out)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(c.out, "error:", err)
	}
	return c.exitRequested
}

func (c *console) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "csopesy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		c.initializeCmd(),
		c.schedulerStartCmd(),
		c.schedulerStopCmd(),
		c.screenCmd(),
		c.reportUtilCmd(),
		c.exitCmd(),
	)
	return root
}

func (c *console) initializeCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "initialize",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.txt"
			if len(args) > 0 {
				path = args[0]
			}
			emu, err := loadEmulator(c.fs, c.log, path)
			if err != nil {
				return err
			}
			c.emu = emu
			fmt.Fprintf(cmd.OutOrStdout(), "initialized run %s\n", emu.RunID)
			return nil
		},
	}
}

func (c *console) requireEmulator() error {
	if c.emu == nil {
		return fmt.Errorf("not initialized: run \"initialize\" first")
	}
	return nil
}

func (c *console) schedulerStartCmd() *cobra.Command {
	return &cobra.Command{
		Use: "scheduler-start",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireEmulator(); err != nil {
				return err
			}
			c.emu.StartScheduler()
			fmt.Fprintln(cmd.OutOrStdout(), "scheduler started")
			return nil
		},
	}
}

func (c *console) schedulerStopCmd() *cobra.Command {
	return &cobra.Command{
		Use: "scheduler-stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireEmulator(); err != nil {
				return err
			}
			if err := c.emu.StopScheduler(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "scheduler stopped")
			return nil
		},
	}
}

// screenCmd implements "screen -ls", "screen -s <name>", and
// "screen -r <name>", matching §6's minimal CLI surface. The single-dash
// options are matched by hand, with cobra's flag parsing turned off.
func (c *console) screenCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "screen",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireEmulator(); err != nil {
				return err
			}
			switch {
			case len(args) == 1 && args[0] == "-ls":
				return c.screenList(cmd.OutOrStdout())
			case len(args) == 2 && args[0] == "-s":
				return c.screenStart(cmd.OutOrStdout(), args[1])
			case len(args) == 2 && args[0] == "-r":
				return c.screenResume(cmd.OutOrStdout(), args[1])
			default:
				return fmt.Errorf("screen: expected one of -ls, -s <name>, -r <name>")
			}
		},
	}
}

func (c *console) screenList(w io.Writer) error {
	snap := c.emu.Snapshot()
	fmt.Fprintf(w, "cores idle: %d, queue depth: %d, ticks: %d\n", snap.IdleCores, snap.QueueDepth, snap.Ticks)
	for _, v := range snap.Processes {
		fmt.Fprintf(w, "%-14s %-10s core=%d completed=%d/%d\n", v.Name, v.Status, v.Core, v.Completed, v.TotalInstructions)
	}
	return nil
}

func (c *console) screenStart(w io.Writer, name string) error {
	if _, ok := c.emu.Lookup(name); ok {
		return fmt.Errorf("screen: process %q already exists", name)
	}
	p, err := c.emu.SubmitProgram(name, defaultScreenProgram)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "created and queued process %q (pid %d)\n", p.Name, p.ID)
	return nil
}

// defaultScreenProgram is the trivial program "screen -s" gives a
// freshly created process when no script is supplied on the line; it
// satisfies §4.4's requirement that user-authored processes still
// parse through the same grammar as a file would.
const defaultScreenProgram = `DECLARE x 0
PRINT ("Hello from" + x)
`

func (c *console) screenResume(w io.Writer, name string) error {
	p, ok := c.emu.Lookup(name)
	if !ok {
		return fmt.Errorf("screen: no such process %q", name)
	}
	fmt.Fprintf(w, "process %q (pid %d) status=%s core=%d completed=%d/%d\n",
		p.Name, p.ID, p.Status(), p.Core(), p.Completed(), len(p.Instructions))
	if p.Violated() {
		fmt.Fprintf(w, "memory violation at 0x%x\n", p.ViolationAddress())
	}
	for _, line := range p.LogSnapshot() {
		fmt.Fprintln(w, line)
	}
	return nil
}

func (c *console) reportUtilCmd() *cobra.Command {
	return &cobra.Command{
		Use: "report-util",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireEmulator(); err != nil {
				return err
			}
			f, err := c.fs.Create("csopesy-log.txt")
			if err != nil {
				return err
			}
			defer f.Close()
			if err := report.Write(f, c.emu.Snapshot()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote csopesy-log.txt")
			return nil
		},
	}
}

func (c *console) exitCmd() *cobra.Command {
	return &cobra.Command{
		Use: "exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			c.exitRequested = true
			return nil
		},
	}
}
