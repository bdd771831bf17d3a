// Package report renders an emulator.Snapshot into the text form
// written to csopesy-log.txt by the "report-util" command (§6).
package report

import (
	"fmt"
	"io"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/oichkatz/csopesy/internal/emulator"
)

// Write renders snap to w as a human-readable report: a run header,
// the CPU utilization table, and the memory-manager counters, with
// thousands-separated integers per §4's SUPPLEMENTED FEATURES note.
func Write(w io.Writer, snap emulator.Snapshot) error {
	p := message.NewPrinter(language.English)

	if _, err := p.Fprintf(w, "csopesy report — run %s\n\n", snap.RunID); err != nil {
		return err
	}

	if err := writeProcessTable(p, w, snap.Processes); err != nil {
		return err
	}

	if _, err := p.Fprintf(w, "\nCPU cores idle: %d\n", snap.IdleCores); err != nil {
		return err
	}
	if _, err := p.Fprintf(w, "Instructions executed (ticks): %d\n", snap.Ticks); err != nil {
		return err
	}
	if _, err := p.Fprintf(w, "Ready queue depth: %d\n", snap.QueueDepth); err != nil {
		return err
	}
	if _, err := p.Fprintf(w, "Frames in use: %d / %d\n", snap.UsedFrames, snap.TotalFrames); err != nil {
		return err
	}
	if _, err := p.Fprintf(w, "Page-ins: %d\n", snap.PageIns); err != nil {
		return err
	}
	if _, err := p.Fprintf(w, "Page-outs: %d\n", snap.PageOuts); err != nil {
		return err
	}
	return nil
}

func writeProcessTable(p *message.Printer, w io.Writer, procs []emulator.ProcessView) error {
	sorted := make([]emulator.ProcessView, len(procs))
	copy(sorted, procs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	if _, err := p.Fprintf(w, "%-14s %-10s %4s %12s %s\n", "process", "status", "core", "completed", "note"); err != nil {
		return err
	}
	for _, v := range sorted {
		note := ""
		if v.Violated {
			note = fmt.Sprintf("memory violation at 0x%x", v.ViolationAddress)
		}
		core := "-"
		if v.Core >= 0 {
			core = fmt.Sprintf("%d", v.Core)
		}
		if _, err := p.Fprintf(w, "%-14s %-10s %4s %8d/%-4d %s\n",
			v.Name, v.Status, core, v.Completed, v.TotalInstructions, note); err != nil {
			return err
		}
	}
	return nil
}
