package process

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/oichkatz/csopesy/internal/clock"
)

// LogFile mirrors a Process's in-memory log trail to <name>.txt on an
// afero filesystem, matching §6's external log format. Tests swap in
// afero.NewMemMapFs() so nothing touches a real disk.
type LogFile struct {
	fs   afero.Fs
	path string
}

// OpenLogFile creates (or truncates) <name>.txt and writes the
// two-line "Process name:" / "Logs:" header.
func OpenLogFile(fs afero.Fs, name string) (*LogFile, error) {
	path := name + ".txt"
	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "Process name: %s\nLogs:\n\n", name); err != nil {
		return nil, fmt.Errorf("write log header: %w", err)
	}
	return &LogFile{fs: fs, path: path}, nil
}

// Append writes one "(<timestamp>) Core:<id> \"<message>\"" line.
func (lf *LogFile) Append(coreID int, message string) error {
	f, err := lf.fs.OpenFile(lf.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append to log file %q: %w", lf.path, err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "(%s) Core:%d %q\n", clock.Now(), coreID, message)
	return err
}
