package memory

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// BackingStore is the per-process sparse page file described in §6:
// backing_<pid>.bin, page vpn occupying bytes [vpn*pageSize,
// (vpn+1)*pageSize). Pages never written read back as zeros.
type BackingStore struct {
	fs       afero.Fs
	pageSize int
}

// NewBackingStore wraps fs (real or in-memory) as the emulator's
// backing-store filesystem.
func NewBackingStore(fs afero.Fs, pageSize int) *BackingStore {
	return &BackingStore{fs: fs, pageSize: pageSize}
}

func fileName(pid uint64) string {
	return fmt.Sprintf("backing_%d.bin", pid)
}

// ReadPage returns the page image for (pid, vpn), or a zero page if the
// file or that region has never been written. I/O errors are logged by
// the caller and treated as zero reads per §7.
func (bs *BackingStore) ReadPage(pid uint64, vpn uint32) ([]byte, error) {
	page := make([]byte, bs.pageSize)
	f, err := bs.fs.Open(fileName(pid))
	if err != nil {
		if os.IsNotExist(err) {
			return page, nil
		}
		return page, fmt.Errorf("open backing store for pid %d: %w", pid, err)
	}
	defer f.Close()

	off := int64(vpn) * int64(bs.pageSize)
	n, err := f.ReadAt(page, off)
	if err != nil && err != io.EOF && n == 0 {
		return page, fmt.Errorf("read backing store for pid %d vpn %d: %w", pid, vpn, err)
	}
	return page, nil
}

// WritePage writes data (exactly pageSize bytes) at vpn's offset,
// creating the file and zero-filling any gap implicitly via sparse
// writes if it doesn't exist yet.
func (bs *BackingStore) WritePage(pid uint64, vpn uint32, data []byte) error {
	f, err := bs.fs.OpenFile(fileName(pid), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open backing store for pid %d: %w", pid, err)
	}
	defer f.Close()

	off := int64(vpn) * int64(bs.pageSize)
	if _, err := f.WriteAt(data, off); err != nil {
		return fmt.Errorf("write backing store for pid %d vpn %d: %w", pid, vpn, err)
	}
	return nil
}

// Delete removes the backing-store file for pid. Idempotent: deleting
// a file that doesn't exist is not an error.
func (bs *BackingStore) Delete(pid uint64) error {
	err := bs.fs.Remove(fileName(pid))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete backing store for pid %d: %w", pid, err)
	}
	return nil
}
