package dashboard

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/vigilo-sh/vigilo/internal/ledger"
)

// inodeOf returns f's inode number, used to detect ledger rotation (the
// active file path is reused but the underlying inode changes).
func inodeOf(f *os.File) uint64 {
	info, err := f.Stat()
	if err != nil {
		return 0
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return stat.Ino
}

// rotated reports whether the active ledger file's current inode differs
// from oldIno, i.e. the writer rotated since the caller last checked.
func rotated(dir string, oldIno uint64) bool {
	info, err := os.Stat(filepath.Join(dir, ledger.ActiveFileName))
	if err != nil {
		return false
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	return stat.Ino != oldIno
}
