package dashboard

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/vigilo-sh/vigilo/internal/ledger"
)

// tailer follows the ledger's active file, reopening on rotation (a
// change of inode, detected by stat-comparing inode numbers) and
// discarding any trailing partial line per spec §4.7's at-least-once,
// whole-lines-only delivery contract.
type tailer struct {
	dir    string
	file   *os.File
	reader *bufio.Reader
	ino    uint64
}

func newTailer(dir string) *tailer {
	t := &tailer{dir: dir}
	t.reopenAtEnd()
	return t
}

func (t *tailer) reopenAtEnd() {
	t.closeFile()
	path := filepath.Join(t.dir, ledger.ActiveFileName)
	f, err := os.Open(path) // #nosec G304 - dir is the operator-configured ledger directory
	if err != nil {
		return
	}
	if _, err := f.Seek(0, os.SEEK_END); err != nil {
		_ = f.Close()
		return
	}
	t.file = f
	t.reader = bufio.NewReader(f)
	t.ino = inodeOf(f)
}

func (t *tailer) closeFile() {
	if t.file != nil {
		_ = t.file.Close()
		t.file = nil
		t.reader = nil
	}
}

// Next returns whole lines appended since the last call, reopening the
// active file transparently if it was rotated.
func (t *tailer) Next() ([]string, error) {
	if t.file == nil {
		t.reopenAtEnd()
		if t.file == nil {
			return nil, nil
		}
	}

	if rotated(t.dir, t.ino) {
		// Drain whatever is left in the old file before switching.
		lines := t.readAvailable()
		t.reopenFromStart()
		return lines, nil
	}

	return t.readAvailable(), nil
}

func (t *tailer) reopenFromStart() {
	t.closeFile()
	path := filepath.Join(t.dir, ledger.ActiveFileName)
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return
	}
	t.file = f
	t.reader = bufio.NewReader(f)
	t.ino = inodeOf(f)
}

func (t *tailer) readAvailable() []string {
	var lines []string
	for {
		line, err := t.reader.ReadString('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			lines = append(lines, line[:len(line)-1])
			continue
		}
		if err != nil {
			break
		}
	}
	return lines
}

// Close releases the underlying file handle.
func (t *tailer) Close() {
	t.closeFile()
}
