// Package ledger implements the append-only JSON-lines event store: an
// active file plus size-rotated siblings, coordinated across the MCP
// server and hook subprocesses by advisory file locking. It is grounded on
// the pub/sub ledger pattern in the example pack's gabrielchantayan-cosa
// internal/ledger package (Append/Subscribe/notifySubscribers) and on
// tim-coutinho-agentops's rpi_ledger.go flock-around-append idiom, adapted
// to vigilo's Event schema, rotation, and retention requirements.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/vigilo-sh/vigilo/internal/clockid"
	verrors "github.com/vigilo-sh/vigilo/internal/errors"
	"github.com/vigilo-sh/vigilo/internal/model"
)

// ActiveFileName is the active ledger's file name within the config dir.
const ActiveFileName = "events.jsonl"

// RotationThreshold is the post-append size at or above which the writer
// rotates the active file.
const RotationThreshold = 10 * 1 << 20 // 10 MiB

// DefaultRetainCount is the default number of rotated siblings kept.
const DefaultRetainCount = 5

// rotatedPrefix and rotatedSuffix frame rotated sibling file names: events.<millis>.jsonl.
const rotatedPrefix = "events."
const rotatedSuffix = ".jsonl"

// Writer owns the active ledger file for one process. Multiple Writer
// instances (in different processes) may target the same directory
// concurrently; they coordinate via an advisory lock file.
type Writer struct {
	dir  string
	mu   sync.Mutex
	file *os.File

	subsMu sync.RWMutex
	subs   []chan<- model.Event
}

// Open opens (creating if absent) the active ledger file under dir.
func Open(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, verrors.Wrap(verrors.KindLedger, "creating ledger dir", err)
	}
	f, err := openActive(dir)
	if err != nil {
		return nil, err
	}
	return &Writer{dir: dir, file: f}, nil
}

func openActive(dir string) (*os.File, error) {
	path := filepath.Join(dir, ActiveFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, verrors.Wrap(verrors.KindLedger, "opening active ledger", err)
	}
	return f, nil
}

// Close closes the underlying active file handle. It does not remove or
// rotate anything.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Append serializes event as one JSON line, writes it under the advisory
// lock (so rotation by any process cannot interleave with an append), then
// checks whether rotation is now due and performs it. Successful writes
// fan out to subscribers (for the SSE stream) after the lock is released.
func (w *Writer) Append(event model.Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return verrors.Wrap(verrors.KindLedger, "marshaling event", err)
	}
	line = append(line, '\n')

	lock, err := acquireLock(w.dir)
	if err != nil {
		return err
	}
	defer releaseLock(lock)

	w.mu.Lock()
	if _, err := w.file.Write(line); err != nil {
		w.mu.Unlock()
		return verrors.Wrap(verrors.KindLedger, "appending event", err)
	}
	info, statErr := w.file.Stat()
	w.mu.Unlock()

	if statErr == nil && info.Size() >= RotationThreshold {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	w.notify(event)
	return nil
}

// rotateLocked renames the active file to a suffixed sibling and opens a
// fresh empty active file, then enforces default retention. Caller must
// already hold no writer-level lock that would deadlock acquireLock (the
// advisory lock is per-call, already released by the time this runs from
// Append, so rotateLocked reacquires it itself).
func (w *Writer) rotateLocked() error {
	lock, err := acquireLock(w.dir)
	if err != nil {
		return err
	}
	defer releaseLock(lock)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Close(); err != nil {
		return verrors.Wrap(verrors.KindLedger, "closing active file before rotation", err)
	}

	suffix := clockid.RotationSuffix(clockid.Now())
	rotated := filepath.Join(w.dir, rotatedName(suffix))
	active := filepath.Join(w.dir, ActiveFileName)
	if err := os.Rename(active, rotated); err != nil {
		return verrors.Wrap(verrors.KindLedger, "rotating active file", err)
	}

	f, err := openActive(w.dir)
	if err != nil {
		return err
	}
	w.file = f

	return Retain(w.dir, DefaultRetainCount, 0)
}

func rotatedName(millis int64) string {
	return fmt.Sprintf("%s%d%s", rotatedPrefix, millis, rotatedSuffix)
}

// Subscribe registers ch to receive every event appended from this point
// on. Sends are non-blocking: a full channel drops the event rather than
// stalling the writer (mirrors the example pack's ledger fanout).
func (w *Writer) Subscribe(ch chan<- model.Event) {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	w.subs = append(w.subs, ch)
}

// Unsubscribe removes a previously registered channel.
func (w *Writer) Unsubscribe(ch chan<- model.Event) {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	for i, s := range w.subs {
		if s == ch {
			w.subs = append(w.subs[:i], w.subs[i+1:]...)
			return
		}
	}
}

func (w *Writer) notify(event model.Event) {
	w.subsMu.RLock()
	defer w.subsMu.RUnlock()
	for _, ch := range w.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// acquireLock takes an exclusive advisory lock on dir/.ledger.lock,
// grounded on tim-coutinho-agentops's acquireLedgerLock/releaseLedgerLock
// pair, using golang.org/x/sys/unix instead of raw syscall for portability
// with the rest of vigilo's x/sys usage.
func acquireLock(dir string) (*os.File, error) {
	path := filepath.Join(dir, ".ledger.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, verrors.Wrap(verrors.KindLedger, "opening lock file", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, verrors.Wrap(verrors.KindLedger, "acquiring advisory lock", err)
	}
	return f, nil
}

func releaseLock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	_ = f.Close()
}

// RotatedFiles returns the rotated sibling file names under dir, ordered
// by suffix ascending (oldest first).
func RotatedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, verrors.Wrap(verrors.KindLedger, "listing ledger dir", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := parseRotatedSuffix(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		si, _ := parseRotatedSuffix(names[i])
		sj, _ := parseRotatedSuffix(names[j])
		return si < sj
	})
	return names, nil
}

func parseRotatedSuffix(name string) (int64, bool) {
	if !strings.HasPrefix(name, rotatedPrefix) || !strings.HasSuffix(name, rotatedSuffix) {
		return 0, false
	}
	mid := strings.TrimSuffix(strings.TrimPrefix(name, rotatedPrefix), rotatedSuffix)
	millis, err := strconv.ParseInt(mid, 10, 64)
	if err != nil {
		return 0, false
	}
	return millis, true
}

// Retain enforces count- and age-based retention over dir's rotated
// siblings, orthogonally and composably: a file is deleted if it violates
// EITHER cap. maxCount<=0 disables the count cap; maxAge<=0 disables the
// age cap. This resolves the spec's open question on retention policy by
// implementing both, per DESIGN.md.
func Retain(dir string, maxCount int, maxAge time.Duration) error {
	names, err := RotatedFiles(dir)
	if err != nil {
		return err
	}
	// names is ascending by suffix (oldest first).
	cutoff := time.Now().UTC().Add(-maxAge)

	toDelete := make(map[string]bool)

	if maxCount > 0 && len(names) > maxCount {
		for _, n := range names[:len(names)-maxCount] {
			toDelete[n] = true
		}
	}
	if maxAge > 0 {
		for _, n := range names {
			millis, ok := parseRotatedSuffix(n)
			if !ok {
				continue
			}
			if time.UnixMilli(millis).Before(cutoff) {
				toDelete[n] = true
			}
		}
	}

	for n := range toDelete {
		if err := os.Remove(filepath.Join(dir, n)); err != nil && !os.IsNotExist(err) {
			return verrors.Wrap(verrors.KindLedger, "pruning rotated file "+n, err)
		}
	}
	return nil
}

// Size reports the active ledger file's current size in bytes.
func (w *Writer) Size() (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	info, err := w.file.Stat()
	if err != nil {
		return 0, verrors.Wrap(verrors.KindLedger, "stat active ledger", err)
	}
	return info.Size(), nil
}

// scanFile reads every whole line of path, skipping malformed lines rather
// than failing the whole scan (a partially-written line at EOF from a
// concurrent writer is simply not yet visible).
func scanFile(path string) ([]model.Event, error) {
	f, err := os.Open(path) // #nosec G304 - path is from our own glob
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, verrors.Wrap(verrors.KindLedger, "opening ledger file", err)
	}
	defer f.Close()

	var events []model.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e model.Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}

// ReadAll scans the active file and every rotated sibling under dir, in
// file order (oldest rotated file first, active file last), and returns
// all events in that order. Since each individual file is internally
// timestamp-ordered and rotation is strictly successive, this yields a
// globally timestamp-ordered stream.
func ReadAll(dir string) ([]model.Event, error) {
	rotated, err := RotatedFiles(dir)
	if err != nil {
		return nil, err
	}

	var all []model.Event
	for _, name := range rotated {
		events, err := scanFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
	}
	active, err := scanFile(filepath.Join(dir, ActiveFileName))
	if err != nil {
		return nil, err
	}
	return append(all, active...), nil
}
