// Package sessionreg implements the MCP server's discoverable handoff
// artifact ({session_id, pid}) that lets a sibling hook invocation adopt
// the same logical session. Writing is atomic-rename-from-temp-sibling;
// reading verifies the recorded pid is alive, owned by this user, and
// running the vigilo binary, via gopsutil/v4/process (grounded on the
// teacher's shirou/gopsutil usage in internal/agent/collector).
package sessionreg

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	verrors "github.com/vigilo-sh/vigilo/internal/errors"
)

// FileName is the handoff artifact's name within the config directory.
const FileName = "mcp-session"

// Record is the on-disk handoff artifact contents.
type Record struct {
	SessionID string `json:"session_id"`
	PID       int32  `json:"pid"`
}

// Write atomically persists record to <configDir>/mcp-session via a
// temp-file-then-rename, so a concurrent reader never observes a partial
// write.
func Write(configDir string, record Record) error {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return verrors.Wrap(verrors.KindIO, "creating config dir", err)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return verrors.Wrap(verrors.KindIO, "marshaling session record", err)
	}

	path := filepath.Join(configDir, FileName)
	tmp, err := os.CreateTemp(configDir, ".mcp-session-*")
	if err != nil {
		return verrors.Wrap(verrors.KindIO, "creating temp session file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return verrors.Wrap(verrors.KindIO, "writing temp session file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return verrors.Wrap(verrors.KindIO, "closing temp session file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return verrors.Wrap(verrors.KindIO, "renaming session file into place", err)
	}
	return nil
}

// Remove deletes the handoff artifact, if present. Called on clean MCP
// server shutdown.
func Remove(configDir string) error {
	err := os.Remove(filepath.Join(configDir, FileName))
	if err != nil && !os.IsNotExist(err) {
		return verrors.Wrap(verrors.KindIO, "removing session file", err)
	}
	return nil
}

// Adopt reads the handoff artifact and returns its session id only if the
// recorded pid is alive, owned by the current user, and its command
// matches binaryName. Otherwise it returns ok=false, treating the artifact
// as stale (it is left in place; only the MCP server removes it).
func Adopt(configDir, binaryName string) (sessionID string, ok bool) {
	data, err := os.ReadFile(filepath.Join(configDir, FileName)) // #nosec G304
	if err != nil {
		return "", false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil || rec.SessionID == "" {
		return "", false
	}
	if !isLiveSidecar(rec.PID, binaryName) {
		return "", false
	}
	return rec.SessionID, true
}

func isLiveSidecar(pid int32, binaryName string) bool {
	alive, err := process.PidExists(pid)
	if err != nil || !alive {
		return false
	}
	proc, err := process.NewProcess(pid)
	if err != nil {
		return false
	}

	if uid := os.Geteuid(); uid >= 0 {
		uids, err := proc.Uids()
		if err == nil && len(uids) > 0 {
			matches := false
			for _, u := range uids {
				if int(u) == uid {
					matches = true
					break
				}
			}
			if !matches {
				return false
			}
		}
	}

	exe, err := proc.Exe()
	if err != nil {
		name, nerr := proc.Name()
		if nerr != nil {
			return false
		}
		return strings.EqualFold(name, binaryName)
	}
	return strings.EqualFold(filepath.Base(exe), binaryName)
}
