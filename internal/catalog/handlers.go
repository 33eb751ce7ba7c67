package catalog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	sgdiff "github.com/sourcegraph/go-diff/diff"

	verrors "github.com/vigilo-sh/vigilo/internal/errors"
	"github.com/vigilo-sh/vigilo/internal/safe"
)

func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(dir, path))
}

func jsonResult(v interface{}) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, verrors.Wrap(verrors.KindIO, "marshaling result", err)
	}
	return b, nil
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return verrors.Wrap(verrors.KindParse, "decoding arguments", err)
	}
	return nil
}

func handleReadFile(_ context.Context, dir string, args json.RawMessage) (json.RawMessage, string, error) {
	var in ReadFileInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, "", err
	}
	path := resolvePath(dir, in.Path)
	data, err := safe.ReadFile(path, nil)
	if err != nil {
		return nil, "", verrors.Wrap(verrors.KindNotFound, "reading file", err)
	}

	content := string(data)
	if in.StartLine > 0 || in.EndLine > 0 {
		lines := strings.Split(content, "\n")
		start := in.StartLine - 1
		if start < 0 {
			start = 0
		}
		end := in.EndLine
		if end <= 0 || end > len(lines) {
			end = len(lines)
		}
		if start > end {
			start = end
		}
		content = strings.Join(lines[start:end], "\n")
	}

	res, err := jsonResult(map[string]interface{}{
		"content": content,
		"bytes":   len(data),
	})
	return res, "", err
}

func handleWriteFile(_ context.Context, dir string, args json.RawMessage) (json.RawMessage, string, error) {
	var in WriteFileInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, "", err
	}
	path := resolvePath(dir, in.Path)

	if err := safe.RejectSymlink(path); err != nil {
		return nil, "", verrors.Wrap(verrors.KindForbiddenPath, "rejecting write target", err)
	}
	if err := safe.RejectOversize(int64(len(in.Content)), 0); err != nil {
		return nil, "", verrors.Wrap(verrors.KindForbiddenPath, "rejecting write content", err)
	}

	var before string
	if prior, err := os.ReadFile(path); err == nil { // #nosec G304 - validated above by RejectSymlink
		before = string(prior)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", verrors.Wrap(verrors.KindIO, "creating parent directories", err)
	}
	if err := os.WriteFile(path, []byte(in.Content), 0o644); err != nil {
		return nil, "", verrors.Wrap(verrors.KindIO, "writing file", err)
	}

	diffText := unifiedDiff(path, before, in.Content)

	res, err := jsonResult(map[string]interface{}{
		"bytes_written": len(in.Content),
	})
	return res, diffText, err
}

func unifiedDiff(path, before, after string) string {
	if before == after {
		return ""
	}
	udiff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(udiff)
	if err != nil {
		return ""
	}
	return text
}

func handleListDirectory(_ context.Context, dir string, args json.RawMessage) (json.RawMessage, string, error) {
	var in ListDirectoryInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, "", err
	}
	path := resolvePath(dir, in.Path)
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, "", verrors.Wrap(verrors.KindNotFound, "listing directory", err)
	}

	type entry struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		kind := "file"
		if e.IsDir() {
			kind = "dir"
		} else if e.Type()&os.ModeSymlink != 0 {
			kind = "symlink"
		}
		out = append(out, entry{Name: e.Name(), Type: kind})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	res, err := jsonResult(map[string]interface{}{"entries": out})
	return res, "", err
}

func handleCreateDirectory(_ context.Context, dir string, args json.RawMessage) (json.RawMessage, string, error) {
	var in CreateDirectoryInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, "", err
	}
	path := resolvePath(dir, in.Path)
	if err := safe.RejectSymlink(path); err != nil {
		return nil, "", verrors.Wrap(verrors.KindForbiddenPath, "rejecting directory target", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, "", verrors.Wrap(verrors.KindIO, "creating directory", err)
	}
	res, err := jsonResult(map[string]interface{}{"ok": true})
	return res, "", err
}

func handleDeleteFile(_ context.Context, dir string, args json.RawMessage) (json.RawMessage, string, error) {
	var in DeleteFileInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, "", err
	}
	path := resolvePath(dir, in.Path)
	if err := safe.RejectSymlink(path); err != nil {
		return nil, "", verrors.Wrap(verrors.KindForbiddenPath, "rejecting delete target", err)
	}
	if err := os.Remove(path); err != nil {
		return nil, "", verrors.Wrap(verrors.KindIO, "deleting file", err)
	}
	res, err := jsonResult(map[string]interface{}{"ok": true})
	return res, "", err
}

func handleMoveFile(_ context.Context, dir string, args json.RawMessage) (json.RawMessage, string, error) {
	var in MoveFileInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, "", err
	}
	from := resolvePath(dir, in.From)
	to := resolvePath(dir, in.To)
	if err := safe.RejectSymlink(from); err != nil {
		return nil, "", verrors.Wrap(verrors.KindForbiddenPath, "rejecting move source", err)
	}
	if err := safe.RejectSymlink(to); err != nil {
		return nil, "", verrors.Wrap(verrors.KindForbiddenPath, "rejecting move destination", err)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return nil, "", verrors.Wrap(verrors.KindIO, "creating destination parent", err)
	}
	if err := os.Rename(from, to); err != nil {
		return nil, "", verrors.Wrap(verrors.KindIO, "moving file", err)
	}
	res, err := jsonResult(map[string]interface{}{"ok": true})
	return res, "", err
}

func handleSearchFiles(ctx context.Context, dir string, args json.RawMessage) (json.RawMessage, string, error) {
	var in SearchFilesInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, "", err
	}
	root := resolvePath(dir, in.Root)

	var matcher func(line string) bool
	if in.Regex {
		re, err := regexp.Compile(in.Pattern)
		if err != nil {
			return nil, "", verrors.Wrap(verrors.KindSchema, "invalid regex pattern", err)
		}
		matcher = re.MatchString
	} else {
		matcher = func(line string) bool { return strings.Contains(line, in.Pattern) }
	}

	type match struct {
		Path  string `json:"path"`
		Line  int    `json:"line"`
		Match string `json:"match"`
	}
	var matches []match

	err := walkFiles(ctx, root, func(path string) error {
		f, err := os.Open(path) // #nosec G304 - root is caller-provided search scope
		if err != nil {
			return nil // skip unreadable files
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			text := scanner.Text()
			if matcher(text) {
				matches = append(matches, match{Path: path, Line: lineNo, Match: text})
			}
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	res, rerr := jsonResult(map[string]interface{}{"matches": matches})
	return res, "", rerr
}

func walkFiles(ctx context.Context, root string, fn func(path string) error) error {
	return filepathWalkDir(root, func(path string, isDir bool) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if isDir {
			return nil
		}
		return fn(path)
	})
}

func handleRunCommand(ctx context.Context, dir string, args json.RawMessage) (json.RawMessage, string, error) {
	var in RunCommandInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, "", err
	}
	cwd := dir
	if in.Cwd != "" {
		cwd = resolvePath(dir, in.Cwd)
	}

	// #nosec G204 - command is agent-supplied by design; this tool's whole
	// purpose is to run an arbitrary shell command on behalf of the agent.
	cmd := exec.Command("sh", "-c", in.Command)
	cmd.Dir = cwd
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, "", verrors.Wrap(verrors.KindSubprocess, "starting command", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		// SIGTERM the process group, escalate to SIGKILL after 500ms.
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
		select {
		case waitErr = <-done:
		case <-time.After(500 * time.Millisecond):
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			waitErr = <-done
		}
		return nil, "", verrors.Wrap(verrors.KindTimeout, "command timed out", ctx.Err())
	}

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, "", verrors.Wrap(verrors.KindSubprocess, "running command", waitErr)
		}
	}

	res, err := jsonResult(map[string]interface{}{
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
		"exit_code": exitCode,
	})
	return res, "", err
}

func handleGetFileInfo(_ context.Context, dir string, args json.RawMessage) (json.RawMessage, string, error) {
	var in GetFileInfoInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, "", err
	}
	path := resolvePath(dir, in.Path)
	info, err := os.Lstat(path)
	if err != nil {
		return nil, "", verrors.Wrap(verrors.KindNotFound, "stat file", err)
	}
	kind := "file"
	switch {
	case info.IsDir():
		kind = "dir"
	case info.Mode()&os.ModeSymlink != 0:
		kind = "symlink"
	}
	res, rerr := jsonResult(map[string]interface{}{
		"size":  info.Size(),
		"kind":  kind,
		"mtime": info.ModTime().UTC().Format(time.RFC3339),
	})
	return res, "", rerr
}

func handlePatchFile(_ context.Context, dir string, args json.RawMessage) (json.RawMessage, string, error) {
	var in PatchFileInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, "", err
	}
	path := resolvePath(dir, in.Path)
	original, err := safe.ReadFile(path, nil)
	if err != nil {
		return nil, "", verrors.Wrap(verrors.KindNotFound, "reading file to patch", err)
	}

	patched, err := applyUnifiedDiff(string(original), in.UnifiedDiff)
	if err != nil {
		return nil, "", verrors.Wrap(verrors.KindParse, "applying patch", err)
	}

	if err := safe.RejectOversize(int64(len(patched)), 0); err != nil {
		return nil, "", verrors.Wrap(verrors.KindForbiddenPath, "rejecting patched content", err)
	}
	if err := os.WriteFile(path, []byte(patched), 0o644); err != nil {
		return nil, "", verrors.Wrap(verrors.KindIO, "writing patched file", err)
	}

	res, rerr := jsonResult(map[string]interface{}{"ok": true})
	return res, in.UnifiedDiff, rerr
}

// applyUnifiedDiff applies a single-file unified diff to original, checking
// that each hunk's context lines match at the recorded offset before
// mutating anything (spec: "validates hunk offsets").
func applyUnifiedDiff(original, patch string) (string, error) {
	origLines := strings.Split(original, "\n")
	hunks, err := parseHunks(patch)
	if err != nil {
		return "", err
	}

	var out []string
	cursor := 0 // 0-based index into origLines already emitted
	for _, h := range hunks {
		start := h.origStart - 1
		if start < 0 || start > len(origLines) {
			return "", fmt.Errorf("hunk offset %d out of range", h.origStart)
		}
		out = append(out, origLines[cursor:start]...)
		pos := start
		for _, line := range h.lines {
			switch line[0] {
			case ' ':
				if pos >= len(origLines) || origLines[pos] != line[1:] {
					return "", fmt.Errorf("context mismatch at line %d", pos+1)
				}
				out = append(out, origLines[pos])
				pos++
			case '-':
				if pos >= len(origLines) || origLines[pos] != line[1:] {
					return "", fmt.Errorf("removal mismatch at line %d", pos+1)
				}
				pos++
			case '+':
				out = append(out, line[1:])
			}
		}
		cursor = pos
	}
	out = append(out, origLines[cursor:]...)
	return strings.Join(out, "\n"), nil
}

type hunk struct {
	origStart int
	lines     []string
}

// parseHunks parses a unified diff body using sourcegraph/go-diff, which
// understands the full hunk-header grammar (optional line counts, no
// trailing newline markers, multi-hunk files) rather than a hand-rolled
// regex. A bare hunk body without the usual "--- a/f" / "+++ b/f" file
// header pair is wrapped with a synthetic one, since patch_file's contract
// only requires the hunks themselves.
func parseHunks(patch string) ([]hunk, error) {
	text := patch
	if !strings.Contains(text, "--- ") {
		text = "--- a/file\n+++ b/file\n" + text
	}
	fd, err := sgdiff.ParseFileDiff([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("parsing unified diff: %w", err)
	}
	if len(fd.Hunks) == 0 {
		return nil, fmt.Errorf("no valid hunks found in patch")
	}

	hunks := make([]hunk, 0, len(fd.Hunks))
	for _, h := range fd.Hunks {
		var lines []string
		for _, raw := range strings.Split(strings.TrimSuffix(string(h.Body), "\n"), "\n") {
			if raw == "" {
				continue
			}
			switch raw[0] {
			case ' ', '+', '-':
				lines = append(lines, raw)
			}
		}
		hunks = append(hunks, hunk{origStart: int(h.OrigStartLine), lines: lines})
	}
	return hunks, nil
}

func handleGitStatus(ctx context.Context, dir string, _ json.RawMessage) (json.RawMessage, string, error) {
	out, err := gitOutput(ctx, dir, "status", "--porcelain", "-b")
	if err != nil {
		return nil, "", err
	}
	res, rerr := jsonResult(map[string]interface{}{"status": out})
	return res, "", rerr
}

func handleGitDiff(ctx context.Context, dir string, args json.RawMessage) (json.RawMessage, string, error) {
	var in GitDiffInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, "", err
	}
	gitArgs := []string{"diff"}
	if in.Staged {
		gitArgs = append(gitArgs, "--cached")
	}
	out, err := gitOutput(ctx, dir, gitArgs...)
	if err != nil {
		return nil, "", err
	}
	res, rerr := jsonResult(map[string]interface{}{"diff": out})
	return res, out, rerr
}

func handleGitLog(ctx context.Context, dir string, args json.RawMessage) (json.RawMessage, string, error) {
	var in GitLogInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, "", err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}
	out, err := gitOutput(ctx, dir, "log", fmt.Sprintf("-n%d", limit), "--oneline")
	if err != nil {
		return nil, "", err
	}
	res, rerr := jsonResult(map[string]interface{}{"log": out})
	return res, "", rerr
}

func handleGitCommit(ctx context.Context, dir string, args json.RawMessage) (json.RawMessage, string, error) {
	var in GitCommitInput
	if err := decodeArgs(args, &in); err != nil {
		return nil, "", err
	}
	if _, err := gitOutput(ctx, dir, "add", "-A"); err != nil {
		return nil, "", err
	}
	out, err := gitOutput(ctx, dir, "commit", "-m", in.Message)
	if err != nil {
		return nil, "", err
	}
	res, rerr := jsonResult(map[string]interface{}{"ok": true, "output": out})
	return res, "", rerr
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	// #nosec G204 - args are fixed git subcommands.
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", verrors.Wrap(verrors.KindSubprocess, "git "+strings.Join(args, " ")+": "+stderr.String(), err)
	}
	return stdout.String(), nil
}
