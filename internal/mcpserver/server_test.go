package mcpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilo-sh/vigilo/internal/catalog"
	"github.com/vigilo-sh/vigilo/internal/ledger"
	"github.com/vigilo-sh/vigilo/internal/logging"
)

func newTestServer(t *testing.T, timeout time.Duration) (*Server, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := ledger.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	c := catalog.New()
	v, err := catalog.NewValidator(c)
	require.NoError(t, err)

	var out bytes.Buffer
	cfg := Config{
		ServerName:     "vigilo",
		Version:        "test",
		CatalogVersion: "1",
		SessionID:      "sess-1",
		Timeout:        timeout,
		Logger:         logging.New(logging.Config{Level: "error", Pretty: false, Output: &bytes.Buffer{}}),
	}
	return New(cfg, c, v, w, nil, &out), &out, dir
}

func readResponses(t *testing.T, out *bytes.Buffer) []Response {
	t.Helper()
	var resps []Response
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var r Response
		require.NoError(t, json.Unmarshal(line, &r))
		resps = append(resps, r)
	}
	return resps
}

func TestInitializeAndToolsListHandshake(t *testing.T) {
	s, out, _ := newTestServer(t, 5*time.Second)

	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}` + "\n",
	)

	err := s.Serve(context.Background(), in)
	require.NoError(t, err)

	resps := readResponses(t, out)
	require.Len(t, resps, 2)

	for _, r := range resps {
		require.Nil(t, r.Error)
	}

	var list ToolsListResult
	require.NoError(t, json.Unmarshal(resps[1].Result, &list))
	assert.Len(t, list.Tools, 14)
}

func TestToolsCallWriteFileProducesLedgerDiff(t *testing.T) {
	s, out, dir := newTestServer(t, 5*time.Second)

	path := filepath.Join(dir, "scratch", "a.txt")
	_ = path
	params := ToolCallParams{
		Name:      "write_file",
		Arguments: mustMarshal(t, map[string]string{"path": "a.txt", "content": "hello\n"}),
	}
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  params,
	}
	line, err := json.Marshal(req)
	require.NoError(t, err)

	require.NoError(t, s.Serve(context.Background(), bytes.NewReader(append(line, '\n'))))

	resps := readResponses(t, out)
	require.Len(t, resps, 1)
	require.Nil(t, resps[0].Error)

	events, err := ledger.ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "write_file", events[0].Tool)
	assert.Contains(t, events[0].Diff, "+hello")
}

func TestToolsCallRunCommandTimeoutRecordsTimeoutEvent(t *testing.T) {
	s, out, dir := newTestServer(t, 100*time.Millisecond)

	params := ToolCallParams{
		Name:      "run_command",
		Arguments: mustMarshal(t, map[string]string{"command": "sleep 5"}),
	}
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  params,
	}
	line, err := json.Marshal(req)
	require.NoError(t, err)

	require.NoError(t, s.Serve(context.Background(), bytes.NewReader(append(line, '\n'))))

	resps := readResponses(t, out)
	require.Len(t, resps, 1)
	require.NotNil(t, resps[0].Error)
	assert.Equal(t, -32001, resps[0].Error.Code)

	events, err := ledger.ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "error", string(events[0].Outcome.Status))
	assert.GreaterOrEqual(t, events[0].DurationUS, int64(0))
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	s, out, _ := newTestServer(t, time.Second)

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"nonsense","params":{}}` + "\n")
	require.NoError(t, s.Serve(context.Background(), in))

	resps := readResponses(t, out)
	require.Len(t, resps, 1)
	require.NotNil(t, resps[0].Error)
	assert.Equal(t, CodeMethodNotFound, resps[0].Error.Code)
}

func TestShutdownMethodTriggersServeReturnWithoutStdinClosing(t *testing.T) {
	s, out, _ := newTestServer(t, time.Second)

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	line := `{"jsonrpc":"2.0","id":1,"method":"shutdown","params":{}}` + "\n"
	go func() {
		_, _ = pw.Write([]byte(line))
		// Deliberately never close pw: Serve must return via the shutdown
		// channel, not by waiting for stdin to reach EOF.
	}()

	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), pr) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after a shutdown request arrived")
	}

	resps := readResponses(t, out)
	require.Len(t, resps, 1)
	require.Nil(t, resps[0].Error)
}

func TestMalformedLineReturnsParseError(t *testing.T) {
	s, out, _ := newTestServer(t, time.Second)

	in := strings.NewReader(`not json` + "\n")
	require.NoError(t, s.Serve(context.Background(), in))

	resps := readResponses(t, out)
	require.Len(t, resps, 1)
	require.NotNil(t, resps[0].Error)
	assert.Equal(t, CodeParseError, resps[0].Error.Code)
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
