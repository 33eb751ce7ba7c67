package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilo-sh/vigilo/internal/ledger"
	"github.com/vigilo-sh/vigilo/internal/model"
)

// withConfigDir points VIGILO_CONFIG_DIR at a fresh temp directory for the
// duration of one test, so newApp resolves a predictable, isolated ledger.
func withConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("VIGILO_CONFIG_DIR", dir)
	return dir
}

func seedEvents(t *testing.T, dir string, events []model.Event) {
	t.Helper()
	w, err := ledger.Open(dir)
	require.NoError(t, err)
	defer w.Close()
	for _, e := range events {
		require.NoError(t, w.Append(e))
	}
}

func sampleEvent(tool string, risk model.Risk, status model.OutcomeStatus, when time.Time) model.Event {
	return model.Event{
		ID:         tool + "-" + when.Format(time.RFC3339Nano),
		Timestamp:  when,
		SessionID:  "sess-1",
		Server:     "vigilo",
		Tool:       tool,
		Outcome:    model.Outcome{Status: status},
		DurationUS: 1500,
		Risk:       risk,
		Project:    model.Project{Name: "vigilo"},
	}
}

func TestSummaryCmdReportsTotals(t *testing.T) {
	dir := withConfigDir(t)
	now := time.Now().UTC()
	seedEvents(t, dir, []model.Event{
		sampleEvent("read_file", model.RiskRead, model.OutcomeOK, now),
		sampleEvent("write_file", model.RiskWrite, model.OutcomeOK, now.Add(time.Second)),
		sampleEvent("run_command", model.RiskExec, model.OutcomeError, now.Add(2*time.Second)),
	})

	cmd := newSummaryCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Total calls:  3")
	assert.Contains(t, out.String(), "Errors:       1")
}

func TestSummaryCmdJSON(t *testing.T) {
	dir := withConfigDir(t)
	now := time.Now().UTC()
	seedEvents(t, dir, []model.Event{sampleEvent("read_file", model.RiskRead, model.OutcomeOK, now)})

	cmd := newSummaryCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--json"})
	require.NoError(t, cmd.Execute())

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, float64(1), decoded["total"])
}

func TestTailCmdLimitsToN(t *testing.T) {
	dir := withConfigDir(t)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedEvents(t, dir, []model.Event{sampleEvent("read_file", model.RiskRead, model.OutcomeOK, now.Add(time.Duration(i)*time.Second))})
	}

	cmd := newTailCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-n", "2", "--json"})
	require.NoError(t, cmd.Execute())

	var events []model.Event
	require.NoError(t, json.Unmarshal(out.Bytes(), &events))
	assert.Len(t, events, 2)
}

func TestViewCmdFindsByPrefix(t *testing.T) {
	dir := withConfigDir(t)
	ev := sampleEvent("read_file", model.RiskRead, model.OutcomeOK, time.Now().UTC())
	ev.ID = "abcdef1234567890"
	seedEvents(t, dir, []model.Event{ev})

	cmd := newViewCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"abcdef12"})
	require.NoError(t, cmd.Execute())

	var decoded model.Event
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
}

func TestViewCmdMissingIDReturnsNotFound(t *testing.T) {
	withConfigDir(t)

	cmd := newViewCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"does-not-exist"})
	err := cmd.Execute()
	require.Error(t, err)
}

func TestHookCmdIngestsOneCustomToolEvent(t *testing.T) {
	dir := withConfigDir(t)

	payload := `{"tool":"some_custom_tool","arguments":{"x":1},"status":"ok","duration_us":200}`
	cmd := newHookCmd()
	var out bytes.Buffer
	cmd.SetIn(bytes.NewBufferString(payload))
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	events, err := ledger.ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "some_custom_tool", events[0].Tool)
	assert.NotContains(t, out.String(), "dropped")
}

func TestHookCmdDropsCatalogTool(t *testing.T) {
	dir := withConfigDir(t)

	payload := `{"tool":"read_file","arguments":{},"status":"ok","duration_us":100}`
	cmd := newHookCmd()
	var out bytes.Buffer
	cmd.SetIn(bytes.NewBufferString(payload))
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	events, err := ledger.ReadAll(dir)
	require.NoError(t, err)
	assert.Len(t, events, 0)
	assert.Contains(t, out.String(), "dropped")
}

func TestGenerateKeyCmdRefusesOverwriteWithoutForce(t *testing.T) {
	dir := withConfigDir(t)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "encryption.key"), []byte("existing"), 0o600))

	cmd := newGenerateKeyCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs(nil)
	err := cmd.Execute()
	require.Error(t, err)

	cmd2 := newGenerateKeyCmd()
	cmd2.SetOut(&bytes.Buffer{})
	cmd2.SetArgs([]string{"--force"})
	require.NoError(t, cmd2.Execute())
}
