package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilo-sh/vigilo/internal/crypto"
	"github.com/vigilo-sh/vigilo/internal/ledger"
	"github.com/vigilo-sh/vigilo/internal/logging"
	"github.com/vigilo-sh/vigilo/internal/model"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := ledger.Open(dir)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Append(model.Event{
			ID: string(rune('a' + i)), Timestamp: time.Now(), Tool: "read_file",
			Risk: model.RiskRead, Outcome: model.Outcome{Status: model.OutcomeOK},
			Server: "vigilo",
		}))
	}
	require.NoError(t, w.Close())

	s, err := New(Config{
		Host:      "127.0.0.1",
		Port:      -1, // ephemeral, avoids port collisions between test runs
		LedgerDir: dir,
		Logger:    logging.New(logging.Config{Level: "error", Pretty: false}),
	})
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s, dir
}

func TestHandleSummaryReturnsAggregateCounts(t *testing.T) {
	s, _ := newTestServer(t)

	resp, err := http.Get("http://" + s.Addr() + "/api/summary")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 3, out.Total)
}

func TestSecurityHeadersPresent(t *testing.T) {
	s, _ := newTestServer(t)

	resp, err := http.Get("http://" + s.Addr() + "/api/summary")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "default-src 'self'", resp.Header.Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestForeignHostHeaderRejected(t *testing.T) {
	s, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, "http://"+s.Addr()+"/api/summary", nil)
	require.NoError(t, err)
	req.Host = "evil.example.com"

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandleEventsReturnsNewestFirst(t *testing.T) {
	s, _ := newTestServer(t)

	resp, err := http.Get("http://" + s.Addr() + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var events []model.Event
	require.NoError(t, json.Unmarshal(body, &events))
	require.Len(t, events, 3)
	assert.True(t, events[0].Timestamp.After(events[2].Timestamp) || events[0].Timestamp.Equal(events[2].Timestamp))
}

func TestHandleEventsDecryptsEncryptedFields(t *testing.T) {
	dir := t.TempDir()
	env, err := crypto.AcquireKey(dir)
	require.NoError(t, err)
	defer env.Close()

	w, err := ledger.Open(dir)
	require.NoError(t, err)

	sealedArgs, err := crypto.EncryptField(env, "evt-1", "arguments", map[string]string{"path": "/etc/shadow"})
	require.NoError(t, err)
	sealedResult, err := crypto.EncryptField(env, "evt-1", "outcome.result", map[string]string{"content": "top secret"})
	require.NoError(t, err)

	require.NoError(t, w.Append(model.Event{
		ID: "evt-1", Timestamp: time.Now(), Tool: "read_file", Server: "vigilo",
		Risk:      model.RiskRead,
		Arguments: sealedArgs,
		Outcome:   model.Outcome{Status: model.OutcomeOK, Result: sealedResult},
	}))
	require.NoError(t, w.Close())

	s, err := New(Config{
		Host:      "127.0.0.1",
		Port:      -1,
		LedgerDir: dir,
		Envelope:  env,
		Logger:    logging.New(logging.Config{Level: "error", Pretty: false}),
	})
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	resp, err := http.Get("http://" + s.Addr() + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var events []model.Event
	require.NoError(t, json.Unmarshal(body, &events))
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"path":"/etc/shadow"}`, string(events[0].Arguments))
	assert.JSONEq(t, `{"content":"top secret"}`, string(events[0].Outcome.Result))
	assert.NotContains(t, string(body), "__enc")
}

func TestIndexServesEmbeddedAsset(t *testing.T) {
	s, _ := newTestServer(t)

	resp, err := http.Get("http://" + s.Addr() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "vigilo")
}
