// Package hookingest implements the one-shot ingest mode invoked by an
// external agent after one of its own built-in tools completes: read one
// JSON record from stdin, map it onto the canonical event schema, and
// append it to the ledger. Grounded on internal/mcpserver's capture path
// (shares the same Event/ledger/crypto collaborators) and on
// internal/sessionreg for session adoption.
package hookingest

import (
	"context"
	"encoding/json"
	"io"

	"github.com/vigilo-sh/vigilo/internal/catalog"
	"github.com/vigilo-sh/vigilo/internal/clockid"
	"github.com/vigilo-sh/vigilo/internal/crypto"
	verrors "github.com/vigilo-sh/vigilo/internal/errors"
	"github.com/vigilo-sh/vigilo/internal/ledger"
	"github.com/vigilo-sh/vigilo/internal/model"
	"github.com/vigilo-sh/vigilo/internal/project"
	"github.com/vigilo-sh/vigilo/internal/sessionreg"
)

// Payload is the host agent's native post-tool record, mapped onto the
// canonical event schema. Field names follow the common shape observed
// across agent hook payloads: a tool name, its arguments, an outcome, and
// optional token/model enrichment the MCP path never sees.
type Payload struct {
	SessionID        string          `json:"session_id"`
	Server           string          `json:"server"`
	Tool             string          `json:"tool"`
	Arguments        json.RawMessage `json:"arguments"`
	Status           string          `json:"status"`
	Result           json.RawMessage `json:"result"`
	ErrorMessage     string          `json:"error_message"`
	DurationUS       int64           `json:"duration_us"`
	Model            string          `json:"model"`
	InputTokens      *int64          `json:"input_tokens"`
	OutputTokens     *int64          `json:"output_tokens"`
	CacheReadTokens  *int64          `json:"cache_read_tokens"`
	CacheWriteTokens *int64          `json:"cache_write_tokens"`
	CostUSD          *float64        `json:"cost_usd"`
	CWD              string          `json:"cwd"`
}

// Ingester wires the collaborators a one-shot hook invocation needs.
type Ingester struct {
	ConfigDir  string
	BinaryName string
	Writer     *ledger.Writer
	Prober     *project.Prober
	Envelope   *crypto.Envelope // nil disables encryption
	Catalog    *catalog.Catalog
}

// Ingest reads exactly one JSON record from in, and, unless it is dropped
// as a duplicate of an MCP-routed call, appends one event to the ledger.
// It returns (dropped=true, nil) when the record was a de-duplication
// no-op rather than an error.
func (ig *Ingester) Ingest(in io.Reader) (dropped bool, err error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return false, verrors.Wrap(verrors.KindIO, "reading hook payload", err)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return false, verrors.Wrap(verrors.KindParse, "decoding hook payload", err)
	}

	// A tool name matching the catalog means the agent routed the call
	// through our own MCP server; the MCP capture path already recorded
	// it, so recording it again here would double count. This heuristic
	// is tool-name-only — it cannot distinguish two different underlying
	// calls that happen to share a tool name across paths.
	if ig.Catalog.IsCatalogTool(p.Tool) {
		return true, nil
	}

	sessionID := p.SessionID
	if adopted, ok := sessionreg.Adopt(ig.ConfigDir, ig.BinaryName); ok {
		sessionID = adopted
	} else if sessionID == "" {
		sessionID = clockid.New()
	}

	cwd := p.CWD
	proj := ig.Prober.Probe(context.Background(), cwd)

	id := clockid.New()

	outcome := model.Outcome{Status: model.OutcomeOK, Result: p.Result}
	if p.Status == string(model.OutcomeError) || p.ErrorMessage != "" {
		msg, _ := json.Marshal(p.ErrorMessage)
		outcome = model.Outcome{Status: model.OutcomeError, Message: msg}
	}

	args := p.Arguments
	encFailed := false
	if ig.Envelope != nil {
		if enc, encErr := encryptRaw(ig.Envelope, id, "arguments", args); encErr == nil {
			args = enc
		} else {
			encFailed = true
		}
		if outcome.Status == model.OutcomeOK && outcome.Result != nil {
			if enc, encErr := encryptRaw(ig.Envelope, id, "outcome.result", outcome.Result); encErr == nil {
				outcome.Result = enc
			} else {
				encFailed = true
			}
		}
		if outcome.Status == model.OutcomeError && outcome.Message != nil {
			if enc, encErr := encryptRaw(ig.Envelope, id, "outcome.message", outcome.Message); encErr == nil {
				outcome.Message = enc
			} else {
				encFailed = true
			}
		}
	}

	event := model.Event{
		ID:               id,
		Timestamp:        clockid.Now(),
		SessionID:        sessionID,
		Server:           p.Server,
		Tool:             p.Tool,
		Arguments:        args,
		Outcome:          outcome,
		DurationUS:       p.DurationUS,
		Risk:             model.RiskUnknown,
		Project:          proj,
		Model:            p.Model,
		InputTokens:      p.InputTokens,
		OutputTokens:     p.OutputTokens,
		CacheReadTokens:  p.CacheReadTokens,
		CacheWriteTokens: p.CacheWriteTokens,
		CostUSD:          p.CostUSD,
		ErrorMessage:     p.ErrorMessage,
	}
	if encFailed {
		event.Arguments = nil
		event.Outcome = model.Outcome{Status: model.OutcomeError, Code: string(verrors.KindCrypto)}
		event.ErrorMessage = ""
	}

	if err := ig.Writer.Append(event); err != nil {
		return false, verrors.Wrap(verrors.KindLedger, "appending hook event", err)
	}
	return false, nil
}

func encryptRaw(env *crypto.Envelope, id, path string, raw json.RawMessage) (json.RawMessage, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw, err
	}
	return crypto.EncryptField(env, id, path, v)
}
