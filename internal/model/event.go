// Package model defines the shared data types captured in the ledger and
// consumed by every read-side component.
package model

import (
	"encoding/json"
	"time"
)

// Risk classifies the side-effect class of a tool invocation.
type Risk string

const (
	RiskRead    Risk = "read"
	RiskWrite   Risk = "write"
	RiskExec    Risk = "exec"
	RiskUnknown Risk = "unknown"
)

// Project describes the working-directory context a tool call ran under.
// Any field may be the zero value if probing failed.
type Project struct {
	Root   string `json:"root,omitempty"`
	Name   string `json:"name,omitempty"`
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
	Dirty  bool   `json:"dirty,omitempty"`
}

// OutcomeStatus is either "ok" or "error".
type OutcomeStatus string

const (
	OutcomeOK    OutcomeStatus = "ok"
	OutcomeError OutcomeStatus = "error"
)

// Outcome is the result half of an Event. Result and Message are
// json.RawMessage rather than string because either may hold an encryption
// envelope (a JSON object) in place of the plain value.
type Outcome struct {
	Status  OutcomeStatus   `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}

// Event is one ledger record: one captured tool invocation, one line of JSON.
type Event struct {
	ID        string  `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string  `json:"session_id"`
	Server    string  `json:"server"`
	Tool      string  `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Outcome   Outcome `json:"outcome"`
	DurationUS int64  `json:"duration_us"`
	Risk      Risk    `json:"risk"`
	Project   Project `json:"project"`

	Model            string   `json:"model,omitempty"`
	InputTokens      *int64   `json:"input_tokens,omitempty"`
	OutputTokens     *int64   `json:"output_tokens,omitempty"`
	CacheReadTokens  *int64   `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens *int64   `json:"cache_write_tokens,omitempty"`
	CostUSD          *float64 `json:"cost_usd,omitempty"` // authoritative cost reported by the hook path; nil means "estimate from the model cost table"

	Diff         string `json:"diff,omitempty"`
	Tag          string `json:"tag,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// EncEnvelope is the JSON subtree format replacing an encrypted field.
type EncEnvelope struct {
	Scheme string `json:"__enc"`
	Nonce  string `json:"nonce"`
	CT     string `json:"ct"`
}

// EncEnvelopeVersion is the only supported envelope scheme tag.
const EncEnvelopeVersion = "v1"

// Session is a logical, correlated session: the union of one or more raw
// session_id values produced by the session correlator. Never stored.
type Session struct {
	ID         string    `json:"id" col:"ID"`
	SessionIDs []string  `json:"session_ids"`
	Server     string    `json:"server" col:"SERVER"`
	FirstSeen  time.Time `json:"first_seen" col:"FIRST_SEEN"`
	LastSeen   time.Time `json:"last_seen" col:"LAST_SEEN"`
	Project    Project   `json:"project"`
	Branch     string    `json:"branch" col:"BRANCH"`
	CallCount  int       `json:"call_count" col:"CALLS"`
	CostUSD    float64   `json:"cost_usd" col:"COST_USD"`
	ErrorCount int       `json:"error_count" col:"ERRORS"`
}
