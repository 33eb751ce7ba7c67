package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vigilo-sh/vigilo/internal/catalog"
	"github.com/vigilo-sh/vigilo/internal/clockid"
	"github.com/vigilo-sh/vigilo/internal/crypto"
	verrors "github.com/vigilo-sh/vigilo/internal/errors"
	"github.com/vigilo-sh/vigilo/internal/ledger"
	"github.com/vigilo-sh/vigilo/internal/model"
	"github.com/vigilo-sh/vigilo/internal/project"
)

// DefaultTimeout is the default per-call tool handler timeout, overridden
// by the TIMEOUT_SECS environment variable.
const DefaultTimeout = 30 * time.Second

// ShutdownGrace bounds how long Serve waits for in-flight calls to finish
// after stdin closes or a shutdown request arrives.
const ShutdownGrace = 2 * time.Second

// Config configures one Server instance.
type Config struct {
	ServerName     string
	Version        string
	CatalogVersion string
	SessionID      string
	Tag            string
	Timeout        time.Duration
	Logger         zerolog.Logger
	ErrorLog       io.Writer // bounded error sidelog; nil disables
}

// Server dispatches JSON-RPC requests read from stdin to the tool catalog
// and writes responses to stdout, capturing one event per call.
type Server struct {
	cfg       Config
	catalog   *catalog.Catalog
	validator *catalog.Validator
	writer    *ledger.Writer
	prober    *project.Prober
	envelope  *crypto.Envelope

	writeMu sync.Mutex
	out     *bufio.Writer

	wg           sync.WaitGroup
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New builds a Server. writer and envelope may be reused across Server
// instances; envelope may be nil (no encryption configured).
func New(cfg Config, c *catalog.Catalog, v *catalog.Validator, w *ledger.Writer, env *crypto.Envelope, out io.Writer) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Server{
		cfg:       cfg,
		catalog:   c,
		validator: v,
		writer:    w,
		prober:    project.NewProber(),
		envelope:  env,
		out:       bufio.NewWriter(out),
		shutdown:  make(chan struct{}),
	}
}

// triggerShutdown unblocks Serve's read loop, equivalent to stdin closing
// or ctx being cancelled. Safe to call more than once or concurrently.
func (s *Server) triggerShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

// Serve reads line-delimited JSON-RPC requests from in until it closes or
// ctx is cancelled, dispatching each to its own goroutine. It returns once
// every in-flight call has finished or the shutdown grace window elapses.
func (s *Server) Serve(ctx context.Context, in io.Reader) error {
	callCtx, cancelCalls := context.WithCancel(ctx)
	defer cancelCalls()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			if len(line) == 0 {
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handleLine(callCtx, line)
			}()
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
	case <-s.shutdown:
	}

	cancelCalls()

	waitCh := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-time.After(ShutdownGrace):
		s.cfg.Logger.Warn().Msg("shutdown grace window elapsed with calls still in flight")
	}

	s.writeMu.Lock()
	_ = s.out.Flush()
	s.writeMu.Unlock()

	return scanner.Err()
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.writeResponse(nil, nil, &RPCError{Code: CodeParseError, Message: "parse error"})
		return
	}
	if req.IsNotification() {
		s.dispatch(ctx, req)
		return
	}

	result, rpcErr := s.dispatch(ctx, req)
	s.writeResponse(req.ID, result, rpcErr)
}

func (s *Server) dispatch(ctx context.Context, req Request) (json.RawMessage, *RPCError) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize()
	case "tools/list":
		return s.handleToolsList()
	case "tools/call":
		return s.handleToolsCall(ctx, req.Params)
	case "shutdown", "exit":
		// Equal termination trigger to stdin closing: unblock Serve's
		// read loop so the in-flight-drain/grace-timeout/session-registry
		// cleanup sequence in the caller's defer chain actually runs.
		s.triggerShutdown()
		return json.RawMessage(`{"ok":true}`), nil
	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}
	}
}

func (s *Server) handleInitialize() (json.RawMessage, *RPCError) {
	res := InitializeResult{
		Name:           s.cfg.ServerName,
		Version:        s.cfg.Version,
		CatalogVersion: s.cfg.CatalogVersion,
	}
	b, err := json.Marshal(res)
	if err != nil {
		return nil, &RPCError{Code: CodeParseError, Message: err.Error()}
	}
	return b, nil
}

func (s *Server) handleToolsList() (json.RawMessage, *RPCError) {
	descs, err := s.catalog.Descriptors()
	if err != nil {
		return nil, &RPCError{Code: CodeParseError, Message: err.Error()}
	}
	tools := make([]toolDescriptorJSON, len(descs))
	for i, d := range descs {
		tools[i] = toolDescriptorJSON{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
			Risk:        string(d.Risk),
		}
	}
	b, err := json.Marshal(ToolsListResult{Tools: tools})
	if err != nil {
		return nil, &RPCError{Code: CodeParseError, Message: err.Error()}
	}
	return b, nil
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (json.RawMessage, *RPCError) {
	start := time.Now()

	var call ToolCallParams
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
	}

	tool, ok := s.catalog.Lookup(call.Name)
	if !ok {
		return nil, &RPCError{Code: CodeMethodNotFound, Message: "unknown tool: " + call.Name}
	}

	cwd, _ := os.Getwd()
	proj := s.prober.Probe(ctx, cwd)

	if err := s.validator.Validate(call.Name, call.Arguments); err != nil {
		s.recordEvent(start, call, proj, nil, "", verrors.Wrap(verrors.KindSchema, "schema validation", err))
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resultCh := make(chan struct {
		result json.RawMessage
		diff   string
		err    error
	}, 1)
	go func() {
		result, diff, err := tool.Handle(callCtx, cwd, call.Arguments)
		resultCh <- struct {
			result json.RawMessage
			diff   string
			err    error
		}{result, diff, err}
	}()

	select {
	case r := <-resultCh:
		s.recordEvent(start, call, proj, r.result, r.diff, r.err)
		if r.err != nil {
			return nil, &RPCError{Code: classifyRPCCode(r.err), Message: r.err.Error()}
		}
		return s.buildToolCallResult(r.result)
	case <-callCtx.Done():
		timeoutErr := verrors.New(verrors.KindTimeout, "tool call timed out")
		s.recordEvent(start, call, proj, nil, "", timeoutErr)
		return nil, &RPCError{Code: verrors.KindTimeout.JSONRPCCode(), Message: timeoutErr.Error()}
	}
}

func (s *Server) buildToolCallResult(result json.RawMessage) (json.RawMessage, *RPCError) {
	res := ToolCallResult{Content: []ContentBlock{{Type: "json", JSON: result}}}
	b, err := json.Marshal(res)
	if err != nil {
		return nil, &RPCError{Code: CodeParseError, Message: err.Error()}
	}
	return b, nil
}

func classifyRPCCode(err error) int {
	if e, ok := verrors.As(err); ok {
		return e.Kind.JSONRPCCode()
	}
	return verrors.KindIO.JSONRPCCode()
}

func (s *Server) recordEvent(start time.Time, call ToolCallParams, proj model.Project, result json.RawMessage, diff string, handlerErr error) {
	tool, _ := s.catalog.Lookup(call.Name)
	id := clockid.New()

	outcome := model.Outcome{Status: model.OutcomeOK, Result: result}
	if handlerErr != nil {
		code := string(verrors.KindIO)
		if e, ok := verrors.As(handlerErr); ok {
			code = string(e.Kind)
		}
		msg, _ := json.Marshal(handlerErr.Error())
		outcome = model.Outcome{Status: model.OutcomeError, Code: code, Message: msg}
	}

	args := call.Arguments
	var encErr error
	encFailed := false
	if s.envelope != nil {
		if args, encErr = encryptOrOriginal(s.envelope, id, "arguments", args); encErr != nil {
			s.logError("encrypting arguments", encErr)
			encFailed = true
		}
		if outcome.Status == model.OutcomeOK && outcome.Result != nil {
			if outcome.Result, encErr = encryptOrOriginal(s.envelope, id, "outcome.result", outcome.Result); encErr != nil {
				s.logError("encrypting outcome.result", encErr)
				encFailed = true
			}
		}
		if outcome.Status == model.OutcomeError && outcome.Message != nil {
			if outcome.Message, encErr = encryptOrOriginal(s.envelope, id, "outcome.message", outcome.Message); encErr != nil {
				s.logError("encrypting outcome.message", encErr)
				encFailed = true
			}
		}
	}

	event := model.Event{
		ID:         id,
		Timestamp:  clockid.Now(),
		SessionID:  s.cfg.SessionID,
		Server:     "vigilo",
		Tool:       call.Name,
		Arguments:  args,
		Outcome:    outcome,
		DurationUS: time.Since(start).Microseconds(),
		Risk:       tool.Risk,
		Project:    proj,
		Diff:       diff,
		Tag:        s.cfg.Tag,
	}
	if handlerErr != nil {
		event.ErrorMessage = handlerErr.Error()
	}
	if encFailed {
		event.Arguments = nil
		event.Outcome = model.Outcome{Status: model.OutcomeError, Code: string(verrors.KindCrypto)}
		event.Diff = ""
		event.ErrorMessage = ""
	}

	if err := s.writer.Append(event); err != nil {
		s.logError("ledger append failed", err)
	}
}

func encryptOrOriginal(env *crypto.Envelope, id, path string, raw json.RawMessage) (json.RawMessage, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw, err
	}
	return crypto.EncryptField(env, id, path, v)
}

func (s *Server) logError(msg string, err error) {
	s.cfg.Logger.Error().Err(err).Msg(msg)
	if s.cfg.ErrorLog != nil {
		_, _ = io.WriteString(s.cfg.ErrorLog, time.Now().UTC().Format(time.RFC3339)+" "+msg+": "+err.Error()+"\n")
	}
}

func (s *Server) writeResponse(id json.RawMessage, result json.RawMessage, rpcErr *RPCError) {
	if id == nil {
		id = json.RawMessage("null")
	}
	resp := Response{JSONRPC: "2.0", ID: id, Result: result, Error: rpcErr}
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	b = append(b, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, _ = s.out.Write(b)
	_ = s.out.Flush()
}
