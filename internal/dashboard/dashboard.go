// Package dashboard implements vigilo's embedded loopback HTTP server:
// REST endpoints over the ledger/aggregator/correlator read path, plus a
// Server-Sent Events live stream. Grounded on the teacher's
// internal/colony/httpapi.Server (Config/New/Start/Stop shape, addr
// resolution) with authentication and RBAC middleware dropped — the
// dashboard's only security boundary is binding to loopback, per spec
// §4.7 — and on internal/colony/httpapi/mcp_sse.go's SSE header/flusher
// idiom for the live event stream.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/vigilo-sh/vigilo/internal/aggregator"
	"github.com/vigilo-sh/vigilo/internal/correlator"
	"github.com/vigilo-sh/vigilo/internal/crypto"
	"github.com/vigilo-sh/vigilo/internal/ledger"
	"github.com/vigilo-sh/vigilo/internal/model"
	"github.com/vigilo-sh/vigilo/internal/webassets"
)

// DefaultPort is the dashboard's default bind port.
const DefaultPort = 7847

// ErrPortUnavailable is returned by New when the requested port is in use
// and no ephemeral fallback could be negotiated.
var ErrPortUnavailable = errors.New("dashboard: requested port unavailable")

// ExitCodePortUnavailable is the process exit code spec §7 assigns to a
// non-interactive port-bind failure.
const ExitCodePortUnavailable = 3

// Config configures one Server.
type Config struct {
	Host       string
	Port       int
	LedgerDir  string
	Envelope   *crypto.Envelope // nil if no key is configured
	Logger     zerolog.Logger
	IsTerminal func() bool // overridable for tests; defaults to checking stdin
}

// Server is vigilo's embedded dashboard.
type Server struct {
	cfg        Config
	httpServer *http.Server
	listener   net.Listener
	logger     zerolog.Logger
}

// New binds a listener per spec §4.7: the requested host:port, falling
// back to an ephemeral port when that fails and stdin is a terminal, or
// returning ErrPortUnavailable otherwise.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	} else if cfg.Port < 0 {
		cfg.Port = 0 // negative is the test/caller sentinel for "let the OS pick an ephemeral port"
	}
	if cfg.IsTerminal == nil {
		cfg.IsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if !isAddrInUse(err) {
			return nil, err
		}
		if !cfg.IsTerminal() {
			return nil, ErrPortUnavailable
		}
		ln, err = net.Listen("tcp", net.JoinHostPort(cfg.Host, "0"))
		if err != nil {
			return nil, fmt.Errorf("binding ephemeral port: %w", err)
		}
	}

	s := &Server{cfg: cfg, listener: ln, logger: cfg.Logger.With().Str("component", "dashboard").Logger()}
	s.httpServer = &http.Server{
		Handler:           s.withSecurityHeaders(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

// Addr returns the bound address, e.g. "127.0.0.1:7847".
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start serves in the background.
func (s *Server) Start() {
	s.logger.Info().Str("addr", s.Addr()).Msg("dashboard listening")
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("dashboard server error")
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := hostOnly(r.Host)
		_, port, _ := net.SplitHostPort(r.Host)
		if (host != "127.0.0.1" && host != "localhost") || port != strconv.Itoa(s.listener.Addr().(*net.TCPAddr).Port) {
			http.Error(w, "forbidden host", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

func hostOnly(hostport string) string {
	h, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return h
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", webassets.Handler())
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/errors", s.handleErrors)
	mux.HandleFunc("/api/events/stream", s.handleStream)
	return mux
}

func (s *Server) loadFiltered(r *http.Request) ([]model.Event, error) {
	f, err := parseFilter(r)
	if err != nil {
		return nil, err
	}
	events, err := ledger.Read(s.cfg.LedgerDir, f)
	if err != nil {
		return nil, err
	}
	return s.decryptEvents(events), nil
}

// decryptEvents resolves any encrypted arguments/outcome.result/
// outcome.message fields in place, best-effort: a field that fails to
// decrypt is rendered as the literal placeholder rather than dropping the
// event. Mirrors internal/cli/app.go's decryptEvents for the dashboard's
// read path, which has its own Config/envelope rather than sharing cli's.
func (s *Server) decryptEvents(events []model.Event) []model.Event {
	if s.cfg.Envelope == nil {
		return events
	}
	for i := range events {
		events[i].Arguments, _ = crypto.DecryptField(s.cfg.Envelope, events[i].ID, "arguments", events[i].Arguments)
		events[i].Outcome.Result, _ = crypto.DecryptField(s.cfg.Envelope, events[i].ID, "outcome.result", events[i].Outcome.Result)
		events[i].Outcome.Message, _ = crypto.DecryptField(s.cfg.Envelope, events[i].ID, "outcome.message", events[i].Outcome.Message)
	}
	return events
}

func parseFilter(r *http.Request) (ledger.Filter, error) {
	q := r.URL.Query()
	var f ledger.Filter
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, err
		}
		f.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, err
		}
		f.Until = t
	}
	f.Session = q.Get("session")
	f.Tool = q.Get("tool")
	if v := q.Get("risk"); v != "" {
		f.Risk = model.Risk(v)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, err
		}
		f.Limit = n
	}
	return f, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	events, err := ledger.ReadAll(s.cfg.LedgerDir)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, aggregator.Aggregate(s.decryptEvents(events), time.Local))
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	events, err := s.loadFiltered(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, correlator.Merge(events))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	events, err := s.loadFiltered(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, aggregator.Aggregate(events, time.Local))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.loadFiltered(r)
	if err != nil {
		writeError(w, err)
		return
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	writeJSON(w, events)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	events, err := s.loadFiltered(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var errEvents []model.Event
	for _, e := range events {
		if e.Outcome.Status == model.OutcomeError {
			errEvents = append(errEvents, e)
		}
	}
	writeJSON(w, struct {
		Count  int           `json:"count"`
		Events []model.Event `json:"events"`
	}{len(errEvents), errEvents})
}

// handleStream serves the SSE live event feed: fsnotify watches the
// ledger directory for the active file's growth, falling back to a 250ms
// stat poll when inotify-style events aren't delivered (e.g. network
// filesystems). Each new line is one "data:" message, prefixed with a
// monotonic per-connection sequence id. A keepalive comment is sent every
// 15s. On rotation (new active file), the watcher reopens at offset 0.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	tail := newTailer(s.cfg.LedgerDir)
	defer tail.Close()

	watcher, werr := fsnotify.NewWatcher()
	if werr == nil {
		_ = watcher.Add(s.cfg.LedgerDir)
		defer watcher.Close()
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	var seq int64
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-ticker.C:
			seq = s.drainTail(w, flusher, tail, seq)
		case ev, ok := <-watcherEvents(watcher):
			if !ok {
				continue
			}
			_ = ev
			seq = s.drainTail(w, flusher, tail, seq)
		}
	}
}

func watcherEvents(w *fsnotify.Watcher) chan fsnotify.Event {
	if w == nil {
		return nil
	}
	return w.Events
}

func (s *Server) drainTail(w http.ResponseWriter, flusher http.Flusher, tail *tailer, seq int64) int64 {
	lines, err := tail.Next()
	if err != nil {
		return seq
	}
	for _, line := range lines {
		seq++
		fmt.Fprintf(w, "id: %d\ndata: %s\n\n", seq, s.decryptLine(line))
	}
	if len(lines) > 0 {
		flusher.Flush()
	}
	return seq
}

// decryptLine resolves one raw ledger line's encrypted fields before it
// reaches an SSE subscriber. A line that fails to parse as an Event is
// passed through unchanged rather than dropped, since the stream's
// whole-lines-only contract already guarantees well-formed JSON here.
func (s *Server) decryptLine(line string) string {
	if s.cfg.Envelope == nil {
		return line
	}
	var event model.Event
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		return line
	}
	decrypted := s.decryptEvents([]model.Event{event})
	b, err := json.Marshal(decrypted[0])
	if err != nil {
		return line
	}
	return string(b)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}
