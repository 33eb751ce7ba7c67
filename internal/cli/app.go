package cli

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/vigilo-sh/vigilo/internal/catalog"
	"github.com/vigilo-sh/vigilo/internal/cli/dateexpr"
	"github.com/vigilo-sh/vigilo/internal/config"
	"github.com/vigilo-sh/vigilo/internal/crypto"
	"github.com/vigilo-sh/vigilo/internal/ledger"
	"github.com/vigilo-sh/vigilo/internal/logging"
	"github.com/vigilo-sh/vigilo/internal/model"
)

// app bundles the collaborators every read subcommand needs: where the
// ledger lives, an optional decryption envelope, and whether to color
// output.
type app struct {
	configDir string
	ledgerDir string
	envelope  *crypto.Envelope // nil if no key is configured
	noColor   bool
	logger    zerolog.Logger
}

func newApp(noColor bool) (*app, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	file, err := config.LoadFile(dir)
	if err != nil {
		return nil, err
	}
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}

	ledgerDir := config.LedgerDir(dir, file, env)

	var envelope *crypto.Envelope
	if keyConfigured(dir) {
		envelope, err = crypto.AcquireKey(dir)
		if err != nil {
			return nil, err
		}
	}

	logCfg := logging.DefaultConfig()
	if env.NoColor {
		noColor = true
	}
	logCfg.Pretty = !noColor

	return &app{
		configDir: dir,
		ledgerDir: ledgerDir,
		envelope:  envelope,
		noColor:   noColor,
		logger:    logging.NewWithComponent(logCfg, "cli"),
	}, nil
}

// keyConfigured reports whether an encryption key is already available,
// without triggering crypto.AcquireKey's auto-generate fallback — a read
// subcommand should never silently mint a new key just because it ran.
func keyConfigured(configDir string) bool {
	if os.Getenv(crypto.EnvKeyVar) != "" {
		return true
	}
	_, err := os.Stat(filepath.Join(configDir, crypto.KeyFileName))
	return err == nil
}

// decryptEvents resolves any encrypted arguments/outcome.result fields in
// place for display, best-effort: a field that fails to decrypt is
// rendered as the literal placeholder rather than dropping the event.
func (a *app) decryptEvents(events []model.Event) []model.Event {
	if a.envelope == nil {
		return events
	}
	for i := range events {
		events[i].Arguments, _ = crypto.DecryptField(a.envelope, events[i].ID, "arguments", events[i].Arguments)
		events[i].Outcome.Result, _ = crypto.DecryptField(a.envelope, events[i].ID, "outcome.result", events[i].Outcome.Result)
		events[i].Outcome.Message, _ = crypto.DecryptField(a.envelope, events[i].ID, "outcome.message", events[i].Outcome.Message)
	}
	return events
}

func (a *app) readFiltered(f ledger.Filter) ([]model.Event, error) {
	events, err := ledger.Read(a.ledgerDir, f)
	if err != nil {
		return nil, err
	}
	return a.decryptEvents(events), nil
}

// resolveSinceUntil applies --since/--until date expressions onto f,
// relative to time.Now().
func resolveSinceUntil(f *ledger.Filter, since, until string) error {
	now := time.Now()
	if since != "" {
		t, err := dateexpr.Parse(since, now)
		if err != nil {
			return err
		}
		f.Since = t
	}
	if until != "" {
		t, err := dateexpr.Parse(until, now)
		if err != nil {
			return err
		}
		f.Until = t
	}
	return nil
}

// newCatalogAndValidator builds the fixed tool catalog and its schema
// validator, shared by the serve and hook subcommands.
func newCatalogAndValidator() (*catalog.Catalog, *catalog.Validator, error) {
	c := catalog.New()
	v, err := catalog.NewValidator(c)
	if err != nil {
		return nil, nil, err
	}
	return c, v, nil
}
