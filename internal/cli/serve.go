package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vigilo-sh/vigilo/internal/clockid"
	"github.com/vigilo-sh/vigilo/internal/config"
	"github.com/vigilo-sh/vigilo/internal/crypto"
	"github.com/vigilo-sh/vigilo/internal/ledger"
	"github.com/vigilo-sh/vigilo/internal/logging"
	"github.com/vigilo-sh/vigilo/internal/mcpserver"
	"github.com/vigilo-sh/vigilo/internal/safe"
	"github.com/vigilo-sh/vigilo/internal/sessionreg"
	"github.com/vigilo-sh/vigilo/pkg/version"
)

// runServe is the root command's default action: an MCP JSON-RPC server
// over stdio. It never writes anything but protocol responses to stdout —
// operational logging goes to <config_dir>/vigilo.log, per spec §4.3/§4.1.
func runServe() error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	file, err := config.LoadFile(dir)
	if err != nil {
		return err
	}
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	ledgerDir := config.LedgerDir(dir, file, env)

	logFile, err := os.OpenFile(filepath.Join(dir, "vigilo.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := logging.NewWithComponent(logging.Config{Level: "info", Pretty: false, Output: logFile}, "mcpserver")

	errLogPath := filepath.Join(dir, "errors.log")
	errLog, err := os.OpenFile(errLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer errLog.Close()

	envelope, err := crypto.AcquireKey(dir)
	if err != nil {
		return err
	}
	defer envelope.Close()

	writer, err := ledger.Open(ledgerDir)
	if err != nil {
		return err
	}
	defer writer.Close()

	cat, validator, err := newCatalogAndValidator()
	if err != nil {
		return err
	}

	timeout := mcpserver.DefaultTimeout
	if env.TimeoutSecs > 0 {
		timeout = time.Duration(env.TimeoutSecs) * time.Second
	}

	sessionID := clockid.New()
	pid, _ := safe.IntToInt32(os.Getpid())
	if err := sessionreg.Write(dir, sessionreg.Record{SessionID: sessionID, PID: pid}); err != nil {
		logger.Warn().Err(err).Msg("writing session registry artifact")
	}
	defer func() {
		if err := sessionreg.Remove(dir); err != nil {
			logger.Warn().Err(err).Msg("removing session registry artifact")
		}
	}()

	srv := mcpserver.New(mcpserver.Config{
		ServerName:     "vigilo",
		Version:        version.Version,
		CatalogVersion: "1",
		SessionID:      sessionID,
		Tag:            env.Tag,
		Timeout:        timeout,
		Logger:         logger,
		ErrorLog:       errLog,
	}, cat, validator, writer, envelope, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info().Str("session_id", sessionID).Msg("vigilo mcp server starting")
	return srv.Serve(ctx, os.Stdin)
}
