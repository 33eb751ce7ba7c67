package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirUsesOverrideEnvVar(t *testing.T) {
	t.Setenv("VIGILO_CONFIG_DIR", "/tmp/custom-vigilo")
	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-vigilo", dir)
}

func TestLoadFileParsesRecognizedKeys(t *testing.T) {
	dir := t.TempDir()
	content := "# comment\nLEDGER=/var/lib/vigilo/events\n\nCURSOR_DB=/opt/billing.db\nUNKNOWN=ignored\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config"), []byte(content), 0o644))

	f, err := LoadFile(dir)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/vigilo/events", f.Ledger)
	assert.Equal(t, "/opt/billing.db", f.CursorDB)
}

func TestLoadFileMissingIsNotError(t *testing.T) {
	dir := t.TempDir()
	f, err := LoadFile(dir)
	require.NoError(t, err)
	assert.Equal(t, File{}, f)
}

func TestLoadEnvPopulatesTaggedFields(t *testing.T) {
	t.Setenv("LEDGER_ENV", "/tmp/ledger-env")
	t.Setenv("ENCRYPTION_KEY", "base64key")
	t.Setenv("TAG", "feature-branch")
	t.Setenv("TIMEOUT_SECS", "45")
	t.Setenv("DASHBOARD_PORT", "9000")

	e, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ledger-env", e.LedgerEnv)
	assert.Equal(t, "base64key", e.EncryptionKey)
	assert.Equal(t, "feature-branch", e.Tag)
	assert.Equal(t, 45, e.TimeoutSecs)
	assert.Equal(t, 9000, e.DashboardPort)
}

func TestLoadEnvNoColorSetByPresenceNotContent(t *testing.T) {
	t.Setenv("NO_COLOR", "") // empty string: unset, per convention
	e, err := LoadEnv()
	require.NoError(t, err)
	assert.False(t, e.NoColor)

	t.Setenv("NO_COLOR", "anything")
	e, err = LoadEnv()
	require.NoError(t, err)
	assert.True(t, e.NoColor)
}

func TestLoadEnvRejectsInvalidInt(t *testing.T) {
	t.Setenv("TIMEOUT_SECS", "not-a-number")
	_, err := LoadEnv()
	assert.Error(t, err)
}

func TestLedgerDirPrecedence(t *testing.T) {
	assert.Equal(t, "/from/env", LedgerDir("/config", File{Ledger: "/from/file"}, Env{LedgerEnv: "/from/env"}))
	assert.Equal(t, "/from/file", LedgerDir("/config", File{Ledger: "/from/file"}, Env{}))
	assert.Equal(t, "/config", LedgerDir("/config", File{}, Env{}))
}
