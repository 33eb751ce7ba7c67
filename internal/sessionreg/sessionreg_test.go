package sessionreg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenAdoptCurrentProcess(t *testing.T) {
	dir := t.TempDir()
	exe, err := os.Executable()
	require.NoError(t, err)
	binaryName := filepath.Base(exe)

	require.NoError(t, Write(dir, Record{SessionID: "sess-123", PID: int32(os.Getpid())}))

	got, ok := Adopt(dir, binaryName)
	require.True(t, ok)
	assert.Equal(t, "sess-123", got)
}

func TestAdoptRejectsMismatchedBinaryName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, Record{SessionID: "sess-1", PID: int32(os.Getpid())}))

	_, ok := Adopt(dir, "definitely-not-this-binary")
	assert.False(t, ok)
}

func TestAdoptRejectsDeadPID(t *testing.T) {
	dir := t.TempDir()
	// PID 999999 is above the default pid limit on the platforms this runs
	// on, so it is not expected to name a live process.
	require.NoError(t, Write(dir, Record{SessionID: "sess-1", PID: 999999}))

	_, ok := Adopt(dir, "vigilo")
	assert.False(t, ok)
}

func TestAdoptMissingArtifactReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	_, ok := Adopt(dir, "vigilo")
	assert.False(t, ok)
}

func TestRemoveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, Record{SessionID: "sess-1", PID: 1}))
	require.NoError(t, Remove(dir))
	require.NoError(t, Remove(dir))

	_, err := os.Stat(filepath.Join(dir, FileName))
	assert.True(t, os.IsNotExist(err))
}
