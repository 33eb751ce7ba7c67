package crypto

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireKeyGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()

	env, err := AcquireKey(dir)
	require.NoError(t, err)
	defer env.Close()

	data, err := os.ReadFile(filepath.Join(dir, KeyFileName))
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(dir, KeyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	decoded, err := base64.StdEncoding.DecodeString(string(data))
	require.NoError(t, err)
	assert.Len(t, decoded, KeySize)
}

func TestAcquireKeyReusesExistingFile(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireKey(dir)
	require.NoError(t, err)
	firstCT, err := first.Encrypt("evt1", "arguments", []byte(`{"a":1}`))
	require.NoError(t, err)
	first.Close()

	second, err := AcquireKey(dir)
	require.NoError(t, err)
	defer second.Close()

	pt, err := second.Decrypt("evt1", "arguments", firstCT)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(pt))
}

func TestAcquireKeyPrefersEnvVar(t *testing.T) {
	dir := t.TempDir()
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	t.Setenv(EnvKeyVar, base64.StdEncoding.EncodeToString(key))

	env, err := AcquireKey(dir)
	require.NoError(t, err)
	defer env.Close()

	_, statErr := os.Stat(filepath.Join(dir, KeyFileName))
	assert.True(t, os.IsNotExist(statErr), "env-sourced key must not be persisted to disk")
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	env, err := AcquireKey(dir)
	require.NoError(t, err)
	defer env.Close()

	plaintext := []byte(`{"path":"/tmp/secret.txt"}`)
	sealed, err := env.Encrypt("evt-1", "arguments", plaintext)
	require.NoError(t, err)

	opened, err := env.Decrypt("evt-1", "arguments", sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestDecryptWrongAADFails(t *testing.T) {
	dir := t.TempDir()
	env, err := AcquireKey(dir)
	require.NoError(t, err)
	defer env.Close()

	sealed, err := env.Encrypt("evt-1", "arguments", []byte(`{}`))
	require.NoError(t, err)

	_, err = env.Decrypt("evt-1", "outcome.result", sealed)
	assert.Error(t, err)
}

func TestDecryptFieldBestEffortOnFailure(t *testing.T) {
	dir := t.TempDir()
	env, err := AcquireKey(dir)
	require.NoError(t, err)
	defer env.Close()

	sealed, err := env.Encrypt("evt-1", "arguments", []byte(`{}`))
	require.NoError(t, err)
	raw, _ := json.Marshal(sealed)

	other, err := AcquireKey(t.TempDir())
	require.NoError(t, err)
	defer other.Close()

	out, err := DecryptField(other, "evt-1", "arguments", raw)
	assert.Error(t, err)
	assert.Equal(t, `"<undecryptable>"`, string(out))
}

func TestEncryptFieldNilEnvelopePassesThrough(t *testing.T) {
	out, err := EncryptField(nil, "evt-1", "arguments", map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(out))
}

func TestEncryptFieldDecryptFieldRoundTripOutcomeMessage(t *testing.T) {
	dir := t.TempDir()
	env, err := AcquireKey(dir)
	require.NoError(t, err)
	defer env.Close()

	sealed, err := EncryptField(env, "evt-1", "outcome.message", "permission denied")
	require.NoError(t, err)

	var envelope map[string]string
	require.NoError(t, json.Unmarshal(sealed, &envelope))
	assert.Equal(t, "v1", envelope["__enc"])

	opened, err := DecryptField(env, "evt-1", "outcome.message", sealed)
	require.NoError(t, err)
	assert.JSONEq(t, `"permission denied"`, string(opened))

	// The AAD binds the field path: decrypting the same ciphertext under
	// "outcome.result" must fail rather than silently return the message.
	_, err = DecryptField(env, "evt-1", "outcome.result", sealed)
	assert.Error(t, err)
}
