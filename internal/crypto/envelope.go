// Package crypto implements the AES-256-GCM envelope used to encrypt
// selected JSON subtrees of an Event at rest. Key acquisition follows a
// fixed precedence: an environment variable, then a mode-0600 on-disk key
// file, then auto-generation. The construction is a single well-known AEAD
// (AES-256-GCM) with no exotic curve or KDF requirement, so it is built on
// the standard library (crypto/aes, crypto/cipher, crypto/rand) rather than
// golang.org/x/crypto — see DESIGN.md for the justification.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	verrors "github.com/vigilo-sh/vigilo/internal/errors"
	"github.com/vigilo-sh/vigilo/internal/model"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// KeyFileName is the on-disk key file name inside the config directory.
const KeyFileName = "encryption.key"

// EnvKeyVar is the environment variable holding a base64-encoded key,
// checked before any on-disk file.
const EnvKeyVar = "ENCRYPTION_KEY"

// Envelope encrypts and decrypts Event field subtrees under a single
// AES-256-GCM key. The zero value is not usable; construct via
// AcquireKey.
type Envelope struct {
	key []byte // 32 bytes, zeroized on Close
}

// AcquireKey resolves the encryption key in order of precedence:
// 1. EnvKeyVar environment variable (base64, 32 bytes).
// 2. <configDir>/encryption.key, mode 0600, base64, 32 bytes.
// 3. Generate, persist to (2) with mode 0600, and use it.
func AcquireKey(configDir string) (*Envelope, error) {
	if enc := os.Getenv(EnvKeyVar); enc != "" {
		key, err := decodeKey(enc)
		if err != nil {
			return nil, verrors.Wrap(verrors.KindCrypto, "invalid "+EnvKeyVar, err)
		}
		return &Envelope{key: key}, nil
	}

	path := filepath.Join(configDir, KeyFileName)
	data, err := os.ReadFile(path) // #nosec G304 - configDir is operator-controlled
	if err == nil {
		key, derr := decodeKey(string(data))
		if derr != nil {
			return nil, verrors.Wrap(verrors.KindCrypto, "invalid key file", derr)
		}
		return &Envelope{key: key}, nil
	}
	if !os.IsNotExist(err) {
		return nil, verrors.Wrap(verrors.KindCrypto, "reading key file", err)
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, verrors.Wrap(verrors.KindCrypto, "generating key", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, verrors.Wrap(verrors.KindCrypto, "creating config dir", err)
	}
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, verrors.Wrap(verrors.KindCrypto, "persisting generated key", err)
	}
	return &Envelope{key: key}, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("not valid base64: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// Close zeroizes the in-memory key. Safe to call on a nil Envelope.
func (e *Envelope) Close() {
	if e == nil {
		return
	}
	for i := range e.key {
		e.key[i] = 0
	}
}

func (e *Envelope) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext into an envelope, binding the AAD to eventID and
// fieldPath as specified: eventID bytes || "|" || fieldPath bytes.
func (e *Envelope) Encrypt(eventID, fieldPath string, plaintext []byte) (model.EncEnvelope, error) {
	aead, err := e.gcm()
	if err != nil {
		return model.EncEnvelope{}, verrors.Wrap(verrors.KindCrypto, "building AEAD", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return model.EncEnvelope{}, verrors.Wrap(verrors.KindCrypto, "generating nonce", err)
	}

	aad := aad(eventID, fieldPath)
	ct := aead.Seal(nil, nonce, plaintext, aad)

	return model.EncEnvelope{
		Scheme: model.EncEnvelopeVersion,
		Nonce:  base64.StdEncoding.EncodeToString(nonce),
		CT:     base64.StdEncoding.EncodeToString(ct),
	}, nil
}

// Decrypt opens an envelope. Callers on the read side should treat any
// error as best-effort: render the field as "<undecryptable>" and continue
// rather than dropping the event.
func (e *Envelope) Decrypt(eventID, fieldPath string, env model.EncEnvelope) ([]byte, error) {
	if env.Scheme != model.EncEnvelopeVersion {
		return nil, verrors.New(verrors.KindCrypto, "unsupported envelope scheme "+env.Scheme)
	}
	aead, err := e.gcm()
	if err != nil {
		return nil, verrors.Wrap(verrors.KindCrypto, "building AEAD", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, verrors.Wrap(verrors.KindCrypto, "decoding nonce", err)
	}
	ct, err := base64.StdEncoding.DecodeString(env.CT)
	if err != nil {
		return nil, verrors.Wrap(verrors.KindCrypto, "decoding ciphertext", err)
	}
	pt, err := aead.Open(nil, nonce, ct, aad(eventID, fieldPath))
	if err != nil {
		return nil, verrors.Wrap(verrors.KindCrypto, "AEAD open failed", err)
	}
	return pt, nil
}

func aad(eventID, fieldPath string) []byte {
	return []byte(eventID + "|" + fieldPath)
}

// EncryptField is a convenience wrapper: marshals v, encrypts it, and
// returns the envelope as json.RawMessage ready to assign into an Event
// field. A nil Envelope means "no key configured" and returns the plain
// marshaled value unchanged.
func EncryptField(e *Envelope, eventID, fieldPath string, v interface{}) (json.RawMessage, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, verrors.Wrap(verrors.KindCrypto, "marshaling field", err)
	}
	if e == nil {
		return plaintext, nil
	}
	env, err := e.Encrypt(eventID, fieldPath, plaintext)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// DecryptField is the read-side counterpart: if raw is an envelope, decrypt
// it; otherwise return raw unchanged. On AEAD failure, returns the literal
// JSON string "<undecryptable>" and a non-nil error for the caller to log
// and count, per the best-effort decryption contract.
func DecryptField(e *Envelope, eventID, fieldPath string, raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var env model.EncEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Scheme == "" {
		return raw, nil // not an envelope
	}
	if e == nil {
		return raw, nil // no key: surface envelope unchanged
	}
	pt, err := e.Decrypt(eventID, fieldPath, env)
	if err != nil {
		return json.RawMessage(`"<undecryptable>"`), err
	}
	return pt, nil
}
