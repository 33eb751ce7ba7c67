package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(KindIO, "read failed", nil))
}

func TestErrorMessageIncludesKindAndCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(KindIO, "write failed", cause)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "io")
	assert.Contains(t, err.Error(), "write failed")
	assert.Contains(t, err.Error(), "disk full")
	assert.ErrorIs(t, err, cause)
}

func TestAsExtractsWrappedTypedError(t *testing.T) {
	inner := New(KindTimeout, "deadline exceeded")
	wrapped := fmt.Errorf("handler failed: %w", inner)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, got.Kind)
}

func TestAsFailsForPlainError(t *testing.T) {
	_, ok := As(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestJSONRPCCodeMapping(t *testing.T) {
	cases := map[Kind]int{
		KindParse:         -32700,
		KindSchema:        -32602,
		KindIO:            -32000,
		KindTimeout:       -32001,
		KindSubprocess:    -32002,
		KindCrypto:        -32003,
		KindLedger:        -32004,
		KindConfig:        -32005,
		KindNotFound:      -32006,
		KindForbiddenPath: -32007,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.JSONRPCCode(), "kind=%s", kind)
	}
}
