package dateexpr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeywords(t *testing.T) {
	now := time.Date(2026, 7, 29, 14, 30, 0, 0, time.UTC)

	today, err := Parse("today", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), today)

	yesterday, err := Parse("Yesterday", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 28, 0, 0, 0, 0, time.UTC), yesterday)
}

func TestParseOffsets(t *testing.T) {
	now := time.Date(2026, 7, 29, 14, 30, 0, 0, time.UTC)

	d, err := Parse("7d", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -7), d)

	w, err := Parse("2w", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -14), w)

	m, err := Parse("1m", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, -1, 0), m)
}

func TestParseAbsoluteDate(t *testing.T) {
	now := time.Date(2026, 7, 29, 14, 30, 0, 0, time.UTC)
	d, err := Parse("2026-01-15", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), d)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-a-date", time.Now())
	assert.Error(t, err)

	_, err = Parse("", time.Now())
	assert.Error(t, err)

	_, err = Parse("5x", time.Now())
	assert.Error(t, err)
}
