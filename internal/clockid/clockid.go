// Package clockid provides the event/session identifier source and the
// timestamp convention shared across every component that writes or reads
// ledger records: RFC-3339 millisecond-precision timestamps in UTC and
// 128-bit random IDs.
package clockid

import (
	"time"

	"github.com/google/uuid"
)

// New returns a fresh 128-bit random identifier suitable for event or
// session IDs.
func New() string {
	return uuid.NewString()
}

// Now returns the current wall-clock time truncated to millisecond
// precision in UTC, matching the ledger's on-wire timestamp resolution.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// RotationSuffix formats a time as the unix-millisecond suffix used to name
// rotated ledger files (events.<millis>.jsonl).
func RotationSuffix(t time.Time) int64 {
	return t.UnixMilli()
}
