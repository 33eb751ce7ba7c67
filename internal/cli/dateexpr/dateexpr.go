// Package dateexpr parses the small date-expression language shared by
// every read subcommand's --since/--until flags: "today", "yesterday",
// relative offsets ("7d", "2w", "1m"), and absolute "YYYY-MM-DD" dates.
// Grounded on the teacher's internal/cli/helpers.TimeFlags.Parse, extended
// with the offset/keyword grammar spec §4.8 requires beyond the teacher's
// plain time.ParseDuration.
package dateexpr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parse resolves a date expression relative to now, in now's location.
// Recognized forms:
//   - "today"     - local midnight of the current day
//   - "yesterday" - local midnight of the previous day
//   - "<N>d"      - N days before now
//   - "<N>w"      - N weeks before now
//   - "<N>m"      - N months before now
//   - "YYYY-MM-DD" - that calendar date at local midnight
func Parse(expr string, now time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, fmt.Errorf("empty date expression")
	}

	switch strings.ToLower(expr) {
	case "today":
		return midnight(now), nil
	case "yesterday":
		return midnight(now).AddDate(0, 0, -1), nil
	}

	if t, ok := parseOffset(expr, now); ok {
		return t, nil
	}

	if t, err := time.ParseInLocation("2006-01-02", expr, now.Location()); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date expression %q (want today, yesterday, Nd, Nw, Nm, or YYYY-MM-DD)", expr)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func parseOffset(expr string, now time.Time) (time.Time, bool) {
	if len(expr) < 2 {
		return time.Time{}, false
	}
	unit := expr[len(expr)-1]
	n, err := strconv.Atoi(expr[:len(expr)-1])
	if err != nil || n < 0 {
		return time.Time{}, false
	}
	switch unit {
	case 'd':
		return now.AddDate(0, 0, -n), true
	case 'w':
		return now.AddDate(0, 0, -7*n), true
	case 'm':
		return now.AddDate(0, -n, 0), true
	default:
		return time.Time{}, false
	}
}
