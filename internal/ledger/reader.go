package ledger

import (
	"sort"
	"time"

	"github.com/vigilo-sh/vigilo/internal/model"
)

// Filter narrows a Read over the ledger. Zero-valued fields are not
// applied (e.g. a zero Since means "no lower bound").
type Filter struct {
	Since   time.Time
	Until   time.Time
	Session string
	Tool    string
	Risk    model.Risk
	Limit   int
}

// Matches reports whether e satisfies f.
func (f Filter) Matches(e model.Event) bool {
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	if f.Session != "" && e.SessionID != f.Session {
		return false
	}
	if f.Tool != "" && e.Tool != f.Tool {
		return false
	}
	if f.Risk != "" && e.Risk != f.Risk {
		return false
	}
	return true
}

// Read reads every event under dir matching f, in ascending timestamp
// order. If f.Limit > 0, only the most recent Limit matches are returned
// (still ascending).
func Read(dir string, f Filter) ([]model.Event, error) {
	all, err := ReadAll(dir)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})

	var out []model.Event
	for _, e := range all {
		if f.Matches(e) {
			out = append(out, e)
		}
	}

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}

// Tail returns the last n events under dir in ascending timestamp order.
func Tail(dir string, n int) ([]model.Event, error) {
	return Read(dir, Filter{Limit: n})
}
