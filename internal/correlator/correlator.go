// Package correlator merges raw session_id values into logical sessions,
// implementing spec §4.5's adjacency rule. It is a pure, read-side fold
// over a timestamp-ordered event stream — no collaborators, no I/O —
// grounded on the teacher's internal/colony aggregation-pass style
// (single forward scan building rollups incrementally) rather than any
// one specific teacher file, since the teacher has no session-merge
// concept of its own.
package correlator

import (
	"sort"
	"time"

	"github.com/vigilo-sh/vigilo/internal/model"
)

// MaxGap is the longest silence between two raw sessions that still
// allows them to merge into one logical session.
const MaxGap = 30 * time.Minute

type key struct {
	server string
	root   string
	branch string
}

type rawSession struct {
	id         string
	server     string
	root       string
	branch     string
	first      time.Time
	last       time.Time
	firstIndex int // position of first event, for interleaving detection
	lastIndex  int
	events     []model.Event
}

// Merge groups events' raw session_id values into logical sessions per
// spec §4.5: same server, same non-empty project root, same non-empty
// branch, a gap of at most MaxGap between sessions, and no interleaved
// third (server, project) session splitting them. Merge is idempotent:
// merging the output of Merge again yields the same logical grouping.
func Merge(events []model.Event) []model.Session {
	sorted := make([]model.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	raws := collectRawSessions(sorted)
	groups := groupAdjacent(raws)

	out := make([]model.Session, 0, len(groups))
	for _, g := range groups {
		out = append(out, buildSession(g))
	}
	return out
}

func collectRawSessions(sorted []model.Event) []*rawSession {
	order := make([]string, 0)
	byID := make(map[string]*rawSession)

	for i, e := range sorted {
		rs, ok := byID[e.SessionID]
		if !ok {
			rs = &rawSession{
				id:         e.SessionID,
				server:     e.Server,
				root:       e.Project.Root,
				branch:     e.Project.Branch,
				first:      e.Timestamp,
				firstIndex: i,
			}
			byID[e.SessionID] = rs
			order = append(order, e.SessionID)
		}
		rs.last = e.Timestamp
		rs.lastIndex = i
		rs.events = append(rs.events, e)
	}

	out := make([]*rawSession, len(order))
	for i, id := range order {
		out[i] = byID[id]
	}
	return out
}

// groupAdjacent merges the first-appearance-ordered raw sessions into
// logical groups. Two consecutive raw sessions of the same (server,
// project) merge if their time gap is within MaxGap AND no event from a
// third raw session of the same (server, project) falls strictly between
// them in the original timeline (that third session "interleaves" and
// blocks the merge).
func groupAdjacent(raws []*rawSession) [][]*rawSession {
	var groups [][]*rawSession

	for _, rs := range raws {
		merged := false
		k := sessionKey(rs)
		if k != (key{}) {
			for gi := len(groups) - 1; gi >= 0; gi-- {
				g := groups[gi]
				last := g[len(g)-1]
				if sessionKey(last) != k {
					continue
				}
				gap := rs.first.Sub(last.last)
				if gap < 0 {
					gap = 0
				}
				if gap > MaxGap {
					break
				}
				if interleaved(raws, last, rs, k) {
					break
				}
				groups[gi] = append(g, rs)
				merged = true
				break
			}
		}
		if !merged {
			groups = append(groups, []*rawSession{rs})
		}
	}
	return groups
}

func sessionKey(rs *rawSession) key {
	if rs.server == "" || rs.root == "" || rs.branch == "" {
		return key{}
	}
	return key{server: rs.server, root: rs.root, branch: rs.branch}
}

// interleaved reports whether some third raw session sharing k has an
// event strictly between prev's last event and next's first event.
func interleaved(raws []*rawSession, prev, next *rawSession, k key) bool {
	for _, other := range raws {
		if other == prev || other == next {
			continue
		}
		if sessionKey(other) != k {
			continue
		}
		if other.firstIndex > prev.lastIndex && other.lastIndex < next.firstIndex {
			return true
		}
	}
	return false
}

func buildSession(group []*rawSession) model.Session {
	first := group[0]
	sess := model.Session{
		ID:        first.id,
		Server:    first.server,
		Project:   model.Project{Root: first.root, Branch: first.branch},
		Branch:    first.branch,
		FirstSeen: first.first,
		LastSeen:  first.last,
	}
	for _, rs := range group {
		sess.SessionIDs = append(sess.SessionIDs, rs.id)
		if rs.last.After(sess.LastSeen) {
			sess.LastSeen = rs.last
		}
		for _, e := range rs.events {
			sess.CallCount++
			if e.Outcome.Status == model.OutcomeError {
				sess.ErrorCount++
			}
			if e.CostUSD != nil {
				sess.CostUSD += *e.CostUSD
			}
		}
	}
	return sess
}
