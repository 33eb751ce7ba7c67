package correlator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilo-sh/vigilo/internal/model"
)

func ev(sessionID, server, root, branch string, t time.Time) model.Event {
	return model.Event{
		SessionID: sessionID,
		Server:    server,
		Project:   model.Project{Root: root, Branch: branch},
		Timestamp: t,
	}
}

func TestMergeJoinsAdjacentSessionsWithinGap(t *testing.T) {
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	events := []model.Event{
		ev("s1", "vigilo", "/repo", "main", base),
		ev("s1", "vigilo", "/repo", "main", base.Add(time.Minute)),
		ev("s2", "vigilo", "/repo", "main", base.Add(10*time.Minute)),
	}

	sessions := Merge(events)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
	assert.Equal(t, []string{"s1", "s2"}, sessions[0].SessionIDs)
	assert.Equal(t, 3, sessions[0].CallCount)
}

func TestMergeSplitsSessionsBeyondGap(t *testing.T) {
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	events := []model.Event{
		ev("s1", "vigilo", "/repo", "main", base),
		ev("s2", "vigilo", "/repo", "main", base.Add(45*time.Minute)),
	}

	sessions := Merge(events)
	require.Len(t, sessions, 2)
}

func TestMergeKeepsDifferentProjectsSeparate(t *testing.T) {
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	events := []model.Event{
		ev("s1", "vigilo", "/repo-a", "main", base),
		ev("s2", "vigilo", "/repo-b", "main", base.Add(time.Minute)),
	}

	sessions := Merge(events)
	require.Len(t, sessions, 2)
}

func TestMergeChainsThreeSameKeySessionsInTimeOrder(t *testing.T) {
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	events := []model.Event{
		ev("s1", "vigilo", "/repo", "main", base),
		ev("s2", "vigilo", "/repo", "main", base.Add(2*time.Minute)),
		ev("s3", "vigilo", "/repo", "main", base.Add(4*time.Minute)),
	}

	sessions := Merge(events)
	require.Len(t, sessions, 1)
	assert.Equal(t, []string{"s1", "s2", "s3"}, sessions[0].SessionIDs)
}

func TestMergeDifferentKeySessionInBetweenDoesNotBlockMerge(t *testing.T) {
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	events := []model.Event{
		ev("s1", "vigilo", "/repo", "main", base),
		ev("unrelated", "vigilo", "/repo", "feature-branch", base.Add(2*time.Minute)),
		ev("s2", "vigilo", "/repo", "main", base.Add(4*time.Minute)),
	}

	sessions := Merge(events)
	// "unrelated" has a different (server, project) key (different
	// branch), so it forms its own logical session and does not split
	// s1/s2, which still merge across it.
	require.Len(t, sessions, 2)
	var mainSession model.Session
	for _, s := range sessions {
		if s.Branch == "main" {
			mainSession = s
		}
	}
	assert.Equal(t, []string{"s1", "s2"}, mainSession.SessionIDs)
}

func TestMergeIsIdempotent(t *testing.T) {
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	events := []model.Event{
		ev("s1", "vigilo", "/repo", "main", base),
		ev("s2", "vigilo", "/repo", "main", base.Add(5*time.Minute)),
	}

	first := Merge(events)
	require.Len(t, first, 1)

	// Re-merging events mapped under the logical session's own id (and no
	// other raw ids) must yield the same single group.
	reEvents := make([]model.Event, 0)
	for _, e := range events {
		e.SessionID = first[0].ID
		reEvents = append(reEvents, e)
	}
	second := Merge(reEvents)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].CallCount, second[0].CallCount)
}

func TestMergeEmptyProjectFieldsNeverMerge(t *testing.T) {
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	events := []model.Event{
		ev("s1", "vigilo", "", "", base),
		ev("s2", "vigilo", "", "", base.Add(time.Minute)),
	}

	sessions := Merge(events)
	require.Len(t, sessions, 2)
}
