package cli

import (
	"strconv"

	"github.com/vigilo-sh/vigilo/internal/model"
)

// eventRow is the flattened, table-friendly projection of a model.Event.
type eventRow struct {
	ID       string `col:"ID" json:"id"`
	Time     string `col:"TIME" json:"time"`
	Session  string `col:"SESSION" json:"session"`
	Tool     string `col:"TOOL" json:"tool"`
	Risk     string `col:"RISK" json:"risk"`
	Status   string `col:"STATUS" json:"status"`
	Duration string `col:"DURATION" json:"duration"`
	Project  string `col:"PROJECT" json:"project"`
}

func toEventRows(events []model.Event) []eventRow {
	rows := make([]eventRow, len(events))
	for i, e := range events {
		rows[i] = eventRow{
			ID:       shortID(e.ID),
			Time:     e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			Session:  shortID(e.SessionID),
			Tool:     e.Tool,
			Risk:     string(e.Risk),
			Status:   string(e.Outcome.Status),
			Duration: durationMS(e.DurationUS),
			Project:  e.Project.Name,
		}
	}
	return rows
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func durationMS(us int64) string {
	ms := float64(us) / 1000.0
	return strconv.FormatFloat(ms, 'f', 1, 64) + "ms"
}
