package aggregator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilo-sh/vigilo/internal/model"
)

func int64p(v int64) *int64       { return &v }
func float64p(v float64) *float64 { return &v }

func TestAggregateCountsByRiskAndError(t *testing.T) {
	events := []model.Event{
		{Tool: "read_file", Risk: model.RiskRead, Outcome: model.Outcome{Status: model.OutcomeOK}, Timestamp: time.Now()},
		{Tool: "write_file", Risk: model.RiskWrite, Outcome: model.Outcome{Status: model.OutcomeOK}, Timestamp: time.Now()},
		{Tool: "run_command", Risk: model.RiskExec, Outcome: model.Outcome{Status: model.OutcomeError}, Timestamp: time.Now()},
	}

	sum := Aggregate(events, time.UTC)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Reads)
	assert.Equal(t, 1, sum.Writes)
	assert.Equal(t, 1, sum.Execs)
	assert.Equal(t, 1, sum.Errors)
}

func TestAggregateEstimatesCostFromKnownModel(t *testing.T) {
	events := []model.Event{
		{
			Tool: "read_file", Risk: model.RiskRead, Model: "claude-sonnet-4",
			InputTokens: int64p(1000), OutputTokens: int64p(1000),
			Timestamp: time.Now(),
		},
	}

	sum := Aggregate(events, time.UTC)
	want := CostTable["claude-sonnet-4"].InputPer1K + CostTable["claude-sonnet-4"].OutputPer1K
	assert.InDelta(t, want, sum.CostUSD, 1e-9)
	require.Len(t, sum.ByModel, 1)
	assert.Equal(t, "claude-sonnet-4", sum.ByModel[0].Model)
}

func TestAggregateAuthoritativeCostOverridesEstimate(t *testing.T) {
	events := []model.Event{
		{
			Tool: "read_file", Risk: model.RiskRead, Model: "claude-sonnet-4",
			InputTokens: int64p(1000), CostUSD: float64p(9.99),
			Timestamp: time.Now(),
		},
	}
	sum := Aggregate(events, time.UTC)
	assert.InDelta(t, 9.99, sum.CostUSD, 1e-9)
}

func TestAggregateUnknownModelCostsZero(t *testing.T) {
	events := []model.Event{
		{Tool: "read_file", Risk: model.RiskRead, Model: "some-unlisted-model", InputTokens: int64p(1000), Timestamp: time.Now()},
	}
	sum := Aggregate(events, time.UTC)
	assert.Equal(t, 0.0, sum.CostUSD)
}

func TestAggregateByFileCountsWriteArguments(t *testing.T) {
	args, err := json.Marshal(map[string]string{"path": "a.txt"})
	require.NoError(t, err)

	events := []model.Event{
		{Tool: "write_file", Risk: model.RiskWrite, Arguments: args, Timestamp: time.Now()},
		{Tool: "write_file", Risk: model.RiskWrite, Arguments: args, Timestamp: time.Now()},
		{Tool: "read_file", Risk: model.RiskRead, Arguments: args, Timestamp: time.Now()},
	}
	sum := Aggregate(events, time.UTC)
	require.Len(t, sum.ByFile, 1)
	assert.Equal(t, "a.txt", sum.ByFile[0].File)
	assert.Equal(t, 2, sum.ByFile[0].Count)
}

func TestAggregateByProjectRollup(t *testing.T) {
	events := []model.Event{
		{Tool: "read_file", Risk: model.RiskRead, Project: model.Project{Name: "proj-a"}, Timestamp: time.Now()},
		{Tool: "write_file", Risk: model.RiskWrite, Project: model.Project{Name: "proj-a"}, Timestamp: time.Now()},
		{Tool: "read_file", Risk: model.RiskRead, Project: model.Project{Name: "proj-b"}, Timestamp: time.Now()},
	}
	sum := Aggregate(events, time.UTC)
	require.Len(t, sum.ByProject, 2)
}

func TestAggregateTimelineBucketsByLocalDay(t *testing.T) {
	day1 := time.Date(2026, 7, 1, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 7, 2, 1, 0, 0, 0, time.UTC)
	events := []model.Event{
		{Tool: "read_file", Risk: model.RiskRead, Timestamp: day1},
		{Tool: "read_file", Risk: model.RiskRead, Timestamp: day2},
	}
	sum := Aggregate(events, time.UTC)
	require.Len(t, sum.Timeline, 2)
	assert.Equal(t, "2026-07-01", sum.Timeline[0].Date)
	assert.Equal(t, "2026-07-02", sum.Timeline[1].Date)
}
