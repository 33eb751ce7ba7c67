// Package aggregator implements spec §4.6's pure fold over a filtered
// event stream: global counts, per-model/per-tool/per-file/per-project
// rollups, and a per-day timeline in the caller's local timezone. Like
// internal/correlator, this is bespoke rollup logic with no natural
// third-party library role; it is grounded on the teacher's general
// single-pass aggregation style in internal/colony's stats helpers
// (accumulate into map-keyed rows while scanning once).
package aggregator

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/vigilo-sh/vigilo/internal/model"
)

// ModelCost is a static per-1000-token price triple for one known model.
type ModelCost struct {
	InputPer1K     float64
	OutputPer1K    float64
	CacheReadPer1K float64
}

// CostTable is the fixed set of known model prices. Unknown models
// contribute zero estimated cost. Figures are representative per-1k-token
// USD prices for illustration; operators needing precision should rely on
// the hook path's authoritative model.Event.CostUSD instead.
var CostTable = map[string]ModelCost{
	"claude-opus-4":    {InputPer1K: 0.015, OutputPer1K: 0.075, CacheReadPer1K: 0.0015},
	"claude-sonnet-4":  {InputPer1K: 0.003, OutputPer1K: 0.015, CacheReadPer1K: 0.0003},
	"claude-haiku-4":   {InputPer1K: 0.0008, OutputPer1K: 0.004, CacheReadPer1K: 0.00008},
	"gpt-4o":           {InputPer1K: 0.0025, OutputPer1K: 0.01, CacheReadPer1K: 0.00125},
	"gpt-4o-mini":      {InputPer1K: 0.00015, OutputPer1K: 0.0006, CacheReadPer1K: 0.000075},
}

// Summary is the aggregator's full output.
type Summary struct {
	Total  int `json:"total"`
	Reads  int `json:"reads"`
	Writes int `json:"writes"`
	Execs  int `json:"execs"`
	Errors int `json:"errors"`

	InputTokens     int64   `json:"input_tokens"`
	OutputTokens    int64   `json:"output_tokens"`
	CacheReadTokens int64   `json:"cache_read_tokens"`
	CostUSD         float64 `json:"cost_usd"`

	ByModel   []ModelRow   `json:"by_model"`
	ByTool    []ToolRow    `json:"by_tool"`
	ByFile    []FileRow    `json:"by_file"`
	ByProject []ProjectRow `json:"by_project"`
	Timeline  []DayRow     `json:"timeline"`
}

type ModelRow struct {
	Model           string  `json:"model" col:"MODEL"`
	Calls           int     `json:"calls" col:"CALLS"`
	InputTokens     int64   `json:"input_tokens" col:"INPUT_TOKENS"`
	OutputTokens    int64   `json:"output_tokens" col:"OUTPUT_TOKENS"`
	CacheReadTokens int64   `json:"cache_read_tokens" col:"CACHE_READ_TOKENS"`
	CostUSD         float64 `json:"cost_usd" col:"COST_USD"`
}

type ToolRow struct {
	Tool       string `json:"tool" col:"TOOL"`
	Count      int    `json:"count" col:"COUNT"`
	ErrorCount int    `json:"error_count" col:"ERRORS"`
}

type FileRow struct {
	File  string `json:"file" col:"FILE"`
	Count int    `json:"count" col:"COUNT"`
}

type ProjectRow struct {
	Name   string `json:"name" col:"PROJECT"`
	Count  int    `json:"count" col:"COUNT"`
	Reads  int    `json:"reads" col:"READS"`
	Writes int    `json:"writes" col:"WRITES"`
	Execs  int    `json:"execs" col:"EXECS"`
}

type DayRow struct {
	Date         string  `json:"date" col:"DATE"`
	CostUSD      float64 `json:"cost_usd" col:"COST_USD"`
	InputTokens  int64   `json:"input_tokens" col:"INPUT_TOKENS"`
	OutputTokens int64   `json:"output_tokens" col:"OUTPUT_TOKENS"`
	Reads        int     `json:"reads" col:"READS"`
	Writes       int     `json:"writes" col:"WRITES"`
	Execs        int     `json:"execs" col:"EXECS"`
	Errors       int     `json:"errors" col:"ERRORS"`
}

// Aggregate folds events into a Summary. loc sets the timezone the
// per-day timeline buckets by; pass time.Local for the caller's local
// timezone as spec §4.6 requires.
func Aggregate(events []model.Event, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}

	var sum Summary
	modelRows := make(map[string]*ModelRow)
	toolRows := make(map[string]*ToolRow)
	fileRows := make(map[string]*FileRow)
	projectRows := make(map[string]*ProjectRow)
	dayRows := make(map[string]*DayRow)
	var dayOrder []string

	for _, e := range events {
		sum.Total++
		isError := e.Outcome.Status == model.OutcomeError
		if isError {
			sum.Errors++
		}
		switch e.Risk {
		case model.RiskRead:
			sum.Reads++
		case model.RiskWrite:
			sum.Writes++
		case model.RiskExec:
			sum.Execs++
		}

		if e.InputTokens != nil {
			sum.InputTokens += *e.InputTokens
		}
		if e.OutputTokens != nil {
			sum.OutputTokens += *e.OutputTokens
		}
		if e.CacheReadTokens != nil {
			sum.CacheReadTokens += *e.CacheReadTokens
		}
		cost := eventCost(e)
		sum.CostUSD += cost

		if e.Model != "" {
			mr, ok := modelRows[e.Model]
			if !ok {
				mr = &ModelRow{Model: e.Model}
				modelRows[e.Model] = mr
			}
			mr.Calls++
			if e.InputTokens != nil {
				mr.InputTokens += *e.InputTokens
			}
			if e.OutputTokens != nil {
				mr.OutputTokens += *e.OutputTokens
			}
			if e.CacheReadTokens != nil {
				mr.CacheReadTokens += *e.CacheReadTokens
			}
			mr.CostUSD += cost
		}

		tr, ok := toolRows[e.Tool]
		if !ok {
			tr = &ToolRow{Tool: e.Tool}
			toolRows[e.Tool] = tr
		}
		tr.Count++
		if isError {
			tr.ErrorCount++
		}

		if e.Risk == model.RiskWrite {
			if file, ok := extractFile(e.Arguments); ok {
				fr, ok := fileRows[file]
				if !ok {
					fr = &FileRow{File: file}
					fileRows[file] = fr
				}
				fr.Count++
			}
		}

		projName := e.Project.Name
		if projName != "" {
			pr, ok := projectRows[projName]
			if !ok {
				pr = &ProjectRow{Name: projName}
				projectRows[projName] = pr
			}
			pr.Count++
			switch e.Risk {
			case model.RiskRead:
				pr.Reads++
			case model.RiskWrite:
				pr.Writes++
			case model.RiskExec:
				pr.Execs++
			}
		}

		day := e.Timestamp.In(loc).Format("2006-01-02")
		dr, ok := dayRows[day]
		if !ok {
			dr = &DayRow{Date: day}
			dayRows[day] = dr
			dayOrder = append(dayOrder, day)
		}
		dr.CostUSD += cost
		if e.InputTokens != nil {
			dr.InputTokens += *e.InputTokens
		}
		if e.OutputTokens != nil {
			dr.OutputTokens += *e.OutputTokens
		}
		switch e.Risk {
		case model.RiskRead:
			dr.Reads++
		case model.RiskWrite:
			dr.Writes++
		case model.RiskExec:
			dr.Execs++
		}
		if isError {
			dr.Errors++
		}
	}

	sum.ByModel = sortedModelRows(modelRows)
	sum.ByTool = sortedToolRows(toolRows)
	sum.ByFile = sortedFileRows(fileRows)
	sum.ByProject = sortedProjectRows(projectRows)

	sort.Strings(dayOrder)
	sum.Timeline = make([]DayRow, 0, len(dayOrder))
	for _, d := range dayOrder {
		sum.Timeline = append(sum.Timeline, *dayRows[d])
	}

	return sum
}

// eventCost returns the hook path's authoritative cost when present,
// otherwise an estimate from CostTable; unknown models cost zero.
func eventCost(e model.Event) float64 {
	if e.CostUSD != nil {
		return *e.CostUSD
	}
	price, ok := CostTable[e.Model]
	if !ok {
		return 0
	}
	var cost float64
	if e.InputTokens != nil {
		cost += float64(*e.InputTokens) / 1000 * price.InputPer1K
	}
	if e.OutputTokens != nil {
		cost += float64(*e.OutputTokens) / 1000 * price.OutputPer1K
	}
	if e.CacheReadTokens != nil {
		cost += float64(*e.CacheReadTokens) / 1000 * price.CacheReadPer1K
	}
	return cost
}

// extractFile best-effort pulls a displayable file path out of a
// write-class tool's arguments ("path" or "to"), skipping encrypted or
// unparsable argument subtrees.
func extractFile(args json.RawMessage) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	var m map[string]interface{}
	if err := json.Unmarshal(args, &m); err != nil {
		return "", false
	}
	for _, key := range []string{"path", "to"} {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func sortedModelRows(m map[string]*ModelRow) []ModelRow {
	out := make([]ModelRow, 0, len(m))
	for _, v := range m {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

func sortedToolRows(m map[string]*ToolRow) []ToolRow {
	out := make([]ToolRow, 0, len(m))
	for _, v := range m {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tool < out[j].Tool })
	return out
}

func sortedFileRows(m map[string]*FileRow) []FileRow {
	out := make([]FileRow, 0, len(m))
	for _, v := range m {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}

func sortedProjectRows(m map[string]*ProjectRow) []ProjectRow {
	out := make([]ProjectRow, 0, len(m))
	for _, v := range m {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
