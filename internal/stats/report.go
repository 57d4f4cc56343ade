package stats

import (
	"context"
	"fmt"

	"github.com/verte-zerg/paperlens/internal/model"
	"github.com/verte-zerg/paperlens/internal/store"
)

// Report contains precomputed data for rendering.
type Report struct {
	Run        model.Run
	Categories []string
	Batch      model.Batch
	Filtered   model.Batch
	Patterns   PatternReport
	Summary    Summary
	Risks      []CategoryRisk
}

// BuildReport filters a batch and aggregates it over the selected categories.
// The confidence filter, summary and risk levels always span every category
// of the run; the selection only narrows what is shown.
func BuildReport(run model.Run, batch model.Batch, cfg model.DashboardConfig) (Report, error) {
	categories, err := selectCategories(run.Categories, cfg.Categories)
	if err != nil {
		return Report{}, err
	}
	agg, err := NewAggregator(categories)
	if err != nil {
		return Report{}, err
	}
	filtered := FilterByConfidence(batch, run.Categories, cfg.MinConfidence)
	report := Report{
		Run:        run,
		Categories: agg.Categories(),
		Batch:      batch,
		Filtered:   filtered,
		Summary:    Summarize(len(batch), filtered, run.Categories, cfg.IssueThreshold),
		Risks:      selectRisks(RiskLevels(filtered, run.Categories), categories),
	}
	if len(filtered) == 0 {
		return report, nil
	}
	patterns, err := agg.Aggregate(filtered)
	if err != nil {
		return Report{}, err
	}
	report.Patterns = patterns
	return report, nil
}

// LoadReport loads a stored run and builds its report. An empty runID selects the latest run.
func LoadReport(ctx context.Context, st *store.Store, runID string, cfg model.DashboardConfig) (Report, error) {
	if runID == "" {
		latest, err := st.LatestRun(ctx)
		if err != nil {
			return Report{}, err
		}
		runID = latest.ID
	}
	run, batch, err := st.LoadBatch(ctx, runID)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(run, batch, cfg)
}

func selectCategories(all, selected []string) ([]string, error) {
	if len(selected) == 0 {
		return append([]string(nil), all...), nil
	}
	known := make(map[string]struct{}, len(all))
	for _, c := range all {
		known[c] = struct{}{}
	}
	out := make([]string, 0, len(selected))
	for _, c := range selected {
		if _, ok := known[c]; !ok {
			return nil, fmt.Errorf("unknown category %q", c)
		}
		out = append(out, c)
	}
	return out, nil
}

func selectRisks(risks []CategoryRisk, categories []string) []CategoryRisk {
	byName := make(map[string]CategoryRisk, len(risks))
	for _, r := range risks {
		byName[r.Category] = r
	}
	out := make([]CategoryRisk, 0, len(categories))
	for _, c := range categories {
		if r, ok := byName[c]; ok {
			out = append(out, r)
		}
	}
	return out
}
