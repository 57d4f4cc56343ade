package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/paperlens/internal/model"
	"github.com/verte-zerg/paperlens/internal/store"
)

func sampleRunBatch() (model.Run, model.Batch) {
	run := model.Run{Provider: "mock", Categories: []string{"A", "B"}}
	batch := model.Batch{
		{Title: "p1", Published: day(2024, time.January, 5), Scores: map[string]model.Score{"A": {Confidence: 90, Issues: 0}, "B": {Confidence: 80, Issues: 1}}},
		{Title: "p2", Published: day(2024, time.February, 5), Scores: map[string]model.Score{"A": {Confidence: 40, Issues: 3}, "B": {Confidence: 50, Issues: 3}}},
		{Title: "p3", Published: day(2024, time.March, 5), Fallback: true, Scores: map[string]model.Score{"A": {Confidence: 75, Issues: 2}, "B": {Confidence: 85, Issues: 0}}},
	}
	return run, batch
}

func TestBuildReportFiltersByConfidence(t *testing.T) {
	run, batch := sampleRunBatch()
	report, err := BuildReport(run, batch, model.DashboardConfig{MinConfidence: 60, IssueThreshold: 2})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Filtered) != 2 {
		t.Fatalf("expected 2 filtered rows, got %d", len(report.Filtered))
	}
	if report.Summary.Total != 3 || report.Summary.Filtered != 2 {
		t.Fatalf("unexpected summary counts: %+v", report.Summary)
	}
	if report.Summary.HighRisk != 1 {
		t.Fatalf("expected 1 high-risk paper, got %d", report.Summary.HighRisk)
	}
	if report.Summary.Fallback != 1 {
		t.Fatalf("expected 1 fallback row, got %d", report.Summary.Fallback)
	}
	if report.Summary.AvgIssues != 0.75 {
		t.Fatalf("expected avg issues 0.75, got %v", report.Summary.AvgIssues)
	}
	if report.Patterns.Rows != 2 {
		t.Fatalf("expected patterns over 2 rows, got %d", report.Patterns.Rows)
	}
}

func TestBuildReportCategorySubset(t *testing.T) {
	run, batch := sampleRunBatch()
	report, err := BuildReport(run, batch, model.DashboardConfig{Categories: []string{"B"}})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Patterns.Categories) != 1 || report.Patterns.Categories[0].Category != "B" {
		t.Fatalf("expected only category B, got %+v", report.Patterns.Categories)
	}
	if _, err := BuildReport(run, batch, model.DashboardConfig{Categories: []string{"Z"}}); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}

func TestBuildReportSubsetKeepsRunWideMetrics(t *testing.T) {
	run, batch := sampleRunBatch()
	report, err := BuildReport(run, batch, model.DashboardConfig{MinConfidence: 60, IssueThreshold: 2, Categories: []string{"A"}})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.Summary.AvgIssues != 0.75 {
		t.Fatalf("expected avg issues over every category 0.75, got %v", report.Summary.AvgIssues)
	}
	if report.Summary.HighRisk != 1 {
		t.Fatalf("expected 1 high-risk paper, got %d", report.Summary.HighRisk)
	}
	if len(report.Risks) != 1 || report.Risks[0].Category != "A" {
		t.Fatalf("expected risks for A only, got %+v", report.Risks)
	}
	if report.Risks[0].Level != RiskModerate {
		t.Fatalf("expected A ranked against every category as %s, got %s", RiskModerate, report.Risks[0].Level)
	}
}

func TestBuildReportEmptyAfterFilter(t *testing.T) {
	run, batch := sampleRunBatch()
	report, err := BuildReport(run, batch, model.DashboardConfig{MinConfidence: 100})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Filtered) != 0 || report.Patterns.Rows != 0 {
		t.Fatalf("expected empty report, got %d rows", len(report.Filtered))
	}
}

func TestLoadReportUsesLatestRun(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "paperlens.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	ctx := context.Background()

	run, batch := sampleRunBatch()
	older := run
	older.StartedAt = time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	created, err := st.CreateRun(ctx, older)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := st.SaveBatch(ctx, created.ID, batch[:1]); err != nil {
		t.Fatalf("save batch: %v", err)
	}
	newer := run
	newer.StartedAt = older.StartedAt.Add(time.Hour)
	latest, err := st.CreateRun(ctx, newer)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := st.SaveBatch(ctx, latest.ID, batch); err != nil {
		t.Fatalf("save batch: %v", err)
	}

	report, err := LoadReport(ctx, st, "", model.DashboardConfig{})
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if report.Run.ID != latest.ID {
		t.Fatalf("expected latest run %s, got %s", latest.ID, report.Run.ID)
	}
	if report.Patterns.Rows != len(batch) {
		t.Fatalf("expected %d rows, got %d", len(batch), report.Patterns.Rows)
	}

	report, err = LoadReport(ctx, st, created.ID, model.DashboardConfig{})
	if err != nil {
		t.Fatalf("load report by id: %v", err)
	}
	if report.Patterns.Rows != 1 {
		t.Fatalf("expected 1 row, got %d", report.Patterns.Rows)
	}
}

func TestRiskLevels(t *testing.T) {
	batch := model.Batch{
		{Scores: map[string]model.Score{"A": {Confidence: 50, Issues: 3}, "B": {Confidence: 90, Issues: 0}, "C": {Confidence: 60, Issues: 0}}},
		{Scores: map[string]model.Score{"A": {Confidence: 50, Issues: 3}, "B": {Confidence: 90, Issues: 1}, "C": {Confidence: 60, Issues: 0}}},
	}
	risks := RiskLevels(batch, []string{"A", "B", "C"})
	want := []RiskLevel{RiskHigh, RiskLow, RiskModerate}
	for i, r := range risks {
		if r.Level != want[i] {
			t.Fatalf("%s: expected %s, got %s", r.Category, want[i], r.Level)
		}
	}
	if risks[0].TotalIssues != 6 {
		t.Fatalf("expected 6 total issues for A, got %d", risks[0].TotalIssues)
	}
}
