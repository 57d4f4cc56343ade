package stats

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/paperlens/internal/model"
)

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestFilterByConfidence(t *testing.T) {
	batch := model.Batch{
		{Title: "keep", Scores: map[string]model.Score{"A": {Confidence: 70}, "B": {Confidence: 50}}},
		{Title: "drop", Scores: map[string]model.Score{"A": {Confidence: 70}, "B": {Confidence: 49}}},
	}
	got := FilterByConfidence(batch, []string{"A", "B"}, 60)
	if len(got) != 1 || got[0].Title != "keep" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
	if len(FilterByConfidence(batch, nil, 100)) != 2 {
		t.Fatalf("expected no filtering without categories")
	}
}

func TestIssueTimelineIsChronological(t *testing.T) {
	batch := model.Batch{
		{Published: day(2024, time.March, 1), Scores: map[string]model.Score{"A": {Issues: 3}, "B": {Issues: 1}}},
		{Published: day(2024, time.January, 1), Scores: map[string]model.Score{"A": {Issues: 0}, "B": {Issues: 1}}},
	}
	got := IssueTimeline(batch, []string{"A", "B"})
	if len(got) != 2 || got[0] != 1 || got[1] != 4 {
		t.Fatalf("unexpected timeline: %v", got)
	}
	if batch[0].Published.Month() != time.March {
		t.Fatalf("timeline must not reorder the input batch")
	}
}

func TestFormatStat(t *testing.T) {
	if got := FormatStat(math.NaN(), 2); got != "n/a" {
		t.Fatalf("expected n/a, got %q", got)
	}
	if got := FormatStat(1.234, 1); got != "1.2" {
		t.Fatalf("expected 1.2, got %q", got)
	}
}

func TestRenderReport(t *testing.T) {
	run, batch := sampleRunBatch()
	report, err := BuildReport(run, batch, model.DashboardConfig{IssueThreshold: 3})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	var buf bytes.Buffer
	if err := RenderReport(&buf, report, 7); err != nil {
		t.Fatalf("render report: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Total papers: 3",
		"Fallback assessments: 1",
		"Categories",
		"Issue Correlations",
		"Monthly Issues",
		"Monthly Confidence (mean)",
		"2024-01",
		"Issue Timeline",
		"7-paper moving avg",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in report:\n%s", want, out)
		}
	}
}

func TestRenderReportNoMatches(t *testing.T) {
	run, batch := sampleRunBatch()
	report, err := BuildReport(run, batch, model.DashboardConfig{MinConfidence: 101})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	var buf bytes.Buffer
	if err := RenderReport(&buf, report, 7); err != nil {
		t.Fatalf("render report: %v", err)
	}
	if !strings.Contains(buf.String(), "No papers match the current filters.") {
		t.Fatalf("expected empty-filter message, got:\n%s", buf.String())
	}
}

func TestRenderConfidenceHeatmap(t *testing.T) {
	run, batch := sampleRunBatch()
	report, err := BuildReport(run, batch, model.DashboardConfig{})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	var buf bytes.Buffer
	if err := RenderConfidenceHeatmap(&buf, report.Patterns); err != nil {
		t.Fatalf("render heatmap: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected title, header, rule and 2 rows, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "2024-01") || !strings.Contains(lines[1], "2024-03") {
		t.Fatalf("expected month columns in header %q", lines[1])
	}
	if !strings.Contains(lines[3], "90.0 █") || !strings.Contains(lines[3], "40.0 ▒") {
		t.Fatalf("unexpected row for A: %q", lines[3])
	}
}

func TestHeatShade(t *testing.T) {
	cases := map[float64]rune{0: ' ', 19.9: ' ', 20: '░', 55: '▒', 79: '▓', 100: '█', math.NaN(): ' '}
	for v, want := range cases {
		if got := HeatShade(v); got != want {
			t.Fatalf("HeatShade(%v) = %q, want %q", v, got, want)
		}
	}
}
