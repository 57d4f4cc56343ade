package statsui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/paperlens/internal/model"
)

func sampleRun() (model.Run, model.Batch) {
	run := model.Run{ID: "0123456789abcdef", Provider: "mock", Categories: []string{"Methodology Issues", "Statistical Errors"}}
	day := func(m time.Month) time.Time { return time.Date(2024, m, 5, 0, 0, 0, 0, time.UTC) }
	batch := model.Batch{
		{Title: "older paper", Published: day(time.January), Scores: map[string]model.Score{
			"Methodology Issues": {Confidence: 90, Issues: 0},
			"Statistical Errors": {Confidence: 80, Issues: 1},
		}},
		{Title: "low confidence paper", Published: day(time.February), Scores: map[string]model.Score{
			"Methodology Issues": {Confidence: 40, Issues: 3},
			"Statistical Errors": {Confidence: 50, Issues: 3},
		}},
		{Title: "newest paper", Published: day(time.March), Fallback: true, Scores: map[string]model.Score{
			"Methodology Issues": {Confidence: 75, Issues: 2},
			"Statistical Errors": {Confidence: 85, Issues: 0},
		}},
	}
	return run, batch
}

func newSizedModel(t *testing.T, cfg model.DashboardConfig) *Model {
	t.Helper()
	run, batch := sampleRun()
	m := NewModel(run, batch, cfg)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func TestViewShowsOverview(t *testing.T) {
	m := newSizedModel(t, model.DashboardConfig{IssueThreshold: 2, CurveWindow: 3})
	view := m.View()
	for _, want := range []string{"Overview", "Total Papers", "Fallback Scores", "Run 01234567"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q", want)
		}
	}
	if got := len(strings.Split(view, "\n")); got != 40 {
		t.Fatalf("expected 40 lines, got %d", got)
	}
}

func TestViewEmptyBeforeSize(t *testing.T) {
	run, batch := sampleRun()
	m := NewModel(run, batch, model.DashboardConfig{})
	if m.View() != "" {
		t.Fatalf("expected empty view before the first window size")
	}
	if m.Config().CurveWindow != 1 {
		t.Fatalf("expected curve window clamped to 1, got %d", m.Config().CurveWindow)
	}
}

func TestMoveTabWraps(t *testing.T) {
	m := newSizedModel(t, model.DashboardConfig{})
	m.moveTab(-1)
	if m.activeTab != tabPapers {
		t.Fatalf("expected wrap to papers tab, got %d", m.activeTab)
	}
	m.moveTab(1)
	if m.activeTab != tabOverview {
		t.Fatalf("expected wrap to overview tab, got %d", m.activeTab)
	}
}

func TestPapersTabNewestFirst(t *testing.T) {
	m := newSizedModel(t, model.DashboardConfig{})
	m.activeTab = tabPapers
	rows := m.tables[tabPapers].table.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "2024-03-05" || rows[2][0] != "2024-01-05" {
		t.Fatalf("expected newest first, got %v then %v", rows[0][0], rows[2][0])
	}
	if got := rows[0][len(rows[0])-1]; got != "newest paper" {
		t.Fatalf("expected title in last column, got %q", got)
	}
	if rows[1][1] != "6" {
		t.Fatalf("expected total issues 6, got %q", rows[1][1])
	}
}

func TestCategoriesTabRows(t *testing.T) {
	m := newSizedModel(t, model.DashboardConfig{})
	rows := m.tables[tabCategories].table.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Methodology Issues" {
		t.Fatalf("unexpected first category %q", rows[0][0])
	}
}

func TestApplyFilter(t *testing.T) {
	m := newSizedModel(t, model.DashboardConfig{CurveWindow: 3})
	m.startFilter()
	m.filterInputs[filterMinConfidence].SetValue("60")
	m.filterInputs[filterIssueThreshold].SetValue("2")
	m.filterInputs[filterCategories].SetValue("methodology issues, ")
	m.filterInputs[filterCurveWindow].SetValue("5")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.filterMode {
		t.Fatalf("expected filter form to close")
	}
	cfg := m.Config()
	if cfg.MinConfidence != 60 || cfg.IssueThreshold != 2 || cfg.CurveWindow != 5 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.Categories) != 1 || cfg.Categories[0] != "Methodology Issues" {
		t.Fatalf("expected canonical category name, got %v", cfg.Categories)
	}
	if got := m.Report().Summary.Filtered; got != 2 {
		t.Fatalf("expected 2 filtered papers, got %d", got)
	}
}

func TestApplyFilterRejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		field int
		value string
		want  string
	}{
		{"confidence", filterMinConfidence, "120", "min confidence"},
		{"threshold", filterIssueThreshold, "-1", "issue threshold"},
		{"category", filterCategories, "Nope", "unknown category"},
		{"window", filterCurveWindow, "0", "curve window"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newSizedModel(t, model.DashboardConfig{CurveWindow: 3})
			m.startFilter()
			m.filterInputs[tc.field].SetValue(tc.value)
			m.Update(tea.KeyMsg{Type: tea.KeyEnter})
			if !m.filterMode {
				t.Fatalf("expected filter form to stay open")
			}
			if !strings.Contains(m.filterError, tc.want) {
				t.Fatalf("expected error about %q, got %q", tc.want, m.filterError)
			}
		})
	}
}

func TestEscCancelsFilter(t *testing.T) {
	m := newSizedModel(t, model.DashboardConfig{MinConfidence: 10, CurveWindow: 3})
	m.startFilter()
	m.filterInputs[filterMinConfidence].SetValue("90")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.filterMode || m.Config().MinConfidence != 10 {
		t.Fatalf("expected esc to discard edits, got %+v", m.Config())
	}
}

func TestCurveWindowKeys(t *testing.T) {
	m := newSizedModel(t, model.DashboardConfig{CurveWindow: 3})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("=")})
	if m.Config().CurveWindow != 5 {
		t.Fatalf("expected window 5, got %d", m.Config().CurveWindow)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")})
	if m.Config().CurveWindow != 1 {
		t.Fatalf("expected window 1, got %d", m.Config().CurveWindow)
	}
}

func TestCurveWindowSteps(t *testing.T) {
	cases := []struct{ in, next, prev int }{
		{1, 5, 1},
		{5, 10, 1},
		{7, 10, 5},
		{10, 15, 5},
	}
	for _, tc := range cases {
		if got := nextCurveWindow(tc.in); got != tc.next {
			t.Fatalf("next(%d) = %d, want %d", tc.in, got, tc.next)
		}
		if got := prevCurveWindow(tc.in); got != tc.prev {
			t.Fatalf("prev(%d) = %d, want %d", tc.in, got, tc.prev)
		}
	}
}

func TestShortNames(t *testing.T) {
	got := shortNames([]string{"Methodology Issues", "Missing Items", "Statistical Errors"})
	want := map[string]string{"Methodology Issues": "MI", "Missing Items": "MI2", "Statistical Errors": "SE"}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("shortNames[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestCorrelationsTabListsLegend(t *testing.T) {
	m := newSizedModel(t, model.DashboardConfig{})
	content := renderCorrelations(m.Report())
	if !strings.Contains(content, "MI = Methodology Issues") {
		t.Fatalf("expected legend in correlations view:\n%s", content)
	}
}

func TestQuitKey(t *testing.T) {
	m := newSizedModel(t, model.DashboardConfig{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestMonthlyTabShowsConfidenceHeatmap(t *testing.T) {
	m := newSizedModel(t, model.DashboardConfig{CurveWindow: 3})
	content := renderMonthly(m.Report(), 120)
	for _, want := range []string{"Monthly Issues", "Monthly Confidence (mean)", "90.0 █"} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in monthly view:\n%s", want, content)
		}
	}
}
