package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/paperlens/internal/config"
	"github.com/verte-zerg/paperlens/internal/model"
)

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("load commented template: %v", err)
	}
	if cfg.Fetch.Count != nil {
		t.Fatalf("expected commented template to set nothing")
	}

	var lines []string
	for _, line := range strings.Split(defaultConfigTemplate(), "\n") {
		if strings.HasPrefix(line, "# ") && strings.Contains(line, " = ") {
			line = strings.TrimPrefix(line, "# ")
		}
		lines = append(lines, line)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = config.LoadConfig(path)
	if err != nil {
		t.Fatalf("load uncommented template: %v", err)
	}
	if cfg.Fetch.Count == nil || *cfg.Fetch.Count != defaultCount {
		t.Fatalf("unexpected count %v", cfg.Fetch.Count)
	}
	if cfg.Fetch.Rate == nil || cfg.Fetch.Rate.Duration != 3*time.Second {
		t.Fatalf("unexpected rate %v", cfg.Fetch.Rate)
	}
	if len(cfg.Assess.Categories) != len(model.DefaultCategories()) {
		t.Fatalf("unexpected categories %v", cfg.Assess.Categories)
	}
	if cfg.Dashboard.CurveWindow == nil || *cfg.Dashboard.CurveWindow != defaultCurveWindow {
		t.Fatalf("unexpected curve window %v", cfg.Dashboard.CurveWindow)
	}
}

func TestResolvePipelinePrefersChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	pf := &pipelineFlags{}
	addPipelineFlags(cmd, pf)
	if err := cmd.Flags().Parse([]string{"--count", "7"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	count, workers := 40, 9
	provider := "GEMINI"
	fileCfg := config.FileConfig{}
	fileCfg.Fetch.Count = &count
	fileCfg.Assess.Workers = &workers
	fileCfg.Assess.Provider = &provider
	fileCfg.Assess.Categories = []string{" A ", "B", ""}

	fetchCfg, assessCfg, err := resolvePipeline(cmd, pf, fileCfg)
	if err != nil {
		t.Fatalf("resolve pipeline: %v", err)
	}
	if fetchCfg.Count != 7 {
		t.Fatalf("expected flag count 7, got %d", fetchCfg.Count)
	}
	if assessCfg.Workers != 9 || assessCfg.Provider != "gemini" {
		t.Fatalf("expected config workers and normalized provider, got %+v", assessCfg)
	}
	if strings.Join(assessCfg.Categories, "|") != "A|B" {
		t.Fatalf("unexpected categories %v", assessCfg.Categories)
	}
}

func TestResolvePipelineDefaultsCategories(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	pf := &pipelineFlags{}
	addPipelineFlags(cmd, pf)
	_, assessCfg, err := resolvePipeline(cmd, pf, config.FileConfig{})
	if err != nil {
		t.Fatalf("resolve pipeline: %v", err)
	}
	if len(assessCfg.Categories) != len(model.DefaultCategories()) {
		t.Fatalf("expected default categories, got %v", assessCfg.Categories)
	}
}

func TestValidatePipeline(t *testing.T) {
	good := model.AssessConfig{Workers: 1, Categories: []string{"A"}}
	cases := []struct {
		name   string
		fetch  model.FetchConfig
		assess model.AssessConfig
	}{
		{"count", model.FetchConfig{Count: 0}, good},
		{"rate", model.FetchConfig{Count: 1, Rate: -time.Second}, good},
		{"retries", model.FetchConfig{Count: 1, Retries: -1}, good},
		{"workers", model.FetchConfig{Count: 1}, model.AssessConfig{Categories: []string{"A"}}},
		{"duplicate", model.FetchConfig{Count: 1}, model.AssessConfig{Workers: 1, Categories: []string{"A", "A"}}},
	}
	for _, tc := range cases {
		if err := validatePipeline(tc.fetch, tc.assess); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
	if err := validatePipeline(model.FetchConfig{Count: 1}, good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDashboard(t *testing.T) {
	bad := []model.DashboardConfig{
		{MinConfidence: -1, CurveWindow: 1},
		{MinConfidence: 101, CurveWindow: 1},
		{IssueThreshold: -1, CurveWindow: 1},
		{CurveWindow: 0},
	}
	for _, cfg := range bad {
		if err := validateDashboard(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
	if err := validateDashboard(model.DashboardConfig{MinConfidence: 50, CurveWindow: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCSVFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "batch.csv")
	cats := []string{"A"}
	batch := model.Batch{{
		Title:     "paper",
		Published: time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC),
		Scores:    map[string]model.Score{"A": {Confidence: 70, Issues: 2}},
	}}
	if err := writeCSVFile(path, batch, cats); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	run, got, err := readCSVFile(path, cats)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if run.ID != "batch.csv" || run.Fetched != 1 {
		t.Fatalf("unexpected run %+v", run)
	}
	if len(got) != 1 || got[0].Scores["A"].Issues != 2 {
		t.Fatalf("unexpected batch %+v", got)
	}
}
