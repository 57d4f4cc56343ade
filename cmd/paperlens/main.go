// Package main provides the CLI entrypoint for paperlens.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/paperlens/internal/arxiv"
	"github.com/verte-zerg/paperlens/internal/assess"
	"github.com/verte-zerg/paperlens/internal/config"
	"github.com/verte-zerg/paperlens/internal/export"
	"github.com/verte-zerg/paperlens/internal/logging"
	"github.com/verte-zerg/paperlens/internal/model"
	"github.com/verte-zerg/paperlens/internal/stats"
	"github.com/verte-zerg/paperlens/internal/statsui"
	"github.com/verte-zerg/paperlens/internal/store"
	"github.com/verte-zerg/paperlens/internal/tui"
)

const (
	defaultCount          = 20
	defaultMinConfidence  = 50.0
	defaultIssueThreshold = 3
	defaultCurveWindow    = 7
)

var verbose bool

// pipelineFlags holds the fetch and assess settings shared by the root and analyze commands.
type pipelineFlags struct {
	count      int
	topic      string
	rate       time.Duration
	retries    int
	provider   string
	model      string
	apiKeyEnv  string
	workers    int
	categories []string
}

type dashboardFlags struct {
	minConfidence  float64
	issueThreshold int
	curveWindow    int
	categories     []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	pf := &pipelineFlags{}
	df := &dashboardFlags{}
	rootCmd := &cobra.Command{
		Use:           "paperlens",
		Short:         "Assess arXiv papers and explore issue patterns",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipelineCmd(cmd, pf, df)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	addPipelineFlags(rootCmd, pf)
	addDashboardFlags(rootCmd, df)

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newDashboardCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addPipelineFlags(cmd *cobra.Command, pf *pipelineFlags) {
	cmd.Flags().IntVar(&pf.count, "count", defaultCount, "number of papers to assess")
	cmd.Flags().StringVar(&pf.topic, "topic", "", "topic to search for (default: broad cs/physics/math sample)")
	cmd.Flags().DurationVar(&pf.rate, "rate", arxiv.DefaultRate, "minimum spacing between arXiv requests")
	cmd.Flags().IntVar(&pf.retries, "retries", arxiv.DefaultRetries, "retries per failed request")
	cmd.Flags().StringVar(&pf.provider, "provider", assess.DefaultProvider, "assessment provider (mock or gemini)")
	cmd.Flags().StringVar(&pf.model, "model", assess.DefaultModel, "model name for the gemini provider")
	cmd.Flags().StringVar(&pf.apiKeyEnv, "api-key-env", assess.DefaultAPIKeyEnv, "environment variable holding the API key")
	cmd.Flags().IntVar(&pf.workers, "workers", assess.DefaultWorkers, "concurrent assessments")
	cmd.Flags().StringSliceVar(&pf.categories, "categories", nil, "assessment categories (default: built-in set)")
}

func addDashboardFlags(cmd *cobra.Command, df *dashboardFlags) {
	cmd.Flags().Float64Var(&df.minConfidence, "min-confidence", defaultMinConfidence, "minimum mean confidence per paper (0-100)")
	cmd.Flags().IntVar(&df.issueThreshold, "issue-threshold", defaultIssueThreshold, "total issues at which a paper counts as high risk")
	cmd.Flags().IntVar(&df.curveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().StringSliceVar(&df.categories, "show", nil, "categories to aggregate (default: all in the run)")
}

func loadFileConfig() (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	return fileCfg, nil
}

func resolvePipeline(cmd *cobra.Command, pf *pipelineFlags, fileCfg config.FileConfig) (model.FetchConfig, model.AssessConfig, error) {
	applyIntConfig(cmd, "count", &pf.count, fileCfg.Fetch.Count)
	applyStringConfig(cmd, "topic", &pf.topic, fileCfg.Fetch.Topic)
	applyDurationConfig(cmd, "rate", &pf.rate, fileCfg.Fetch.Rate)
	applyIntConfig(cmd, "retries", &pf.retries, fileCfg.Fetch.Retries)
	applyStringConfig(cmd, "provider", &pf.provider, fileCfg.Assess.Provider)
	applyStringConfig(cmd, "model", &pf.model, fileCfg.Assess.Model)
	applyStringConfig(cmd, "api-key-env", &pf.apiKeyEnv, fileCfg.Assess.APIKeyEnv)
	applyIntConfig(cmd, "workers", &pf.workers, fileCfg.Assess.Workers)
	applyStringSliceConfig(cmd, "categories", &pf.categories, fileCfg.Assess.Categories)

	provider, err := assess.NormalizeProvider(pf.provider)
	if err != nil {
		return model.FetchConfig{}, model.AssessConfig{}, err
	}
	fetchCfg := model.FetchConfig{
		Count:   pf.count,
		Topic:   strings.TrimSpace(pf.topic),
		Rate:    pf.rate,
		Retries: pf.retries,
	}
	assessCfg := model.AssessConfig{
		Provider:   provider,
		Model:      pf.model,
		APIKeyEnv:  pf.apiKeyEnv,
		Workers:    pf.workers,
		Categories: categorySet(pf.categories),
	}
	if err := validatePipeline(fetchCfg, assessCfg); err != nil {
		return model.FetchConfig{}, model.AssessConfig{}, err
	}
	return fetchCfg, assessCfg, nil
}

func resolveDashboard(cmd *cobra.Command, df *dashboardFlags, fileCfg config.FileConfig) (model.DashboardConfig, error) {
	applyFloatConfig(cmd, "min-confidence", &df.minConfidence, fileCfg.Dashboard.MinConfidence)
	applyIntConfig(cmd, "issue-threshold", &df.issueThreshold, fileCfg.Dashboard.IssueThreshold)
	applyIntConfig(cmd, "curve-window", &df.curveWindow, fileCfg.Dashboard.CurveWindow)
	cfg := model.DashboardConfig{
		MinConfidence:  df.minConfidence,
		IssueThreshold: df.issueThreshold,
		CurveWindow:    df.curveWindow,
		Categories:     trimAll(df.categories),
	}
	if err := validateDashboard(cfg); err != nil {
		return model.DashboardConfig{}, err
	}
	return cfg, nil
}

// categorySet trims names and falls back to the built-in set when none remain.
func categorySet(names []string) []string {
	out := trimAll(names)
	if len(out) == 0 {
		return model.DefaultCategories()
	}
	return out
}

func trimAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func runPipelineCmd(cmd *cobra.Command, pf *pipelineFlags, df *dashboardFlags) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	fetchCfg, assessCfg, err := resolvePipeline(cmd, pf, fileCfg)
	if err != nil {
		return err
	}
	dashCfg, err := resolveDashboard(cmd, df, fileCfg)
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so logs go to a file.
	logger, syncLog, err := logging.New(logging.Options{Verbose: verbose, File: config.DefaultLogPath()})
	if err != nil {
		return err
	}
	defer syncLog()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	progressView := tui.NewModel(cancel)
	program := tea.NewProgram(progressView, tea.WithAltScreen())

	p := pipeline{fetch: fetchCfg, assess: assessCfg, store: st, logger: logger}
	var (
		run    model.Run
		batch  model.Batch
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		run, batch, runErr = p.run(ctx, program.Send)
		program.Send(tui.DoneMsg{RunID: run.ID, Err: runErr})
	}()
	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("failed to run progress TUI: %w", err)
	}
	<-done

	if progressView.Cancelled() {
		return errors.New("cancelled")
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("run stored", zap.String("run", run.ID), zap.Int("fallback", progressView.FallbackCount()))
	return runDashboard(run, batch, dashCfg)
}

func runDashboard(run model.Run, batch model.Batch, cfg model.DashboardConfig) error {
	dashboard := statsui.NewModel(run, batch, cfg)
	program := tea.NewProgram(dashboard, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	return nil
}

func newAnalyzeCmd() *cobra.Command {
	pf := &pipelineFlags{}
	df := &dashboardFlags{}
	var csvPath string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Fetch, assess and report without the TUI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyzeCmd(cmd, pf, df, csvPath)
		},
	}
	addPipelineFlags(cmd, pf)
	addDashboardFlags(cmd, df)
	cmd.Flags().StringVar(&csvPath, "csv", "", "also write the assessed batch to this CSV file")
	return cmd
}

func runAnalyzeCmd(cmd *cobra.Command, pf *pipelineFlags, df *dashboardFlags, csvPath string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	fetchCfg, assessCfg, err := resolvePipeline(cmd, pf, fileCfg)
	if err != nil {
		return err
	}
	dashCfg, err := resolveDashboard(cmd, df, fileCfg)
	if err != nil {
		return err
	}

	logger, syncLog, err := logging.New(logging.Options{Verbose: verbose})
	if err != nil {
		return err
	}
	defer syncLog()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	p := pipeline{fetch: fetchCfg, assess: assessCfg, store: st, logger: logger}
	run, batch, err := p.run(cmd.Context(), func(msg tea.Msg) {
		if pm, ok := msg.(tui.ProgressMsg); ok {
			logger.Debug("assessed paper",
				zap.Int("done", pm.Done),
				zap.Int("total", pm.Total),
				zap.Bool("fallback", pm.Row.Fallback))
		}
	})
	if err != nil {
		return err
	}
	if csvPath != "" {
		if err := writeCSVFile(csvPath, batch, run.Categories); err != nil {
			return err
		}
		logger.Info("wrote csv", zap.String("path", csvPath))
	}

	report, err := stats.BuildReport(run, batch, dashCfg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Run %s\n\n", run.ID); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return stats.RenderReport(cmd.OutOrStdout(), report, dashCfg.CurveWindow)
}

func newDashboardCmd() *cobra.Command {
	df := &dashboardFlags{}
	cmd := &cobra.Command{
		Use:   "dashboard [run-id]",
		Short: "Open a stored run in the dashboard (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runDashboardCmd(cmd, df, runID)
		},
	}
	addDashboardFlags(cmd, df)
	return cmd
}

func runDashboardCmd(cmd *cobra.Command, df *dashboardFlags, runID string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	dashCfg, err := resolveDashboard(cmd, df, fileCfg)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	run, batch, err := loadStoredRun(cmd.Context(), st, runID)
	if err != nil {
		return err
	}
	return runDashboard(run, batch, dashCfg)
}

func newReportCmd() *cobra.Command {
	df := &dashboardFlags{}
	var csvPath, runID string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the text report for a CSV file or a stored run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReportCmd(cmd, df, csvPath, runID)
		},
	}
	addDashboardFlags(cmd, df)
	cmd.Flags().StringVar(&csvPath, "csv", "", "read the batch from a CSV file")
	cmd.Flags().StringVar(&runID, "run", "", "stored run id or unique prefix (default: latest)")
	cmd.MarkFlagsMutuallyExclusive("csv", "run")
	return cmd
}

func runReportCmd(cmd *cobra.Command, df *dashboardFlags, csvPath, runID string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	dashCfg, err := resolveDashboard(cmd, df, fileCfg)
	if err != nil {
		return err
	}

	var (
		run   model.Run
		batch model.Batch
	)
	if csvPath != "" {
		run, batch, err = readCSVFile(csvPath, categorySet(fileCfg.Assess.Categories))
		if err != nil {
			return err
		}
	} else {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(st)
		run, batch, err = loadStoredRun(cmd.Context(), st, runID)
		if err != nil {
			return err
		}
	}

	report, err := stats.BuildReport(run, batch, dashCfg)
	if err != nil {
		return err
	}
	return stats.RenderReport(cmd.OutOrStdout(), report, dashCfg.CurveWindow)
}

func newExportCmd() *cobra.Command {
	var runID, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a stored run as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)
			run, batch, err := loadStoredRun(cmd.Context(), st, runID)
			if err != nil {
				return err
			}
			if outPath == "" || outPath == "-" {
				return export.WriteCSV(cmd.OutOrStdout(), batch, run.Categories)
			}
			return writeCSVFile(outPath, batch, run.Categories)
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "stored run id or unique prefix (default: latest)")
	cmd.Flags().StringVar(&outPath, "out", "", "output file (default: stdout)")
	return cmd
}

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)
			runs, err := st.ListRuns(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			return stats.RenderRuns(cmd.OutOrStdout(), runs)
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func openStore() (*store.Store, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func loadStoredRun(ctx context.Context, st *store.Store, runID string) (model.Run, model.Batch, error) {
	if runID == "" {
		latest, err := st.LatestRun(ctx)
		if errors.Is(err, store.ErrNoRuns) {
			return model.Run{}, nil, fmt.Errorf("no runs stored yet; run: paperlens analyze")
		}
		if err != nil {
			return model.Run{}, nil, fmt.Errorf("failed to load latest run: %w", err)
		}
		runID = latest.ID
	}
	run, batch, err := st.LoadBatch(ctx, runID)
	if err != nil {
		return model.Run{}, nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return run, batch, nil
}

func readCSVFile(path string, categories []string) (model.Run, model.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Run{}, nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close for a read-only file.
			_ = cerr
		}
	}()
	batch, err := export.ReadCSV(f, categories)
	if err != nil {
		return model.Run{}, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	run := model.Run{
		ID:         filepath.Base(path),
		Provider:   "csv",
		Requested:  len(batch),
		Fetched:    len(batch),
		Categories: categories,
	}
	return run, batch, nil
}

func writeCSVFile(path string, batch model.Batch, categories []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "paperlens-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp csv: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if err := export.WriteCSV(tmpFile, batch, categories); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close csv: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *config.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value.Duration
}

func applyStringSliceConfig(cmd *cobra.Command, name string, target *[]string, value []string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]string(nil), value...)
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# paperlens configuration
# Uncomment a value to enable it. CLI flags override config values.

[fetch]
# count = %d              # Papers per run
# topic = ""              # Search topic (empty: broad cs/physics/math sample)
# rate = %q             # Minimum spacing between arXiv requests
# retries = %d            # Retries per failed request

[assess]
# provider = %q        # mock or gemini
# model = %q
# api-key-env = %q
# workers = %d            # Concurrent assessments
# categories = [%s]

[dashboard]
# min-confidence = %.1f   # Minimum mean confidence per paper (0-100)
# issue-threshold = %d    # Total issues at which a paper counts as high risk
# curve-window = %d       # Moving average window
`,
		defaultCount,
		arxiv.DefaultRate.String(),
		arxiv.DefaultRetries,
		assess.DefaultProvider,
		assess.DefaultModel,
		assess.DefaultAPIKeyEnv,
		assess.DefaultWorkers,
		quoteList(model.DefaultCategories()),
		defaultMinConfidence,
		defaultIssueThreshold,
		defaultCurveWindow,
	)
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return strings.Join(quoted, ", ")
}

func validatePipeline(fetchCfg model.FetchConfig, assessCfg model.AssessConfig) error {
	if fetchCfg.Count <= 0 {
		return fmt.Errorf("--count must be > 0")
	}
	if fetchCfg.Rate < 0 {
		return fmt.Errorf("--rate must be >= 0")
	}
	if fetchCfg.Retries < 0 {
		return fmt.Errorf("--retries must be >= 0")
	}
	if assessCfg.Workers <= 0 {
		return fmt.Errorf("--workers must be > 0")
	}
	seen := make(map[string]bool, len(assessCfg.Categories))
	for _, c := range assessCfg.Categories {
		if seen[c] {
			return fmt.Errorf("--categories has duplicate %q", c)
		}
		seen[c] = true
	}
	return nil
}

func validateDashboard(cfg model.DashboardConfig) error {
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 100 {
		return fmt.Errorf("--min-confidence must be between 0 and 100")
	}
	if cfg.IssueThreshold < 0 {
		return fmt.Errorf("--issue-threshold must be >= 0")
	}
	if cfg.CurveWindow < 1 {
		return fmt.Errorf("--curve-window must be >= 1")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
