// Package statsui provides the Bubble Tea analysis dashboard.
package statsui

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/paperlens/internal/model"
	"github.com/verte-zerg/paperlens/internal/stats"
)

const (
	tabOverview = iota
	tabCategories
	tabCorrelations
	tabMonthly
	tabPapers
)

const (
	filterMinConfidence = iota
	filterIssueThreshold
	filterCategories
	filterCurveWindow
)

const (
	plotHeight = 10
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	strongStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
)

// Model implements the Bubble Tea dashboard.
type Model struct {
	run   model.Run
	batch model.Batch
	cfg   model.DashboardConfig

	report stats.Report
	errMsg string

	tabs      []string
	activeTab int
	viewports []viewport.Model
	tables    map[int]*tableTab

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

type tableTab struct {
	table  table.Model
	layout tableLayout
}

type tableLayout struct {
	width    int
	height   int
	rowCount int
	colCount int
}

// NewModel constructs a dashboard for a stored or freshly assessed run.
func NewModel(run model.Run, batch model.Batch, cfg model.DashboardConfig) *Model {
	m := &Model{
		run:   run,
		batch: batch,
		cfg:   cfg,
		tabs:  []string{"Overview", "Categories", "Correlations", "Monthly", "Papers"},
	}
	if m.cfg.CurveWindow < 1 {
		m.cfg.CurveWindow = 1
	}
	m.initInputs()
	m.initTables()
	m.initViewports()
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || (!m.filterMode && msg.String() == "q") {
			return m, tea.Quit
		}
		m.focusActiveTable()
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=":
			m.cfg.CurveWindow = nextCurveWindow(m.cfg.CurveWindow)
			m.renderTabContents()
			return m, nil
		case "-":
			m.cfg.CurveWindow = prevCurveWindow(m.cfg.CurveWindow)
			m.renderTabContents()
			return m, nil
		case "/":
			return m.startFilter()
		case "g", "home":
			if t := m.activeTable(); t != nil {
				t.table.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if t := m.activeTable(); t != nil {
				t.table.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if t := m.activeTable(); t != nil {
				var cmd tea.Cmd
				t.table, cmd = t.table.Update(msg)
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

// Config returns the dashboard settings currently applied.
func (m *Model) Config() model.DashboardConfig {
	return m.cfg
}

// Report returns the report currently displayed.
func (m *Model) Report() stats.Report {
	return m.report
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initTables() {
	m.tables = map[int]*tableTab{
		tabCategories: {table: newTable()},
		tabPapers:     {table: newTable()},
	}
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Min confidence (0-100): "),
		newFilterInput("Issue threshold: "),
		newFilterInput("Categories (comma separated, empty = all): "),
		newFilterInput("Curve window: "),
	}
	m.setInputsFromConfig()
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	if len(m.filterInputs) == 0 {
		return
	}
	m.filterInputs[filterMinConfidence].SetValue(strconv.FormatFloat(m.cfg.MinConfidence, 'f', -1, 64))
	m.filterInputs[filterIssueThreshold].SetValue(strconv.Itoa(m.cfg.IssueThreshold))
	m.filterInputs[filterCategories].SetValue(strings.Join(m.cfg.Categories, ", "))
	m.filterInputs[filterCurveWindow].SetValue(strconv.Itoa(m.cfg.CurveWindow))
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	m.applyTables(m.width, vpHeight, true)
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	m.focusActiveTable()
}

func (m *Model) activeTable() *tableTab {
	return m.tables[m.activeTab]
}

func (m *Model) focusActiveTable() {
	for tab, t := range m.tables {
		if tab == m.activeTab {
			t.table.Focus()
		} else {
			t.table.Blur()
		}
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	filters := padLines(m.renderFilterSummary(), m.width)
	return tabs + "\n" + filters
}

func (m *Model) renderFilterSummary() string {
	categories := "all"
	if len(m.cfg.Categories) > 0 {
		categories = strings.Join(m.cfg.Categories, ", ")
	}
	runID := m.run.ID
	if len(runID) > 8 {
		runID = runID[:8]
	}
	summary := fmt.Sprintf("Run %s  min-confidence=%s  issue-threshold=%d  categories=%s  window=%d",
		runID, strconv.FormatFloat(m.cfg.MinConfidence, 'f', -1, 64), m.cfg.IssueThreshold, categories, m.cfg.CurveWindow)
	summary = truncateLine(summary, m.width)
	return headerStyle.Render(summary)
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Window: -/=  Filters: /  Quit: q"
	return headerStyle.Render(help)
}

func (m *Model) renderFilterHelp() string {
	return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel  quit: ctrl+c")
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return m.renderFilterHelp()
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Filters (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	lines = append(lines, headerStyle.Render("Run categories: "+strings.Join(m.run.Categories, ", ")))
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	if t := m.activeTable(); t != nil {
		if len(m.report.Filtered) == 0 {
			return fitLines(emptyMessage(m.report), m.width, height)
		}
		view := tableMutedStyle.Render(t.table.View())
		return fitLines(view, m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func emptyMessage(r stats.Report) string {
	if r.Summary.Total == 0 {
		return "No papers in this run."
	}
	return "No papers match the current filters."
}

func (m *Model) refreshReport() {
	report, err := stats.BuildReport(m.run, m.batch, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to build report.")
		}
		return
	}
	m.errMsg = ""
	m.report = report
	width := m.width
	if width <= 0 {
		width = 80
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.applyTables(width, bodyHeight, true)
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	if m.errMsg != "" {
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to build report.")
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.report, m.cfg.CurveWindow, width))
	m.viewports[tabCorrelations].SetContent(renderCorrelations(m.report))
	m.viewports[tabMonthly].SetContent(renderMonthly(m.report, width))
}

func renderOverview(r stats.Report, window, width int) string {
	if r.Summary.Total == 0 {
		return emptyMessage(r)
	}
	summary := renderSummaryCards(r.Summary, width)
	if len(r.Filtered) == 0 {
		return summary + "\n\n" + emptyMessage(r)
	}
	var buf bytes.Buffer
	if err := stats.RenderTimelineWithSize(&buf, r.Filtered, r.Categories, window, width, plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render timeline: %v", err)
	}
	return strings.TrimRight(summary+"\n\n"+buf.String(), "\n")
}

func renderSummaryCards(s stats.Summary, width int) string {
	cards := []string{
		metricCard("Total Papers", fmt.Sprintf("%d", s.Total)),
		metricCard("Filtered Papers", fmt.Sprintf("%d", s.Filtered)),
		metricCard("Avg Issues/Paper", fmt.Sprintf("%.2f", s.AvgIssues)),
		metricCard("High Risk Papers", fmt.Sprintf("%d", s.HighRisk)),
		metricCard("Fallback Scores", fmt.Sprintf("%d", s.Fallback)),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderCorrelations(r stats.Report) string {
	if len(r.Filtered) == 0 {
		return emptyMessage(r)
	}
	cats := r.Categories
	short := shortNames(cats)
	const cellWidth = 7

	var b strings.Builder
	fmt.Fprintf(&b, "Issue correlation matrix (|r| > %.1f)\n\n", stats.CorrelationThreshold)
	b.WriteString(strings.Repeat(" ", cellWidth))
	for _, c := range cats {
		fmt.Fprintf(&b, "%*s", cellWidth, short[c])
	}
	b.WriteString("\n")
	for _, row := range cats {
		fmt.Fprintf(&b, "%-*s", cellWidth, short[row])
		pattern, _ := r.Patterns.Category(row)
		for _, col := range cats {
			cell := fmt.Sprintf("%*s", cellWidth, "·")
			if col == row {
				cell = strings.Repeat(" ", cellWidth)
			} else if v, ok := pattern.Correlations[col]; ok {
				cell = fmt.Sprintf("%*s", cellWidth, fmt.Sprintf("%+.2f", v))
				if v >= 0.7 || v <= -0.7 {
					cell = strongStyle.Render(cell)
				}
			}
			b.WriteString(cell)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for _, c := range cats {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s = %s", short[c], c)) + "\n")
	}
	b.WriteString("\n")
	if err := stats.RenderCorrelations(&b, r.Patterns); err != nil {
		return fmt.Sprintf("Failed to render correlations: %v", err)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMonthly(r stats.Report, width int) string {
	if len(r.Filtered) == 0 {
		return emptyMessage(r)
	}
	var buf bytes.Buffer
	if err := stats.RenderMonthlyTable(&buf, r.Patterns); err != nil {
		return fmt.Sprintf("Failed to render monthly table: %v", err)
	}
	if err := stats.RenderConfidenceHeatmap(&buf, r.Patterns); err != nil {
		return fmt.Sprintf("Failed to render confidence heatmap: %v", err)
	}
	nameWidth := 0
	for _, c := range r.Categories {
		nameWidth = maxInt(nameWidth, runewidth.StringWidth(c))
	}
	buf.WriteString("Monthly means\n")
	for _, c := range r.Categories {
		fmt.Fprintf(&buf, "%s  %s\n", runewidth.FillRight(c, nameWidth), stats.Sparkline(r.Patterns.Temporal.MonthlyMeans(c)))
	}
	buf.WriteString("\n")
	if err := stats.RenderMonthlyCurvesWithSize(&buf, r.Patterns, width, plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render monthly curves: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func newTable() table.Model {
	t := table.New(table.WithHeight(1))
	t.SetStyles(tableStyles())
	return t
}

func (m *Model) applyTables(width, height int, force bool) {
	if len(m.tables) == 0 {
		return
	}
	catCols, catRows := buildCategoryTableData(m.report)
	applyTable(m.tables[tabCategories], catCols, catRows, width, height, force)
	paperCols, paperRows := buildPaperTableData(m.report, width)
	applyTable(m.tables[tabPapers], paperCols, paperRows, width, height, force)
}

func applyTable(t *tableTab, cols []table.Column, rows []table.Row, width, height int, force bool) {
	viewportHeight := maxInt(1, height-1)
	if !force &&
		t.layout.width == width &&
		t.layout.height == viewportHeight &&
		t.layout.rowCount == len(rows) &&
		t.layout.colCount == len(cols) {
		return
	}
	// Rows must be cleared before columns shrink or the table indexes past them.
	t.table.SetRows(nil)
	t.table.SetColumns(cols)
	t.table.SetRows(rows)
	t.layout.rowCount = len(rows)
	t.layout.colCount = len(cols)
	t.layout.width = 0
	t.setSize(width, height)
}

func (t *tableTab) setSize(width, height int) {
	viewportHeight := maxInt(1, height-1)
	if t.layout.width == width && t.layout.height == viewportHeight {
		return
	}
	t.layout.width = width
	t.layout.height = viewportHeight
	t.table.SetWidth(width)
	t.table.SetHeight(viewportHeight)
	viewportHeight = t.adjustHeight(height)
	if t.layout.height != viewportHeight {
		t.layout.height = viewportHeight
		t.table.SetHeight(viewportHeight)
	}
}

func (t *tableTab) adjustHeight(bodyHeight int) int {
	target := maxInt(1, bodyHeight)
	height := t.table.Height()
	viewHeight := lipgloss.Height(t.table.View())
	if viewHeight == target {
		return height
	}
	height += target - viewHeight
	if height < 1 {
		height = 1
	}
	t.table.SetHeight(height)
	viewHeight = lipgloss.Height(t.table.View())
	if viewHeight == target {
		return height
	}
	height += target - viewHeight
	if height < 1 {
		height = 1
	}
	return height
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func buildCategoryTableData(r stats.Report) ([]table.Column, []table.Row) {
	nameWidth := len("Category")
	for _, c := range r.Categories {
		nameWidth = maxInt(nameWidth, runewidth.StringWidth(c))
	}
	columns := []table.Column{
		{Title: "Category", Width: nameWidth},
		{Title: "Mean Conf", Width: 9},
		{Title: "StdDev", Width: 6},
		{Title: "Median", Width: 6},
		{Title: "Trend", Width: 10},
		{Title: "Low", Width: 4},
		{Title: "Medium", Width: 6},
		{Title: "High", Width: 4},
		{Title: "Issues", Width: 6},
		{Title: "Risk", Width: 13},
	}
	rows := make([]table.Row, 0, len(r.Patterns.Categories))
	risks := make(map[string]stats.CategoryRisk, len(r.Risks))
	for _, risk := range r.Risks {
		risks[risk.Category] = risk
	}
	for _, c := range r.Patterns.Categories {
		risk := risks[c.Category]
		rows = append(rows, table.Row{
			c.Category,
			stats.FormatStat(c.Confidence.Mean, 1),
			stats.FormatStat(c.Confidence.StdDev, 1),
			stats.FormatStat(c.Confidence.Median, 1),
			string(c.Confidence.Trend),
			strconv.Itoa(c.Severity.Low),
			strconv.Itoa(c.Severity.Medium),
			strconv.Itoa(c.Severity.High),
			strconv.Itoa(risk.TotalIssues),
			string(risk.Level),
		})
	}
	return columns, rows
}

func buildPaperTableData(r stats.Report, width int) ([]table.Column, []table.Row) {
	short := shortNames(r.Categories)
	columns := []table.Column{
		{Title: "Published", Width: 10},
		{Title: "Issues", Width: 6},
		{Title: "Conf", Width: 5},
	}
	used := 10 + 6 + 5
	for _, c := range r.Categories {
		w := maxInt(3, runewidth.StringWidth(short[c]))
		columns = append(columns, table.Column{Title: short[c], Width: w})
		used += w
	}
	// Each cell carries one column of right padding.
	titleWidth := maxInt(20, width-used-len(columns)-1)
	columns = append(columns, table.Column{Title: "Title", Width: titleWidth})

	sorted := append(model.Batch(nil), r.Filtered...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Published.After(sorted[j].Published)
	})
	rows := make([]table.Row, 0, len(sorted))
	for _, p := range sorted {
		total := 0
		var conf float64
		cells := make([]string, 0, len(r.Categories))
		for _, c := range r.Categories {
			s := p.Scores[c]
			total += s.Issues
			conf += float64(s.Confidence)
			cells = append(cells, strconv.Itoa(s.Issues))
		}
		if len(r.Categories) > 0 {
			conf /= float64(len(r.Categories))
		}
		row := table.Row{
			p.Published.UTC().Format("2006-01-02"),
			strconv.Itoa(total),
			fmt.Sprintf("%.0f", conf),
		}
		row = append(row, cells...)
		row = append(row, p.Title)
		rows = append(rows, row)
	}
	return columns, rows
}

// shortNames abbreviates categories to their initials, suffixing a number on collisions.
func shortNames(categories []string) map[string]string {
	out := make(map[string]string, len(categories))
	seen := map[string]int{}
	for _, c := range categories {
		var b strings.Builder
		for _, word := range strings.Fields(c) {
			r := []rune(word)
			b.WriteString(strings.ToUpper(string(r[0])))
		}
		name := b.String()
		if name == "" {
			name = "?"
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s%d", name, n)
		}
		out[c] = name
	}
	return out
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.filterIndex = idx
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	minConf := 0.0
	if raw := strings.TrimSpace(m.filterInputs[filterMinConfidence].Value()); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 100 {
			return fmt.Errorf("invalid min confidence (use a number from 0 to 100)")
		}
		minConf = parsed
	}

	threshold := 0
	if raw := strings.TrimSpace(m.filterInputs[filterIssueThreshold].Value()); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return fmt.Errorf("invalid issue threshold (use 0 or positive integer)")
		}
		threshold = parsed
	}

	categories, err := parseCategories(m.filterInputs[filterCategories].Value(), m.run.Categories)
	if err != nil {
		return err
	}

	window := m.cfg.CurveWindow
	if raw := strings.TrimSpace(m.filterInputs[filterCurveWindow].Value()); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid curve window (use integer)")
		}
		if parsed < 1 {
			return fmt.Errorf("invalid curve window (use integer >= 1)")
		}
		window = parsed
	}

	m.cfg = model.DashboardConfig{
		MinConfidence:  minConf,
		IssueThreshold: threshold,
		CurveWindow:    window,
		Categories:     categories,
	}
	return nil
}

// parseCategories resolves a comma separated list against the run's
// categories. Names match case-insensitively; an empty list selects all.
func parseCategories(input string, known []string) ([]string, error) {
	byFold := make(map[string]string, len(known))
	for _, c := range known {
		byFold[strings.ToLower(c)] = c
	}
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, ok := byFold[strings.ToLower(part)]
		if !ok {
			return nil, fmt.Errorf("unknown category %q", part)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func nextCurveWindow(n int) int {
	if n < 5 {
		return 5
	}
	if n%5 == 0 {
		return n + 5
	}
	return ((n / 5) + 1) * 5
}

func prevCurveWindow(n int) int {
	if n <= 5 {
		return 1
	}
	if n%5 == 0 {
		return n - 5
	}
	return (n / 5) * 5
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
