// Package tui provides the Bubble Tea pipeline progress view.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/paperlens/internal/assess"
)

// Phase is a pipeline stage shown by the progress view.
type Phase int

// Pipeline phases in order.
const (
	PhaseFetching Phase = iota
	PhaseAssessing
	PhaseSaving
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseFetching:
		return "Fetching papers"
	case PhaseAssessing:
		return "Assessing papers"
	case PhaseSaving:
		return "Saving run"
	default:
		return "Done"
	}
}

// PhaseMsg moves the view to a new phase. Total is the number of papers to
// assess, known once fetching completes.
type PhaseMsg struct {
	Phase Phase
	Total int
}

// ProgressMsg reports one assessed paper.
type ProgressMsg assess.Progress

// DoneMsg ends the view. Err is set when the pipeline failed.
type DoneMsg struct {
	RunID string
	Err   error
}

// Model implements the Bubble Tea progress view.
type Model struct {
	cancel func()

	width  int
	height int

	phase     Phase
	total     int
	done      int
	fallback  int
	lastTitle string
	startedAt time.Time
	now       func() time.Time

	spinner spinner.Model
	bar     progress.Model

	runID     string
	err       error
	cancelled bool
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	phaseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	paperStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

const maxTitleLines = 3

// NewModel constructs a progress view. cancel is called when the user quits early.
func NewModel(cancel func()) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle
	return &Model{
		cancel:    cancel,
		startedAt: time.Now(),
		now:       time.Now,
		spinner:   sp,
		bar:       progress.New(progress.WithDefaultGradient()),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, min(60, msg.Width-4))
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		default:
			if msg.String() == "q" {
				m.cancelled = true
				if m.cancel != nil {
					m.cancel()
				}
				return m, tea.Quit
			}
			return m, nil
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case PhaseMsg:
		m.phase = msg.Phase
		if msg.Total > 0 {
			m.total = msg.Total
		}
		return m, nil
	case ProgressMsg:
		m.done = msg.Done
		m.total = msg.Total
		m.lastTitle = msg.Row.Title
		if msg.Row.Fallback {
			m.fallback++
		}
		return m, nil
	case DoneMsg:
		m.phase = PhaseDone
		m.runID = msg.RunID
		m.err = msg.Err
		return m, tea.Quit
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	contentWidth := m.width - 4
	if m.width == 0 {
		contentWidth = 76
	}
	if contentWidth < 10 {
		contentWidth = 10
	}

	lines := []string{titleStyle.Render("paperlens"), ""}
	lines = append(lines, m.spinner.View()+" "+phaseStyle.Render(m.phase.String()))
	if m.phase >= PhaseAssessing {
		lines = append(lines, "", m.bar.ViewAs(m.percent()))
	}
	if m.lastTitle != "" {
		lines = append(lines, "", wrapText(m.lastTitle, contentWidth, maxTitleLines, paperStyle))
	}
	if m.err != nil {
		lines = append(lines, "", errorStyle.Render(m.err.Error()))
	}
	lines = append(lines, "", m.renderFooter())
	content := strings.Join(lines, "\n")
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		lipgloss.NewStyle().Width(contentWidth).Render(content))
}

func (m *Model) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

func (m *Model) renderFooter() string {
	segments := []string{}
	if m.total > 0 {
		segments = append(segments, fmt.Sprintf("Assessed %d/%d", m.done, m.total))
	}
	segments = append(segments, fmt.Sprintf("Fallback %d", m.fallback))
	elapsed := m.now().Sub(m.startedAt).Truncate(time.Second)
	segments = append(segments, fmt.Sprintf("Elapsed %s", elapsed))
	segments = append(segments, "q to cancel")
	return footerStyle.Render(strings.Join(segments, " · "))
}

// Cancelled reports whether the user quit before the pipeline finished.
func (m *Model) Cancelled() bool {
	return m.cancelled
}

// Err returns the pipeline error delivered with DoneMsg.
func (m *Model) Err() error {
	return m.err
}

// RunID returns the stored run id delivered with DoneMsg.
func (m *Model) RunID() string {
	return m.runID
}

// FallbackCount returns the number of fallback assessments seen.
func (m *Model) FallbackCount() int {
	return m.fallback
}
