package stats

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// column describes one text table column. A positive max truncates wider cells.
type column struct {
	title string
	right bool
	max   int
}

// textTable lays out rows under a header and a rule line.
type textTable struct {
	columns []column
	rows    [][]string
}

func newTextTable(columns ...column) *textTable {
	return &textTable{columns: columns}
}

func (t *textTable) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *textTable) widths() []int {
	widths := make([]int, len(t.columns))
	for i, c := range t.columns {
		widths[i] = displayWidth(c.title)
	}
	for _, row := range t.rows {
		for i := range t.columns {
			if w := displayWidth(t.cell(row, i)); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

// cell returns the i-th cell of row, truncated to the column max.
func (t *textTable) cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	value := row[i]
	if limit := t.columns[i].max; limit > 0 && displayWidth(value) > limit {
		value = runewidth.Truncate(value, limit, "…")
	}
	return value
}

func (t *textTable) lines() []string {
	if len(t.columns) == 0 {
		return nil
	}
	widths := t.widths()
	header := make([]string, len(t.columns))
	rule := make([]string, len(t.columns))
	for i, c := range t.columns {
		header[i] = padCell(c.title, widths[i], c.right)
		rule[i] = strings.Repeat("─", widths[i])
	}
	lines := make([]string, 0, len(t.rows)+2)
	lines = append(lines, strings.Join(header, " "), strings.Join(rule, " "))
	for _, row := range t.rows {
		cells := make([]string, len(t.columns))
		for i, c := range t.columns {
			cells[i] = padCell(t.cell(row, i), widths[i], c.right)
		}
		lines = append(lines, strings.TrimRight(strings.Join(cells, " "), " "))
	}
	return lines
}

func (t *textTable) write(w io.Writer) error {
	for _, line := range t.lines() {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func padCell(value string, width int, rightAlign bool) string {
	valueWidth := displayWidth(value)
	if valueWidth >= width {
		return value
	}
	padding := width - valueWidth
	if rightAlign {
		return strings.Repeat(" ", padding) + value
	}
	return value + strings.Repeat(" ", padding)
}

// displayWidth counts terminal cells, so wide titles stay aligned.
func displayWidth(value string) int {
	return runewidth.StringWidth(value)
}
