package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

type styledRune struct {
	s       string
	width   int
	isSpace bool
}

// styleRunes renders each rune of text with style, collapsing whitespace runs.
func styleRunes(text string, style lipgloss.Style) []styledRune {
	text = strings.Join(strings.Fields(text), " ")
	out := make([]styledRune, 0, len(text))
	for _, r := range text {
		out = append(out, styledRune{
			s:       style.Render(string(r)),
			width:   runewidth.RuneWidth(r),
			isSpace: r == ' ',
		})
	}
	return out
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
	}
	return b.String()
}

// wrapLines breaks runes into lines of at most width cells, preferring spaces.
func wrapLines(runes []styledRune, width int) [][]styledRune {
	if width <= 0 {
		return [][]styledRune{runes}
	}
	var lines [][]styledRune
	line := make([]styledRune, 0, len(runes))
	lineWidth := 0
	lastSpaceIdx := -1

	for i := 0; i < len(runes); {
		item := runes[i]
		if lineWidth+item.width > width && len(line) > 0 {
			if lastSpaceIdx >= 0 {
				lines = append(lines, line[:lastSpaceIdx])
				line = append([]styledRune{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			} else {
				lines = append(lines, line)
				line = []styledRune{}
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	return append(lines, line)
}

// wrapText wraps text to width and keeps at most maxLines lines, marking
// the cut with an ellipsis. maxLines <= 0 keeps every line.
func wrapText(text string, width, maxLines int, style lipgloss.Style) string {
	lines := wrapLines(styleRunes(text, style), width)
	truncated := maxLines > 0 && len(lines) > maxLines
	if truncated {
		lines = lines[:maxLines]
	}
	rendered := make([]string, len(lines))
	for i, line := range lines {
		if truncated && i == len(lines)-1 {
			line = withEllipsis(line, width, style)
		}
		rendered[i] = renderStyledRunes(line)
	}
	return strings.Join(rendered, "\n")
}

func withEllipsis(line []styledRune, width int, style lipgloss.Style) []styledRune {
	ellipsis := styledRune{s: style.Render("…"), width: 1}
	for len(line) > 0 && width > 0 && lineWidthOf(line)+ellipsis.width > width {
		line = line[:len(line)-1]
	}
	return append(append([]styledRune{}, line...), ellipsis)
}

func lineWidthOf(line []styledRune) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []styledRune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}
