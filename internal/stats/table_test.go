package stats

import (
	"bytes"
	"strings"
	"testing"
)

func TestTextTableAlignsColumns(t *testing.T) {
	tbl := newTextTable(
		column{title: "Category"},
		column{title: "Confidence", right: true},
		column{title: "Issues", right: true},
	)
	tbl.add("Methodology", "82.5", "4")
	tbl.add("Statistics", "9.0", "12")

	lines := tbl.lines()
	want := []string{
		"Category    Confidence Issues",
		"─────────── ────────── ──────",
		"Methodology       82.5      4",
		"Statistics         9.0     12",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestTextTableTruncatesToMax(t *testing.T) {
	tbl := newTextTable(column{title: "Topic", max: 8}, column{title: "N", right: true})
	tbl.add("graph neural networks", "3")
	tbl.add("short") // missing cells render empty

	var buf bytes.Buffer
	if err := tbl.write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	if lines[2] != "graph n… 3" {
		t.Fatalf("unexpected truncated row: %q", lines[2])
	}
	if lines[3] != "short" {
		t.Fatalf("expected trailing padding trimmed, got %q", lines[3])
	}
}

func TestPadCellUsesDisplayWidth(t *testing.T) {
	if got := padCell("論文", 6, false); got != "論文  " {
		t.Fatalf("unexpected padding for wide runes: %q", got)
	}
	if got := padCell("toolong", 3, true); got != "toolong" {
		t.Fatalf("expected overflowing value unchanged, got %q", got)
	}
}
