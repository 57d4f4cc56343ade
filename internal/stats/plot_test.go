package stats

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestPlotSeriesSharedAxis(t *testing.T) {
	var buf bytes.Buffer
	err := PlotSeries(&buf, "Test Plot", []Series{
		{Name: "A", Values: []float64{1, 2, 3, 2, 1}},
		{Name: "B", Values: []float64{1, 1, 2, 3, 4}},
	}, 5, 4)
	if err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Test Plot") {
		t.Fatalf("expected title in output")
	}
	if strings.Contains(out, perSeriesNote) {
		t.Fatalf("shared axis plot must not print the per-series note")
	}
	if !strings.Contains(out, "Legend:") {
		t.Fatalf("expected legend in output")
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1+4+1 {
		t.Fatalf("expected %d lines of output, got %d", 1+4+1, len(lines))
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[1]), "4") {
		t.Fatalf("expected top axis label 4, got %q", lines[1])
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[4]), "1") {
		t.Fatalf("expected bottom axis label 1, got %q", lines[4])
	}
}

func TestPlotPerSeries(t *testing.T) {
	var buf bytes.Buffer
	err := Plot(&buf, "", []Series{
		{Name: "A", Values: []float64{1, 2, 3}},
		{Name: "B", Values: []float64{100, 50, 0}},
	}, PlotOptions{Width: 6, Height: 3, PerSeries: true})
	if err != nil {
		t.Fatalf("Plot failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, perSeriesNote) {
		t.Fatalf("expected scale note in output")
	}
	if !strings.Contains(out, "B: min=0.00 max=100.00") {
		t.Fatalf("expected per-series range, got:\n%s", out)
	}
}

func TestPlotSkipsEmptySeries(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotSeries(&buf, "Empty", []Series{{Name: "A"}}, 10, 4); err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output for empty series, got %q", buf.String())
	}
}

func TestResampleSeries(t *testing.T) {
	down := resampleSeries([]float64{1, 3, 5, 7}, 2)
	if down[0] != 2 || down[1] != 6 {
		t.Fatalf("unexpected downsample: %v", down)
	}
	up := resampleSeries([]float64{0, 10}, 3)
	if up[0] != 0 || up[1] != 5 || up[2] != 10 {
		t.Fatalf("unexpected upsample: %v", up)
	}
}

func TestDrawSeriesBreaksOnNaN(t *testing.T) {
	cells := makeCells(2, 4)
	drawSeries(cells, []float64{0, math.NaN(), 1, 1}, valueRange{min: 0, max: 1}, lineStyles[0], 2)
	if cells[0][1] != 0 || cells[1][1] != 0 {
		t.Fatalf("expected the NaN column to stay empty")
	}
}
