package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Series represents a named data series for plotting.
type Series struct {
	Name   string
	Values []float64
}

// PlotOptions controls plot rendering. Zero values select defaults.
type PlotOptions struct {
	Width  int
	Height int
	// ForceColor emits ANSI colors even when w is not a terminal.
	ForceColor bool
	// PerSeries scales every series to its own min/max instead of a shared axis.
	PerSeries bool
}

type valueRange struct {
	min float64
	max float64
}

type lineStyle struct {
	name   string
	period int
	on     int
}

const (
	defaultPlotHeight   = 10
	minPlotWidth        = 10
	axisLabelWidth      = 7
	axisSeparator       = " │ "
	perSeriesNote       = "Scaled per series; see min/max below."
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var lineStyles = []lineStyle{
	{name: "solid", period: 1, on: 1},
	{name: "dashed", period: 6, on: 3},
	{name: "dotted", period: 4, on: 1},
	{name: "dashdot", period: 8, on: 3},
}

var colorPalette = []string{
	"\x1b[36m", // cyan
	"\x1b[35m", // magenta
	"\x1b[33m", // yellow
	"\x1b[32m", // green
	"\x1b[34m", // blue
	"\x1b[31m", // red
}

// PlotSeries renders a multi-line braille plot with a shared value axis.
func PlotSeries(w io.Writer, title string, series []Series, width, height int) error {
	return Plot(w, title, series, PlotOptions{Width: width, Height: height})
}

// PlotSeriesWithColor renders a shared-axis plot with optional forced color output.
func PlotSeriesWithColor(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	return Plot(w, title, series, PlotOptions{Width: width, Height: height, ForceColor: forceColor})
}

// Plot renders series according to opts.
func Plot(w io.Writer, title string, series []Series, opts PlotOptions) error {
	series = nonEmptySeries(series)
	if len(series) == 0 {
		return nil
	}
	height := opts.Height
	if height <= 0 {
		height = defaultPlotHeight
	}
	width := opts.Width
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	scaled := make([]Series, len(series))
	for i, s := range series {
		scaled[i] = Series{Name: s.Name, Values: resampleSeries(s.Values, width)}
	}
	ranges := seriesRanges(scaled, opts.PerSeries)

	layers := make([][][]uint8, len(scaled))
	for si, s := range scaled {
		layers[si] = makeCells(height, width)
		drawSeries(layers[si], s.Values, ranges[si], lineStyles[si%len(lineStyles)], height)
	}

	useColor := shouldUseColor(w, opts.ForceColor)
	labels := makeAxisLabels(height, ranges[0], opts.PerSeries)

	var out strings.Builder
	if title != "" {
		out.WriteString(title + "\n")
	}
	if opts.PerSeries {
		out.WriteString(perSeriesNote + "\n")
		for i, s := range scaled {
			fmt.Fprintf(&out, "%s: min=%.2f max=%.2f\n", s.Name, ranges[i].min, ranges[i].max)
		}
	}
	for y := 0; y < height; y++ {
		fmt.Fprintf(&out, "%*s%s", axisLabelWidth, labels[y], axisSeparator)
		for x := 0; x < width; x++ {
			mask, layer := composeCell(layers, x, y)
			ch := brailleFromMask(mask)
			if useColor && layer >= 0 {
				out.WriteString(colorPalette[layer%len(colorPalette)])
				out.WriteRune(ch)
				out.WriteString(colorReset)
			} else {
				out.WriteRune(ch)
			}
		}
		out.WriteString("\n")
	}
	out.WriteString(renderLegend(scaled, useColor) + "\n\n")
	_, err := io.WriteString(w, out.String())
	return err
}

func nonEmptySeries(series []Series) []Series {
	out := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.Values) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// seriesRanges returns one range per series; with a shared axis all ranges are equal.
func seriesRanges(series []Series, perSeries bool) []valueRange {
	ranges := make([]valueRange, len(series))
	shared := valueRange{min: math.Inf(1), max: math.Inf(-1)}
	for i, s := range series {
		r := valueRange{min: math.Inf(1), max: math.Inf(-1)}
		for _, v := range s.Values {
			if math.IsNaN(v) {
				continue
			}
			r.min = math.Min(r.min, v)
			r.max = math.Max(r.max, v)
		}
		ranges[i] = r
		shared.min = math.Min(shared.min, r.min)
		shared.max = math.Max(shared.max, r.max)
	}
	for i := range ranges {
		if !perSeries {
			ranges[i] = shared
		}
		ranges[i] = widenFlat(ranges[i])
	}
	return ranges
}

func widenFlat(r valueRange) valueRange {
	if math.IsInf(r.min, 1) || math.IsInf(r.max, -1) {
		return valueRange{min: 0, max: 1}
	}
	if math.Abs(r.max-r.min) < 1e-9 {
		return valueRange{min: r.min - 1, max: r.max + 1}
	}
	return r
}

func drawSeries(cells [][]uint8, values []float64, r valueRange, style lineStyle, height int) {
	dots := height * 4
	prevX, prevY := -1, -1
	for x, v := range values {
		if math.IsNaN(v) {
			prevX, prevY = -1, -1
			continue
		}
		px, py := x*2, valueToRow(v, r.min, r.max, dots)
		if prevX >= 0 {
			drawLine(prevX, prevY, px, py, func(dx, dy int) {
				if style.shouldPlot(dx) {
					setBrailleDot(cells, dx, dy)
				}
			})
		} else if style.shouldPlot(px) {
			setBrailleDot(cells, px, py)
		}
		prevX, prevY = px, py
	}
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - axisLabelWidth - utf8.RuneCountInString(axisSeparator)
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func makeAxisLabels(height int, r valueRange, perSeries bool) []string {
	labels := make([]string, height)
	if height <= 0 {
		return labels
	}
	top, mid, bottom := "100%", "50%", "0%"
	if !perSeries {
		top = compactNumber(r.max)
		mid = compactNumber((r.max + r.min) / 2)
		bottom = compactNumber(r.min)
	}
	labels[0] = top
	if height > 2 {
		labels[height/2] = mid
	}
	if height > 1 {
		labels[height-1] = bottom
	}
	return labels
}

func compactNumber(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if utf8.RuneCountInString(s) > axisLabelWidth {
		s = fmt.Sprintf("%.0e", v)
	}
	return s
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := range cells {
		cells[y] = make([]uint8, width)
	}
	return cells
}

// composeCell merges all layers at a cell; the first layer with a dot picks the color.
func composeCell(layers [][][]uint8, x, y int) (uint8, int) {
	var mask uint8
	layer := -1
	for i, cells := range layers {
		if y < 0 || y >= len(cells) || x < 0 || x >= len(cells[y]) {
			continue
		}
		if cells[y][x] == 0 {
			continue
		}
		if layer == -1 {
			layer = i
		}
		mask |= cells[y][x]
	}
	return mask, layer
}

func (ls lineStyle) shouldPlot(x int) bool {
	if ls.period <= 1 {
		return true
	}
	if x < 0 {
		x = -x
	}
	return x%ls.period < ls.on
}

// resampleSeries averages down or linearly interpolates up to width points.
func resampleSeries(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	out := make([]float64, width)
	switch {
	case len(values) == width:
		copy(out, values)
	case len(values) > width:
		for i := 0; i < width; i++ {
			start := i * len(values) / width
			end := (i + 1) * len(values) / width
			if end <= start {
				end = start + 1
			}
			out[i] = Mean(values[start:end])
		}
	case len(values) == 1 || width == 1:
		for i := range out {
			out[i] = values[0]
		}
	default:
		last := len(values) - 1
		for i := 0; i < width; i++ {
			pos := float64(i) * float64(last) / float64(width-1)
			idx := int(pos)
			if idx >= last {
				out[i] = values[last]
				continue
			}
			frac := pos - float64(idx)
			out[i] = values[idx]*(1-frac) + values[idx+1]*frac
		}
	}
	return out
}

func valueToRow(v, minVal, maxVal float64, height int) int {
	if height <= 1 {
		return 0
	}
	pos := (v - minVal) / (maxVal - minVal)
	row := int(math.Round((1 - pos) * float64(height-1)))
	if row < 0 {
		return 0
	}
	if row >= height {
		return height - 1
	}
	return row
}

func renderLegend(series []Series, useColor bool) string {
	parts := make([]string, 0, len(series))
	marker := brailleFromMask(0x01)
	for i, s := range series {
		label := fmt.Sprintf("%c %s (%s)", marker, s.Name, lineStyles[i%len(lineStyles)].name)
		if useColor {
			label = colorPalette[i%len(colorPalette)] + label + colorReset
		}
		parts = append(parts, label)
	}
	return "Legend: " + strings.Join(parts, "  ")
}

// drawLine walks a Bresenham line between two dot coordinates.
func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// brailleDots maps (x, y) within a 2x4 braille cell to its dot bit.
var brailleDots = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

func setBrailleDot(cells [][]uint8, x, y int) {
	if x < 0 || y < 0 {
		return
	}
	cellY, cellX := y/4, x/2
	if cellY >= len(cells) || cellX >= len(cells[cellY]) {
		return
	}
	cells[cellY][cellX] |= brailleDots[x%2][y%4]
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}
