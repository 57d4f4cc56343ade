// Package stats contains pattern aggregation, statistics and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/verte-zerg/paperlens/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Mean returns the arithmetic mean, or NaN for an empty series.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStdDev returns the n-1 standard deviation. It is NaN for fewer than two values.
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	m := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// Median returns the median, or NaN for an empty series.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// FormatStat formats a statistic, printing NaN as "n/a".
func FormatStat(v float64, prec int) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", prec, v)
}

// RenderSummary prints the headline metrics.
func RenderSummary(w io.Writer, s Summary) error {
	lines := []string{
		"Summary",
		fmt.Sprintf("Total papers: %d", s.Total),
		fmt.Sprintf("Filtered papers: %d", s.Filtered),
		fmt.Sprintf("Avg issues/paper: %.2f", s.AvgIssues),
		fmt.Sprintf("High risk papers: %d", s.HighRisk),
		fmt.Sprintf("Fallback assessments: %d", s.Fallback),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCategoryTable prints per-category statistics, severity and risk.
func RenderCategoryTable(w io.Writer, patterns PatternReport, risks []CategoryRisk) error {
	if len(patterns.Categories) == 0 {
		_, err := fmt.Fprintln(w, "No category patterns found.")
		return err
	}
	riskByCat := make(map[string]CategoryRisk, len(risks))
	for _, r := range risks {
		riskByCat[r.Category] = r
	}
	if _, err := fmt.Fprintln(w, "Categories"); err != nil {
		return err
	}
	tbl := newTextTable(
		column{title: "Category"},
		column{title: "Mean", right: true},
		column{title: "StdDev", right: true},
		column{title: "Median", right: true},
		column{title: "Trend"},
		column{title: "Low", right: true},
		column{title: "Medium", right: true},
		column{title: "High", right: true},
		column{title: "Risk"},
	)
	for _, c := range patterns.Categories {
		tbl.add(
			c.Category,
			FormatStat(c.Confidence.Mean, 1),
			FormatStat(c.Confidence.StdDev, 1),
			FormatStat(c.Confidence.Median, 1),
			string(c.Confidence.Trend),
			strconv.Itoa(c.Severity.Low),
			strconv.Itoa(c.Severity.Medium),
			strconv.Itoa(c.Severity.High),
			string(riskByCat[c.Category].Level),
		)
	}
	if err := tbl.write(w); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderCorrelations prints the correlation set of each category.
func RenderCorrelations(w io.Writer, patterns PatternReport) error {
	if _, err := fmt.Fprintf(w, "Issue Correlations (|r| > %.1f)\n", CorrelationThreshold); err != nil {
		return err
	}
	found := false
	for _, c := range patterns.Categories {
		if len(c.Correlations) == 0 {
			continue
		}
		found = true
		others := make([]string, 0, len(c.Correlations))
		for other := range c.Correlations {
			others = append(others, other)
		}
		sort.Strings(others)
		parts := make([]string, 0, len(others))
		for _, other := range others {
			parts = append(parts, fmt.Sprintf("%s (%+.2f)", other, c.Correlations[other]))
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", c.Category, strings.Join(parts, ", ")); err != nil {
			return err
		}
	}
	if !found {
		if _, err := fmt.Fprintln(w, "No correlated categories."); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderMonthlyTable prints mean issue counts per period and the monthly trend.
func RenderMonthlyTable(w io.Writer, patterns PatternReport) error {
	periods := patterns.Temporal.Periods
	if len(periods) == 0 {
		_, err := fmt.Fprintln(w, "No monthly data found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Monthly Issues (mean ± stddev)"); err != nil {
		return err
	}
	columns := []column{{title: "Category"}}
	for _, p := range periods {
		columns = append(columns, column{title: p.Label, right: true})
	}
	columns = append(columns, column{title: "Trend"})
	tbl := newTextTable(columns...)
	for _, c := range patterns.Categories {
		row := []string{c.Category}
		for _, p := range periods {
			st := p.Issues[c.Category]
			row = append(row, fmt.Sprintf("%s±%s", FormatStat(st.Mean, 2), FormatStat(st.StdDev, 2)))
		}
		row = append(row, string(patterns.Temporal.Trends[c.Category]))
		tbl.add(row...)
	}
	if err := tbl.write(w); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

var heatShades = []rune(" ░▒▓█")

// HeatShade maps a 0-100 confidence to a block shade. NaN maps to a blank.
func HeatShade(confidence float64) rune {
	if math.IsNaN(confidence) {
		return ' '
	}
	idx := int(confidence / 100 * float64(len(heatShades)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(heatShades) {
		idx = len(heatShades) - 1
	}
	return heatShades[idx]
}

// RenderConfidenceHeatmap prints the mean confidence per category and period.
func RenderConfidenceHeatmap(w io.Writer, patterns PatternReport) error {
	periods := patterns.Temporal.Periods
	if len(periods) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Monthly Confidence (mean)"); err != nil {
		return err
	}
	columns := []column{{title: "Category"}}
	for _, p := range periods {
		columns = append(columns, column{title: p.Label, right: true})
	}
	tbl := newTextTable(columns...)
	for _, c := range patterns.Categories {
		row := []string{c.Category}
		for _, p := range periods {
			conf := p.Issues[c.Category].Confidence
			row = append(row, fmt.Sprintf("%s %c", FormatStat(conf, 1), HeatShade(conf)))
		}
		tbl.add(row...)
	}
	if err := tbl.write(w); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// IssueTimeline returns total issues per paper in chronological order.
func IssueTimeline(batch model.Batch, categories []string) []float64 {
	sorted := append(model.Batch(nil), batch...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Published.Before(sorted[j].Published)
	})
	out := make([]float64, len(sorted))
	for i, row := range sorted {
		total := 0
		for _, c := range categories {
			total += row.Scores[c].Issues
		}
		out[i] = float64(total)
	}
	return out
}

// RenderTimeline prints total issues per paper with a moving average.
func RenderTimeline(w io.Writer, batch model.Batch, categories []string, window int) error {
	return RenderTimelineWithSize(w, batch, categories, window, 0, 10, false)
}

// RenderTimelineWithSize prints the issue timeline sized to a given total width.
func RenderTimelineWithSize(w io.Writer, batch model.Batch, categories []string, window, totalWidth, height int, useColor bool) error {
	if len(batch) == 0 {
		return nil
	}
	totals := IssueTimeline(batch, categories)
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeriesWithColor(w, "Issue Timeline", []Series{
		{Name: "Issues", Values: totals},
		{Name: fmt.Sprintf("%d-paper moving avg", window), Values: MovingAverage(totals, window)},
	}, width, height, useColor)
}

// RenderMonthlyCurvesWithSize plots monthly issue means per category.
func RenderMonthlyCurvesWithSize(w io.Writer, patterns PatternReport, totalWidth, height int, useColor bool) error {
	if len(patterns.Temporal.Periods) == 0 {
		return nil
	}
	series := make([]Series, 0, len(patterns.Categories))
	for _, c := range patterns.Categories {
		series = append(series, Series{Name: c.Category, Values: patterns.Temporal.MonthlyMeans(c.Category)})
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeriesWithColor(w, "Monthly Issue Means", series, width, height, useColor)
}

// RenderReport prints the full text report.
func RenderReport(w io.Writer, r Report, window int) error {
	if err := RenderSummary(w, r.Summary); err != nil {
		return err
	}
	if len(r.Filtered) == 0 {
		_, err := fmt.Fprintln(w, "No papers match the current filters.")
		return err
	}
	if err := RenderCategoryTable(w, r.Patterns, r.Risks); err != nil {
		return err
	}
	if err := RenderCorrelations(w, r.Patterns); err != nil {
		return err
	}
	if err := RenderMonthlyTable(w, r.Patterns); err != nil {
		return err
	}
	if err := RenderConfidenceHeatmap(w, r.Patterns); err != nil {
		return err
	}
	if err := RenderTimeline(w, r.Filtered, r.Categories, window); err != nil {
		return err
	}
	return RenderMonthlyCurvesWithSize(w, r.Patterns, 0, 10, false)
}
