package stats

import (
	"math"

	"github.com/verte-zerg/paperlens/internal/model"
)

// RiskLevel classifies a category relative to the others in the batch.
type RiskLevel string

// Risk levels.
const (
	RiskHigh     RiskLevel = "High Risk"
	RiskModerate RiskLevel = "Moderate Risk"
	RiskLow      RiskLevel = "Low Risk"
)

// Summary holds the headline metrics shown above the charts.
type Summary struct {
	Total     int
	Filtered  int
	AvgIssues float64
	HighRisk  int
	Fallback  int
}

// CategoryRisk is the risk classification of one category.
type CategoryRisk struct {
	Category       string
	TotalIssues    int
	MeanConfidence float64
	Level          RiskLevel
}

// FilterByConfidence keeps rows whose mean confidence across categories is at least minConfidence.
func FilterByConfidence(batch model.Batch, categories []string, minConfidence float64) model.Batch {
	out := make(model.Batch, 0, len(batch))
	for _, row := range batch {
		if len(categories) == 0 {
			out = append(out, row)
			continue
		}
		var sum float64
		for _, c := range categories {
			sum += float64(row.Scores[c].Confidence)
		}
		if sum/float64(len(categories)) >= minConfidence {
			out = append(out, row)
		}
	}
	return out
}

// Summarize computes headline metrics for the filtered batch.
func Summarize(total int, filtered model.Batch, categories []string, issueThreshold int) Summary {
	s := Summary{Total: total, Filtered: len(filtered)}
	cells := 0
	issues := 0
	for _, row := range filtered {
		rowIssues := 0
		for _, c := range categories {
			rowIssues += row.Scores[c].Issues
			cells++
		}
		issues += rowIssues
		if rowIssues >= issueThreshold {
			s.HighRisk++
		}
		if row.Fallback {
			s.Fallback++
		}
	}
	if cells > 0 {
		s.AvgIssues = float64(issues) / float64(cells)
	}
	return s
}

// RiskLevels classifies each category against the batch-wide averages. A
// category with above-average total issues and below-average confidence is
// high risk; one with either condition is moderate.
func RiskLevels(batch model.Batch, categories []string) []CategoryRisk {
	out := make([]CategoryRisk, 0, len(categories))
	if len(batch) == 0 {
		return out
	}
	totals := make([]float64, len(categories))
	means := make([]float64, len(categories))
	for i, c := range categories {
		var conf float64
		for _, row := range batch {
			s := row.Scores[c]
			totals[i] += float64(s.Issues)
			conf += float64(s.Confidence)
		}
		means[i] = conf / float64(len(batch))
	}
	avgTotal := Mean(totals)
	avgConf := Mean(means)
	for i, c := range categories {
		manyIssues := totals[i] > avgTotal
		lowConf := means[i] < avgConf
		level := RiskLow
		switch {
		case manyIssues && lowConf:
			level = RiskHigh
		case manyIssues || lowConf:
			level = RiskModerate
		}
		out = append(out, CategoryRisk{
			Category:       c,
			TotalIssues:    int(math.Round(totals[i])),
			MeanConfidence: means[i],
			Level:          level,
		})
	}
	return out
}
