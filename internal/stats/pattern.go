package stats

import (
	"fmt"
	"strings"

	"github.com/verte-zerg/paperlens/internal/model"
)

// Severity bucket upper bounds. Issue counts above SeverityMediumMax are high.
const (
	SeverityLowMax    = 1
	SeverityMediumMax = 3
)

// ConfidenceTrend summarizes the confidence values of one category.
type ConfidenceTrend struct {
	Mean   float64
	StdDev float64
	Median float64
	Trend  Trend
}

// SeverityDistribution counts rows per issue-count bucket.
type SeverityDistribution struct {
	Low    int
	Medium int
	High   int
}

// Total returns the number of rows counted.
func (d SeverityDistribution) Total() int {
	return d.Low + d.Medium + d.High
}

// CategoryPattern holds the derived patterns for one category.
type CategoryPattern struct {
	Category   string
	Confidence ConfidenceTrend
	Severity   SeverityDistribution
	// Correlations maps other categories to the rounded Pearson r of issue counts.
	// Only pairs with |r| > CorrelationThreshold are present.
	Correlations map[string]float64
}

// PatternReport is the result of one aggregation. It is never mutated after construction.
type PatternReport struct {
	Rows       int
	Categories []CategoryPattern
	Temporal   TemporalSummary
}

// Category returns the pattern for the named category.
func (r PatternReport) Category(name string) (CategoryPattern, bool) {
	for _, c := range r.Categories {
		if c.Category == name {
			return c, true
		}
	}
	return CategoryPattern{}, false
}

// Aggregator derives pattern reports for a fixed category set.
type Aggregator struct {
	categories []string
}

// NewAggregator returns an Aggregator for the given ordered category set.
func NewAggregator(categories []string) (*Aggregator, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("category set is empty")
	}
	seen := make(map[string]struct{}, len(categories))
	cats := make([]string, 0, len(categories))
	for _, c := range categories {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("category name must not be blank")
		}
		if _, ok := seen[c]; ok {
			return nil, fmt.Errorf("duplicate category %q", c)
		}
		seen[c] = struct{}{}
		cats = append(cats, c)
	}
	return &Aggregator{categories: cats}, nil
}

// Categories returns a copy of the aggregator's category set.
func (a *Aggregator) Categories() []string {
	return append([]string(nil), a.categories...)
}

// Aggregate computes the pattern report for a batch.
//
// The confidence trend of each category reads rows in the order they appear in
// the batch, while the temporal trend reads monthly buckets in chronological
// order. Callers that want a chronological confidence trend must sort the batch
// by Published first.
func (a *Aggregator) Aggregate(batch model.Batch) (PatternReport, error) {
	if err := a.validate(batch); err != nil {
		return PatternReport{}, err
	}

	confidence := make(map[string][]float64, len(a.categories))
	issues := make(map[string][]float64, len(a.categories))
	for _, c := range a.categories {
		confidence[c] = make([]float64, 0, len(batch))
		issues[c] = make([]float64, 0, len(batch))
	}
	for _, row := range batch {
		for _, c := range a.categories {
			s := row.Scores[c]
			confidence[c] = append(confidence[c], float64(s.Confidence))
			issues[c] = append(issues[c], float64(s.Issues))
		}
	}

	report := PatternReport{
		Rows:       len(batch),
		Categories: make([]CategoryPattern, 0, len(a.categories)),
	}
	for _, c := range a.categories {
		conf := confidence[c]
		report.Categories = append(report.Categories, CategoryPattern{
			Category: c,
			Confidence: ConfidenceTrend{
				Mean:   Mean(conf),
				StdDev: SampleStdDev(conf),
				Median: Median(conf),
				Trend:  TrendOf(conf),
			},
			Severity:     severityOf(issues[c]),
			Correlations: a.correlations(c, issues),
		})
	}
	report.Temporal = a.temporal(batch)
	return report, nil
}

func (a *Aggregator) validate(batch model.Batch) error {
	if len(batch) == 0 {
		return &MalformedBatchError{Row: -1, Reason: "batch is empty"}
	}
	for i, row := range batch {
		if row.Published.IsZero() {
			return &MalformedBatchError{Row: i, Column: "published", Reason: "missing or unparseable timestamp"}
		}
		for _, c := range a.categories {
			s, ok := row.Scores[c]
			if !ok {
				return &MalformedBatchError{Row: i, Column: ConfidenceColumn(c), Reason: "missing category column"}
			}
			if s.Confidence < 0 || s.Confidence > 100 {
				return &MalformedBatchError{Row: i, Column: ConfidenceColumn(c), Reason: fmt.Sprintf("confidence %d out of range 0-100", s.Confidence)}
			}
			if s.Issues < 0 {
				return &MalformedBatchError{Row: i, Column: IssuesColumn(c), Reason: fmt.Sprintf("negative issue count %d", s.Issues)}
			}
		}
	}
	return nil
}

func severityOf(issues []float64) SeverityDistribution {
	var d SeverityDistribution
	for _, v := range issues {
		switch {
		case v <= SeverityLowMax:
			d.Low++
		case v <= SeverityMediumMax:
			d.Medium++
		default:
			d.High++
		}
	}
	return d
}
