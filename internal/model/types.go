// Package model defines shared data structures.
package model

import "time"

// DefaultCategories is the assessment category set used when config does not override it.
func DefaultCategories() []string {
	return []string{
		"Methodology Issues",
		"Statistical Errors",
		"Logical Inconsistencies",
		"Citation Problems",
		"Data Interpretation Issues",
	}
}

// FetchConfig defines source provider settings.
type FetchConfig struct {
	Count   int
	Topic   string
	Rate    time.Duration
	Retries int
}

// AssessConfig defines assessment engine settings.
type AssessConfig struct {
	Provider   string
	Model      string
	APIKeyEnv  string
	Workers    int
	Categories []string
}

// DashboardConfig defines filters and options for report output.
type DashboardConfig struct {
	MinConfidence  float64
	IssueThreshold int
	CurveWindow    int
	Categories     []string
}

// Paper is a record returned by the source provider.
type Paper struct {
	Title      string
	Abstract   string
	Authors    []string
	Published  time.Time
	URL        string
	Categories []string
}

// Score is the assessment of one category for one paper.
type Score struct {
	Confidence int
	Issues     int
}

// PaperAssessment is one row of an assessment batch.
type PaperAssessment struct {
	Title     string
	URL       string
	Published time.Time
	// Fallback is set when the engine masked a failure with a default value.
	Fallback bool
	Scores   map[string]Score
}

// Batch is an ordered sequence of assessments. Order is not chronological.
type Batch []PaperAssessment

// Run describes a stored analysis run.
type Run struct {
	ID         string
	StartedAt  time.Time
	Topic      string
	Requested  int
	Fetched    int
	Provider   string
	Categories []string
}
