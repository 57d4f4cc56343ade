package stats

import (
	"sort"
	"time"

	"github.com/verte-zerg/paperlens/internal/model"
)

// TemporalPeriods is the number of most recent monthly periods kept.
const TemporalPeriods = 6

// PeriodStat summarizes one category in one period. Mean and StdDev describe
// issue counts; Confidence is the mean confidence.
type PeriodStat struct {
	Mean       float64
	StdDev     float64
	Confidence float64
	Count      int
}

// Period is one calendar month (UTC) present in the batch.
type Period struct {
	Start  time.Time
	Label  string
	Issues map[string]PeriodStat
}

// TemporalSummary holds the latest monthly periods in chronological order.
type TemporalSummary struct {
	Periods []Period
	Trends  map[string]Trend
}

// MonthlyMeans returns the chronological series of monthly issue means for a category.
func (t TemporalSummary) MonthlyMeans(category string) []float64 {
	out := make([]float64, 0, len(t.Periods))
	for _, p := range t.Periods {
		out = append(out, p.Issues[category].Mean)
	}
	return out
}

// MonthlyConfidence returns the chronological series of monthly confidence means for a category.
func (t TemporalSummary) MonthlyConfidence(category string) []float64 {
	out := make([]float64, 0, len(t.Periods))
	for _, p := range t.Periods {
		out = append(out, p.Issues[category].Confidence)
	}
	return out
}

func (a *Aggregator) temporal(batch model.Batch) TemporalSummary {
	buckets := map[time.Time][]int{}
	for i, row := range batch {
		buckets[monthStart(row.Published)] = append(buckets[monthStart(row.Published)], i)
	}
	months := make([]time.Time, 0, len(buckets))
	for m := range buckets {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool {
		return months[i].Before(months[j])
	})
	if len(months) > TemporalPeriods {
		months = months[len(months)-TemporalPeriods:]
	}

	summary := TemporalSummary{
		Periods: make([]Period, 0, len(months)),
		Trends:  make(map[string]Trend, len(a.categories)),
	}
	for _, m := range months {
		rows := buckets[m]
		period := Period{
			Start:  m,
			Label:  m.Format("2006-01"),
			Issues: make(map[string]PeriodStat, len(a.categories)),
		}
		for _, c := range a.categories {
			values := make([]float64, len(rows))
			confidence := make([]float64, len(rows))
			for i, idx := range rows {
				s := batch[idx].Scores[c]
				values[i] = float64(s.Issues)
				confidence[i] = float64(s.Confidence)
			}
			period.Issues[c] = PeriodStat{
				Mean:       Mean(values),
				StdDev:     SampleStdDev(values),
				Confidence: Mean(confidence),
				Count:      len(values),
			}
		}
		summary.Periods = append(summary.Periods, period)
	}
	for _, c := range a.categories {
		summary.Trends[c] = TrendOf(summary.MonthlyMeans(c))
	}
	return summary
}

func monthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
