package stats

import "math"

// Trend is a coarse direction label for a numeric series.
type Trend string

// Trend labels.
const (
	TrendStable     Trend = "stable"
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
)

const trendSlopeEpsilon = 0.1

// TrendOf labels a series by its endpoint slope (last-first)/n.
// Only the endpoints are read; the interior of the series is ignored.
func TrendOf(series []float64) Trend {
	n := len(series)
	if n < 2 {
		return TrendStable
	}
	slope := (series[n-1] - series[0]) / float64(n)
	switch {
	case math.Abs(slope) < trendSlopeEpsilon:
		return TrendStable
	case slope > 0:
		return TrendIncreasing
	default:
		return TrendDecreasing
	}
}
