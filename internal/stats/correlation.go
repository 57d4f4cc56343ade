package stats

import "math"

// CorrelationThreshold is the minimum |r| for a pair to be reported.
const CorrelationThreshold = 0.3

// Pearson returns the Pearson correlation of two equally sized series.
// ok is false when r is undefined (fewer than two values or zero variance).
func Pearson(xs, ys []float64) (r float64, ok bool) {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0, false
	}
	mx := Mean(xs)
	my := Mean(ys)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	r = sxy / math.Sqrt(sxx*syy)
	if math.IsNaN(r) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

func (a *Aggregator) correlations(category string, issues map[string][]float64) map[string]float64 {
	out := map[string]float64{}
	for _, other := range a.categories {
		if other == category {
			continue
		}
		r, ok := Pearson(issues[category], issues[other])
		if !ok || math.Abs(r) <= CorrelationThreshold {
			continue
		}
		out[other] = round2(r)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
