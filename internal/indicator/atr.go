package indicator

import "math"

// TrueRange returns the true range for each bar after the first.
// Result length is len(closes) - 1.
func TrueRange(highs, lows, closes []float64) []float64 {
	n := len(closes)
	if len(highs) != n || len(lows) != n || n < 2 {
		return []float64{}
	}

	out := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		prev := closes[i-1]
		tr := math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-prev), math.Abs(lows[i]-prev)))
		out = append(out, tr)
	}
	return out
}

// ATR returns the simple average of the last period true ranges.
func ATR(highs, lows, closes []float64, period int) (float64, bool) {
	tr := TrueRange(highs, lows, closes)
	if period <= 0 || len(tr) < period {
		return 0, false
	}
	var sum float64
	for _, v := range tr[len(tr)-period:] {
		sum += v
	}
	return sum / float64(period), true
}
