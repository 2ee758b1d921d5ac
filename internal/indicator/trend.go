package indicator

// Slope fits a least-squares line to the last window prices and returns its
// slope divided by the window mean, i.e. fractional change per bar.
func Slope(prices []float64, window int) (float64, bool) {
	if window < 2 || len(prices) < window {
		return 0, false
	}
	y := prices[len(prices)-window:]
	n := float64(window)

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	mean := sumY / n
	if denom == 0 || mean == 0 {
		return 0, true
	}
	slope := (n*sumXY - sumX*sumY) / denom
	return slope / mean, true
}

// Return is the fractional change over the last lookback bars.
func Return(prices []float64, lookback int) (float64, bool) {
	if lookback <= 0 || len(prices) < lookback+1 {
		return 0, false
	}
	base := prices[len(prices)-1-lookback]
	if base == 0 {
		return 0, false
	}
	return prices[len(prices)-1]/base - 1, true
}

// Structure describes the sequence of recent swing highs.
type Structure string

const (
	HigherHighs Structure = "HIGHER_HIGHS"
	LowerHighs  Structure = "LOWER_HIGHS"
	Mixed       Structure = "MIXED"
)

// StructureParams tunes swing-high detection.
type StructureParams struct {
	Window      int     // bars searched, most recent
	Span        int     // bars on each side a pivot must exceed
	MinSwings   int     // pivots compared
	MinSwingPct float64 // minimum percent rise (or fall) between pivots
}

// DefaultStructure matches a 20-day trend window.
func DefaultStructure() StructureParams {
	return StructureParams{Window: 40, Span: 2, MinSwings: 2}
}

// Pivots returns the indexes of swing highs: prices strictly greater than
// the span values on each side.
func Pivots(prices []float64, span int) []int {
	if span <= 0 {
		span = 1
	}
	var out []int
	for i := span; i < len(prices)-span; i++ {
		peak := true
		for j := i - span; j <= i+span; j++ {
			if j != i && prices[j] >= prices[i] {
				peak = false
				break
			}
		}
		if peak {
			out = append(out, i)
		}
	}
	return out
}

// DetectStructure classifies the last MinSwings pivots inside the window.
func DetectStructure(prices []float64, p StructureParams) Structure {
	if p.MinSwings < 2 {
		p.MinSwings = 2
	}
	recent := prices
	if p.Window > 0 && len(prices) > p.Window {
		recent = prices[len(prices)-p.Window:]
	}

	idx := Pivots(recent, p.Span)
	if len(idx) < p.MinSwings {
		return Mixed
	}
	idx = idx[len(idx)-p.MinSwings:]

	up, down := true, true
	step := p.MinSwingPct / 100
	for k := 1; k < len(idx); k++ {
		prev, cur := recent[idx[k-1]], recent[idx[k]]
		if !(cur > prev*(1+step)) {
			up = false
		}
		if !(cur < prev*(1-step)) {
			down = false
		}
	}

	switch {
	case up:
		return HigherHighs
	case down:
		return LowerHighs
	default:
		return Mixed
	}
}
