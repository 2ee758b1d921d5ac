package scanner

import (
	"math"
	"sort"

	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/indicator"
)

// trendFullScale is the per-bar slope that earns a full trend score.
const trendFullScale = 0.01

const unknownValuation = 0.5

func (s *Scanner) factors(closes []float64, f *core.Fundamental, benchmark core.PriceSeries, volRatio float64) (Factors, *float64) {
	var out Factors

	if slope, ok := indicator.Slope(closes, s.cfg.TrendWindow); ok {
		out.Trend = clamp(slope / trendFullScale)
	}

	var growth []float64
	if f.EPSGrowth != nil {
		growth = append(growth, *f.EPSGrowth)
	}
	if f.RevenueGrowth != nil {
		growth = append(growth, *f.RevenueGrowth)
	}
	if len(growth) > 0 {
		var sum float64
		for _, g := range growth {
			sum += g
		}
		out.Fundamental = clamp(sum/float64(len(growth)) + 0.5)
	}

	out.RelativeStrength = 0.5
	if own, ok := indicator.Return(closes, s.cfg.RSLookback); ok {
		if idx, ok := indicator.Return(benchmark.Closes(), s.cfg.RSLookback); ok {
			out.RelativeStrength = clamp(own - idx + 0.5)
		}
	}

	out.Volume = clamp((volRatio-1)*2 + 0.5)

	peg := pegOf(f)
	out.Valuation = valuation(peg)
	return out, peg
}

func pegOf(f *core.Fundamental) *float64 {
	if f.ForwardPE == nil || f.EPSGrowth == nil || *f.ForwardPE <= 0 || *f.EPSGrowth <= 0 {
		return nil
	}
	peg := *f.ForwardPE / (*f.EPSGrowth * 100)
	return &peg
}

func valuation(peg *float64) float64 {
	if peg == nil {
		return unknownValuation
	}
	switch {
	case *peg < 1:
		return 0.8
	case *peg < 2:
		return 0.6
	case *peg < 3:
		return 0.4
	default:
		return 0.2
	}
}

// ScenarioFor picks the first band whose MinScore the composite reaches and
// rounds to four places, absorbing the rounding into the base case.
func ScenarioFor(composite float64, bands []ScenarioBand) Scenario {
	sorted := make([]ScenarioBand, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinScore > sorted[j].MinScore })

	band := ScenarioBand{Bull: 1.0 / 3, Base: 1.0 / 3, Bear: 1.0 / 3}
	for _, b := range sorted {
		if composite >= b.MinScore {
			band = b
			break
		}
	}

	total := band.Bull + band.Base + band.Bear
	if total <= 0 {
		return Scenario{Base: 1}
	}
	bull := round4(band.Bull / total)
	bear := round4(band.Bear / total)
	return Scenario{Bull: bull, Base: 1 - bull - bear, Bear: bear}
}

// fallbackMove is the horizon move, as a fraction of price, used when ATR is
// unavailable.
const fallbackMove = 0.08

func targets(price, atr float64, horizon int) Targets {
	move := price * fallbackMove
	if atr > 0 && horizon > 0 {
		move = atr * math.Sqrt(float64(horizon))
	}
	return Targets{
		Bull: price + 1.5*move,
		Base: price + 0.3*move,
		Bear: math.Max(price-move, 0),
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
