package scanner_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/newthinker/bigthing/internal/collector/mocks"
	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/indicator"
	"github.com/newthinker/bigthing/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var flatIndex = mocks.Series("SPY", mocks.Flat(250, 400))

// passing builds a series that clears every technical filter: steady
// uptrend with swings, RSI near 51 and a volume surge on the last bar.
func passing(sym string, step float64) core.PriceSeries {
	return mocks.WithLastVolume(mocks.Series(sym, mocks.Trend(250, 100, step, true)), 1_500_000)
}

func tradingDaysAfter(t time.Time, n int) time.Time {
	for i := 0; i < n; i++ {
		t = mocks.NextWeekday(t)
	}
	return t
}

func fundamentals(sym string, asOf time.Time) *core.Fundamental {
	earnings := tradingDaysAfter(asOf, 20)
	return &core.Fundamental{
		Symbol:        sym,
		Sector:        "Technology",
		RevenueGrowth: core.Float(0.10),
		EPSGrowth:     core.Float(0.15),
		ForwardPE:     core.Float(22),
		NextEarnings:  &earnings,
	}
}

func TestWeights(t *testing.T) {
	assert.True(t, scanner.DefaultWeights().Valid())
	assert.InDelta(t, 1.0, scanner.DefaultWeights().Sum(), 1e-12)

	w := scanner.DefaultWeights()
	w.Trend = 0.5
	assert.False(t, w.Valid())

	neg := scanner.Weights{Trend: 1.2, Fundamental: -0.2}
	assert.False(t, neg.Valid())
}

func TestEvaluate_Passes(t *testing.T) {
	s := scanner.New(scanner.DefaultConfig(), nil)
	series := passing("AAA", 0.1)
	f := fundamentals("AAA", series.AsOf())

	c, ex := s.Evaluate("AAA", series, f, flatIndex, time.Time{})
	require.Nil(t, ex)

	price := series.Last().Close
	assert.Equal(t, price, c.Price)
	assert.Equal(t, price, c.EntryHigh)
	assert.Equal(t, price, c.Entry())
	assert.InDelta(t, price*0.98, c.EntryLow, 1e-9)

	atr, ok := indicator.ATR(series.Highs(), series.Lows(), series.Closes(), 14)
	require.True(t, ok)
	assert.InDelta(t, price-2*atr, c.Stop, 1e-9)
	assert.InDelta(t, 2*atr, c.RiskPerShare, 1e-9)

	assert.GreaterOrEqual(t, c.RSI, 45.0)
	assert.LessOrEqual(t, c.RSI, 65.0)
	assert.GreaterOrEqual(t, c.VolumeRatio, 1.2)

	for _, v := range []float64{c.Factors.Trend, c.Factors.Fundamental, c.Factors.RelativeStrength, c.Factors.Volume, c.Factors.Valuation} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.InDelta(t, math.Max(0, math.Min(1, (c.VolumeRatio-1)*2+0.5)), c.Factors.Volume, 1e-12)
	assert.InDelta(t, c.Factors.Composite(scanner.DefaultWeights()), c.Composite, 1e-12)
	assert.InDelta(t, 1.0, c.Scenario.Bull+c.Scenario.Base+c.Scenario.Bear, 1e-9)
	assert.Greater(t, c.Targets.Bull, c.Targets.Base)
	assert.Greater(t, c.Targets.Base, c.Targets.Bear)

	// forward PE 22 over 15% growth
	require.NotNil(t, c.PEG)
	assert.InDelta(t, 22.0/15.0, *c.PEG, 1e-9)
	assert.Equal(t, 0.6, c.Factors.Valuation)
}

func TestEvaluate_Filters(t *testing.T) {
	base := passing("AAA", 0.1)
	asOf := base.AsOf()

	sma50Falling := append(mocks.Trend(200, 100, 0.5, true), mocks.Trend(50, 199.2, -0.3, true)...)

	tests := []struct {
		name   string
		series core.PriceSeries
		mutate func(f *core.Fundamental)
		want   scanner.Reason
	}{
		{
			name:   "short history",
			series: mocks.Series("AAA", mocks.Trend(150, 100, 0.1, true)),
			want:   scanner.ReasonInsufficientHistory,
		},
		{
			name:   "below long average",
			series: mocks.WithLastVolume(mocks.Series("AAA", mocks.Trend(250, 300, -0.1, true)), 1_500_000),
			want:   scanner.ReasonBelowLongMA,
		},
		{
			name:   "short average falling",
			series: mocks.WithLastVolume(mocks.Series("AAA", sma50Falling), 1_500_000),
			want:   scanner.ReasonShortMANotRising,
		},
		{
			name:   "overbought",
			series: mocks.WithLastVolume(mocks.Series("AAA", mocks.Trend(250, 100, 0.5, true)), 1_500_000),
			want:   scanner.ReasonRSIOutOfBand,
		},
		{
			name:   "no volume expansion",
			series: mocks.Series("AAA", mocks.Trend(250, 100, 0.1, true)),
			want:   scanner.ReasonVolume,
		},
		{
			name:   "earnings shrinking",
			series: base,
			mutate: func(f *core.Fundamental) { f.EPSGrowth = core.Float(-0.05) },
			want:   scanner.ReasonGrowth,
		},
		{
			name:   "no growth data",
			series: base,
			mutate: func(f *core.Fundamental) { f.EPSGrowth, f.RevenueGrowth = nil, nil },
			want:   scanner.ReasonGrowth,
		},
		{
			name:   "earnings date unknown",
			series: base,
			mutate: func(f *core.Fundamental) { f.NextEarnings = nil },
			want:   scanner.ReasonEarningsAmbiguous,
		},
		{
			name:   "earnings date stale",
			series: base,
			mutate: func(f *core.Fundamental) { d := asOf.AddDate(0, 0, -10); f.NextEarnings = &d },
			want:   scanner.ReasonEarningsAmbiguous,
		},
		{
			name:   "earnings inside blackout",
			series: base,
			mutate: func(f *core.Fundamental) { d := tradingDaysAfter(asOf, 5); f.NextEarnings = &d },
			want:   scanner.ReasonEarningsBlackout,
		},
	}

	s := scanner.New(scanner.DefaultConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fundamentals("AAA", asOf)
			if tt.mutate != nil {
				tt.mutate(f)
			}
			_, ex := s.Evaluate("AAA", tt.series, f, flatIndex, asOf)
			require.NotNil(t, ex)
			assert.Equal(t, tt.want, ex.Reason, ex.Detail)
		})
	}
}

func TestEvaluate_FilterBoundaries(t *testing.T) {
	series := passing("AAA", 0.1)
	f := fundamentals("AAA", series.AsOf())

	c, ex := scanner.New(scanner.DefaultConfig(), nil).Evaluate("AAA", series, f, flatIndex, time.Time{})
	require.Nil(t, ex)
	rsi, ratio := c.RSI, c.VolumeRatio
	const eps = 1e-9

	tests := []struct {
		name   string
		mutate func(cfg *scanner.Config)
		want   scanner.Reason
	}{
		{"rsi at lower bound", func(cfg *scanner.Config) { cfg.RSIMin = rsi }, ""},
		{"rsi just below lower bound", func(cfg *scanner.Config) { cfg.RSIMin = rsi + eps }, scanner.ReasonRSIOutOfBand},
		{"rsi at upper bound", func(cfg *scanner.Config) { cfg.RSIMax = rsi }, ""},
		{"rsi just above upper bound", func(cfg *scanner.Config) { cfg.RSIMax = rsi - eps }, scanner.ReasonRSIOutOfBand},
		{"volume at multiple", func(cfg *scanner.Config) { cfg.VolumeMultiple = ratio }, ""},
		{"volume just below multiple", func(cfg *scanner.Config) { cfg.VolumeMultiple = ratio + eps }, scanner.ReasonVolume},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := scanner.DefaultConfig()
			tt.mutate(&cfg)
			_, ex := scanner.New(cfg, nil).Evaluate("AAA", series, f, flatIndex, time.Time{})
			if tt.want == "" {
				assert.Nil(t, ex)
				return
			}
			require.NotNil(t, ex)
			assert.Equal(t, tt.want, ex.Reason, ex.Detail)
		})
	}
}

func TestEvaluate_MissingFundamentalsFailsClosed(t *testing.T) {
	s := scanner.New(scanner.DefaultConfig(), nil)
	_, ex := s.Evaluate("AAA", passing("AAA", 0.1), nil, flatIndex, time.Time{})
	require.NotNil(t, ex)
	assert.Equal(t, scanner.ReasonGrowth, ex.Reason)
}

func TestEvaluate_EarningsJustOutsideBlackout(t *testing.T) {
	s := scanner.New(scanner.DefaultConfig(), nil)
	series := passing("AAA", 0.1)
	f := fundamentals("AAA", series.AsOf())
	d := tradingDaysAfter(series.AsOf(), 6)
	f.NextEarnings = &d

	_, ex := s.Evaluate("AAA", series, f, flatIndex, time.Time{})
	assert.Nil(t, ex)
}

func TestEvaluate_RevenueGrowthFallback(t *testing.T) {
	s := scanner.New(scanner.DefaultConfig(), nil)
	series := passing("AAA", 0.1)
	f := fundamentals("AAA", series.AsOf())
	f.EPSGrowth = nil

	c, ex := s.Evaluate("AAA", series, f, flatIndex, time.Time{})
	require.Nil(t, ex)
	assert.Nil(t, c.PEG)
	assert.Equal(t, 0.5, c.Factors.Valuation)
	assert.InDelta(t, 0.6, c.Factors.Fundamental, 1e-9)
}

func TestTradingDaysUntil(t *testing.T) {
	fri := time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		to   time.Time
		want int
		ok   bool
	}{
		{"same day", fri, 0, true},
		{"over weekend", time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), 1, true},
		{"saturday", time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC), 0, true},
		{"next friday", time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), 5, true},
		{"in the past", time.Date(2026, 10, 8, 0, 0, 0, 0, time.UTC), 0, false},
		{"time of day ignored", time.Date(2026, 10, 12, 21, 30, 0, 0, time.UTC), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := scanner.TradingDaysUntil(fri.Add(16*time.Hour), tt.to)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestLess_TotalOrder(t *testing.T) {
	a := scanner.Candidate{Symbol: "B", Composite: 0.8, RiskPerShare: 5}
	b := scanner.Candidate{Symbol: "A", Composite: 0.7, RiskPerShare: 1}
	c := scanner.Candidate{Symbol: "C", Composite: 0.8, RiskPerShare: 3}
	d := scanner.Candidate{Symbol: "A", Composite: 0.8, RiskPerShare: 3}

	assert.True(t, scanner.Less(a, b), "higher composite first")
	assert.True(t, scanner.Less(c, a), "lower risk breaks composite tie")
	assert.True(t, scanner.Less(d, c), "symbol breaks remaining tie")
	assert.False(t, scanner.Less(d, d))
}

func TestScenarioFor(t *testing.T) {
	bands := scanner.DefaultScenarioBands()

	tests := []struct {
		composite float64
		wantBull  float64
	}{
		{0.9, 0.45},
		{0.75, 0.45},
		{0.6, 0.35},
		{0.5, 0.30},
		{0.1, 0.20},
	}
	for _, tt := range tests {
		sc := scanner.ScenarioFor(tt.composite, bands)
		assert.Equal(t, tt.wantBull, sc.Bull, "composite %.2f", tt.composite)
		assert.InDelta(t, 1.0, sc.Bull+sc.Base+sc.Bear, 1e-12)
	}

	// thirds do not round cleanly; the base case absorbs the remainder
	odd := []scanner.ScenarioBand{{MinScore: 0, Bull: 1, Base: 1, Bear: 1}}
	sc := scanner.ScenarioFor(0.5, odd)
	assert.Equal(t, 0.3333, sc.Bull)
	assert.Equal(t, 0.3333, sc.Bear)
	assert.InDelta(t, 0.3334, sc.Base, 1e-12)
}

func TestScan_RanksAndFilters(t *testing.T) {
	asOf := passing("X", 0.1).AsOf()

	series := map[string]core.PriceSeries{
		"AAA":  passing("AAA", 0.1),
		"BBB":  passing("BBB", 0.05),
		"CCC":  passing("CCC", 0.1),
		"HELD": passing("HELD", 0.1),
		"DOWN": mocks.Series("DOWN", mocks.Trend(250, 300, -0.1, true)),
	}
	funds := map[string]*core.Fundamental{}
	for sym := range series {
		funds[sym] = fundamentals(sym, asOf)
	}
	funds["CCC"].NextEarnings = nil

	in := scanner.Input{
		AsOf:         asOf,
		Universe:     []string{"DOWN", "BBB", "AAA", "HELD", "AAA", "CCC", "NODATA"},
		Held:         []string{"HELD"},
		Series:       series,
		Fundamentals: funds,
		Benchmark:    flatIndex,
	}

	res := scanner.New(scanner.DefaultConfig(), nil).Scan(context.Background(), in)

	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "AAA", res.Candidates[0].Symbol)
	assert.Equal(t, "BBB", res.Candidates[1].Symbol)
	assert.Greater(t, res.Candidates[0].Composite, res.Candidates[1].Composite)

	assert.Equal(t, 5, res.Stats.Universe)
	assert.Equal(t, 5, res.Stats.Evaluated)
	assert.Equal(t, 2, res.Stats.Passed)
	assert.Equal(t, 1, res.Stats.Exclusions[scanner.ReasonBelowLongMA])
	assert.Equal(t, 1, res.Stats.Exclusions[scanner.ReasonEarningsAmbiguous])
	assert.Equal(t, 1, res.Stats.Exclusions[scanner.ReasonInsufficientHistory])

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, core.ErrAmbiguousEarningsDate.Code, res.Warnings[0].Code)
	assert.Equal(t, "CCC", res.Warnings[0].Symbol)
}

func TestScan_TieBreakAndTopN(t *testing.T) {
	asOf := passing("X", 0.1).AsOf()
	series := map[string]core.PriceSeries{}
	funds := map[string]*core.Fundamental{}
	for _, sym := range []string{"DDD", "AAA", "CCC", "BBB"} {
		series[sym] = passing(sym, 0.1)
		funds[sym] = fundamentals(sym, asOf)
	}

	cfg := scanner.DefaultConfig()
	cfg.TopN = 3
	s := scanner.New(cfg, nil)

	in := scanner.Input{
		Universe:     []string{"DDD", "CCC", "BBB", "AAA"},
		Series:       series,
		Fundamentals: funds,
		Benchmark:    flatIndex,
	}
	first := s.Scan(context.Background(), in)

	require.Len(t, first.Candidates, 3)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, symbols(first.Candidates))
	assert.Equal(t, 4, first.Stats.Passed)

	in.Universe = []string{"BBB", "AAA", "DDD", "CCC"}
	again := s.Scan(context.Background(), in)
	assert.Equal(t, first.Candidates, again.Candidates)
}

func symbols(cs []scanner.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Symbol
	}
	return out
}
