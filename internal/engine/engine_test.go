package engine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/bigthing/internal/collector/mocks"
	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/engine"
	"github.com/newthinker/bigthing/internal/metrics"
	"github.com/newthinker/bigthing/internal/universe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing(sym string, step float64) core.PriceSeries {
	return mocks.WithLastVolume(mocks.Series(sym, mocks.Trend(250, 100, step, true)), 1_500_000)
}

func fundamentals(sym string, asOf time.Time) *core.Fundamental {
	earnings := asOf
	for i := 0; i < 20; i++ {
		earnings = mocks.NextWeekday(earnings)
	}
	return &core.Fundamental{
		Symbol:        sym,
		Sector:        "Technology",
		RevenueGrowth: core.Float(0.10),
		EPSGrowth:     core.Float(0.15),
		ProfitMargin:  core.Float(0.20),
		ForwardPE:     core.Float(22),
		NextEarnings:  &earnings,
	}
}

func newProvider() *mocks.Provider {
	m := mocks.New()
	m.SetSeries(mocks.Series("SPY", mocks.Trend(250, 100, 0.5, true)))
	m.SetSeries(mocks.Series("^VIX", mocks.Flat(250, 15)))
	m.SetSeries(mocks.Series("^TNX", mocks.Flat(250, 4.2)))

	for _, s := range []core.PriceSeries{
		passing("AAA", 0.1),
		passing("BBB", 0.05),
		passing("HELD", 0.1),
		mocks.Series("DOWN", mocks.Trend(250, 300, -0.1, true)),
	} {
		m.SetSeries(s)
		m.SetFundamentals(fundamentals(s.Symbol, s.AsOf()))
	}
	return m
}

func portfolio() core.Portfolio {
	return core.Portfolio{
		TotalValue:      100_000,
		Holdings:        []core.Holding{{Symbol: "HELD", Shares: 10, CostBasis: 100, Sector: "Technology"}},
		MaxPositions:    5,
		CashFloorPct:    10,
		RiskPerTradePct: 1,
		MaxSectorPct:    100,
	}
}

func newEngine(p *mocks.Provider, baskets universe.Static) *engine.Engine {
	cfg := engine.DefaultConfig()
	for name := range baskets {
		cfg.Baskets = append(cfg.Baskets, name)
	}
	cfg.ExternalHoldings = []core.ExternalHolding{{Name: "Private fund", Quantity: 1, AvgCost: 5000}}
	return engine.New(cfg, p, baskets, nil)
}

func TestRun_FullPipeline(t *testing.T) {
	p := newProvider()
	e := newEngine(p, universe.Static{"core": {"AAA", "BBB", "DOWN", "HELD"}})
	reg := metrics.NewRegistry()
	e.SetMetrics(reg)

	report, err := e.Run(context.Background(), portfolio())
	require.NoError(t, err)

	assert.Equal(t, core.RegimeRiskOn, report.Regime.Label)
	assert.Equal(t, 1.0, report.Regime.Multiplier)

	assert.NotEmpty(t, report.Meta.RunID)
	assert.Equal(t, "mock", report.Meta.Provider)
	assert.Equal(t, 4, report.Meta.Requested)
	assert.Equal(t, 4, report.Meta.Fetched)
	assert.Equal(t, 1.0, report.Meta.Coverage)
	assert.Equal(t, 1, p.Calls("SPY"))
	assert.True(t, report.Meta.RunDate.Equal(mocks.Series("SPY", mocks.Flat(250, 1)).AsOf()))

	require.Len(t, report.Holdings, 1)
	assert.Equal(t, "HELD", report.Holdings[0].Symbol)

	// held symbols are never recommended
	for _, c := range report.Candidates {
		assert.NotEqual(t, "HELD", c.Symbol)
	}
	require.Len(t, report.Candidates, 2)
	assert.Equal(t, "AAA", report.Candidates[0].Symbol)
	assert.Equal(t, 3, report.ScanStats.Universe)
	assert.Equal(t, 1, report.ScanStats.Exclusions["price_below_sma200"])

	require.NotEmpty(t, report.Plan.Positions)
	assert.Equal(t, report.Candidates[0].Symbol, report.Plan.Positions[0].Symbol)
	assert.GreaterOrEqual(t, report.Plan.CashPct, 10.0)
	assert.LessOrEqual(t, report.Plan.OpenPositions, 5)

	require.Len(t, report.ExternalHoldings, 1)
	assert.Contains(t, report.Summary(), "RISK_ON")
	assert.True(t, strings.HasPrefix(report.Title(), "Daily report "))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["bigthing_runs_total"])
	assert.True(t, names["bigthing_stage_duration_seconds"])
}

func TestRun_Repeatable(t *testing.T) {
	baskets := universe.Static{"core": {"AAA", "BBB", "DOWN"}}

	first, err := newEngine(newProvider(), baskets).Run(context.Background(), portfolio())
	require.NoError(t, err)
	second, err := newEngine(newProvider(), baskets).Run(context.Background(), portfolio())
	require.NoError(t, err)

	assert.Equal(t, first.Regime, second.Regime)
	assert.Equal(t, first.Holdings, second.Holdings)
	assert.Equal(t, first.Candidates, second.Candidates)
	assert.Equal(t, first.Plan, second.Plan)
	assert.NotEqual(t, first.Meta.RunID, second.Meta.RunID)
}

func TestRun_ShortIndexHistoryIsFatal(t *testing.T) {
	p := newProvider()
	p.SetSeries(mocks.Series("SPY", mocks.Trend(120, 100, 0.5, true)))

	report, err := newEngine(p, nil).Run(context.Background(), portfolio())
	assert.Nil(t, report)
	assert.ErrorIs(t, err, core.ErrInsufficientHistory)
}

func TestRun_MissingRegimeSeriesIsFatal(t *testing.T) {
	p := mocks.New()
	p.SetSeries(mocks.Series("SPY", mocks.Trend(250, 100, 0.5, true)))

	_, err := newEngine(p, nil).Run(context.Background(), portfolio())
	assert.ErrorIs(t, err, core.ErrNoData)
	assert.ErrorIs(t, err, core.ErrSymbolNotFound)
}

func TestRun_LowCoverageAborts(t *testing.T) {
	e := newEngine(newProvider(), universe.Static{"core": {"AAA", "GONE1", "GONE2", "GONE3", "GONE4"}})

	report, err := e.Run(context.Background(), portfolio())
	assert.Nil(t, report)
	assert.ErrorIs(t, err, core.ErrDataCoverageBelowThreshold)
}

func TestRun_WarningsCarryContext(t *testing.T) {
	p := newProvider()
	p.SetSeries(mocks.Series("IPO", mocks.Flat(30, 20)))

	pf := portfolio()
	pf.Holdings = append(pf.Holdings, core.Holding{Symbol: "IPO", Shares: 5, CostBasis: 20})

	cfg := engine.DefaultConfig()
	cfg.MinCoveragePct = 0
	report, err := engine.New(cfg, p, nil, nil).Run(context.Background(), pf)
	require.NoError(t, err)

	var found bool
	for _, w := range report.Meta.Warnings {
		if w.Symbol == "IPO" && w.Code == core.ErrInsufficientHistory.Code {
			found = true
			assert.Equal(t, "health", w.Stage)
		}
	}
	assert.True(t, found, "expected insufficient history warning for IPO, got %+v", report.Meta.Warnings)
	assert.Len(t, report.Holdings, 1)
}

func TestUniverse_ExcludesHeld(t *testing.T) {
	e := newEngine(newProvider(), universe.Static{"a": {"AAA", "HELD"}, "b": {"bbb"}})

	got, err := e.Universe(context.Background(), []string{"HELD"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, got)
}
