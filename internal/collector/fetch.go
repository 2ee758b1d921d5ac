package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/worker"
	"go.uber.org/zap"
)

const stage = "data"

// MarketData is everything fetched for one run.
type MarketData struct {
	Series       map[string]core.PriceSeries
	Fundamentals map[string]*core.Fundamental
	Requested    int
	Fetched      int
	Warnings     []core.Warning

	minBars int
}

// Coverage is the fraction of requested symbols that came back with at
// least the minimum bar count.
func (m *MarketData) Coverage() float64 {
	if m.Requested == 0 {
		return 1
	}
	return float64(m.Fetched) / float64(m.Requested)
}

// Covered reports whether symbol has enough history.
func (m *MarketData) Covered(symbol string) bool {
	s, ok := m.Series[symbol]
	return ok && s.Len() >= m.minBars
}

// CheckCoverage fails when coverage is below minPct percent.
func (m *MarketData) CheckCoverage(minPct float64) error {
	if pct := m.Coverage() * 100; pct < minPct {
		return core.WrapError(core.ErrDataCoverageBelowThreshold,
			fmt.Errorf("%.1f%% of %d symbols, need %.1f%%", pct, m.Requested, minPct))
	}
	return nil
}

// FetchRequest describes a bulk fetch.
type FetchRequest struct {
	Symbols      []string
	Lookback     int
	MinBars      int
	Fundamentals bool
	Concurrency  int
}

type fetched struct {
	series      core.PriceSeries
	seriesErr   error
	fundamental *core.Fundamental
	fundErr     error
}

// FetchAll pulls series (and optionally fundamentals) for every symbol on a
// bounded pool. Per-symbol failures become warnings.
func FetchAll(ctx context.Context, p Provider, req FetchRequest, logger *zap.Logger) *MarketData {
	if logger == nil {
		logger = zap.NewNop()
	}
	symbols := dedup(req.Symbols)
	md := &MarketData{
		Series:       make(map[string]core.PriceSeries, len(symbols)),
		Fundamentals: make(map[string]*core.Fundamental, len(symbols)),
		Requested:    len(symbols),
		minBars:      req.MinBars,
	}

	results, ok := worker.Map(ctx, req.Concurrency, symbols, func(ctx context.Context, sym string) fetched {
		var out fetched
		out.series, out.seriesErr = p.FetchSeries(ctx, sym, req.Lookback)
		if out.seriesErr == nil && req.Fundamentals {
			out.fundamental, out.fundErr = p.FetchFundamentals(ctx, sym)
		}
		return out
	})

	for i, sym := range symbols {
		if !ok[i] {
			md.Warnings = append(md.Warnings, core.NewWarning(stage, sym, ctx.Err()))
			continue
		}
		r := results[i]
		if r.seriesErr != nil {
			logger.Warn("series fetch failed", zap.String("symbol", sym), zap.Error(r.seriesErr))
			md.Warnings = append(md.Warnings, core.NewWarning(stage, sym, r.seriesErr))
			continue
		}
		md.Series[sym] = r.series
		if r.series.Len() >= req.MinBars {
			md.Fetched++
		}

		switch {
		case r.fundErr == nil && r.fundamental != nil:
			md.Fundamentals[sym] = r.fundamental
		case r.fundErr != nil && !errors.Is(r.fundErr, core.ErrMissingFundamentals):
			// scorers report plain absence themselves
			md.Warnings = append(md.Warnings, core.NewWarning(stage, sym, r.fundErr))
		}
	}

	logger.Info("market data fetched",
		zap.String("provider", p.Name()),
		zap.Int("requested", md.Requested),
		zap.Int("fetched", md.Fetched),
		zap.Float64("coverage", md.Coverage()),
	)
	return md
}

func dedup(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
