// Package engine runs the daily pipeline: regime, then holdings health and
// the opportunity scan side by side, then allocation.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/bigthing/internal/allocator"
	"github.com/newthinker/bigthing/internal/collector"
	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/health"
	"github.com/newthinker/bigthing/internal/metrics"
	"github.com/newthinker/bigthing/internal/regime"
	"github.com/newthinker/bigthing/internal/scanner"
	"github.com/newthinker/bigthing/internal/universe"
	"go.uber.org/zap"
)

// Config wires the stage configurations together.
type Config struct {
	Regime    regime.Config
	Health    health.Config
	Scanner   scanner.Config
	Allocator allocator.Config

	Baskets          []string
	Exclude          []string
	ExternalHoldings []core.ExternalHolding

	// Lookback is the number of daily bars requested per symbol.
	Lookback       int
	MinCoveragePct float64
	Concurrency    int

	// AsOf overrides the run date. Zero means the last index bar.
	AsOf time.Time
}

// DefaultConfig returns stage defaults with a 260-bar lookback and an 80%
// coverage floor.
func DefaultConfig() Config {
	return Config{
		Regime:         regime.DefaultConfig(),
		Health:         health.DefaultConfig(),
		Scanner:        scanner.DefaultConfig(),
		Allocator:      allocator.DefaultConfig(),
		Lookback:       260,
		MinCoveragePct: 80,
		Concurrency:    8,
	}
}

// Engine is the pipeline orchestrator.
type Engine struct {
	cfg      Config
	provider collector.Provider
	universe universe.Provider
	metrics  *metrics.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an engine reading market data from provider and baskets
// from u.
func New(cfg Config, provider collector.Provider, u universe.Provider, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		provider: provider,
		universe: u,
		logger:   logger,
		now:      time.Now,
	}
}

// SetMetrics attaches a metrics registry.
func (e *Engine) SetMetrics(m *metrics.Registry) {
	e.metrics = m
}

// Regime fetches the three market series and classifies them. Any fetch
// failure is fatal.
func (e *Engine) Regime(ctx context.Context) (regime.Result, core.PriceSeries, error) {
	start := e.now()
	defer func() { e.metrics.ObserveStage("regime", e.now().Sub(start)) }()

	rc := e.cfg.Regime
	var in regime.Inputs
	targets := []*core.PriceSeries{&in.Index, &in.Volatility, &in.Yield}
	for i, sym := range rc.Symbols() {
		s, err := e.provider.FetchSeries(ctx, sym, e.cfg.Lookback)
		if err != nil {
			return regime.Result{}, core.PriceSeries{}, core.SymbolError(core.ErrNoData, "regime", sym, err)
		}
		*targets[i] = s
	}

	res, err := regime.Classify(rc, in)
	if err != nil {
		return regime.Result{}, core.PriceSeries{}, err
	}
	e.logger.Info("regime classified",
		zap.String("label", string(res.Label)),
		zap.Float64("multiplier", res.Multiplier),
		zap.String("structure", string(res.Signals.Structure)),
	)
	return res, in.Index, nil
}

// Universe resolves the configured baskets minus held and excluded
// symbols.
func (e *Engine) Universe(ctx context.Context, held []string) ([]string, error) {
	if len(e.cfg.Baskets) == 0 || e.universe == nil {
		return nil, nil
	}
	exclude := append(append([]string{}, e.cfg.Exclude...), held...)
	return universe.Build(ctx, e.universe, e.cfg.Baskets, exclude)
}

// Run executes the full pipeline for portfolio. It returns no report when
// the regime cannot be classified, data coverage is too low or the
// allocation breaks a hard limit.
func (e *Engine) Run(ctx context.Context, portfolio core.Portfolio) (*Report, error) {
	start := e.now()
	report, err := e.run(ctx, portfolio, start)
	elapsed := e.now().Sub(start)
	if err != nil {
		e.metrics.RecordRun(metrics.StatusFailed, elapsed, start)
		e.logger.Error("run failed", zap.Error(err), zap.Duration("duration", elapsed))
		return nil, err
	}
	report.Meta.Duration = elapsed
	e.metrics.RecordRun(metrics.StatusOK, elapsed, start)
	e.logger.Info("run complete",
		zap.String("run_id", report.Meta.RunID),
		zap.Int("positions", len(report.Plan.Positions)),
		zap.Int("warnings", len(report.Meta.Warnings)),
		zap.Duration("duration", elapsed),
	)
	return report, nil
}

func (e *Engine) run(ctx context.Context, portfolio core.Portfolio, start time.Time) (*Report, error) {
	reg, index, err := e.Regime(ctx)
	if err != nil {
		return nil, err
	}
	e.metrics.SetRegime(string(reg.Label), []string{
		string(core.RegimeRiskOn), string(core.RegimeNeutral), string(core.RegimeRiskOff),
	})

	asOf := e.cfg.AsOf
	if asOf.IsZero() {
		asOf = index.AsOf()
	}

	held := make([]string, 0, len(portfolio.Holdings))
	for _, h := range portfolio.Holdings {
		held = append(held, h.Symbol)
	}
	symbols, err := e.Universe(ctx, held)
	if err != nil {
		return nil, fmt.Errorf("resolve universe: %w", err)
	}

	fetchStart := e.now()
	md := collector.FetchAll(ctx, e.provider, collector.FetchRequest{
		Symbols:      append(append([]string{}, held...), symbols...),
		Lookback:     e.cfg.Lookback,
		MinBars:      e.cfg.Scanner.LongWindow,
		Fundamentals: true,
		Concurrency:  e.cfg.Concurrency,
	}, e.logger)
	e.metrics.ObserveStage("fetch", e.now().Sub(fetchStart))
	e.metrics.SetCoverage(md.Coverage(), md.Requested, md.Fetched)
	if err := md.CheckCoverage(e.cfg.MinCoveragePct); err != nil {
		return nil, err
	}

	covered := symbols[:0:0]
	for _, s := range symbols {
		if md.Covered(s) {
			covered = append(covered, s)
		}
	}

	var (
		wg         sync.WaitGroup
		healthRes  health.Result
		scanRes    scanner.Result
		healthTime time.Duration
		scanTime   time.Duration
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		t := e.now()
		healthRes = health.New(e.cfg.Health, e.logger).Score(ctx, health.Input{
			Regime:       reg.Label,
			Holdings:     portfolio.Holdings,
			Series:       md.Series,
			Fundamentals: md.Fundamentals,
			Benchmark:    index,
		})
		healthTime = e.now().Sub(t)
	}()
	go func() {
		defer wg.Done()
		t := e.now()
		scanRes = scanner.New(e.cfg.Scanner, e.logger).Scan(ctx, scanner.Input{
			AsOf:         asOf,
			Universe:     covered,
			Held:         held,
			Series:       md.Series,
			Fundamentals: md.Fundamentals,
			Benchmark:    index,
		})
		scanTime = e.now().Sub(t)
	}()
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.metrics.ObserveStage("health", healthTime)
	e.metrics.ObserveStage("scan", scanTime)

	allocStart := e.now()
	plan, err := allocator.Allocate(e.cfg.Allocator, allocator.Input{
		Regime:     reg.Label,
		Portfolio:  portfolio,
		Holdings:   healthRes.Assessments,
		Candidates: scanRes.Candidates,
	})
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveStage("allocate", e.now().Sub(allocStart))

	var warnings []core.Warning
	warnings = append(warnings, md.Warnings...)
	warnings = append(warnings, healthRes.Warnings...)
	warnings = append(warnings, scanRes.Warnings...)
	for _, w := range warnings {
		e.metrics.AddWarning(w.Stage, w.Code)
	}
	e.recordOutputs(healthRes, scanRes, plan)

	return &Report{
		Meta: Meta{
			RunID:       uuid.NewString(),
			RunDate:     asOf,
			GeneratedAt: start,
			Provider:    e.provider.Name(),
			Coverage:    md.Coverage(),
			Requested:   md.Requested,
			Fetched:     md.Fetched,
			Warnings:    warnings,
		},
		PortfolioValue:   portfolio.TotalValue,
		Regime:           reg,
		Holdings:         healthRes.Assessments,
		Candidates:       scanRes.Candidates,
		ScanStats:        scanRes.Stats,
		Plan:             plan,
		ExternalHoldings: e.cfg.ExternalHoldings,
	}, nil
}

func (e *Engine) recordOutputs(h health.Result, s scanner.Result, p allocator.Plan) {
	if e.metrics == nil {
		return
	}
	actions := map[string]int{
		string(core.ActionStrongHold): 0,
		string(core.ActionHold):       0,
		string(core.ActionTrim25):     0,
		string(core.ActionExit):       0,
	}
	for _, a := range h.Assessments {
		actions[string(a.Action)]++
	}
	e.metrics.SetHoldingActions(actions)

	excl := make(map[string]int, len(s.Stats.Exclusions))
	for r, n := range s.Stats.Exclusions {
		excl[string(r)] = n
	}
	e.metrics.SetScan(s.Stats.Universe, s.Stats.Passed, excl)
	e.metrics.SetPlan(len(p.Positions), p.Deployed, p.CashPct)
}
