// Package scanner screens the universe for new long entries and ranks the
// survivors by a weighted composite of five factors.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/indicator"
	"github.com/newthinker/bigthing/internal/worker"
	"go.uber.org/zap"
)

const stage = "scanner"

// Reason identifies why a symbol was screened out.
type Reason string

const (
	ReasonInsufficientHistory Reason = "insufficient_history"
	ReasonBelowLongMA         Reason = "price_below_sma200"
	ReasonShortMANotRising    Reason = "sma50_not_rising"
	ReasonRSIOutOfBand        Reason = "rsi_out_of_band"
	ReasonVolume              Reason = "volume_below_multiple"
	ReasonGrowth              Reason = "growth_not_positive"
	ReasonEarningsAmbiguous   Reason = "earnings_ambiguous"
	ReasonEarningsBlackout    Reason = "earnings_blackout"
)

// Exclusion records the first filter a symbol failed.
type Exclusion struct {
	Symbol string `json:"symbol"`
	Reason Reason `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Factors are the normalized [0,1] factor scores.
type Factors struct {
	Trend            float64 `json:"trend"`
	Fundamental      float64 `json:"fundamental"`
	RelativeStrength float64 `json:"relative_strength"`
	Volume           float64 `json:"volume"`
	Valuation        float64 `json:"valuation"`
}

// Composite weights the factors.
func (f Factors) Composite(w Weights) float64 {
	return f.Trend*w.Trend +
		f.Fundamental*w.Fundamental +
		f.RelativeStrength*w.RelativeStrength +
		f.Volume*w.Volume +
		f.Valuation*w.Valuation
}

// Scenario holds outcome probabilities. Bull + Base + Bear == 1.
type Scenario struct {
	Bull float64 `json:"bull"`
	Base float64 `json:"base"`
	Bear float64 `json:"bear"`
}

// Targets are price levels for each scenario over the target horizon.
type Targets struct {
	Bull float64 `json:"bull"`
	Base float64 `json:"base"`
	Bear float64 `json:"bear"`
}

// Candidate is a ranked entry opportunity.
type Candidate struct {
	Symbol       string   `json:"symbol"`
	Sector       string   `json:"sector"`
	Price        float64  `json:"price"`
	Composite    float64  `json:"composite"`
	Factors      Factors  `json:"factors"`
	EntryLow     float64  `json:"entry_low"`
	EntryHigh    float64  `json:"entry_high"`
	Stop         float64  `json:"stop"`
	RiskPerShare float64  `json:"risk_per_share"`
	RSI          float64  `json:"rsi"`
	VolumeRatio  float64  `json:"volume_ratio"`
	PEG          *float64 `json:"peg,omitempty"`
	Scenario     Scenario `json:"scenario"`
	Targets      Targets  `json:"targets"`
}

// Entry is the reference price used for sizing.
func (c Candidate) Entry() float64 { return c.EntryHigh }

// Less is the candidate total order: composite descending, then risk per
// share ascending, then symbol.
func Less(a, b Candidate) bool {
	if a.Composite != b.Composite {
		return a.Composite > b.Composite
	}
	if a.RiskPerShare != b.RiskPerShare {
		return a.RiskPerShare < b.RiskPerShare
	}
	return a.Symbol < b.Symbol
}

// Input is everything the scanner reads.
type Input struct {
	AsOf         time.Time
	Universe     []string
	Held         []string
	Series       map[string]core.PriceSeries
	Fundamentals map[string]*core.Fundamental
	Benchmark    core.PriceSeries
}

// Stats summarizes one scan.
type Stats struct {
	Universe   int            `json:"universe"`
	Evaluated  int            `json:"evaluated"`
	Passed     int            `json:"passed"`
	Exclusions map[Reason]int `json:"exclusions"`
}

// Result holds the top candidates in rank order.
type Result struct {
	Candidates []Candidate
	Excluded   []Exclusion
	Stats      Stats
	Warnings   []core.Warning
}

// Scanner screens and ranks candidates.
type Scanner struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a scanner. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{cfg: cfg, logger: logger}
}

type outcome struct {
	candidate Candidate
	excluded  *Exclusion
}

// Scan screens every non-held universe symbol and returns at most TopN
// candidates in rank order.
func (s *Scanner) Scan(ctx context.Context, in Input) Result {
	held := make(map[string]bool, len(in.Held))
	for _, h := range in.Held {
		held[h] = true
	}

	seen := make(map[string]bool, len(in.Universe))
	symbols := make([]string, 0, len(in.Universe))
	for _, sym := range in.Universe {
		if seen[sym] || held[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	res := Result{Stats: Stats{Universe: len(symbols), Exclusions: make(map[Reason]int)}}

	outs, done := worker.Map(ctx, s.cfg.Concurrency, symbols, func(_ context.Context, sym string) outcome {
		c, ex := s.Evaluate(sym, in.Series[sym], in.Fundamentals[sym], in.Benchmark, in.AsOf)
		return outcome{candidate: c, excluded: ex}
	})

	var passed []Candidate
	for i, o := range outs {
		if !done[i] {
			res.Warnings = append(res.Warnings, core.NewWarning(stage, symbols[i], ctx.Err()))
			continue
		}
		res.Stats.Evaluated++
		if o.excluded != nil {
			res.Excluded = append(res.Excluded, *o.excluded)
			res.Stats.Exclusions[o.excluded.Reason]++
			if o.excluded.Reason == ReasonEarningsAmbiguous {
				res.Warnings = append(res.Warnings, core.NewWarning(stage, symbols[i],
					core.SymbolError(core.ErrAmbiguousEarningsDate, stage, symbols[i], nil)))
			}
			continue
		}
		passed = append(passed, o.candidate)
	}
	res.Stats.Passed = len(passed)

	sort.Slice(passed, func(i, j int) bool { return Less(passed[i], passed[j]) })
	if s.cfg.TopN > 0 && len(passed) > s.cfg.TopN {
		passed = passed[:s.cfg.TopN]
	}
	res.Candidates = passed

	s.logger.Info("scan complete",
		zap.Int("universe", res.Stats.Universe),
		zap.Int("passed", res.Stats.Passed),
		zap.Int("ranked", len(res.Candidates)),
	)
	return res
}

// Evaluate runs the hard filters and, if all pass, scores the symbol.
// asOf defaults to the date of the last bar.
func (s *Scanner) Evaluate(sym string, series core.PriceSeries, f *core.Fundamental, benchmark core.PriceSeries, asOf time.Time) (Candidate, *Exclusion) {
	exclude := func(r Reason, format string, args ...any) (Candidate, *Exclusion) {
		return Candidate{}, &Exclusion{Symbol: sym, Reason: r, Detail: fmt.Sprintf(format, args...)}
	}

	if series.Len() < s.cfg.LongWindow {
		return exclude(ReasonInsufficientHistory, "have %d bars, need %d", series.Len(), s.cfg.LongWindow)
	}
	if asOf.IsZero() {
		asOf = series.AsOf()
	}

	closes := series.Closes()
	price := series.Last().Close

	smaLong, _ := indicator.LastSMA(closes, s.cfg.LongWindow)
	if price <= smaLong {
		return exclude(ReasonBelowLongMA, "price %.2f, average %.2f", price, smaLong)
	}

	rising, ok := indicator.Rising(closes, s.cfg.ShortWindow, s.cfg.SlopeLookback)
	if !ok || !rising {
		return exclude(ReasonShortMANotRising, "%d-day average not rising over %d bars", s.cfg.ShortWindow, s.cfg.SlopeLookback)
	}

	rsi, ok := indicator.RSI(closes, s.cfg.RSIPeriod)
	if !ok || rsi < s.cfg.RSIMin || rsi > s.cfg.RSIMax {
		return exclude(ReasonRSIOutOfBand, "RSI %.1f outside [%.0f, %.0f]", rsi, s.cfg.RSIMin, s.cfg.RSIMax)
	}

	volRatio := volumeRatio(series.Volumes(), s.cfg.VolumeLookback)
	if volRatio < s.cfg.VolumeMultiple {
		return exclude(ReasonVolume, "volume %.2fx average, need %.2fx", volRatio, s.cfg.VolumeMultiple)
	}

	growth, ok := growthOf(f)
	if !ok || growth <= 0 {
		return exclude(ReasonGrowth, "earnings growth not positive")
	}

	if f.NextEarnings == nil {
		return exclude(ReasonEarningsAmbiguous, "next earnings date unknown")
	}
	days, ok := TradingDaysUntil(asOf, *f.NextEarnings)
	if !ok {
		return exclude(ReasonEarningsAmbiguous, "earnings date %s precedes %s",
			f.NextEarnings.Format(time.DateOnly), asOf.Format(time.DateOnly))
	}
	if days <= s.cfg.EarningsBlackoutDays {
		return exclude(ReasonEarningsBlackout, "earnings in %d trading days", days)
	}

	c := Candidate{
		Symbol:      sym,
		Sector:      f.Sector,
		Price:       price,
		RSI:         rsi,
		VolumeRatio: volRatio,
	}
	c.Factors, c.PEG = s.factors(closes, f, benchmark, volRatio)
	c.Composite = c.Factors.Composite(s.cfg.Weights)

	smaShort, _ := indicator.LastSMA(closes, s.cfg.ShortWindow)
	c.EntryHigh = price
	c.EntryLow = min(smaShort, price*(1-s.cfg.EntryDiscount))

	atr, atrOK := indicator.ATR(series.Highs(), series.Lows(), closes, s.cfg.ATRPeriod)
	c.Stop = price * (1 - s.cfg.FallbackStopPct)
	if atrOK && atr > 0 && price-s.cfg.ATRMultiple*atr > 0 {
		c.Stop = price - s.cfg.ATRMultiple*atr
	}
	c.RiskPerShare = c.EntryHigh - c.Stop

	c.Scenario = ScenarioFor(c.Composite, s.cfg.ScenarioBands)
	c.Targets = targets(price, atr, s.cfg.TargetHorizonDays)

	return c, nil
}

func volumeRatio(volumes []float64, lookback int) float64 {
	if lookback <= 0 || len(volumes) < lookback {
		return 0
	}
	var sum float64
	for _, v := range volumes[len(volumes)-lookback:] {
		sum += v
	}
	avg := sum / float64(lookback)
	if avg == 0 {
		return 0
	}
	return volumes[len(volumes)-1] / avg
}

// growthOf prefers EPS growth and falls back to revenue growth.
func growthOf(f *core.Fundamental) (float64, bool) {
	switch {
	case f == nil:
		return 0, false
	case f.EPSGrowth != nil:
		return *f.EPSGrowth, true
	case f.RevenueGrowth != nil:
		return *f.RevenueGrowth, true
	}
	return 0, false
}

// TradingDaysUntil counts weekdays after from up to and including to.
// ok is false when to is before from.
func TradingDaysUntil(from, to time.Time) (int, bool) {
	from = day(from)
	to = day(to)
	if to.Before(from) {
		return 0, false
	}
	n := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			n++
		}
	}
	return n, true
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
