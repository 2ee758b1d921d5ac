// Package health scores existing holdings on trend, fundamentals, relative
// strength and macro alignment, and maps the score to an action.
package health

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/indicator"
	"github.com/newthinker/bigthing/internal/regime"
	"github.com/newthinker/bigthing/internal/worker"
	"go.uber.org/zap"
)

const stage = "health"

// Breakdown holds the four capped sub-scores.
type Breakdown struct {
	Trend            int `json:"trend"`
	Fundamentals     int `json:"fundamentals"`
	RelativeStrength int `json:"relative_strength"`
	MacroAlignment   int `json:"macro_alignment"`
}

// Total is the sum of the sub-scores.
func (b Breakdown) Total() int {
	return b.Trend + b.Fundamentals + b.RelativeStrength + b.MacroAlignment
}

// Assessment is the scored state of one holding.
type Assessment struct {
	Symbol           string      `json:"symbol"`
	Sector           string      `json:"sector"`
	Score            int         `json:"score"`
	Breakdown        Breakdown   `json:"breakdown"`
	Action           core.Action `json:"action"`
	Price            float64     `json:"price"`
	StopLoss         float64     `json:"stop_loss"`
	RiskPerShare     float64     `json:"risk_per_share"`
	Shares           int         `json:"shares"`
	CostBasis        float64     `json:"cost_basis"`
	MarketValue      float64     `json:"market_value"`
	UnrealizedPnLPct float64     `json:"unrealized_pnl_pct"`
	PctFromShortMA   float64     `json:"pct_from_short_ma"`
	PctFromLongMA    float64     `json:"pct_from_long_ma"`
	Degraded         bool        `json:"degraded"`
	Notes            []string    `json:"notes,omitempty"`
	Explanation      string      `json:"explanation"`
}

// ActionFor maps a 0-10 score to its action band.
func ActionFor(score int) core.Action {
	switch {
	case score >= 8:
		return core.ActionStrongHold
	case score >= 6:
		return core.ActionHold
	case score >= 4:
		return core.ActionTrim25
	default:
		return core.ActionExit
	}
}

// Input is everything the scorer reads.
type Input struct {
	Regime       core.Regime
	Holdings     []core.Holding
	Series       map[string]core.PriceSeries
	Fundamentals map[string]*core.Fundamental
	Benchmark    core.PriceSeries
}

// Result holds assessments sorted by symbol and any non-fatal problems.
type Result struct {
	Assessments []Assessment
	Warnings    []core.Warning
}

// Scorer evaluates holdings.
type Scorer struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a scorer. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{cfg: cfg, logger: logger}
}

type outcome struct {
	assessment Assessment
	warnings   []core.Warning
	err        error
}

// Score assesses every holding. Holdings without enough history are left
// out and reported as warnings.
func (s *Scorer) Score(ctx context.Context, in Input) Result {
	outs, done := worker.Map(ctx, s.cfg.Concurrency, in.Holdings, func(_ context.Context, h core.Holding) outcome {
		a, warns, err := s.Assess(h, in.Series[h.Symbol], in.Fundamentals[h.Symbol], in.Benchmark, in.Regime)
		return outcome{assessment: a, warnings: warns, err: err}
	})

	var res Result
	for i, o := range outs {
		sym := in.Holdings[i].Symbol
		if !done[i] {
			res.Warnings = append(res.Warnings, core.NewWarning(stage, sym, ctx.Err()))
			continue
		}
		res.Warnings = append(res.Warnings, o.warnings...)
		if o.err != nil {
			s.logger.Warn("holding excluded", zap.String("symbol", sym), zap.Error(o.err))
			res.Warnings = append(res.Warnings, core.NewWarning(stage, sym, o.err))
			continue
		}
		s.logger.Debug("holding scored",
			zap.String("symbol", sym),
			zap.Int("score", o.assessment.Score),
			zap.String("action", string(o.assessment.Action)),
		)
		res.Assessments = append(res.Assessments, o.assessment)
	}

	sort.Slice(res.Assessments, func(i, j int) bool {
		return res.Assessments[i].Symbol < res.Assessments[j].Symbol
	})
	return res
}

// Assess scores a single holding.
func (s *Scorer) Assess(h core.Holding, series core.PriceSeries, f *core.Fundamental, benchmark core.PriceSeries, r core.Regime) (Assessment, []core.Warning, error) {
	if series.Len() < s.cfg.LongWindow {
		return Assessment{}, nil, core.SymbolError(core.ErrInsufficientHistory, stage, h.Symbol,
			fmt.Errorf("have %d bars, need %d", series.Len(), s.cfg.LongWindow))
	}

	closes := series.Closes()
	price := series.Last().Close
	smaLong, _ := indicator.LastSMA(closes, s.cfg.LongWindow)
	smaShort, _ := indicator.LastSMA(closes, s.cfg.ShortWindow)

	a := Assessment{
		Symbol:    h.Symbol,
		Sector:    h.Sector,
		Price:     price,
		Shares:    h.Shares,
		CostBasis: h.CostBasis,
	}
	if a.Sector == "" && f != nil {
		a.Sector = f.Sector
	}
	a.MarketValue = float64(h.Shares) * price
	if h.CostBasis > 0 {
		a.UnrealizedPnLPct = (price/h.CostBasis - 1) * 100
	}
	a.PctFromShortMA = pctFrom(price, smaShort)
	a.PctFromLongMA = pctFrom(price, smaLong)

	var warns []core.Warning

	// Trend
	if price > smaLong {
		a.Breakdown.Trend++
		a.Notes = append(a.Notes, fmt.Sprintf("above %d-day average", s.cfg.LongWindow))
	}
	if price > smaShort {
		a.Breakdown.Trend++
		a.Notes = append(a.Notes, fmt.Sprintf("above %d-day average", s.cfg.ShortWindow))
	}
	if indicator.DetectStructure(closes, s.cfg.Structure) == indicator.HigherHighs {
		a.Breakdown.Trend++
		a.Notes = append(a.Notes, "making higher highs")
	}

	// Fundamentals
	if f == nil {
		a.Degraded = true
		a.Notes = append(a.Notes, "fundamentals unavailable")
		warns = append(warns, core.NewWarning(stage, h.Symbol,
			core.SymbolError(core.ErrMissingFundamentals, stage, h.Symbol, nil)))
	} else {
		a.Breakdown.Fundamentals = s.fundamentalPoints(f, &a)
	}

	// Relative strength
	a.Breakdown.RelativeStrength = s.relativeStrength(closes, benchmark, &a)

	// Macro alignment
	if s.cfg.Favored(r, a.Sector) {
		a.Breakdown.MacroAlignment++
		a.Notes = append(a.Notes, fmt.Sprintf("sector favoured in %s", r))
	}
	if slope, ok := indicator.Slope(closes, s.cfg.DirectionWindow); ok {
		dir := regime.Direction(r)
		if (dir > 0 && slope > 0) || (dir < 0 && slope < 0) {
			a.Breakdown.MacroAlignment++
			a.Notes = append(a.Notes, "price direction agrees with regime")
		}
	}

	a.Score = a.Breakdown.Total()
	a.Action = ActionFor(a.Score)
	a.StopLoss = s.stop(series, price)
	a.RiskPerShare = price - a.StopLoss
	a.Explanation = explain(a)

	return a, warns, nil
}

func (s *Scorer) fundamentalPoints(f *core.Fundamental, a *Assessment) int {
	points := 0
	missing := 0

	switch {
	case f.RevenueGrowth == nil:
		missing++
	case *f.RevenueGrowth > 0:
		points++
		a.Notes = append(a.Notes, "revenue growing")
	}
	switch {
	case f.EPSGrowth == nil:
		missing++
	case *f.EPSGrowth > 0:
		points++
		a.Notes = append(a.Notes, "earnings growing")
	}
	switch {
	case f.MarginTrend != nil:
		if *f.MarginTrend > 0 {
			points++
			a.Notes = append(a.Notes, "margins expanding")
		}
	case f.ProfitMargin != nil:
		if *f.ProfitMargin >= s.cfg.MinProfitMargin {
			points++
			a.Notes = append(a.Notes, "healthy profit margin")
		}
	default:
		missing++
	}

	if missing > 0 {
		a.Degraded = true
		a.Notes = append(a.Notes, fmt.Sprintf("%d fundamental fields missing", missing))
	}
	return points
}

func (s *Scorer) relativeStrength(closes []float64, benchmark core.PriceSeries, a *Assessment) int {
	own, ok := indicator.Return(closes, s.cfg.RSLookback)
	if !ok {
		return 0
	}
	idx, ok := indicator.Return(benchmark.Closes(), s.cfg.RSLookback)
	if !ok {
		a.Notes = append(a.Notes, "benchmark history too short for relative strength")
		return 0
	}
	excess := (own - idx) * 100

	points := 0
	if len(s.cfg.RSTable) == 0 {
		if excess > 0 {
			points = 2
		}
	} else {
		steps := make([]RSStep, len(s.cfg.RSTable))
		copy(steps, s.cfg.RSTable)
		sort.Slice(steps, func(i, j int) bool { return steps[i].MinExcessPct > steps[j].MinExcessPct })
		for _, st := range steps {
			if excess > st.MinExcessPct {
				points = st.Points
				break
			}
		}
	}
	points = max(0, min(points, 2))
	if points > 0 {
		a.Notes = append(a.Notes, fmt.Sprintf("outperforming index by %.1f pts over %d days", excess, s.cfg.RSLookback))
	}
	return points
}

func (s *Scorer) stop(series core.PriceSeries, price float64) float64 {
	fallback := price * (1 - s.cfg.FallbackStopPct)
	atr, ok := indicator.ATR(series.Highs(), series.Lows(), series.Closes(), s.cfg.ATRPeriod)
	if !ok || atr <= 0 {
		return fallback
	}
	stop := price - s.cfg.ATRMultiple*atr
	if stop <= 0 {
		return fallback
	}
	return stop
}

func pctFrom(price, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return (price/ref - 1) * 100
}

func explain(a Assessment) string {
	var verdict string
	switch a.Action {
	case core.ActionStrongHold:
		verdict = "position is healthy, hold at full size"
	case core.ActionHold:
		verdict = "position is sound, hold"
	case core.ActionTrim25:
		verdict = "weakening, trim a quarter of the position"
	default:
		verdict = "deteriorated, exit the position"
	}
	b := a.Breakdown
	s := fmt.Sprintf("Score %d/10 (trend %d/3, fundamentals %d/3, relative strength %d/2, macro %d/2): %s.",
		a.Score, b.Trend, b.Fundamentals, b.RelativeStrength, b.MacroAlignment, verdict)
	if len(a.Notes) > 0 {
		s += " " + strings.ToUpper(a.Notes[0][:1]) + a.Notes[0][1:]
		if len(a.Notes) > 1 {
			s += "; " + strings.Join(a.Notes[1:], "; ")
		}
		s += "."
	}
	return s
}
