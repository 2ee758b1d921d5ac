// Package regime classifies the broad market into RISK_ON, NEUTRAL or
// RISK_OFF from an equity index, a volatility index and a treasury yield.
package regime

import (
	"fmt"
	"time"

	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/indicator"
)

const stage = "regime"

// Config holds classifier parameters.
type Config struct {
	IndexSymbol         string
	VolatilitySymbol    string
	YieldSymbol         string
	LongWindow          int
	ShortWindow         int
	SlopeLookback       int
	VolatilityThreshold float64
	YieldTrendWindow    int
	Structure           indicator.StructureParams
}

// DefaultConfig returns the standard SPY / VIX / 10Y setup.
func DefaultConfig() Config {
	return Config{
		IndexSymbol:         "SPY",
		VolatilitySymbol:    "^VIX",
		YieldSymbol:         "^TNX",
		LongWindow:          200,
		ShortWindow:         50,
		SlopeLookback:       10,
		VolatilityThreshold: 25,
		YieldTrendWindow:    30,
		Structure:           indicator.DefaultStructure(),
	}
}

// Symbols lists the series the classifier needs.
func (c Config) Symbols() []string {
	return []string{c.IndexSymbol, c.VolatilitySymbol, c.YieldSymbol}
}

// Inputs are the three market series.
type Inputs struct {
	Index      core.PriceSeries
	Volatility core.PriceSeries
	Yield      core.PriceSeries
}

// YieldTrend is the direction of the treasury yield.
type YieldTrend string

const (
	YieldRising  YieldTrend = "RISING"
	YieldFalling YieldTrend = "FALLING"
	YieldFlat    YieldTrend = "FLAT"
)

const yieldFlatBand = 0.001

// Signals is the raw evidence behind a classification.
type Signals struct {
	IndexClose         float64             `json:"index_close"`
	SMALong            float64             `json:"sma_long"`
	SMAShort           float64             `json:"sma_short"`
	AboveLongMA        bool                `json:"above_long_ma"`
	ShortMARising      bool                `json:"short_ma_rising"`
	Structure          indicator.Structure `json:"structure"`
	Volatility         float64             `json:"volatility"`
	VolatilityElevated bool                `json:"volatility_elevated"`
	Yield              float64             `json:"yield"`
	YieldSlope         float64             `json:"yield_slope"`
	YieldTrend         YieldTrend          `json:"yield_trend"`
}

// Result is the classifier output.
type Result struct {
	Label       core.Regime `json:"label"`
	Multiplier  float64     `json:"multiplier"`
	Signals     Signals     `json:"signals"`
	Explanation string      `json:"explanation"`
	AsOf        time.Time   `json:"as_of"`
}

// Multiplier is the fixed position-size scaling for each regime.
func Multiplier(r core.Regime) float64 {
	switch r {
	case core.RegimeRiskOn:
		return 1.0
	case core.RegimeNeutral:
		return 0.7
	case core.RegimeRiskOff:
		return 0.4
	}
	return 0
}

// Direction is +1 for RISK_ON, -1 for RISK_OFF and 0 otherwise.
func Direction(r core.Regime) int {
	switch r {
	case core.RegimeRiskOn:
		return 1
	case core.RegimeRiskOff:
		return -1
	}
	return 0
}

// Classify evaluates the three series. RISK_OFF is checked first, then
// RISK_ON; anything else is NEUTRAL.
func Classify(cfg Config, in Inputs) (Result, error) {
	for _, s := range []core.PriceSeries{in.Index, in.Volatility, in.Yield} {
		if s.Len() < cfg.LongWindow {
			return Result{}, core.SymbolError(core.ErrInsufficientHistory, stage, s.Symbol,
				fmt.Errorf("have %d bars, need %d", s.Len(), cfg.LongWindow))
		}
	}

	closes := in.Index.Closes()
	smaLong, _ := indicator.LastSMA(closes, cfg.LongWindow)
	smaShort, _ := indicator.LastSMA(closes, cfg.ShortWindow)
	rising, ok := indicator.Rising(closes, cfg.ShortWindow, cfg.SlopeLookback)
	if !ok {
		return Result{}, core.SymbolError(core.ErrInsufficientHistory, stage, in.Index.Symbol,
			fmt.Errorf("cannot measure %d-bar slope of %d-bar average", cfg.SlopeLookback, cfg.ShortWindow))
	}

	sig := Signals{
		IndexClose:    in.Index.Last().Close,
		SMALong:       smaLong,
		SMAShort:      smaShort,
		ShortMARising: rising,
		Structure:     indicator.DetectStructure(closes, cfg.Structure),
		Volatility:    in.Volatility.Last().Close,
		Yield:         in.Yield.Last().Close,
	}
	sig.AboveLongMA = sig.IndexClose > sig.SMALong
	sig.VolatilityElevated = sig.Volatility >= cfg.VolatilityThreshold
	sig.YieldSlope, _ = indicator.Slope(in.Yield.Closes(), cfg.YieldTrendWindow)
	switch {
	case sig.YieldSlope > yieldFlatBand:
		sig.YieldTrend = YieldRising
	case sig.YieldSlope < -yieldFlatBand:
		sig.YieldTrend = YieldFalling
	default:
		sig.YieldTrend = YieldFlat
	}

	label := core.RegimeNeutral
	switch {
	case sig.IndexClose < sig.SMALong &&
		(sig.Structure == indicator.LowerHighs || sig.VolatilityElevated):
		label = core.RegimeRiskOff
	case sig.AboveLongMA && sig.ShortMARising && sig.Structure == indicator.HigherHighs:
		label = core.RegimeRiskOn
	}

	return Result{
		Label:       label,
		Multiplier:  Multiplier(label),
		Signals:     sig,
		Explanation: explain(cfg, label, sig),
		AsOf:        in.Index.AsOf(),
	}, nil
}
