package scanner

import "math"

// Weights are the composite factor weights. They must sum to one.
type Weights struct {
	Trend            float64 `mapstructure:"trend"`
	Fundamental      float64 `mapstructure:"fundamental"`
	RelativeStrength float64 `mapstructure:"relative_strength"`
	Volume           float64 `mapstructure:"volume"`
	Valuation        float64 `mapstructure:"valuation"`
}

// Sum of all weights.
func (w Weights) Sum() float64 {
	return w.Trend + w.Fundamental + w.RelativeStrength + w.Volume + w.Valuation
}

// Valid reports whether the weights are non-negative and sum to one.
func (w Weights) Valid() bool {
	for _, v := range []float64{w.Trend, w.Fundamental, w.RelativeStrength, w.Volume, w.Valuation} {
		if v < 0 {
			return false
		}
	}
	return math.Abs(w.Sum()-1) < 1e-9
}

// DefaultWeights returns the standard factor mix.
func DefaultWeights() Weights {
	return Weights{
		Trend:            0.30,
		Fundamental:      0.25,
		RelativeStrength: 0.20,
		Volume:           0.15,
		Valuation:        0.10,
	}
}

// ScenarioBand maps composites at or above MinScore to outcome probabilities.
type ScenarioBand struct {
	MinScore float64 `mapstructure:"min_score"`
	Bull     float64 `mapstructure:"bull"`
	Base     float64 `mapstructure:"base"`
	Bear     float64 `mapstructure:"bear"`
}

// DefaultScenarioBands shift probability toward the bull case as the
// composite rises.
func DefaultScenarioBands() []ScenarioBand {
	return []ScenarioBand{
		{MinScore: 0.75, Bull: 0.45, Base: 0.40, Bear: 0.15},
		{MinScore: 0.60, Bull: 0.35, Base: 0.45, Bear: 0.20},
		{MinScore: 0.45, Bull: 0.30, Base: 0.45, Bear: 0.25},
		{MinScore: 0, Bull: 0.20, Base: 0.45, Bear: 0.35},
	}
}

// Config holds scanner parameters.
type Config struct {
	LongWindow           int
	ShortWindow          int
	SlopeLookback        int
	RSIPeriod            int
	RSIMin               float64
	RSIMax               float64
	VolumeMultiple       float64
	VolumeLookback       int
	EarningsBlackoutDays int
	RSLookback           int
	TrendWindow          int
	ATRPeriod            int
	ATRMultiple          float64
	FallbackStopPct      float64
	EntryDiscount        float64
	TargetHorizonDays    int
	TopN                 int
	Weights              Weights
	ScenarioBands        []ScenarioBand
	Concurrency          int
}

// DefaultConfig returns the standard scanner setup.
func DefaultConfig() Config {
	return Config{
		LongWindow:           200,
		ShortWindow:          50,
		SlopeLookback:        10,
		RSIPeriod:            14,
		RSIMin:               45,
		RSIMax:               65,
		VolumeMultiple:       1.2,
		VolumeLookback:       30,
		EarningsBlackoutDays: 5,
		RSLookback:           60,
		TrendWindow:          50,
		ATRPeriod:            14,
		ATRMultiple:          2.0,
		FallbackStopPct:      0.08,
		EntryDiscount:        0.02,
		TargetHorizonDays:    30,
		TopN:                 10,
		Weights:              DefaultWeights(),
		ScenarioBands:        DefaultScenarioBands(),
		Concurrency:          8,
	}
}
