package health

import (
	"strings"

	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/indicator"
)

// RSStep awards Points when a holding beats the index by more than
// MinExcessPct percentage points.
type RSStep struct {
	MinExcessPct float64 `mapstructure:"min_excess_pct"`
	Points       int     `mapstructure:"points"`
}

// Config holds scorer parameters.
type Config struct {
	LongWindow  int
	ShortWindow int
	Structure   indicator.StructureParams
	RSLookback  int

	// RSTable replaces the binary outperformance test when set.
	RSTable []RSStep

	MinProfitMargin float64
	DirectionWindow int
	ATRPeriod       int
	ATRMultiple     float64
	FallbackStopPct float64
	SectorAffinity  map[core.Regime][]string
	Concurrency     int
}

// DefaultSectorAffinity favours cyclicals in RISK_ON and defensives in
// RISK_OFF. NEUTRAL favours every sector.
func DefaultSectorAffinity() map[core.Regime][]string {
	return map[core.Regime][]string{
		core.RegimeRiskOn: {
			"Technology", "Consumer Cyclical", "Communication Services", "Financial Services",
		},
		core.RegimeRiskOff: {
			"Utilities", "Consumer Defensive", "Healthcare", "Real Estate",
		},
		core.RegimeNeutral: {"*"},
	}
}

// DefaultConfig returns the standard scorer setup.
func DefaultConfig() Config {
	return Config{
		LongWindow:      200,
		ShortWindow:     50,
		Structure:       indicator.StructureParams{Window: 60, Span: 2, MinSwings: 2},
		RSLookback:      60,
		MinProfitMargin: 0.05,
		DirectionWindow: 20,
		ATRPeriod:       14,
		ATRMultiple:     2.0,
		FallbackStopPct: 0.08,
		SectorAffinity:  DefaultSectorAffinity(),
		Concurrency:     8,
	}
}

// Favored reports whether sector is favoured in regime r.
func (c Config) Favored(r core.Regime, sector string) bool {
	for _, s := range c.SectorAffinity[r] {
		if s == "*" {
			return true
		}
		if sector != "" && strings.EqualFold(s, sector) {
			return true
		}
	}
	return false
}
