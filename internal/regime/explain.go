package regime

import (
	"fmt"
	"strings"

	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/indicator"
)

func explain(cfg Config, label core.Regime, s Signals) string {
	var b strings.Builder

	side := "above"
	if !s.AboveLongMA {
		side = "below"
	}
	fmt.Fprintf(&b, "%s closed at %.2f, %s its %d-day average (%.2f). ",
		cfg.IndexSymbol, s.IndexClose, side, cfg.LongWindow, s.SMALong)

	trend := "falling"
	if s.ShortMARising {
		trend = "rising"
	}
	fmt.Fprintf(&b, "The %d-day average is %s", cfg.ShortWindow, trend)
	switch s.Structure {
	case indicator.HigherHighs:
		b.WriteString(" and recent swings are making higher highs. ")
	case indicator.LowerHighs:
		b.WriteString(" and recent swings are making lower highs. ")
	default:
		b.WriteString(" with no clear swing structure. ")
	}

	if s.VolatilityElevated {
		fmt.Fprintf(&b, "Volatility is elevated at %.1f (threshold %.0f). ", s.Volatility, cfg.VolatilityThreshold)
	} else {
		fmt.Fprintf(&b, "Volatility is contained at %.1f. ", s.Volatility)
	}
	fmt.Fprintf(&b, "The 10-year yield is %.2f%% and %s. ", s.Yield, strings.ToLower(string(s.YieldTrend)))

	switch label {
	case core.RegimeRiskOn:
		b.WriteString("Conditions support deploying new capital at full size.")
	case core.RegimeRiskOff:
		b.WriteString("Defensive posture: new entries are sized at 40% and only exceptional setups qualify.")
	default:
		b.WriteString("Mixed signals: new entries are sized at 70% and selectivity matters.")
	}
	return b.String()
}
