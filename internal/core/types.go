package core

import (
	"strings"
	"time"
)

// OHLCV represents a daily bar
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceSeries is an ordered (oldest first) run of daily bars for one symbol.
// Treated as read-only once fetched.
type PriceSeries struct {
	Symbol string  `json:"symbol"`
	Bars   []OHLCV `json:"bars"`
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Last returns the most recent bar. The zero bar is returned for an empty series.
func (s PriceSeries) Last() OHLCV {
	if len(s.Bars) == 0 {
		return OHLCV{}
	}
	return s.Bars[len(s.Bars)-1]
}

// AsOf is the date of the most recent bar.
func (s PriceSeries) AsOf() time.Time { return s.Last().Time }

func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

func (s PriceSeries) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

func (s PriceSeries) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

func (s PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = float64(b.Volume)
	}
	return out
}

// Fundamental is a point-in-time fundamental snapshot. Nil pointers mean the
// provider had no value, which is distinct from a reported zero.
type Fundamental struct {
	Symbol        string     `json:"symbol"`
	Sector        string     `json:"sector"`
	Industry      string     `json:"industry,omitempty"`
	MarketCap     float64    `json:"market_cap,omitempty"`
	RevenueGrowth *float64   `json:"revenue_growth,omitempty"`
	EPSGrowth     *float64   `json:"eps_growth,omitempty"`
	ProfitMargin  *float64   `json:"profit_margin,omitempty"`
	MarginTrend   *float64   `json:"margin_trend,omitempty"`
	ForwardPE     *float64   `json:"forward_pe,omitempty"`
	NextEarnings  *time.Time `json:"next_earnings,omitempty"`
	AsOf          time.Time  `json:"as_of"`
}

// Float returns a pointer to v, for building fundamentals.
func Float(v float64) *float64 { return &v }

// Regime is the market regime label
type Regime string

const (
	RegimeRiskOn  Regime = "RISK_ON"
	RegimeNeutral Regime = "NEUTRAL"
	RegimeRiskOff Regime = "RISK_OFF"
)

// ParseRegime accepts the label in any case.
func ParseRegime(s string) (Regime, bool) {
	switch Regime(strings.ToUpper(strings.TrimSpace(s))) {
	case RegimeRiskOn:
		return RegimeRiskOn, true
	case RegimeNeutral:
		return RegimeNeutral, true
	case RegimeRiskOff:
		return RegimeRiskOff, true
	}
	return "", false
}

// Action is the recommended treatment of an existing holding
type Action string

const (
	ActionStrongHold Action = "STRONG_HOLD"
	ActionHold       Action = "HOLD"
	ActionTrim25     Action = "TRIM_25"
	ActionExit       Action = "EXIT"
)

// Holding is a position currently in the portfolio
type Holding struct {
	Symbol    string  `json:"symbol" mapstructure:"symbol"`
	Shares    int     `json:"shares" mapstructure:"shares"`
	CostBasis float64 `json:"cost_basis" mapstructure:"cost_basis"`
	Sector    string  `json:"sector,omitempty" mapstructure:"sector"`
}

// ExternalHolding is a position tracked for reference only (funds, pensions).
// It carries no price series and is never scored or sized.
type ExternalHolding struct {
	Name     string  `json:"name" mapstructure:"name"`
	Quantity float64 `json:"quantity" mapstructure:"quantity"`
	AvgCost  float64 `json:"avg_cost" mapstructure:"avg_cost"`
	Notes    string  `json:"notes,omitempty" mapstructure:"notes"`
}

// Portfolio is the account state and its risk limits.
type Portfolio struct {
	TotalValue      float64   `json:"total_value"`
	Holdings        []Holding `json:"holdings"`
	MaxPositions    int       `json:"max_positions"`
	CashFloorPct    float64   `json:"cash_floor_pct"`
	RiskPerTradePct float64   `json:"risk_per_trade_pct"`
	// MaxSectorPct of zero disables the sector cap.
	MaxSectorPct float64 `json:"max_sector_pct,omitempty"`
}

// Held reports whether symbol is an existing holding.
func (p Portfolio) Held(symbol string) bool {
	for _, h := range p.Holdings {
		if h.Symbol == symbol {
			return true
		}
	}
	return false
}
