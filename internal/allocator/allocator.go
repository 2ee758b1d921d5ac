// Package allocator sizes new positions from ranked candidates under the
// portfolio's risk, cash and position limits.
package allocator

import (
	"fmt"
	"math"
	"sort"

	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/health"
	"github.com/newthinker/bigthing/internal/regime"
	"github.com/newthinker/bigthing/internal/scanner"
)

const unknownSector = "Unknown"

// Config holds allocator parameters.
type Config struct {
	// RiskOffOverride is the minimum composite score (0-100) a candidate
	// needs to be bought in RISK_OFF.
	RiskOffOverride float64
	// TrimFraction of shares sold on TRIM_25.
	TrimFraction float64
	// SectorWarnPct raises a risk note when a sector exceeds it.
	SectorWarnPct float64
}

// DefaultConfig returns the standard allocator setup.
func DefaultConfig() Config {
	return Config{
		RiskOffOverride: 90,
		TrimFraction:    0.25,
		SectorWarnPct:   30,
	}
}

// Reduction is capital released by an EXIT or TRIM_25 decision.
type Reduction struct {
	Symbol string      `json:"symbol"`
	Action core.Action `json:"action"`
	Shares int         `json:"shares"`
	Price  float64     `json:"price"`
	Freed  float64     `json:"freed"`
}

// Position is a sized new entry.
type Position struct {
	Symbol     string  `json:"symbol"`
	Sector     string  `json:"sector"`
	Shares     int     `json:"shares"`
	Entry      float64 `json:"entry"`
	EntryLow   float64 `json:"entry_low"`
	Stop       float64 `json:"stop"`
	Notional   float64 `json:"notional"`
	RiskAmount float64 `json:"risk_amount"`
	RiskPct    float64 `json:"risk_pct"`
	Composite  float64 `json:"composite"`
	Trimmed    bool    `json:"trimmed,omitempty"`
}

// RejectReason identifies the limit that stopped a candidate.
type RejectReason string

const (
	RejectInvalidStop  RejectReason = "invalid_stop"
	RejectRiskOff      RejectReason = "risk_off"
	RejectMaxPositions RejectReason = "max_positions"
	RejectRiskBudget   RejectReason = "risk_budget"
	RejectCashFloor    RejectReason = "cash_floor"
	RejectSectorCap    RejectReason = "sector_cap"
)

// Rejection records a candidate that was not sized.
type Rejection struct {
	Symbol string       `json:"symbol"`
	Reason RejectReason `json:"reason"`
	Detail string       `json:"detail"`
}

// Plan is the allocation outcome.
type Plan struct {
	Regime              core.Regime        `json:"regime"`
	Multiplier          float64            `json:"multiplier"`
	RiskBudget          float64            `json:"risk_budget"`
	Positions           []Position         `json:"positions"`
	Reductions          []Reduction        `json:"reductions"`
	Freed               float64            `json:"freed"`
	Deployed            float64            `json:"deployed"`
	CashValue           float64            `json:"cash_value"`
	CashPct             float64            `json:"cash_pct"`
	ExposurePct         float64            `json:"exposure_pct"`
	OpenPositions       int                `json:"open_positions"`
	SectorConcentration map[string]float64 `json:"sector_concentration"`
	Rejected            []Rejection        `json:"rejected"`
	RiskNotes           []string           `json:"risk_notes"`
	DeploymentPlan      string             `json:"deployment_plan"`
}

// Input is everything the allocator reads.
type Input struct {
	Regime     core.Regime
	Portfolio  core.Portfolio
	Holdings   []health.Assessment
	Candidates []scanner.Candidate
}

// Reductions derives freed-capital events from holding actions.
func Reductions(assessments []health.Assessment, trimFraction float64) []Reduction {
	var out []Reduction
	for _, a := range assessments {
		var shares int
		switch a.Action {
		case core.ActionExit:
			shares = a.Shares
		case core.ActionTrim25:
			shares = min(a.Shares, max(1, int(math.Floor(float64(a.Shares)*trimFraction))))
		default:
			continue
		}
		if shares <= 0 {
			continue
		}
		out = append(out, Reduction{
			Symbol: a.Symbol,
			Action: a.Action,
			Shares: shares,
			Price:  a.Price,
			Freed:  float64(shares) * a.Price,
		})
	}
	return out
}

type check struct {
	allowed bool
	reason  RejectReason
	detail  string
}

// Allocate walks candidates in rank order and accepts each one that fits
// every limit, shrinking size where cash or sector room is short.
func Allocate(cfg Config, in Input) (Plan, error) {
	p := in.Portfolio
	if p.TotalValue <= 0 {
		return Plan{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("portfolio total value must be positive, got %.2f", p.TotalValue))
	}

	plan := Plan{
		Regime:              in.Regime,
		Multiplier:          regime.Multiplier(in.Regime),
		SectorConcentration: make(map[string]float64),
	}
	plan.RiskBudget = p.TotalValue * p.RiskPerTradePct / 100 * plan.Multiplier

	byHolding := make(map[string]health.Assessment, len(in.Holdings))
	for _, a := range in.Holdings {
		byHolding[a.Symbol] = a
	}

	plan.Reductions = Reductions(in.Holdings, cfg.TrimFraction)
	reduced := make(map[string]Reduction, len(plan.Reductions))
	for _, r := range plan.Reductions {
		reduced[r.Symbol] = r
		plan.Freed += r.Freed
	}

	sectorValue := make(map[string]float64)
	var invested float64
	open := 0
	for _, h := range p.Holdings {
		price := h.CostBasis
		sector := h.Sector
		if a, ok := byHolding[h.Symbol]; ok {
			price = a.Price
			if sector == "" {
				sector = a.Sector
			}
		}
		if sector == "" {
			sector = unknownSector
		}
		invested += float64(h.Shares) * price

		remaining := h.Shares
		if r, ok := reduced[h.Symbol]; ok {
			remaining -= r.Shares
		}
		if remaining > 0 {
			open++
			sectorValue[sector] += float64(remaining) * price
		}
	}

	cash := p.TotalValue - invested + plan.Freed
	floor := p.TotalValue * p.CashFloorPct / 100
	sectorCap := p.TotalValue * p.MaxSectorPct / 100

	candidates := make([]scanner.Candidate, len(in.Candidates))
	copy(candidates, in.Candidates)
	sort.SliceStable(candidates, func(i, j int) bool { return scanner.Less(candidates[i], candidates[j]) })

	for _, c := range candidates {
		entry := c.Entry()
		risk := entry - c.Stop

		chk := func() check {
			if entry <= 0 || c.Stop <= 0 || risk <= 0 {
				return check{reason: RejectInvalidStop, detail: fmt.Sprintf("entry %.2f, stop %.2f", entry, c.Stop)}
			}
			if in.Regime == core.RegimeRiskOff && c.Composite*100 < cfg.RiskOffOverride {
				return check{reason: RejectRiskOff, detail: fmt.Sprintf("composite %.1f below override %.0f", c.Composite*100, cfg.RiskOffOverride)}
			}
			if open >= p.MaxPositions {
				return check{reason: RejectMaxPositions, detail: fmt.Sprintf("%d of %d positions open", open, p.MaxPositions)}
			}
			return check{allowed: true}
		}()
		if !chk.allowed {
			plan.Rejected = append(plan.Rejected, Rejection{Symbol: c.Symbol, Reason: chk.reason, Detail: chk.detail})
			continue
		}

		shares := int(math.Floor(plan.RiskBudget / risk))
		if shares <= 0 {
			plan.Rejected = append(plan.Rejected, Rejection{Symbol: c.Symbol, Reason: RejectRiskBudget,
				Detail: fmt.Sprintf("risk budget %.2f below one share's risk %.2f", plan.RiskBudget, risk)})
			continue
		}
		trimmed := false

		if affordable := int(math.Floor((cash - floor) / entry)); affordable < shares {
			if affordable <= 0 {
				plan.Rejected = append(plan.Rejected, Rejection{Symbol: c.Symbol, Reason: RejectCashFloor,
					Detail: fmt.Sprintf("cash %.2f at or below floor %.2f", cash, floor)})
				continue
			}
			shares, trimmed = affordable, true
		}

		sector := c.Sector
		if sector == "" {
			sector = unknownSector
		}
		if sectorCap > 0 {
			room := int(math.Floor((sectorCap - sectorValue[sector]) / entry))
			if room <= 0 {
				plan.Rejected = append(plan.Rejected, Rejection{Symbol: c.Symbol, Reason: RejectSectorCap,
					Detail: fmt.Sprintf("%s already at %.1f%% of portfolio", sector, sectorValue[sector]/p.TotalValue*100)})
				continue
			}
			if room < shares {
				shares, trimmed = room, true
			}
		}

		notional := float64(shares) * entry
		pos := Position{
			Symbol:     c.Symbol,
			Sector:     sector,
			Shares:     shares,
			Entry:      entry,
			EntryLow:   c.EntryLow,
			Stop:       c.Stop,
			Notional:   notional,
			RiskAmount: float64(shares) * risk,
			Composite:  c.Composite,
			Trimmed:    trimmed,
		}
		pos.RiskPct = pos.RiskAmount / p.TotalValue * 100

		plan.Positions = append(plan.Positions, pos)
		plan.Deployed += notional
		cash -= notional
		open++
		sectorValue[sector] += notional
	}

	plan.CashValue = cash
	plan.CashPct = cash / p.TotalValue * 100
	plan.ExposurePct = 100 - plan.CashPct
	plan.OpenPositions = open
	for s, v := range sectorValue {
		if v > 0 {
			plan.SectorConcentration[s] = v / p.TotalValue * 100
		}
	}

	if err := verify(plan, p, floor); err != nil {
		return Plan{}, err
	}

	plan.RiskNotes = riskNotes(cfg, plan, p)
	plan.DeploymentPlan = deploymentPlan(plan)
	return plan, nil
}

// verify re-checks the hard limits on the finished plan.
func verify(plan Plan, p core.Portfolio, floor float64) error {
	if len(plan.Positions) == 0 {
		return nil
	}
	const eps = 1e-6
	if plan.CashValue < floor-eps {
		return core.WrapError(core.ErrAllocationInvariant,
			fmt.Errorf("cash %.2f below floor %.2f", plan.CashValue, floor))
	}
	if plan.OpenPositions > p.MaxPositions {
		return core.WrapError(core.ErrAllocationInvariant,
			fmt.Errorf("%d positions exceed max %d", plan.OpenPositions, p.MaxPositions))
	}
	if limit := p.MaxSectorPct; limit > 0 {
		for _, pos := range plan.Positions {
			if plan.SectorConcentration[pos.Sector] > limit+eps {
				return core.WrapError(core.ErrAllocationInvariant,
					fmt.Errorf("sector %s at %.2f%% exceeds cap %.2f%%", pos.Sector, plan.SectorConcentration[pos.Sector], limit))
			}
		}
	}
	return nil
}
