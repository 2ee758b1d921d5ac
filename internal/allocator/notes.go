package allocator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/newthinker/bigthing/internal/core"
)

func riskNotes(cfg Config, plan Plan, p core.Portfolio) []string {
	var notes []string

	if plan.CashPct < p.CashFloorPct {
		notes = append(notes, fmt.Sprintf("Cash at %.1f%% is below the %.0f%% floor; no new capital can be deployed until positions are reduced.",
			plan.CashPct, p.CashFloorPct))
	}

	sectors := make([]string, 0, len(plan.SectorConcentration))
	for s := range plan.SectorConcentration {
		sectors = append(sectors, s)
	}
	sort.Strings(sectors)
	for _, s := range sectors {
		if pct := plan.SectorConcentration[s]; pct > cfg.SectorWarnPct {
			notes = append(notes, fmt.Sprintf("%s exposure is %.1f%% of the portfolio, above %.0f%%.", s, pct, cfg.SectorWarnPct))
		}
	}

	if plan.Regime == core.RegimeRiskOff {
		notes = append(notes, fmt.Sprintf("RISK_OFF: only candidates scoring %.0f or better are bought, at %.0f%% of normal risk.",
			cfg.RiskOffOverride, plan.Multiplier*100))
	}

	if plan.OpenPositions >= p.MaxPositions && p.MaxPositions > 0 {
		notes = append(notes, fmt.Sprintf("Portfolio is at its %d-position limit.", p.MaxPositions))
	}

	byReason := make(map[RejectReason]int)
	for _, r := range plan.Rejected {
		byReason[r.Reason]++
	}
	if n := byReason[RejectCashFloor]; n > 0 {
		notes = append(notes, fmt.Sprintf("%d candidate(s) skipped to protect the cash floor.", n))
	}
	if n := byReason[RejectSectorCap]; n > 0 {
		notes = append(notes, fmt.Sprintf("%d candidate(s) skipped by the sector cap.", n))
	}
	return notes
}

func deploymentPlan(plan Plan) string {
	var b strings.Builder

	if len(plan.Reductions) > 0 {
		syms := make([]string, len(plan.Reductions))
		for i, r := range plan.Reductions {
			syms[i] = fmt.Sprintf("%s %s (%d sh)", strings.ToLower(string(r.Action)), r.Symbol, r.Shares)
		}
		fmt.Fprintf(&b, "Monday: %s, freeing $%.0f. ", strings.Join(syms, ", "), plan.Freed)
	}

	if len(plan.Positions) == 0 {
		switch plan.Regime {
		case core.RegimeRiskOff:
			b.WriteString("No new entries this week. Hold cash and let stops manage existing risk.")
		default:
			b.WriteString("No candidate cleared every limit. Hold cash and rescan tomorrow.")
		}
		return strings.TrimSpace(b.String())
	}

	first, rest := plan.Positions, []Position(nil)
	if plan.Regime != core.RegimeRiskOn && len(plan.Positions) > 1 {
		half := (len(plan.Positions) + 1) / 2
		first, rest = plan.Positions[:half], plan.Positions[half:]
	}

	fmt.Fprintf(&b, "Early week: enter %s inside their entry zones. ", symbolList(first))
	if len(rest) > 0 {
		fmt.Fprintf(&b, "Late week, if the tape holds: add %s. ", symbolList(rest))
	}
	fmt.Fprintf(&b, "Total deployment $%.0f leaves %.1f%% in cash. Place every stop on fill.", plan.Deployed, plan.CashPct)
	return b.String()
}

func symbolList(ps []Position) string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = fmt.Sprintf("%s (%d sh)", p.Symbol, p.Shares)
	}
	return strings.Join(out, ", ")
}
