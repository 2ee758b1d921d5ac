package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/bigthing/internal/allocator"
	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/health"
	"github.com/newthinker/bigthing/internal/regime"
	"github.com/newthinker/bigthing/internal/scanner"
)

// Meta describes the run that produced a report.
type Meta struct {
	RunID       string         `json:"run_id"`
	RunDate     time.Time      `json:"run_date"`
	GeneratedAt time.Time      `json:"generated_at"`
	Provider    string         `json:"provider"`
	Coverage    float64        `json:"coverage"`
	Requested   int            `json:"requested"`
	Fetched     int            `json:"fetched"`
	Warnings    []core.Warning `json:"warnings"`
	Duration    time.Duration  `json:"duration"`
}

// Report is the single artifact of a run.
type Report struct {
	Meta             Meta                   `json:"meta"`
	PortfolioValue   float64                `json:"portfolio_value"`
	Regime           regime.Result          `json:"regime"`
	Holdings         []health.Assessment    `json:"holdings"`
	Candidates       []scanner.Candidate    `json:"candidates"`
	ScanStats        scanner.Stats          `json:"scan_stats"`
	Plan             allocator.Plan         `json:"plan"`
	ExternalHoldings []core.ExternalHolding `json:"external_holdings,omitempty"`
}

// Title is a one-line subject for notifications.
func (r *Report) Title() string {
	return fmt.Sprintf("Daily report %s: %s, %d new, %d actions",
		r.Meta.RunDate.Format("2006-01-02"), r.Regime.Label, len(r.Plan.Positions), len(r.Plan.Reductions))
}

// Summary renders a short plain-text digest.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Regime: %s (x%.1f)\n", r.Regime.Label, r.Regime.Multiplier)
	fmt.Fprintf(&b, "%s\n", r.Regime.Explanation)

	if len(r.Holdings) > 0 {
		b.WriteString("\nHoldings:\n")
		for _, a := range r.Holdings {
			fmt.Fprintf(&b, "  %-6s %2d/10 %-11s stop %.2f\n", a.Symbol, a.Score, a.Action, a.StopLoss)
		}
	}

	if len(r.Plan.Positions) > 0 {
		b.WriteString("\nNew positions:\n")
		for _, p := range r.Plan.Positions {
			fmt.Fprintf(&b, "  %-6s %d @ %.2f stop %.2f (%.0f)\n", p.Symbol, p.Shares, p.Entry, p.Stop, p.Notional)
		}
	} else {
		b.WriteString("\nNo new positions.\n")
	}

	for _, red := range r.Plan.Reductions {
		fmt.Fprintf(&b, "  %s %s %d shares\n", red.Action, red.Symbol, red.Shares)
	}

	fmt.Fprintf(&b, "\nCash %.1f%%, exposure %.1f%%, coverage %.0f%%",
		r.Plan.CashPct, r.Plan.ExposurePct, r.Meta.Coverage*100)
	if n := len(r.Meta.Warnings); n > 0 {
		fmt.Fprintf(&b, ", %d warnings", n)
	}
	b.WriteString("\n")
	return b.String()
}
