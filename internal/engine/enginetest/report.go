// Package enginetest provides a populated report for tests of report
// consumers.
package enginetest

import (
	"time"

	"github.com/newthinker/bigthing/internal/allocator"
	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/engine"
	"github.com/newthinker/bigthing/internal/health"
	"github.com/newthinker/bigthing/internal/regime"
	"github.com/newthinker/bigthing/internal/scanner"
)

// RunDate of the sample report.
var RunDate = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

// Report returns a small but fully populated report.
func Report() *engine.Report {
	return &engine.Report{
		Meta: engine.Meta{
			RunID:       "6f1c2a9e-0000-4000-8000-000000000001",
			RunDate:     RunDate,
			GeneratedAt: RunDate.Add(22 * time.Hour),
			Provider:    "yahoo",
			Coverage:    0.95,
			Requested:   20,
			Fetched:     19,
			Warnings: []core.Warning{
				{Stage: "data", Symbol: "ZZZ", Code: "SYMBOL_NOT_FOUND", Message: "symbol not found"},
			},
			Duration: 42 * time.Second,
		},
		PortfolioValue: 100_000,
		Regime: regime.Result{
			Label:       core.RegimeRiskOn,
			Multiplier:  1.0,
			Explanation: "Index above its 200-day average with a rising 50-day average.",
		},
		Holdings: []health.Assessment{
			{Symbol: "MSFT", Score: 9, Action: core.ActionStrongHold, Price: 410, StopLoss: 390, Shares: 10, MarketValue: 4100, UnrealizedPnLPct: 12.5},
			{Symbol: "XOM", Score: 3, Action: core.ActionExit, Price: 100, StopLoss: 95, Shares: 20, MarketValue: 2000, UnrealizedPnLPct: -8},
		},
		Candidates: []scanner.Candidate{
			{Symbol: "NVDA", Sector: "Technology", Price: 120, Composite: 0.82, EntryLow: 117.6, EntryHigh: 120, Stop: 112, RiskPerShare: 8,
				Scenario: scanner.Scenario{Bull: 0.45, Base: 0.40, Bear: 0.15},
				Targets:  scanner.Targets{Bull: 150, Base: 126, Bear: 100}},
		},
		ScanStats: scanner.Stats{Universe: 18, Evaluated: 18, Passed: 1, Exclusions: map[scanner.Reason]int{scanner.ReasonRSIOutOfBand: 9}},
		Plan: allocator.Plan{
			Regime:     core.RegimeRiskOn,
			Multiplier: 1.0,
			RiskBudget: 1000,
			Positions: []allocator.Position{
				{Symbol: "NVDA", Sector: "Technology", Shares: 125, Entry: 120, Stop: 112, Notional: 15000, RiskAmount: 1000, Composite: 0.82},
			},
			Reductions:     []allocator.Reduction{{Symbol: "XOM", Action: core.ActionExit, Shares: 20, Price: 100, Freed: 2000}},
			CashPct:        40,
			ExposurePct:    60,
			OpenPositions:  2,
			RiskNotes:      []string{"Technology is 34.1% of the portfolio"},
			DeploymentPlan: "Week 1: enter NVDA in the 117.60-120.00 zone.",
		},
		ExternalHoldings: []core.ExternalHolding{{Name: "Private fund", Quantity: 1, AvgCost: 5000, Notes: "quarterly NAV"}},
	}
}
