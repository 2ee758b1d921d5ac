package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/newthinker/bigthing/internal/journal"
	"github.com/newthinker/bigthing/internal/logger"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyRunID string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the journal",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs")
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "show the planned positions of one run")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled {
		return fmt.Errorf("journal is not enabled")
	}

	ctx := context.Background()
	j, err := journal.Open(ctx, cfg.Journal.ToJournal())
	if err != nil {
		return err
	}
	defer j.Close()

	if historyRunID != "" {
		return printPositions(ctx, j, historyRunID)
	}

	runs, err := j.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tDATE\tREGIME\tCANDIDATES\tPOSITIONS\tDEPLOYED\tCASH%\tCOVERAGE\tWARNINGS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.0f\t%.1f\t%.0f%%\t%d\n",
			r.RunID, r.RunDate.Format("2006-01-02"), r.Regime, r.Candidates, r.Positions,
			r.Deployed, r.CashPct, r.Coverage*100, r.Warnings)
	}
	return w.Flush()
}

func printPositions(ctx context.Context, j *journal.Journal, runID string) error {
	rows, err := j.Positions(ctx, runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Printf("No positions for run %s.\n", runID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tSHARES\tENTRY\tSTOP\tNOTIONAL")
	for _, p := range rows {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.0f\n", p.Symbol, p.Shares, p.Entry, p.Stop, p.Notional)
	}
	return w.Flush()
}
