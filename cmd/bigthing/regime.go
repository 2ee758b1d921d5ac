package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/newthinker/bigthing/internal/engine"
	"github.com/newthinker/bigthing/internal/logger"
	"github.com/spf13/cobra"
)

var regimeCmd = &cobra.Command{
	Use:   "regime",
	Short: "Classify today's market regime",
	RunE:  runRegime,
}

func init() {
	rootCmd.AddCommand(regimeCmd)
}

func runRegime(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx := context.Background()
	provider, closeProvider, err := buildProvider(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeProvider()

	eng := engine.New(cfg.Engine(), provider, nil, log)
	res, _, err := eng.Regime(ctx)
	if err != nil {
		return err
	}

	s := res.Signals
	fmt.Printf("%s (x%.1f) as of %s\n", res.Label, res.Multiplier, res.AsOf.Format("2006-01-02"))
	fmt.Println(res.Explanation)
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Index close\t%.2f\n", s.IndexClose)
	fmt.Fprintf(w, "SMA long / short\t%.2f / %.2f\n", s.SMALong, s.SMAShort)
	fmt.Fprintf(w, "Above long MA\t%v\n", s.AboveLongMA)
	fmt.Fprintf(w, "Short MA rising\t%v\n", s.ShortMARising)
	fmt.Fprintf(w, "Structure\t%s\n", s.Structure)
	fmt.Fprintf(w, "Volatility\t%.2f (elevated: %v)\n", s.Volatility, s.VolatilityElevated)
	fmt.Fprintf(w, "Yield\t%.2f %s\n", s.Yield, s.YieldTrend)
	return w.Flush()
}
