package main

import (
	"context"
	"fmt"

	"github.com/newthinker/bigthing/internal/engine"
	"github.com/newthinker/bigthing/internal/logger"
	"github.com/spf13/cobra"
)

var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Print the resolved scan universe",
	Long:  "Resolve the configured baskets and print the symbols the scanner would evaluate, excluding current holdings.",
	RunE:  runUniverse,
}

func init() {
	rootCmd.AddCommand(universeCmd)
}

func runUniverse(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	eng := engine.New(cfg.Engine(), nil, buildUniverse(cfg), log)
	portfolio := cfg.PortfolioState()
	held := make([]string, 0, len(portfolio.Holdings))
	for _, h := range portfolio.Holdings {
		held = append(held, h.Symbol)
	}

	symbols, err := eng.Universe(context.Background(), held)
	if err != nil {
		return fmt.Errorf("resolving universe: %w", err)
	}
	for _, s := range symbols {
		fmt.Println(s)
	}
	fmt.Printf("\n%d symbols from %v (%d held excluded)\n", len(symbols), cfg.Universe.Baskets, len(held))
	return nil
}
