package collector

import (
	"context"
	"time"

	"github.com/newthinker/bigthing/internal/core"
)

// Config holds collector configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	APIKey  string
	Extra   map[string]any
}

// Provider supplies end-of-day market data
type Provider interface {
	// Metadata
	Name() string

	// FetchSeries returns up to lookback daily bars ending at the latest close.
	FetchSeries(ctx context.Context, symbol string, lookback int) (core.PriceSeries, error)

	// FetchFundamentals returns the latest fundamental snapshot.
	FetchFundamentals(ctx context.Context, symbol string) (*core.Fundamental, error)
}
