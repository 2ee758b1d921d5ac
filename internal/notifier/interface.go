package notifier

import (
	"context"

	"github.com/newthinker/bigthing/internal/engine"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Notifier delivers a finished report
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send delivers one report
	Send(ctx context.Context, report *engine.Report) error
}
