package logger

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates the process logger. Debug selects the coloured console
// encoder at debug level; otherwise JSON at info level.
func New(debug bool) (*zap.Logger, error) {
	var cfg zap.Config

	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		// one run a day; keep every line
		cfg.Sampling = nil
	}

	return cfg.Build(zap.Fields(zap.String("app", "bigthing")))
}

// Must creates a logger or panics
func Must(debug bool) *zap.Logger {
	log, err := New(debug)
	if err != nil {
		panic(err)
	}
	return log
}

// ForRun tags log with the run id and report date.
func ForRun(log *zap.Logger, runID string, date time.Time) *zap.Logger {
	return log.With(
		zap.String("run_id", runID),
		zap.String("run_date", date.Format("2006-01-02")),
	)
}
