package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/newthinker/bigthing/internal/config"
	"github.com/newthinker/bigthing/internal/engine"
	"github.com/newthinker/bigthing/internal/journal"
	"github.com/newthinker/bigthing/internal/logger"
	"github.com/newthinker/bigthing/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runOutput   string
	runNoNotify bool
	runDate     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily pipeline and publish the report",
	RunE:  runPipeline,
}

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the report JSON to this file")
	runCmd.Flags().BoolVar(&runNoNotify, "no-notify", false, "skip notifiers")
	runCmd.Flags().StringVar(&runDate, "date", "", "report date YYYY-MM-DD (default: last index bar)")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ecfg := cfg.Engine()
	if runDate != "" {
		asOf, err := time.Parse("2006-01-02", runDate)
		if err != nil {
			return fmt.Errorf("invalid date format (expected YYYY-MM-DD): %w", err)
		}
		ecfg.AsOf = asOf
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		defer func() {
			if err := reg.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
				log.Error("writing metrics textfile", zap.String("path", cfg.Metrics.TextfilePath), zap.Error(err))
			}
		}()
	}

	provider, closeProvider, err := buildProvider(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeProvider()

	eng := engine.New(ecfg, provider, buildUniverse(cfg), log)
	eng.SetMetrics(reg)

	report, err := eng.Run(ctx, cfg.PortfolioState())
	if err != nil {
		return err
	}

	fmt.Println(report.Title())
	fmt.Println()
	fmt.Print(report.Summary())

	if runOutput != "" {
		if err := writeJSON(runOutput, report); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		log.Info("report written", zap.String("path", runOutput))
	}

	// Publishing failures are logged; the report itself is already out.
	rlog := logger.ForRun(log, report.Meta.RunID, report.Meta.RunDate)
	archiveReport(ctx, cfg, report, rlog)
	journalReport(ctx, cfg, report, rlog)
	if !runNoNotify {
		notify(ctx, cfg, report, reg, rlog)
	}
	return nil
}

func writeJSON(path string, report *engine.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func archiveReport(ctx context.Context, cfg *config.Config, report *engine.Report, log *zap.Logger) {
	arc, err := buildArchive(cfg)
	if err != nil {
		log.Error("archive unavailable", zap.Error(err))
		return
	}
	if arc == nil {
		return
	}
	path, err := arc.Save(ctx, report)
	if err != nil {
		log.Error("archiving report", zap.Error(err))
		return
	}
	log.Info("report archived", zap.String("path", path), zap.String("storage", cfg.Storage.Type))

	if cfg.Storage.RetentionDays > 0 {
		cutoff := report.Meta.RunDate.AddDate(0, 0, -cfg.Storage.RetentionDays)
		n, err := arc.Prune(ctx, cutoff)
		if err != nil {
			log.Warn("pruning archive", zap.Error(err))
			return
		}
		if n > 0 {
			log.Info("archive pruned", zap.Int("removed", n), zap.Time("cutoff", cutoff))
		}
	}
}

func journalReport(ctx context.Context, cfg *config.Config, report *engine.Report, log *zap.Logger) {
	if !cfg.Journal.Enabled {
		return
	}
	j, err := journal.Open(ctx, cfg.Journal.ToJournal())
	if err != nil {
		log.Error("journal unavailable", zap.Error(err))
		return
	}
	defer j.Close()

	if err := j.Migrate(ctx); err != nil {
		log.Error("journal migration", zap.Error(err))
		return
	}
	if err := j.Record(ctx, report); err != nil {
		log.Error("journaling run", zap.Error(err))
		return
	}
	log.Debug("run journaled", zap.String("run_id", report.Meta.RunID))
}

func notify(ctx context.Context, cfg *config.Config, report *engine.Report, reg *metrics.Registry, log *zap.Logger) {
	notifiers := buildNotifiers(cfg, log)
	names := notifiers.Names()
	if len(names) == 0 {
		return
	}

	errs := notifiers.NotifyAll(ctx, report)
	for _, name := range names {
		err := errs[name]
		reg.RecordNotification(name, err)
		if err != nil {
			log.Error("notification failed", zap.String("notifier", name), zap.Error(err))
			continue
		}
		log.Info("notification sent", zap.String("notifier", name))
	}
}
