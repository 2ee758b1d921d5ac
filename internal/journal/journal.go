// Package journal keeps a PostgreSQL history of daily runs.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/engine"
)

// Config holds database connection configuration
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" default:"4"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" default:"30m"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" default:"30s"`
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID      string    `db:"run_id"`
	RunDate    time.Time `db:"run_date"`
	Regime     string    `db:"regime"`
	Multiplier float64   `db:"multiplier"`
	Coverage   float64   `db:"coverage"`
	Holdings   int       `db:"holdings"`
	Candidates int       `db:"candidates"`
	Positions  int       `db:"positions"`
	Deployed   float64   `db:"deployed"`
	CashPct    float64   `db:"cash_pct"`
	Warnings   int       `db:"warnings"`
}

// PositionRow is one planned position of a run.
type PositionRow struct {
	RunID    string  `db:"run_id"`
	Symbol   string  `db:"symbol"`
	Shares   int     `db:"shares"`
	Entry    float64 `db:"entry"`
	Stop     float64 `db:"stop"`
	Notional float64 `db:"notional"`
}

// Summarize extracts the journal row from a report.
func Summarize(r *engine.Report) RunSummary {
	return RunSummary{
		RunID:      r.Meta.RunID,
		RunDate:    r.Meta.RunDate,
		Regime:     string(r.Regime.Label),
		Multiplier: r.Regime.Multiplier,
		Coverage:   r.Meta.Coverage,
		Holdings:   len(r.Holdings),
		Candidates: len(r.Candidates),
		Positions:  len(r.Plan.Positions),
		Deployed:   r.Plan.Deployed,
		CashPct:    r.Plan.CashPct,
		Warnings:   len(r.Meta.Warnings),
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	run_date   DATE NOT NULL UNIQUE,
	regime     TEXT NOT NULL,
	multiplier DOUBLE PRECISION NOT NULL,
	coverage   DOUBLE PRECISION NOT NULL,
	holdings   INTEGER NOT NULL,
	candidates INTEGER NOT NULL,
	positions  INTEGER NOT NULL,
	deployed   DOUBLE PRECISION NOT NULL,
	cash_pct   DOUBLE PRECISION NOT NULL,
	warnings   INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS run_positions (
	run_id   TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	symbol   TEXT NOT NULL,
	shares   INTEGER NOT NULL,
	entry    DOUBLE PRECISION NOT NULL,
	stop     DOUBLE PRECISION NOT NULL,
	notional DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, symbol)
);`

// Journal records run summaries.
type Journal struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Journal, error) {
	if cfg.DSN == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("journal dsn"))
	}
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, core.WrapError(core.ErrJournalFailed, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrJournalFailed, fmt.Errorf("ping: %w", err))
	}
	return New(db, cfg.QueryTimeout), nil
}

// New wraps an existing connection.
func New(db *sqlx.DB, timeout time.Duration) *Journal {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Journal{db: db, timeout: timeout}
}

// Close releases the connection pool.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Migrate creates the tables if they do not exist.
func (j *Journal) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return core.WrapError(core.ErrJournalFailed, fmt.Errorf("migrate: %w", err))
	}
	return nil
}

// Record stores the run and its positions. A rerun for the same date
// replaces the earlier entry.
func (j *Journal) Record(ctx context.Context, r *engine.Report) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.WrapError(core.ErrJournalFailed, err)
	}
	defer tx.Rollback()

	s := Summarize(r)
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_date = $1`, s.RunDate); err != nil {
		return core.WrapError(core.ErrJournalFailed, fmt.Errorf("replace run: %w", err))
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs
		(run_id, run_date, regime, multiplier, coverage, holdings, candidates,
		 positions, deployed, cash_pct, warnings)
		VALUES (:run_id, :run_date, :regime, :multiplier, :coverage, :holdings, :candidates,
		 :positions, :deployed, :cash_pct, :warnings)`, s)
	if err != nil {
		return core.WrapError(core.ErrJournalFailed, fmt.Errorf("insert run: %w", err))
	}

	for _, p := range r.Plan.Positions {
		row := PositionRow{
			RunID:    s.RunID,
			Symbol:   p.Symbol,
			Shares:   p.Shares,
			Entry:    p.Entry,
			Stop:     p.Stop,
			Notional: p.Notional,
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO run_positions (run_id, symbol, shares, entry, stop, notional)
			VALUES (:run_id, :symbol, :shares, :entry, :stop, :notional)`, row)
		if err != nil {
			return core.WrapError(core.ErrJournalFailed, fmt.Errorf("insert position %s: %w", p.Symbol, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return core.WrapError(core.ErrJournalFailed, err)
	}
	return nil
}

// Recent returns the latest n runs, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var out []RunSummary
	err := j.db.SelectContext(ctx, &out, `
		SELECT run_id, run_date, regime, multiplier, coverage, holdings, candidates,
		       positions, deployed, cash_pct, warnings
		FROM runs
		ORDER BY run_date DESC
		LIMIT $1`, n)
	if err != nil {
		return nil, core.WrapError(core.ErrJournalFailed, err)
	}
	return out, nil
}

// Positions returns the planned positions of one run.
func (j *Journal) Positions(ctx context.Context, runID string) ([]PositionRow, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var out []PositionRow
	err := j.db.SelectContext(ctx, &out, `
		SELECT run_id, symbol, shares, entry, stop, notional
		FROM run_positions
		WHERE run_id = $1
		ORDER BY symbol`, runID)
	if err != nil {
		return nil, core.WrapError(core.ErrJournalFailed, err)
	}
	return out, nil
}
