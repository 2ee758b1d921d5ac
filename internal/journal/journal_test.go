package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/engine/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Journal, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres"), time.Second), mock
}

func TestSummarize(t *testing.T) {
	s := Summarize(enginetest.Report())

	assert.Equal(t, "RISK_ON", s.Regime)
	assert.Equal(t, 2, s.Holdings)
	assert.Equal(t, 1, s.Candidates)
	assert.Equal(t, 1, s.Positions)
	assert.Equal(t, 1, s.Warnings)
	assert.Equal(t, 0.95, s.Coverage)
	assert.True(t, s.RunDate.Equal(enginetest.RunDate))
}

func TestMigrate(t *testing.T) {
	j, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, j.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord(t *testing.T) {
	j, mock := newMock(t)
	r := enginetest.Report()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM runs WHERE run_date").
		WithArgs(enginetest.RunDate).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO runs").
		WithArgs(r.Meta.RunID, enginetest.RunDate, "RISK_ON", 1.0, 0.95, 2, 1, 1, sqlmock.AnyArg(), 40.0, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO run_positions").
		WithArgs(r.Meta.RunID, "NVDA", 125, 120.0, 112.0, 15000.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, j.Record(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_RollsBackOnFailure(t *testing.T) {
	j, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO runs").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := j.Record(context.Background(), enginetest.Report())
	assert.ErrorIs(t, err, core.ErrJournalFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecent(t *testing.T) {
	j, mock := newMock(t)
	d1 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC)

	cols := []string{"run_id", "run_date", "regime", "multiplier", "coverage", "holdings",
		"candidates", "positions", "deployed", "cash_pct", "warnings"}
	mock.ExpectQuery("SELECT (.+) FROM runs").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("b", d1, "RISK_ON", 1.0, 0.95, 3, 4, 2, 24000.0, 35.5, 0).
			AddRow("a", d2, "NEUTRAL", 0.7, 0.9, 3, 1, 0, 0.0, 58.0, 2))

	runs, err := j.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].RunID)
	assert.Equal(t, "NEUTRAL", runs[1].Regime)
	assert.Equal(t, 2, runs[1].Warnings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPositions(t *testing.T) {
	j, mock := newMock(t)

	mock.ExpectQuery("SELECT (.+) FROM run_positions").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "symbol", "shares", "entry", "stop", "notional"}).
			AddRow("run-1", "NVDA", 125, 120.0, 112.0, 15000.0))

	rows, err := j.Positions(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 125, rows[0].Shares)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.ErrorIs(t, err, core.ErrConfigMissing)
}
