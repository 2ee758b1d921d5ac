package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/engine"
)

const reportsDir = "reports"

// Archiver stores one report per run date under reports/YYYY/MM/.
type Archiver struct {
	store Storage
}

// New wraps store.
func New(store Storage) *Archiver {
	return &Archiver{store: store}
}

// PathFor returns the archive path for a run date.
func PathFor(date time.Time) string {
	return path.Join(reportsDir, date.Format("2006"), date.Format("01"), date.Format("2006-01-02")+".json")
}

// Save writes report, replacing any earlier report for the same date.
func (a *Archiver) Save(ctx context.Context, report *engine.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", core.WrapError(core.ErrArchiveFailed, err)
	}
	p := PathFor(report.Meta.RunDate)
	if err := a.store.Write(ctx, p, data); err != nil {
		return "", core.WrapError(core.ErrArchiveFailed, fmt.Errorf("write %s: %w", p, err))
	}
	return p, nil
}

// Load reads the report archived for date.
func (a *Archiver) Load(ctx context.Context, date time.Time) (*engine.Report, error) {
	return a.load(ctx, PathFor(date))
}

// Latest returns the most recent archived report, or nil when none exist.
func (a *Archiver) Latest(ctx context.Context) (*engine.Report, error) {
	paths, err := a.reports(ctx)
	if err != nil || len(paths) == 0 {
		return nil, err
	}
	return a.load(ctx, paths[len(paths)-1])
}

// Prune deletes reports dated before cutoff and returns how many went.
func (a *Archiver) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	paths, err := a.reports(ctx)
	if err != nil {
		return 0, err
	}
	limit := cutoff.Format("2006-01-02")
	removed := 0
	for _, p := range paths {
		if strings.TrimSuffix(path.Base(p), ".json") >= limit {
			continue
		}
		if err := a.store.Delete(ctx, p); err != nil {
			return removed, core.WrapError(core.ErrArchiveFailed, fmt.Errorf("delete %s: %w", p, err))
		}
		removed++
	}
	return removed, nil
}

// reports lists archived report paths, oldest first.
func (a *Archiver) reports(ctx context.Context) ([]string, error) {
	all, err := a.store.List(ctx, reportsDir)
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}
	out := all[:0]
	for _, p := range all {
		if strings.HasSuffix(p, ".json") {
			out = append(out, p)
		}
	}
	return out, nil
}

func (a *Archiver) load(ctx context.Context, p string) (*engine.Report, error) {
	data, err := a.store.Read(ctx, p)
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, fmt.Errorf("read %s: %w", p, err))
	}
	var r engine.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, fmt.Errorf("decode %s: %w", p, err))
	}
	return &r, nil
}
