package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bigthing"

// Registry holds all Prometheus metrics for a run. A nil *Registry is a
// valid no-op recorder.
type Registry struct {
	*prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	stageDuration    *prometheus.HistogramVec
	lastRun          prometheus.Gauge
	coverage         prometheus.Gauge
	symbols          *prometheus.GaugeVec
	regime           *prometheus.GaugeVec
	healthActions    *prometheus.GaugeVec
	candidates       prometheus.Gauge
	exclusions       *prometheus.GaugeVec
	positions        prometheus.Gauge
	deployed         prometheus.Gauge
	cashPct          prometheus.Gauge
	warnings         *prometheus.CounterVec
	notificationsOut *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		Registry: reg,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by outcome",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "End-to-end pipeline duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Per-stage duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last completed run",
			},
		),
		coverage: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "data_coverage_ratio",
				Help:      "Fraction of requested symbols fetched with enough history",
			},
		),
		symbols: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "symbols",
				Help:      "Symbol counts by kind",
			},
			[]string{"kind"},
		),
		regime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "regime",
				Help:      "1 for the current regime label, 0 otherwise",
			},
			[]string{"label"},
		),
		healthActions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "holdings_by_action",
				Help:      "Holdings per recommended action",
			},
			[]string{"action"},
		),
		candidates: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "candidates",
				Help:      "Candidates that passed every hard filter",
			},
		),
		exclusions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scanner_exclusions",
				Help:      "Universe symbols excluded per reason",
			},
			[]string{"reason"},
		),
		positions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "planned_positions",
				Help:      "New positions in the allocation plan",
			},
		),
		deployed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "deployed_value",
				Help:      "Notional deployed by the allocation plan",
			},
		),
		cashPct: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cash_pct",
				Help:      "Cash as percent of portfolio after the plan",
			},
		),
		warnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "warnings_total",
				Help:      "Non-fatal warnings by stage and code",
			},
			[]string{"stage", "code"},
		),
		notificationsOut: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Report deliveries by notifier and outcome",
			},
			[]string{"notifier", "status"},
		),
	}

	reg.MustRegister(
		r.runsTotal,
		r.runDuration,
		r.stageDuration,
		r.lastRun,
		r.coverage,
		r.symbols,
		r.regime,
		r.healthActions,
		r.candidates,
		r.exclusions,
		r.positions,
		r.deployed,
		r.cashPct,
		r.warnings,
		r.notificationsOut,
	)
	return r
}

// RecordRun records a finished run.
func (r *Registry) RecordRun(status string, d time.Duration, at time.Time) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(d.Seconds())
	if status == StatusOK {
		r.lastRun.Set(float64(at.Unix()))
	}
}

// Run outcomes.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// ObserveStage records one stage's duration.
func (r *Registry) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetCoverage records fetch coverage.
func (r *Registry) SetCoverage(ratio float64, requested, fetched int) {
	if r == nil {
		return
	}
	r.coverage.Set(ratio)
	r.symbols.WithLabelValues("requested").Set(float64(requested))
	r.symbols.WithLabelValues("fetched").Set(float64(fetched))
}

// SetRegime flags label as current among all labels.
func (r *Registry) SetRegime(label string, all []string) {
	if r == nil {
		return
	}
	for _, l := range all {
		v := 0.0
		if l == label {
			v = 1
		}
		r.regime.WithLabelValues(l).Set(v)
	}
}

// SetHoldingActions records how many holdings got each action.
func (r *Registry) SetHoldingActions(counts map[string]int) {
	if r == nil {
		return
	}
	for action, n := range counts {
		r.healthActions.WithLabelValues(action).Set(float64(n))
	}
}

// SetScan records scanner output.
func (r *Registry) SetScan(universe, passed int, exclusions map[string]int) {
	if r == nil {
		return
	}
	r.symbols.WithLabelValues("universe").Set(float64(universe))
	r.candidates.Set(float64(passed))
	for reason, n := range exclusions {
		r.exclusions.WithLabelValues(reason).Set(float64(n))
	}
}

// SetPlan records allocation output.
func (r *Registry) SetPlan(positions int, deployed, cashPct float64) {
	if r == nil {
		return
	}
	r.positions.Set(float64(positions))
	r.deployed.Set(deployed)
	r.cashPct.Set(cashPct)
}

// AddWarning counts a non-fatal warning.
func (r *Registry) AddWarning(stage, code string) {
	if r == nil {
		return
	}
	r.warnings.WithLabelValues(stage, code).Inc()
}

// RecordNotification records a delivery attempt.
func (r *Registry) RecordNotification(notifier string, err error) {
	if r == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	r.notificationsOut.WithLabelValues(notifier, status).Inc()
}

// WriteTextfile writes all metrics in the node-exporter textfile format.
func (r *Registry) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.Registry)
}
