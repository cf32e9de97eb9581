// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	SweepsTotal          prometheus.Counter
	ReconcileErrors      prometheus.Counter
	RenamesTotal         prometheus.Counter
	RenameSkips          prometheus.Counter
	ChannelsMissing      prometheus.Counter
	DebounceTriggers     prometheus.Counter
	SnapshotSaves        prometheus.Counter
	SnapshotSaveFailures prometheus.Counter

	// Histograms (seconds)
	SweepDuration prometheus.Observer

	// Gauges
	GuildsGauge   prometheus.Gauge
	CountersGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "tally_sweeps_total", Help: "Number of full reconciliation sweeps started"})
		ReconcileErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "tally_reconcile_errors_total", Help: "Number of per-channel reconcile failures"})
		RenamesTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "tally_renames_total", Help: "Number of channel renames issued"})
		RenameSkips = promauto.NewCounter(prometheus.CounterOpts{Name: "tally_rename_skips_total", Help: "Number of reconciles that found the name already current"})
		ChannelsMissing = promauto.NewCounter(prometheus.CounterOpts{Name: "tally_channels_missing_total", Help: "Number of reconciles that skipped a channel deleted out-of-band"})
		DebounceTriggers = promauto.NewCounter(prometheus.CounterOpts{Name: "tally_debounce_triggers_total", Help: "Number of event-triggered partial sweeps scheduled"})
		SnapshotSaves = promauto.NewCounter(prometheus.CounterOpts{Name: "tally_snapshot_saves_total", Help: "Number of successful snapshot writes"})
		SnapshotSaveFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "tally_snapshot_save_failures_total", Help: "Number of failed snapshot writes"})
		SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "tally_sweep_duration_seconds", Help: "Full sweep duration seconds", Buckets: prometheus.DefBuckets})
		GuildsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "tally_guilds", Help: "Guilds with at least one managed counter"})
		CountersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "tally_counters", Help: "Total managed counter channels"})
	})
}

// Inc increments a counter if registered; packages may run in tests
// without Init having been called.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// SetStoreSize records current guild and counter totals.
func SetStoreSize(guilds, counters int) {
	if GuildsGauge != nil {
		GuildsGauge.Set(float64(guilds))
	}
	if CountersGauge != nil {
		CountersGauge.Set(float64(counters))
	}
}

// SnapshotSaved increments the successful-save counter if registered.
func SnapshotSaved() {
	if SnapshotSaves != nil {
		SnapshotSaves.Inc()
	}
}

// SnapshotSaveFailed increments the failed-save counter if registered.
func SnapshotSaveFailed() {
	if SnapshotSaveFailures != nil {
		SnapshotSaveFailures.Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
