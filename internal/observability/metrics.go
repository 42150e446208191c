package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the indexer.
type Metrics struct {
	// Stream consumption
	EventsApplied   *prometheus.CounterVec
	EventsSkipped   *prometheus.CounterVec
	EventsUndone    *prometheus.CounterVec
	BatchesHandled  *prometheus.CounterVec
	BatchSize       *prometheus.HistogramVec
	BatchDuration   *prometheus.HistogramVec
	StreamOffset    *prometheus.GaugeVec
	StreamHalted    *prometheus.GaugeVec

	// Watermark barrier
	BarrierWaits    *prometheus.CounterVec
	BarrierWaitTime *prometheus.HistogramVec

	// Storage
	TxCommits   *prometheus.CounterVec
	TxRollbacks *prometheus.CounterVec

	// NATS
	FetchErrors *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg. Tests pass a
// throwaway prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	batchBuckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	f := promauto.With(reg)

	return &Metrics{
		EventsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mgv_events_applied_total",
			Help: "Events applied to the projection",
		}, []string{"stream", "event_type"}),

		EventsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mgv_events_skipped_total",
			Help: "Redelivered events skipped by the stream cursor",
		}, []string{"stream"}),

		EventsUndone: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mgv_events_undone_total",
			Help: "Undo events processed (chain reorganizations)",
		}, []string{"stream", "event_type"}),

		BatchesHandled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mgv_batches_handled_total",
			Help: "Batches committed per stream",
		}, []string{"stream"}),

		BatchSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mgv_batch_size",
			Help:    "Events per delivered batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"stream"}),

		BatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mgv_batch_duration_seconds",
			Help:    "Batch transaction duration",
			Buckets: batchBuckets,
		}, []string{"stream"}),

		StreamOffset: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mgv_stream_offset",
			Help: "Last committed offset per stream",
		}, []string{"stream"}),

		StreamHalted: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mgv_stream_halted",
			Help: "1 when the stream stopped on a fatal error",
		}, []string{"stream"}),

		BarrierWaits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mgv_barrier_waits_total",
			Help: "Times a trailing stream waited for the chain head",
		}, []string{"stream"}),

		BarrierWaitTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mgv_barrier_wait_seconds",
			Help:    "Time spent waiting on the chain head watermark",
			Buckets: batchBuckets,
		}, []string{"stream"}),

		TxCommits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mgv_tx_commits_total",
			Help: "Committed storage transactions",
		}, []string{"stream"}),

		TxRollbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mgv_tx_rollbacks_total",
			Help: "Rolled back storage transactions",
		}, []string{"stream"}),

		FetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mgv_fetch_errors_total",
			Help: "NATS fetch errors",
		}, []string{"stream"}),
	}
}
