package transform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the counters a pipeline and its session update.
// Collectors built with a nil registerer still count; they are simply not
// exported, which is what tests rely on.
type Metrics struct {
	Computes        *prometheus.CounterVec
	ComputeFailures *prometheus.CounterVec
	ComputeDuration *prometheus.HistogramVec
	Composites      prometheus.Counter
	CacheHits       prometheus.Counter
	MemoHits        prometheus.Counter
	StaleResults    prometheus.Counter
	HistoryRecords  prometheus.Counter
	Undos           prometheus.Counter
	Redos           prometheus.Counter
	HistorySize     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Computes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "transform_kernel_computes_total",
			Help: "Number of kernel invocations by node kind",
		}, []string{"kind"}),
		ComputeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "transform_kernel_failures_total",
			Help: "Number of kernel invocations that returned an error",
		}, []string{"kind"}),
		ComputeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transform_kernel_duration_seconds",
			Help:    "Duration of kernel invocations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"kind"}),
		Composites: f.NewCounter(prometheus.CounterOpts{
			Name: "transform_group_composites_total",
			Help: "Number of group compositions",
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "transform_cache_hits_total",
			Help: "Number of element outputs served from their cache",
		}),
		MemoHits: f.NewCounter(prometheus.CounterOpts{
			Name: "transform_memo_hits_total",
			Help: "Number of kernel results served from the output memo cache",
		}),
		StaleResults: f.NewCounter(prometheus.CounterOpts{
			Name: "transform_stale_results_total",
			Help: "Number of computed results discarded because the element changed meanwhile",
		}),
		HistoryRecords: f.NewCounter(prometheus.CounterOpts{
			Name: "transform_history_records_total",
			Help: "Number of entries recorded in the edit history",
		}),
		Undos: f.NewCounter(prometheus.CounterOpts{
			Name: "transform_history_undo_total",
			Help: "Number of successful undo steps",
		}),
		Redos: f.NewCounter(prometheus.CounterOpts{
			Name: "transform_history_redo_total",
			Help: "Number of successful redo steps",
		}),
		HistorySize: f.NewGauge(prometheus.GaugeOpts{
			Name: "transform_history_size",
			Help: "Current number of entries in the edit history",
		}),
	}
}
