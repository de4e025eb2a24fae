package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_posts_created_total",
		Help: "Scheduled posts accepted by the API.",
	})

	Sweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_sweeps_total",
		Help: "Due-post sweeps by result (completed, error, busy).",
	}, []string{"result"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_sweep_duration_seconds",
		Help:    "Wall time of sweeps that found due posts.",
		Buckets: prometheus.DefBuckets,
	})

	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_dispatches_total",
		Help: "Per-post dispatch outcomes (triggered, failed, skipped, error).",
	}, []string{"outcome"})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_reconciliations_total",
		Help: "Outcome callbacks applied, by resulting status.",
	}, []string{"status"})

	StatusOverwrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_status_overwrites_total",
		Help: "Outcome callbacks that replaced a status outside the post lifecycle.",
	}, []string{"from", "to"})
)
