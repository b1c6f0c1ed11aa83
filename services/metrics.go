package services

import (
	"github.com/prometheus/client_golang/prometheus"

	"activity-sync/models"
)

var (
	runsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_sync",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Number of finished sync runs, labeled by source and outcome.",
	}, []string{"source", "outcome"})

	recordsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_sync",
		Subsystem: "sync",
		Name:      "records_total",
		Help:      "Activities written by reconciliation, labeled by source and action.",
	}, []string{"source", "action"})

	missesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_sync",
		Subsystem: "sync",
		Name:      "misses_total",
		Help:      "Recovered per-record problems, labeled by source and kind.",
	}, []string{"source", "kind"})

	runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "activity_sync",
		Subsystem: "sync",
		Name:      "run_duration_seconds",
		Help:      "Wall time of sync runs from start to finalization.",
		Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
	}, []string{"source"})

	// Unix time of the last run that succeeded, per source
	lastSuccessGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "activity_sync",
		Subsystem: "sync",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful run.",
	}, []string{"source"})

	activeGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "activity_sync",
		Subsystem: "store",
		Name:      "active_activities",
		Help:      "Active activities per source after the last applied run.",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(runsCounter, recordsCounter, missesCounter, runDuration, lastSuccessGauge, activeGauge)
}

func recordRunMetrics(run *models.SyncRun) {
	src := run.SourceID
	runsCounter.WithLabelValues(src, string(run.Outcome)).Inc()
	if run.FinishedAt != nil {
		runDuration.WithLabelValues(src).Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
		if run.Outcome == models.OutcomeSucceeded {
			lastSuccessGauge.WithLabelValues(src).Set(float64(run.FinishedAt.Unix()))
		}
	}

	for action, n := range map[string]int{
		"created":   run.Created,
		"updated":   run.Updated,
		"unchanged": run.Unchanged,
		"retired":   run.Retired,
		"error":     run.Errors,
	} {
		recordsCounter.WithLabelValues(src, action).Add(float64(n))
	}
	for kind, n := range map[string]int{
		"navigation":     run.NavigationErrors,
		"extraction":     run.ExtractionMisses,
		"normalization":  run.NormalizationMisses,
		"classification": run.ClassificationMisses,
		"detail_timeout": run.DetailTimeouts,
		"detail_error":   run.DetailErrors,
	} {
		missesCounter.WithLabelValues(src, kind).Add(float64(n))
	}
}
