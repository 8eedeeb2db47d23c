package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedback_cycles_total",
		Help: "Total number of feedback cycles run.",
	})
	cycleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedback_cycle_failures_total",
		Help: "Total number of feedback cycles that returned an error.",
	})
	storeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedback_store_failures_total",
		Help: "Total number of failed store reads and writes.",
	})
	patternsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedback_patterns_upserted_total",
		Help: "Total number of detected patterns written.",
	})
	configsUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedback_configs_updated_total",
		Help: "Total number of adaptive configurations persisted.",
	})
	configsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedback_configs_published_total",
		Help: "Total number of adaptive configurations published to Redis.",
	})
	outcomesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_outcomes_recorded_total",
		Help: "Total number of outcomes recorded, by kind.",
	}, []string{"kind"})
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedback_cycle_duration_seconds",
		Help:    "Duration of a full feedback cycle.",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
	})
	overallAccuracy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedback_overall_accuracy_percent",
		Help: "Claim accuracy over the analysis window at the last cycle.",
	})
	calibrationScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedback_calibration_score",
		Help: "Mean Brier score of finalised estimates at the last cycle.",
	})
	contextTokens = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feedback_context_tokens",
		Help: "Estimated tokens per prompt component at the last cycle.",
	}, []string{"component"})
)
