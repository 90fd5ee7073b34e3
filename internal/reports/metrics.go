package reports

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_submissions_total",
			Help: "Report submissions by outcome (final status or failure kind)",
		},
		[]string{"outcome"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reports_pipeline_stage_duration_seconds",
			Help:    "Duration of report pipeline stages",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"stage"},
	)

	fraudScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reports_fraud_score",
			Help:    "Distribution of geo fraud scores",
			Buckets: []float64{0, 0.1, 0.4, 0.7, 0.8, 1},
		},
	)

	sideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_side_effect_failures_total",
			Help: "Failed post-commit side effects",
		},
		[]string{"effect"},
	)
)
