package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunter_search_requests_total",
			Help: "Search requests issued, by result",
		},
		[]string{"result"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hunter_search_duration_seconds",
			Help:    "Duration of a single search request",
			Buckets: prometheus.DefBuckets,
		},
	)

	OpportunitiesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunter_opportunities_dropped_total",
			Help: "Search results removed by the filter, by reason",
		},
		[]string{"reason"},
	)

	Assessments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunter_assessments_total",
			Help: "Risk assessments produced, by risk level",
		},
		[]string{"risk_level"},
	)

	GuardedActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunter_guarded_actions_total",
			Help: "Actions passed through the rate gate, by outcome",
		},
		[]string{"outcome"},
	)

	QuotedAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hunter_quote_amount",
			Help:    "Total amount of generated price quotes",
			Buckets: []float64{50, 100, 200, 500, 1000, 2000, 5000},
		},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunter_runs_total",
			Help: "Agent runs, by status",
		},
		[]string{"status"},
	)
)
