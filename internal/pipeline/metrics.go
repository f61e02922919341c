package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OutcomesTotal counts final pipeline outcomes.
	// Labels: outcome (accepted, quarantined, rejected)
	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intaked",
			Subsystem: "pipeline",
			Name:      "outcomes_total",
			Help:      "Total number of messages by pipeline outcome",
		},
		[]string{"outcome"},
	)

	// ReplaysTotal counts messages whose stored outcome was replayed
	// instead of reprocessing.
	ReplaysTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "intaked",
			Subsystem: "pipeline",
			Name:      "replays_total",
			Help:      "Total number of duplicate messages answered from the outcome store",
		},
	)

	// SelectionsTotal counts strategy selections.
	// Labels: strategy (rules, cloud, local)
	SelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intaked",
			Subsystem: "pipeline",
			Name:      "strategy_selections_total",
			Help:      "Total number of strategy selections by chosen strategy",
		},
		[]string{"strategy"},
	)

	// ExtractionAttempts counts extraction attempts per strategy.
	// Labels: strategy (rules, cloud, local), result (success, error)
	ExtractionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intaked",
			Subsystem: "pipeline",
			Name:      "extraction_attempts_total",
			Help:      "Total number of extraction attempts by strategy and result",
		},
		[]string{"strategy", "result"},
	)

	// DemotionsTotal counts strategy demotions after exhausted retries.
	// Labels: from (cloud, local)
	DemotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intaked",
			Subsystem: "pipeline",
			Name:      "strategy_demotions_total",
			Help:      "Total number of strategy demotions after exhausted retries",
		},
		[]string{"from"},
	)

	// VerdictsTotal counts validator verdicts.
	// Labels: stage (schema, semantic, plausibility), outcome (pass, flag, reject)
	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intaked",
			Subsystem: "pipeline",
			Name:      "validation_verdicts_total",
			Help:      "Total number of validator verdicts by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	// QuarantineDepth tracks records currently awaiting a review decision.
	QuarantineDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intaked",
			Subsystem: "pipeline",
			Name:      "quarantine_depth",
			Help:      "Number of records currently quarantined for review",
		},
	)

	// IntegrationPushesTotal counts downstream record submissions.
	// Labels: result (success, error)
	IntegrationPushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intaked",
			Subsystem: "pipeline",
			Name:      "integration_pushes_total",
			Help:      "Total number of downstream record submissions by result",
		},
		[]string{"result"},
	)

	// ProcessDuration tracks end-to-end processing time per message.
	ProcessDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "intaked",
			Subsystem: "pipeline",
			Name:      "process_duration_seconds",
			Help:      "End-to-end pipeline duration per message in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ReviewDecisionsTotal counts resolved quarantine reviews.
	// Labels: decision (accepted, rejected)
	ReviewDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intaked",
			Subsystem: "pipeline",
			Name:      "review_decisions_total",
			Help:      "Total number of quarantine review decisions applied",
		},
		[]string{"decision"},
	)
)
