// Package metrics provides Prometheus metrics for the mission control API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsCodedTotal tracks transactions coded by bulk rule application
	TransactionsCodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "missionctl",
			Subsystem: "coding",
			Name:      "transactions_coded_total",
			Help:      "Total number of transactions coded by bulk rule application",
		},
		[]string{"pattern_type"},
	)

	// TransactionsReversedTotal tracks transactions returned to uncoded on rule deletion
	TransactionsReversedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "missionctl",
			Subsystem: "coding",
			Name:      "transactions_reversed_total",
			Help:      "Total number of transactions returned to uncoded when a rule was deleted",
		},
		[]string{"pattern_type"},
	)

	// TransactionsExcludedTotal tracks transactions excluded by the exclusion sweep
	TransactionsExcludedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "missionctl",
			Subsystem: "coding",
			Name:      "transactions_excluded_total",
			Help:      "Total number of transactions excluded by the exclusion rule sweep",
		},
	)

	// SplitsTotal tracks completed transaction splits
	SplitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "missionctl",
			Subsystem: "ledger",
			Name:      "splits_total",
			Help:      "Total number of completed transaction splits",
		},
	)

	// SplitChildrenTotal tracks child transactions created by splits
	SplitChildrenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "missionctl",
			Subsystem: "ledger",
			Name:      "split_children_total",
			Help:      "Total number of child transactions created by splits",
		},
	)

	// FeedTransactionsIngestedTotal tracks transactions ingested from the feed
	FeedTransactionsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "missionctl",
			Subsystem: "ingest",
			Name:      "feed_transactions_total",
			Help:      "Total number of feed transactions processed by outcome",
		},
		[]string{"outcome"},
	)
)
