package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts dialogue turns by final outcome:
	// "answered", "fallback", "rejected".
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinechat_turns_total",
			Help: "Total dialogue turns processed",
		},
		[]string{"outcome"},
	)

	// ClassificationsTotal counts classifier calls by matched intent.
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinechat_classifications_total",
			Help: "Total intent classifications",
		},
		[]string{"intent"},
	)

	// FallbacksTotal counts fallback replies by reason:
	// "low_confidence", "empty_result", "catalog_failure".
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinechat_fallbacks_total",
			Help: "Total fallback replies",
		},
		[]string{"reason"},
	)

	// CatalogRequestsTotal counts outbound catalog queries by outcome:
	// "ok", "error".
	CatalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinechat_catalog_requests_total",
			Help: "Total catalog service requests",
		},
		[]string{"outcome"},
	)

	// FeedbackWritesTotal counts recorded feedback by value.
	FeedbackWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinechat_feedback_writes_total",
			Help: "Total feedback records written",
		},
		[]string{"value"},
	)
)
