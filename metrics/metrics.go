package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransitionsTotal counts saga state transitions (counter)
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saga",
			Name:      "transitions_total",
			Help:      "The total number of booking transaction state transitions",
		},
		[]string{"from", "to"},
	)

	// OperationFailures counts failed saga operations (counter)
	OperationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saga",
			Name:      "operation_failures_total",
			Help:      "The total number of failed saga operations",
		},
		[]string{"operation"},
	)

	// RefundAttempts counts refunds issued through the payment gateway (counter)
	RefundAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "saga",
			Name:      "refund_attempts_total",
			Help:      "The total number of refund attempts",
		},
	)

	// AlertsEmitted counts alerts emitted per severity (counter)
	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saga",
			Name:      "alerts_total",
			Help:      "The total number of alerts emitted",
		},
		[]string{"severity"},
	)

	// BestEffortFailures counts swallowed best-effort side effect failures (counter)
	BestEffortFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saga",
			Name:      "best_effort_failures_total",
			Help:      "The total number of failed best-effort side effects",
		},
		[]string{"operation"},
	)
)
