// Package metrics registers the countdown engine's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timer_ticks_total",
		Help: "Countdown ticks applied across all timers",
	})

	CompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timer_completions_total",
		Help: "Timers that reached zero, by category",
	}, []string{"category"})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timer_transitions_total",
		Help: "Explicit timer transitions by operation and outcome",
	}, []string{"operation", "outcome"})

	PersistFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timer_persist_failures_total",
		Help: "Durable store writes that failed, by write kind",
	}, []string{"kind"})

	BulkOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timer_bulk_operations_total",
		Help: "Bulk operations applied to a category",
	}, []string{"operation"})

	ActiveCountdowns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timer_active_countdowns",
		Help: "Timers with an armed tick source",
	})
)

const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"

	KindThrottled  = "throttled"
	KindCompletion = "completion"
	KindHistory    = "history"
	KindTransition = "transition"
	KindFlush      = "flush"
)
