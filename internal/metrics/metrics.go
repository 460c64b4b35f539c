// Package metrics exposes the engine's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Evaluation cycle metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertpulse_cycles_total",
			Help: "Total evaluation cycles by outcome",
		},
		[]string{"outcome"}, // ok, breach, errored, snoozed
	)

	BreachesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertpulse_breaches_total",
			Help: "Total cycles that detected a breach",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertpulse_notifications_total",
			Help: "Total notification dispatches by status",
		},
		[]string{"status"}, // ok, error
	)

	DegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertpulse_degraded_total",
			Help: "Total escalations to the degraded status",
		},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alertpulse_series_fetch_duration_seconds",
			Help:    "Series source fetch latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// Scheduler metrics
	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertpulse_scheduler_queue_size",
			Help: "Current number of queued evaluation tasks",
		},
	)

	InflightEvaluations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertpulse_inflight_evaluations",
			Help: "Evaluations currently holding a per-alert lease",
		},
	)

	DroppedTriggersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertpulse_dropped_triggers_total",
			Help: "Due triggers dropped because the alert was already running",
		},
	)
)
