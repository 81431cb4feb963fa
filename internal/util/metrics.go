package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_transitions_total",
		Help: "Exchange transaction transitions by operation and outcome",
	}, []string{"operation", "result"})

	TransitionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exchange_transition_latency_seconds",
		Help:    "Latency of exchange transition operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	InventoryRestoresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_inventory_restores_total",
		Help: "Listing quantity restores by outcome",
	}, []string{"result"})

	InventoryRestoresSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_inventory_restores_skipped_total",
		Help: "Completions that consumed inventory instead of restoring it",
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_notifications_total",
		Help: "Notifications emitted by type and outcome",
	}, []string{"type", "result"})

	NotificationsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_notifications_deduplicated_total",
		Help: "Notifications skipped because an identical one already exists",
	}, []string{"type"})

	UnknownCategoryPolicies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_unknown_category_policy_total",
		Help: "Lookups that fell back to the default category policy",
	})

	ReturnSweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_return_sweep_runs_total",
		Help: "Return-date sweeps by outcome",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
