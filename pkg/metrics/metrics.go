// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests received.",
		},
		[]string{"method", "path", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "code"},
	)

	// ReconcileEvents counts gateway events by producer outcome (applied,
	// duplicate, stale, ignored, rejected).
	ReconcileEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_reconcile_events_total",
			Help: "Gateway events seen by the reconciler.",
		},
		[]string{"provider", "source", "event", "outcome"},
	)

	SubscriptionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_subscription_transitions_total",
			Help: "Subscription status changes.",
		},
		[]string{"transition", "from", "to"},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "In-app notifications written.",
		},
		[]string{"type"},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Transactional emails by template and result.",
		},
		[]string{"template", "result"},
	)

	CronRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cron_runs_total",
			Help: "Scheduled job executions.",
		},
		[]string{"job", "result"},
	)
)
