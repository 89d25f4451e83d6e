// Package metrics holds the Prometheus collectors shared by the HTTP layer,
// the contribution cache, the activity dispatcher and the webhook handlers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	AuthRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_rejections_total",
			Help: "Total number of unauthorized requests",
		},
		[]string{"reason"},
	)

	// ContributionCacheLookups is labelled hit, miss or fallback.
	ContributionCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_contribution_cache_lookups_total",
			Help: "Contribution cache lookups by result",
		},
		[]string{"result"},
	)

	ActivityJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_jobs_total",
			Help: "Activity jobs processed, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook deliveries by processor, event type and outcome",
		},
		[]string{"processor", "type", "outcome"},
	)
)

// Register adds every collector to reg. Call this once from the serve command.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AuthRejections,
		ContributionCacheLookups,
		ActivityJobs,
		WebhookEvents,
	)
}
