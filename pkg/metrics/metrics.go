package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_http_requests_total",
		Help: "HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "huddle_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "huddle_outbox_published_total",
		Help: "Notification envelopes published to the broker.",
	})

	OutboxFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "huddle_outbox_failed_total",
		Help: "Outbox events abandoned after exhausting retries.",
	})
)
