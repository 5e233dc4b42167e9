package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_http_requests_total",
			Help: "Total number of inbound weather requests by status code",
		},
		[]string{"code"},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_upstream_requests_total",
			Help: "Total number of calls to the weather provider by outcome",
		},
		[]string{"outcome"},
	)

	UpstreamRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "weather_upstream_request_duration_seconds",
			Help:    "Duration of calls to the weather provider in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Upstream call outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
	OutcomeMalformed   = "malformed"
)
