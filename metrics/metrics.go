// Package metrics defines the Prometheus collectors exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"method", "route"},
	)

	InvitesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invites_sent_total",
			Help: "Invitation emails by delivery result",
		},
		[]string{"result"},
	)
)
