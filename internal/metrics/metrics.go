// Copyright 2025 Takhin Data, Inc.

// Package metrics exposes Prometheus counters and histograms for the
// HTTP surface and the Decision Engine, grounded on the teacher's
// pkg/metrics but narrowed to this agent's operations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts every HTTP request by route and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagent_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	// RequestDuration measures handler latency by route.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tagent_http_request_duration_seconds",
			Help:    "HTTP request handling duration in seconds by route",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"route"},
	)

	// DecisionsTotal counts Decision Engine outcomes.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagent_authz_decisions_total",
			Help: "Total number of authorization decisions by outcome",
		},
		[]string{"allowed"},
	)

	// AuthFailuresTotal counts rejected bearer tokens.
	AuthFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagent_auth_failures_total",
			Help: "Total number of bearer token verification failures",
		},
	)
)

// Handler returns the HTTP handler that serves the registered metrics
// in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
