// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the token lifecycle. Gate decision metrics live with the gate.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestsTotal counts API requests.
	// Labels: method, endpoint (route pattern, not raw path), status_code.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	// APIRequestDuration measures request latency.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// APIActiveRequests tracks in-flight requests.
	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// TokensIssued counts token issuance by kind and flow.
	// Labels:
	//   - kind: "access", "refresh"
	//   - flow: "login", "guest", "refresh"
	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokens_issued_total",
			Help: "Total number of tokens issued",
		},
		[]string{"kind", "flow"},
	)

	// RefreshRotations counts refresh rotation outcomes.
	// Labels: outcome ("success", "expired", "revoked", "malformed", "rejected").
	RefreshRotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_rotations_total",
			Help: "Total number of refresh token rotation attempts",
		},
		[]string{"outcome"},
	)

	// SessionsRevoked counts sessions removed by logout or sweeping.
	// Labels: reason ("logout", "expired", "replaced").
	SessionsRevoked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_revoked_total",
			Help: "Total number of sessions revoked",
		},
		[]string{"reason"},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordTokenIssued records a token issuance.
func RecordTokenIssued(kind, flow string) {
	TokensIssued.WithLabelValues(kind, flow).Inc()
}

// RecordRefreshRotation records a rotation attempt outcome.
func RecordRefreshRotation(outcome string) {
	RefreshRotations.WithLabelValues(outcome).Inc()
}

// RecordSessionRevoked records a session revocation.
func RecordSessionRevoked(reason string) {
	SessionsRevoked.WithLabelValues(reason).Inc()
}
