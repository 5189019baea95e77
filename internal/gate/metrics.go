// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package gate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// gateDecisions counts gate outcomes.
	// Labels:
	//   - outcome: "admit", "deny", "pass_through"
	//   - reason: denial class ("no_token", "invalid_token", "permission",
	//     "no_policy", "unavailable", "panic") or "" for admits
	gateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Total number of authorization gate decisions",
		},
		[]string{"outcome", "reason"},
	)

	// gateCheckDuration measures permission check latency.
	gateCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gate_check_duration_seconds",
			Help:    "Duration of permission checks in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// remoteCheckDuration measures remote validate round trips.
	remoteCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gate_remote_check_duration_seconds",
			Help:    "Duration of remote permission check calls in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
)

func recordAdmit() {
	gateDecisions.WithLabelValues("admit", "").Inc()
}

func recordPassThrough() {
	gateDecisions.WithLabelValues("pass_through", "").Inc()
}

func recordDeny(reason string) {
	gateDecisions.WithLabelValues("deny", reason).Inc()
}

func observeCheck(d time.Duration) {
	gateCheckDuration.Observe(d.Seconds())
}

func observeRemoteCheck(d time.Duration) {
	remoteCheckDuration.Observe(d.Seconds())
}
