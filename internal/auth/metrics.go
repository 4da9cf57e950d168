// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ConnectDecisions counts connect outcomes by decision and reason.
// Use RegisterMetrics to register this with a Prometheus registry.
var ConnectDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "warden_connect_decisions_total",
		Help: "Total number of connect decisions by outcome and reason",
	},
	[]string{"decision", "reason"},
)

// LoginFailures counts failed login attempts by cause.
var LoginFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "warden_login_failures_total",
		Help: "Total number of failed login attempts by cause",
	},
	[]string{"cause"},
)

// Registrations counts successful registrations.
var Registrations = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "warden_registrations_total",
		Help: "Total number of successful registrations",
	},
)

// RegisterMetrics registers auth package metrics with the given Prometheus
// registry. Must be called at startup to make metrics available on /metrics.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{ConnectDecisions, LoginFailures, Registrations} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func recordConnectDecision(d Decision, reason Reason) {
	ConnectDecisions.WithLabelValues(d.String(), string(reason)).Inc()
}

func recordLoginFailure(cause string) {
	LoginFailures.WithLabelValues(cause).Inc()
}

func recordRegistration() {
	Registrations.Inc()
}
