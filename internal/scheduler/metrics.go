// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package scheduler

import "github.com/prometheus/client_golang/prometheus"

// TickRate samples the measured tick rate once per host tick.
// Use RegisterMetrics to register this with a Prometheus registry.
var TickRate = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "warden_tick_rate",
		Help:    "Measured host tick rate in ticks per second",
		Buckets: prometheus.LinearBuckets(4, 2, 12),
	},
)

// RegisterMetrics registers scheduler metrics with the given registry.
func RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(TickRate)
}
