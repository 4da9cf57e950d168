// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package quarantine

import "github.com/prometheus/client_golang/prometheus"

var (
	// Entries counts placements into the sandbox.
	Entries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_quarantine_entries_total",
			Help: "Total number of players placed into quarantine",
		},
	)

	// Releases counts restorations out of the sandbox, labeled by how
	// the record ended.
	Releases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_quarantine_releases_total",
			Help: "Total number of quarantine records removed",
		},
		[]string{"outcome"},
	)

	// Timeouts counts expired allowances.
	Timeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_quarantine_timeouts_total",
			Help: "Total number of quarantine timeouts",
		},
	)

	// Population tracks the current sandbox occupancy.
	Population = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warden_quarantine_population",
			Help: "Current number of quarantined players",
		},
	)
)

// RegisterMetrics registers quarantine metrics with the given registry.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{Entries, Releases, Timeouts, Population} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func recordEntry(population int) {
	Entries.Inc()
	Population.Set(float64(population))
}

func recordRelease(population int) {
	Releases.WithLabelValues("released").Inc()
	Population.Set(float64(population))
}

func recordAbort(population int) {
	Releases.WithLabelValues("aborted").Inc()
	Population.Set(float64(population))
}

func recordTimeout() {
	Timeouts.Inc()
}
