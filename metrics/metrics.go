// SPDX-License-Identifier: MIT

// Package metrics exposes the core's counters and gauges through a
// single package-level prometheus registry, grounded on the
// go-tcpinfo exporter package: no mutable singleton beyond the
// registry itself.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is the package-wide metrics registry. Callers that run
// their own HTTP exporter register it with a promhttp.Handler; the
// core never starts a listener on its own.
var Registry = prometheus.NewRegistry()

// Counters and gauges tracked across the core's subsystems.
var (
	TransportDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hdds_rtps_drops_total",
		Help: "Datagrams dropped because a receive ring or queue was full.",
	}, []string{"transport"})

	ReliabilityRetransmits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hdds_reliability_retransmits_total",
		Help: "DATA submessages retransmitted in response to a NACK.",
	}, []string{"topic"})

	DiscoveryParticipants = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hdds_discovery_participants",
		Help: "Participants currently known to the local participant DB.",
	})

	HistoryEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hdds_history_evictions_total",
		Help: "Samples evicted from a writer's history cache.",
	}, []string{"topic", "reason"})
)

func init() {
	Registry.MustRegister(TransportDrops, ReliabilityRetransmits, DiscoveryParticipants, HistoryEvictions)
}
