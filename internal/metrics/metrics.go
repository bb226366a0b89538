// Package metrics declares every Prometheus series networkd exposes on its
// optional /metrics HTTP endpoint: frame counters, ARP cache evictions, TCP
// state transitions, TLS handshake outcomes, connected IPC clients, and
// HTTP GETs served. The event loop in internal/daemon is the only caller;
// the protocol packages themselves stay free of metrics imports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	labelDirection = "direction"
	labelState     = "state"
	labelOutcome   = "outcome"
	labelStatus    = "status"

	DirectionRX = "rx"
	DirectionTX = "tx"

	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "networkd_frames_total",
			Help: "Total Ethernet frames processed, by direction",
		},
		[]string{labelDirection},
	)

	ARPCacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "networkd_arp_cache_evictions_total",
			Help: "Total ARP cache slots reused for a new IP (FIFO replacement)",
		},
	)

	ARPCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "networkd_arp_cache_size",
			Help: "Current number of valid entries in the ARP cache",
		},
	)

	TCPStateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "networkd_tcp_state_transitions_total",
			Help: "Total TCP connection state transitions, by new state",
		},
		[]string{labelState},
	)

	TLSHandshakesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "networkd_tls_handshakes_total",
			Help: "Total TLS 1.3 handshake attempts, by outcome",
		},
		[]string{labelOutcome},
	)

	IPCClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "networkd_ipc_clients_connected",
			Help: "Current number of connected IPC clients",
		},
	)

	HTTPGetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "networkd_http_gets_total",
			Help: "Total HTTP GET requests served, by final status",
		},
		[]string{labelStatus},
	)
)
