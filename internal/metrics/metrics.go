// Package metrics defines the Prometheus instruments exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hub Metrics
var (
	// HubConnectedClients tracks currently connected live viewers by transport
	HubConnectedClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hub_connected_clients",
			Help: "Currently connected live viewers by transport kind",
		},
		[]string{"transport"},
	)

	// HubEventsPublishedTotal tracks events accepted by the hub, by event type
	HubEventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_events_published_total",
			Help: "Events published through the hub by event type",
		},
		[]string{"type"},
	)

	// HubSendFailuresTotal tracks per-recipient send failures by transport
	HubSendFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_send_failures_total",
			Help: "Per-recipient send failures during broadcast by transport kind",
		},
		[]string{"transport"},
	)

	// HubSlowClientsEvicted tracks clients dropped for a full send queue
	HubSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "Clients disconnected because their send queue was full",
		},
	)

	// HubHeartbeatFailuresTotal tracks failed liveness frames by transport
	HubHeartbeatFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_heartbeat_failures_total",
			Help: "Failed heartbeat sends that caused a connection reap",
		},
		[]string{"transport"},
	)
)

// Producer Metrics
var (
	// BellSignalsTotal tracks accepted bell triggers by action
	BellSignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bell_signals_total",
			Help: "Accepted trading-day bell triggers by action",
		},
		[]string{"action"},
	)

	// LeaderboardRefreshDuration tracks leaderboard store read latency
	LeaderboardRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leaderboard_refresh_duration_seconds",
			Help:    "Leaderboard store read duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)

// Relay Metrics
var (
	// RelayEventsTotal tracks cross-instance relay traffic by direction
	RelayEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_total",
			Help: "Cross-instance relay events by direction (published/received/dropped)",
		},
		[]string{"direction"},
	)
)
