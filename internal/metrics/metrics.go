// Package metrics exposes the server's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OpenConnections counts registered client agents.
	OpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agargo_open_connections",
		Help: "Client agents currently registered with the hub.",
	})

	// JoinedPlayers counts clients with a live player in the world.
	JoinedPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agargo_joined_players",
		Help: "Players currently joined to the world.",
	})

	// SporeCount tracks the size of the spore map.
	SporeCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agargo_spores",
		Help: "Spores currently in the world.",
	})

	// BroadcastPackets counts packets fanned out to joined clients.
	BroadcastPackets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agargo_broadcast_packets_total",
		Help: "Packets broadcast to all joined clients.",
	})

	// DroppedCommands counts hub commands dropped for missing referents
	// or failed checks.
	DroppedCommands = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agargo_dropped_commands_total",
		Help: "Hub commands dropped (unknown client, failed proximity check, ...).",
	})

	// TickDuration observes how long one simulation tick takes.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agargo_tick_duration_seconds",
		Help:    "Wall time of one hub simulation tick.",
		Buckets: prometheus.ExponentialBuckets(1e-5, 2, 12),
	})
)
