package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	prometheus.MustRegister(openConnections)
	prometheus.MustRegister(activeRooms)
	prometheus.MustRegister(messagesRelayed)
	prometheus.MustRegister(framesDelivered)
	prometheus.MustRegister(framesDropped)
	prometheus.MustRegister(slowEvictions)
}

const (
	labelReason = "reason"

	reasonInvalid         = "invalid_payload"
	reasonUnknownReceiver = "unknown_receiver"
	reasonPersist         = "persist_failed"
)

var (
	openConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sweapp",
		Subsystem: "relay",
		Name:      "open_connections",
		Help:      "Number of chat connections joined to a room.",
	})

	activeRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sweapp",
		Subsystem: "relay",
		Name:      "active_rooms",
		Help:      "Number of rooms with at least one member.",
	})

	messagesRelayed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sweapp",
		Subsystem: "relay",
		Name:      "messages_relayed_total",
		Help:      "Messages persisted and broadcast.",
	})

	framesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sweapp",
		Subsystem: "relay",
		Name:      "frames_delivered_total",
		Help:      "Outbound frames queued to room members.",
	})

	// framesDropped counts inbound frames abandoned before broadcast,
	// broken down by reason.
	framesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sweapp",
		Subsystem: "relay",
		Name:      "frames_dropped_total",
		Help:      "Inbound frames that produced no broadcast.",
	}, []string{labelReason})

	slowEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sweapp",
		Subsystem: "relay",
		Name:      "slow_member_evictions_total",
		Help:      "Members disconnected because their outbound queue was full.",
	})
)
