// Package metrics exposes Prometheus instrumentation for the simulation
// engine and the live feed. Everything is registered on the default registry
// and served by the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_events_generated_total",
		Help: "Total synthetic events generated, by trigger source.",
	}, []string{"trigger"})

	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_alerts_raised_total",
		Help: "Total risky events promoted to alerts, by risk band.",
	}, []string{"band"})

	ActionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_actions_rejected_total",
		Help: "User actions rejected because another was already in flight for the device.",
	})

	UnreadAlerts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigil_unread_alerts",
		Help: "Current unread alert count.",
	})

	LiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigil_live_clients",
		Help: "WebSocket clients currently subscribed to the live feed.",
	})
)

// Trigger label values for EventsGenerated.
const (
	TriggerTimer       = "timer"
	TriggerManual      = "manual"
	TriggerTransaction = "transaction"
	TriggerLogin       = "login"
)
