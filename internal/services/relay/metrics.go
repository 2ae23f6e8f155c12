package relay

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LeonardoBeccarini/rover_relay/internal/model/entities"
	"github.com/LeonardoBeccarini/rover_relay/internal/model/messages"
	"github.com/LeonardoBeccarini/rover_relay/pkg/mqttbus"
)

// Metrics of the relay. A nil *Metrics is valid and records nothing.
type Metrics struct {
	busMessages  *prometheus.CounterVec
	unhandledTot prometheus.Counter
	events       *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	drops        prometheus.Counter
	clients      *prometheus.GaugeVec
	commands     *prometheus.CounterVec
	brokerState  *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		busMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_bus_messages_total",
			Help: "Messages received from the bus, by broker and routing result.",
		}, []string{"broker", "result"}),
		unhandledTot: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_unhandled_topics_total",
			Help: "Bus messages on topics the router does not know.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_events_emitted_total",
			Help: "Canonical sensor events emitted, by kind.",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_socket_deliveries_total",
			Help: "Frames queued to socket clients, by role.",
		}, []string{"role"}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_socket_drops_total",
			Help: "Frames skipped because the client queue was full or closing.",
		}),
		clients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_clients",
			Help: "Registered socket clients, by role.",
		}, []string{"role"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_commands_published_total",
			Help: "Commands republished on the bus, by topic and result.",
		}, []string{"topic", "result"}),
		brokerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_broker_state",
			Help: "Broker connection state (0 disconnected, 1 connecting, 2 connected, 3 reconnecting).",
		}, []string{"broker"}),
	}
	reg.MustRegister(m.busMessages, m.unhandledTot, m.events, m.deliveries, m.drops,
		m.clients, m.commands, m.brokerState)
	return m
}

// busMessage counts by result, not topic: wildcard filters would make the
// topic label unbounded.
func (m *Metrics) busMessage(broker string, routed bool) {
	if m == nil {
		return
	}
	result := "routed"
	if !routed {
		result = "unhandled"
	}
	m.busMessages.WithLabelValues(broker, result).Inc()
}

func (m *Metrics) unhandled() {
	if m != nil {
		m.unhandledTot.Inc()
	}
}

func (m *Metrics) emitted(k messages.Kind) {
	if m != nil {
		m.events.WithLabelValues(string(k)).Inc()
	}
}

func (m *Metrics) delivered(r entities.Role, n int) {
	if m != nil && n > 0 {
		m.deliveries.WithLabelValues(string(r)).Add(float64(n))
	}
}

func (m *Metrics) dropped(n int) {
	if m != nil && n > 0 {
		m.drops.Add(float64(n))
	}
}

func (m *Metrics) setClients(dashboards, rovers int) {
	if m != nil {
		m.clients.WithLabelValues(string(entities.RoleDashboard)).Set(float64(dashboards))
		m.clients.WithLabelValues(string(entities.RoleRover)).Set(float64(rovers))
	}
}

func (m *Metrics) command(topic string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "dropped"
	}
	m.commands.WithLabelValues(topic, result).Inc()
}

// BrokerState is an mqttbus state hook.
func (m *Metrics) BrokerState(name string, s mqttbus.State) {
	if m != nil {
		m.brokerState.WithLabelValues(name).Set(float64(s))
	}
}
