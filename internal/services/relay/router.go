package relay

import (
	"log"

	"github.com/LeonardoBeccarini/rover_relay/internal/model/messages"
)

// no echo / out of range
const noEcho = 999

// Broadcaster receives every canonical event produced by the Router.
type Broadcaster interface {
	BroadcastToDashboards(kind messages.Kind, payload any)
}

// Router maps bus topics to canonical sensor events. It keeps no state, so
// every connector can share one instance.
type Router struct {
	out     Broadcaster
	metrics *Metrics
}

func NewRouter(out Broadcaster, m *Metrics) *Router {
	return &Router{out: out, metrics: m}
}

// Handler returns the bus callback for the connector called broker.
func (r *Router) Handler(broker string) func(topic string, payload []byte) {
	return func(topic string, payload []byte) {
		r.metrics.busMessage(broker, r.handle(topic, payload))
	}
}

// Handle normalizes payload, routes it and emits every resulting event
// immediately, in routing order.
func (r *Router) Handle(topic string, payload []byte) { r.handle(topic, payload) }

func (r *Router) handle(topic string, payload []byte) bool {
	events, ok := r.Route(topic, Normalize(payload))
	if !ok {
		log.Printf("router: unhandled topic %s", topic)
		r.metrics.unhandled()
		return false
	}
	for _, evt := range events {
		r.metrics.emitted(evt.Kind())
		r.out.BroadcastToDashboards(evt.Kind(), evt)
	}
	return true
}

// Route maps one normalized message to its events. ok is false for topics
// the relay does not know.
func (r *Router) Route(topic string, data map[string]any) (events []messages.Event, ok bool) {
	switch topic {
	case TopicUltrasonic:
		return []messages.Event{radarFrom(data)}, true
	case TopicIMU:
		return []messages.Event{imuFrom(data)}, true
	case TopicEnv:
		return []messages.Event{messages.Environment{
			Temperature: num(data, 0, "temperature", "temp"),
			Humidity:    num(data, 0, "humidity", "hum"),
			Lux:         num(data, 0, "lux"),
		}}, true
	case TopicPower:
		v := num(data, 0, "voltage", "v")
		i := num(data, 0, "current", "i")
		return []messages.Event{messages.Power{Voltage: v, Current: i, Power: round2(v * i)}}, true
	case TopicGPS, TopicNode2GPS:
		return []messages.Event{gpsFrom(data)}, true
	case TopicActuatorStatus:
		return []messages.Event{messages.ActuatorStatus(data)}, true
	case TopicNode1Data, TopicNode2Data, TopicNode3Data, TopicLegacySensor:
		return decomposeCombined(data), true
	default:
		return nil, false
	}
}

// decomposeCombined splits the all-in-one node payload
// {radar:{...}, imu:{...}, temp, hum, lux, power:{solarV,loadV,solarI,loadI}}
// into the same events the single-purpose topics produce.
func decomposeCombined(data map[string]any) []messages.Event {
	var events []messages.Event
	if radar, ok := object(data, "radar"); ok {
		events = append(events, radarFrom(radar))
	}
	if imu, ok := object(data, "imu"); ok {
		events = append(events, imuFrom(imu))
	}
	if _, ok := data["temp"]; ok {
		events = append(events, messages.Environment{
			Temperature: num(data, 0, "temp"),
			Humidity:    num(data, 0, "hum"),
			Lux:         num(data, 0, "lux"),
		})
	}
	if p, ok := object(data, "power"); ok {
		sv, lv := num(p, 0, "solarV"), num(p, 0, "loadV")
		si, li := num(p, 0, "solarI"), num(p, 0, "loadI")
		events = append(events, messages.SolarPower{
			SolarV: sv,
			LoadV:  lv,
			SolarI: si,
			LoadI:  li,
			SolarW: round2(sv * si / 1000),
			LoadW:  round2(lv * li / 1000),
		})
	}
	return events
}

func radarFrom(d map[string]any) messages.Radar {
	return messages.Radar{
		Front: num(d, noEcho, "front"),
		Right: num(d, noEcho, "right"),
		Back:  num(d, noEcho, "back"),
		Left:  num(d, noEcho, "left"),
	}
}

func imuFrom(d map[string]any) messages.IMU {
	return messages.IMU{
		Roll:  num(d, 0, "roll"),
		Pitch: num(d, 0, "pitch"),
		Yaw:   num(d, 0, "yaw"),
	}
}

func gpsFrom(d map[string]any) messages.GPS {
	return messages.GPS{
		Lat:        num(d, 0, "lat"),
		Lon:        num(d, 0, "lon", "long"),
		Speed:      num(d, 0, "speed"),
		Heading:    num(d, 0, "direction", "heading"),
		Active:     d["active"],
		SOS:        d["sos"],
		Satellites: integer(d, 0, "satellites"),
		Signal:     integer(d, 0, "signal"),
	}
}
