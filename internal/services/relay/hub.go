package relay

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/LeonardoBeccarini/rover_relay/internal/model/entities"
	"github.com/LeonardoBeccarini/rover_relay/internal/model/messages"
)

// Socket events.
const (
	EventRegisterDashboard = "register-dashboard"
	EventRegisterRover     = "register-rover"
	EventRegistered        = "registered"

	EventGPSData        = "gps-data"
	EventRadarData      = "radar-data"
	EventCameraFrame    = "camera-frame"
	EventYoloDetections = "yolo-detections"

	EventAddWaypoint     = "add-waypoint"
	EventRemoveWaypoint  = "remove-waypoint"
	EventClearWaypoints  = "clear-waypoints"
	EventStartNavigation = "start-navigation"

	EventDriveCommand   = "drive-command"
	EventPanTiltCommand = "pantilt-command"
	EventDeviceCommand  = "device-command"

	EventWebRTCOffer  = "webrtc-offer"
	EventWebRTCAnswer = "webrtc-answer"
	EventWebRTCICE    = "webrtc-ice-candidate"
)

// DefaultDriveSpeed applies when a drive command carries no speed.
const DefaultDriveSpeed = 200

var (
	errNoPublisher = errors.New("relay: no bus publisher")
	errNotObject   = errors.New("relay: command is not a JSON object")
)

// Publisher puts commands on the bus. Failures are reported, never retried.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Hub is the dispatch engine between the bus side and the socket clients.
// The Router pushes telemetry into it; socket readers hand it every inbound
// frame. It is built once and shared by reference.
type Hub struct {
	reg     *Registry
	pub     Publisher
	metrics *Metrics
}

func NewHub(reg *Registry, pub Publisher, m *Metrics) *Hub {
	return &Hub{reg: reg, pub: pub, metrics: m}
}

// AttachPublisher sets the command publisher. The publisher wraps a connector
// that itself feeds the hub, so it can only be attached after both exist and
// must be attached before that connector starts.
func (h *Hub) AttachPublisher(p Publisher) { h.pub = p }

// Registry exposes the membership sets.
func (h *Hub) Registry() *Registry { return h.reg }

// BroadcastToDashboards sends one canonical event to every dashboard.
func (h *Hub) BroadcastToDashboards(kind messages.Kind, payload any) {
	env, err := messages.NewEnvelope(string(kind), payload)
	if err != nil {
		log.Printf("hub: encode %s: %v", kind, err)
		return
	}
	h.fanOut(entities.RoleDashboard, env)
}

func (h *Hub) fanOut(role entities.Role, env messages.Envelope) {
	sent, skipped := h.reg.SendTo(role, env)
	h.metrics.delivered(role, sent)
	h.metrics.dropped(skipped)
}

// Register gives c a role and acknowledges it with a registered frame.
func (h *Hub) Register(c Client, role entities.Role) {
	if prev := h.reg.RoleOf(c); prev != entities.RoleNone && prev != role {
		log.Printf("hub: client %s moves from %s to %s", c.ID(), prev, role)
	}
	h.reg.Register(c, role)
	log.Printf("hub: %s registered: %s", role, c.ID())
	h.metrics.setClients(h.reg.Counts())

	ack, _ := messages.NewEnvelope(EventRegistered, map[string]string{"role": string(role)})
	c.Send(ack)
}

// Disconnect drops c from every set. Safe for clients that never registered.
func (h *Hub) Disconnect(c Client) {
	role := h.reg.Unregister(c)
	log.Printf("hub: client disconnected: %s (role=%q)", c.ID(), role)
	h.metrics.setClients(h.reg.Counts())
}

// Dispatch handles one frame received from c.
func (h *Hub) Dispatch(c Client, env messages.Envelope) {
	switch env.Event {
	case EventRegisterDashboard:
		h.Register(c, entities.RoleDashboard)
	case EventRegisterRover:
		h.Register(c, entities.RoleRover)

	// rover-side producers pushing straight to the operators
	case EventGPSData, EventRadarData, EventCameraFrame, EventYoloDetections:
		h.fanOut(entities.RoleDashboard, env)

	case EventAddWaypoint:
		var wp entities.Waypoint
		if err := json.Unmarshal(env.Data, &wp); err == nil {
			log.Printf("hub: waypoint added lat=%.6f lon=%.6f", wp.Lat, wp.Lon)
		}
		h.fanOut(entities.RoleRover, env)
	case EventRemoveWaypoint, EventClearWaypoints:
		h.fanOut(entities.RoleRover, env)
	case EventStartNavigation:
		log.Printf("hub: start navigation from %s", c.ID())
		h.fanOut(entities.RoleRover, env)

	case EventDriveCommand:
		h.drive(env.Data)
	case EventPanTiltCommand:
		h.panTilt(env.Data)
	case EventDeviceCommand:
		h.device(env.Data)

	case EventWebRTCOffer:
		h.fanOut(entities.RoleDashboard, env)
	case EventWebRTCAnswer:
		h.fanOut(entities.RoleRover, env)
	case EventWebRTCICE:
		role := h.reg.RoleOf(c)
		if role == entities.RoleNone {
			return
		}
		h.fanOut(role.Opposite(), env)

	default:
		log.Printf("hub: unknown event %q from %s", env.Event, c.ID())
	}
}

func (h *Hub) drive(data json.RawMessage) {
	cmd, err := decodeObject(data)
	if err != nil {
		log.Printf("hub: drop drive command %s: %v", data, err)
		return
	}
	dir, _ := cmd["direction"].(string)
	if strings.TrimSpace(dir) == "" {
		log.Printf("hub: drop drive command %s: missing direction", data)
		return
	}
	order := messages.DriveOrder{
		Move:  strings.ToUpper(strings.TrimSpace(dir)),
		Speed: num(cmd, DefaultDriveSpeed, "speed"),
	}
	log.Printf("hub: drive %s @ %g", order.Move, order.Speed)
	h.publish(TopicDrive, order)
}

// panTilt and device republish the dashboard payload as received; the
// actuator nodes own the meaning of every field but the device name.
func (h *Hub) panTilt(data json.RawMessage) {
	if _, err := decodeObject(data); err != nil {
		log.Printf("hub: drop pan-tilt command %s: %v", data, err)
		return
	}
	h.publish(TopicPanTilt, data)
}

func (h *Hub) device(data json.RawMessage) {
	cmd, err := decodeObject(data)
	if err != nil {
		log.Printf("hub: drop device command %s: %v", data, err)
		return
	}
	name, _ := cmd["device"].(string)
	if name == "" {
		log.Printf("hub: drop device command %s: missing device", data)
		return
	}
	log.Printf("hub: device %s -> %v", name, cmd["state"])
	h.publish(TopicDevice, data)
}

func decodeObject(data json.RawMessage) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errNotObject
	}
	return m, nil
}

func (h *Hub) publish(topic string, v any) {
	if h.pub == nil {
		log.Printf("hub: no bus publisher, dropping %s", topic)
		h.metrics.command(topic, errNoPublisher)
		return
	}
	err := h.pub.PublishJSON(topic, v)
	h.metrics.command(topic, err)
}
