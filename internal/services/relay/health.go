package relay

import (
	"encoding/json"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/rover_relay/pkg/mqttbus"
)

// BrokerStatus is the view of a connector the health endpoints need.
type BrokerStatus interface {
	Name() string
	State() mqttbus.State
	IsConnected() bool
}

// BreakerStatus reports the fail-fast state of the command publisher.
type BreakerStatus interface {
	BreakerState() gobreaker.State
}

type healthHandler struct {
	brokers []BrokerStatus
	pub     BreakerStatus
	reg     *Registry
}

// NewHealthHandler serves /healthz: ok when every broker is connected,
// degraded when some are, down when none is. An open publisher breaker turns
// ok into degraded. pub may be nil.
func NewHealthHandler(reg *Registry, pub BreakerStatus, brokers ...BrokerStatus) http.Handler {
	return &healthHandler{brokers: brokers, pub: pub, reg: reg}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status     string            `json:"status"`
		Brokers    map[string]string `json:"brokers"`
		Publisher  string            `json:"publisher,omitempty"`
		Dashboards int               `json:"dashboards"`
		Rovers     int               `json:"rovers"`
	}
	st := status{Brokers: make(map[string]string, len(h.brokers))}
	up := 0
	for _, b := range h.brokers {
		st.Brokers[b.Name()] = b.State().String()
		if b.IsConnected() {
			up++
		}
	}
	switch {
	case up == len(h.brokers):
		st.Status = "ok"
	case up > 0:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	if h.pub != nil {
		bs := h.pub.BreakerState()
		st.Publisher = bs.String()
		if bs == gobreaker.StateOpen && st.Status == "ok" {
			st.Status = "degraded"
		}
	}
	st.Dashboards, st.Rovers = h.reg.Counts()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

type readyHandler struct{ main BrokerStatus }

// NewReadyHandler serves /readyz: 200 only while the main broker is connected.
func NewReadyHandler(main BrokerStatus) http.Handler {
	return &readyHandler{main: main}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.main != nil && h.main.IsConnected()
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
}

// NewWebRTCConfigHandler serves the camera signaling URLs to the media layer.
func NewWebRTCConfigHandler(cam1, cam2 string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"wsUrl": cam1,
			"cam1":  cam1,
			"cam2":  cam2,
		})
	})
}
