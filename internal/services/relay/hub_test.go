package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/LeonardoBeccarini/rover_relay/internal/model/entities"
	"github.com/LeonardoBeccarini/rover_relay/internal/model/messages"
)

func frame(t *testing.T, event string, data any) messages.Envelope {
	t.Helper()
	env, err := messages.NewEnvelope(event, data)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func newTestHub() (*Hub, *fakePublisher, *Metrics) {
	pub := &fakePublisher{}
	m := NewMetrics(prometheus.NewRegistry())
	return NewHub(NewRegistry(), pub, m), pub, m
}

func TestRegisterAcknowledges(t *testing.T) {
	h, _, m := newTestHub()
	c := newFakeClient("d1")

	h.Dispatch(c, messages.Envelope{Event: EventRegisterDashboard})

	acks := c.frames(EventRegistered)
	if len(acks) != 1 || string(acks[0].Data) != `{"role":"dashboard"}` {
		t.Fatalf("acks = %+v", acks)
	}
	if v := testutil.ToFloat64(m.clients.WithLabelValues("dashboard")); v != 1 {
		t.Fatalf("dashboards gauge = %v", v)
	}
}

func TestDriveCommandDefaultsSpeed(t *testing.T) {
	h, pub, m := newTestHub()
	c := newFakeClient("d1")
	h.Dispatch(c, messages.Envelope{Event: EventRegisterDashboard})

	h.Dispatch(c, frame(t, EventDriveCommand, map[string]any{"direction": "forward"}))

	if len(pub.sent) != 1 {
		t.Fatalf("published %d", len(pub.sent))
	}
	if pub.sent[0].topic != TopicDrive {
		t.Fatalf("topic = %s", pub.sent[0].topic)
	}
	b, _ := json.Marshal(pub.sent[0].v)
	if string(b) != `{"move":"FORWARD","speed":200}` {
		t.Fatalf("payload = %s", b)
	}
	if v := testutil.ToFloat64(m.commands.WithLabelValues(TopicDrive, "ok")); v != 1 {
		t.Fatalf("ok commands = %v", v)
	}
}

func TestDriveCommandExplicitSpeed(t *testing.T) {
	h, pub, _ := newTestHub()
	h.Dispatch(newFakeClient("d1"), frame(t, EventDriveCommand, map[string]any{"direction": " left ", "speed": 0}))

	want := messages.DriveOrder{Move: "LEFT", Speed: 0}
	if len(pub.sent) != 1 || pub.sent[0].v != want {
		t.Fatalf("sent = %+v", pub.sent)
	}
}

func TestDriveCommandWithoutDirectionIsDropped(t *testing.T) {
	h, pub, _ := newTestHub()
	c := newFakeClient("d1")
	h.Dispatch(c, frame(t, EventDriveCommand, map[string]any{"speed": 100}))
	h.Dispatch(c, messages.Envelope{Event: EventDriveCommand, Data: json.RawMessage(`"nope"`)})
	h.Dispatch(c, messages.Envelope{Event: EventDriveCommand, Data: json.RawMessage(`{"direction":7}`)})

	if len(pub.sent) != 0 {
		t.Fatalf("published %+v", pub.sent)
	}
}

func TestPublishFailureIsCountedNotRetried(t *testing.T) {
	h, pub, m := newTestHub()
	pub.err = errors.New("not connected")

	h.Dispatch(newFakeClient("d1"), frame(t, EventDriveCommand, map[string]any{"direction": "stop"}))

	if v := testutil.ToFloat64(m.commands.WithLabelValues(TopicDrive, "dropped")); v != 1 {
		t.Fatalf("dropped commands = %v", v)
	}
}

func TestNoPublisher(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	h := NewHub(NewRegistry(), nil, m)
	h.Dispatch(newFakeClient("d1"), frame(t, EventDeviceCommand, map[string]any{"device": "led", "state": 1}))

	if v := testutil.ToFloat64(m.commands.WithLabelValues(TopicDevice, "dropped")); v != 1 {
		t.Fatalf("dropped commands = %v", v)
	}

	pub := &fakePublisher{}
	h.AttachPublisher(pub)
	h.Dispatch(newFakeClient("d1"), frame(t, EventDeviceCommand, map[string]any{"device": "led", "state": 0}))
	if len(pub.sent) != 1 {
		t.Fatalf("published after attach: %+v", pub.sent)
	}
}

func TestPanTiltAndDeviceCommands(t *testing.T) {
	cases := []struct {
		name  string
		event string
		data  string
		topic string // empty when the command must be dropped
		want  string
	}{
		{"pan only", EventPanTiltCommand, `{"pan":90}`, TopicPanTilt, `{"pan":90}`},
		{"pan as text", EventPanTiltCommand, `{"pan":"90","tilt":-5}`, TopicPanTilt, `{"pan":"90","tilt":-5}`},
		{"pan-tilt not an object", EventPanTiltCommand, `[90]`, "", ""},
		{"device with state", EventDeviceCommand, `{"device":"pump","state":1}`, TopicDevice, `{"device":"pump","state":1}`},
		{"device without state", EventDeviceCommand, `{"device":"led"}`, TopicDevice, `{"device":"led"}`},
		{"boolean state", EventDeviceCommand, `{"device":"led","state":true}`, TopicDevice, `{"device":"led","state":true}`},
		{"text state", EventDeviceCommand, `{"device":"led","state":"on"}`, TopicDevice, `{"device":"led","state":"on"}`},
		{"fractional state", EventDeviceCommand, `{"device":"fan","state":0.5}`, TopicDevice, `{"device":"fan","state":0.5}`},
		{"missing device", EventDeviceCommand, `{"state":1}`, "", ""},
		{"device not a string", EventDeviceCommand, `{"device":3,"state":1}`, "", ""},
		{"no payload", EventDeviceCommand, ``, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, pub, _ := newTestHub()
			h.Dispatch(newFakeClient("d1"), messages.Envelope{Event: tc.event, Data: json.RawMessage(tc.data)})

			if tc.topic == "" {
				if len(pub.sent) != 0 {
					t.Fatalf("published %+v", pub.sent)
				}
				return
			}
			if len(pub.sent) != 1 || pub.sent[0].topic != tc.topic {
				t.Fatalf("published %+v", pub.sent)
			}
			b, err := json.Marshal(pub.sent[0].v)
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tc.want {
				t.Fatalf("payload = %s, want %s", b, tc.want)
			}
		})
	}
}

func TestDriveCommandSpeedCoercion(t *testing.T) {
	cases := []struct {
		data string
		want messages.DriveOrder
	}{
		{`{"direction":"forward","speed":"150"}`, messages.DriveOrder{Move: "FORWARD", Speed: 150}},
		{`{"direction":"back","speed":null}`, messages.DriveOrder{Move: "BACK", Speed: DefaultDriveSpeed}},
		{`{"direction":"right","speed":"fast"}`, messages.DriveOrder{Move: "RIGHT", Speed: DefaultDriveSpeed}},
	}
	for _, tc := range cases {
		h, pub, _ := newTestHub()
		h.Dispatch(newFakeClient("d1"), messages.Envelope{Event: EventDriveCommand, Data: json.RawMessage(tc.data)})
		if len(pub.sent) != 1 || pub.sent[0].v != tc.want {
			t.Errorf("%s: sent = %+v, want %+v", tc.data, pub.sent, tc.want)
		}
	}
}

func TestTelemetryFanOutToDashboards(t *testing.T) {
	h, _, m := newTestHub()
	d1, d2, rover := newFakeClient("d1"), newFakeClient("d2"), newFakeClient("r1")
	h.Register(d1, entities.RoleDashboard)
	h.Register(d2, entities.RoleDashboard)
	h.Register(rover, entities.RoleRover)

	NewRouter(h, m).Handle(TopicEnv, []byte(`{"temperature":22,"humidity":"50","lux":300}`))

	f1, f2 := d1.frames(string(messages.KindEnvironment)), d2.frames(string(messages.KindEnvironment))
	if len(f1) != 1 || len(f2) != 1 {
		t.Fatalf("frames: d1=%d d2=%d", len(f1), len(f2))
	}
	if !bytes.Equal(f1[0].Data, f2[0].Data) {
		t.Fatalf("payloads differ: %s vs %s", f1[0].Data, f2[0].Data)
	}
	if string(f1[0].Data) != `{"temperature":22,"humidity":50,"lux":300}` {
		t.Fatalf("payload = %s", f1[0].Data)
	}
	if len(rover.frames(string(messages.KindEnvironment))) != 0 {
		t.Fatal("rover received telemetry")
	}
	if v := testutil.ToFloat64(m.deliveries.WithLabelValues("dashboard")); v != 2 {
		t.Fatalf("deliveries = %v", v)
	}
}

func TestTelemetryWithoutDashboards(t *testing.T) {
	h, _, m := newTestHub()
	NewRouter(h, m).Handle(TopicIMU, []byte(`{"roll":1}`))

	if v := testutil.ToFloat64(m.events.WithLabelValues(string(messages.KindIMU))); v != 1 {
		t.Fatalf("events = %v", v)
	}
}

func TestSlowDashboardIsSkipped(t *testing.T) {
	h, _, m := newTestHub()
	fast, slow := newFakeClient("fast"), newFakeClient("slow")
	h.Register(fast, entities.RoleDashboard)
	h.Register(slow, entities.RoleDashboard)
	slow.full = true

	h.BroadcastToDashboards(messages.KindRadar, messages.Radar{})

	if len(fast.frames(string(messages.KindRadar))) != 1 {
		t.Fatal("fast dashboard missed the frame")
	}
	if v := testutil.ToFloat64(m.drops); v != 1 {
		t.Fatalf("drops = %v", v)
	}
}

func TestWaypointsGoToRovers(t *testing.T) {
	h, _, _ := newTestHub()
	dash, rover := newFakeClient("d1"), newFakeClient("r1")
	h.Register(dash, entities.RoleDashboard)
	h.Register(rover, entities.RoleRover)

	for _, ev := range []string{EventAddWaypoint, EventRemoveWaypoint, EventClearWaypoints, EventStartNavigation} {
		h.Dispatch(dash, frame(t, ev, map[string]any{"id": "w1", "lat": 45.1, "lon": 7.6}))
		if got := rover.frames(ev); len(got) != 1 {
			t.Errorf("%s: rover got %d frames", ev, len(got))
		}
		if got := dash.frames(ev); len(got) != 0 {
			t.Errorf("%s: echoed to dashboard", ev)
		}
	}
}

func TestRoverProducersGoToDashboards(t *testing.T) {
	h, _, _ := newTestHub()
	dash, rover := newFakeClient("d1"), newFakeClient("r1")
	h.Register(dash, entities.RoleDashboard)
	h.Register(rover, entities.RoleRover)

	for _, ev := range []string{EventGPSData, EventRadarData, EventCameraFrame, EventYoloDetections} {
		h.Dispatch(rover, frame(t, ev, map[string]any{"k": 1}))
		if got := dash.frames(ev); len(got) != 1 || string(got[0].Data) != `{"k":1}` {
			t.Errorf("%s: dashboard got %+v", ev, got)
		}
	}
}

func TestSignalingRoutes(t *testing.T) {
	h, _, _ := newTestHub()
	dash, rover, anon := newFakeClient("d1"), newFakeClient("r1"), newFakeClient("x")
	h.Register(dash, entities.RoleDashboard)
	h.Register(rover, entities.RoleRover)

	h.Dispatch(rover, frame(t, EventWebRTCOffer, map[string]string{"sdp": "o"}))
	h.Dispatch(dash, frame(t, EventWebRTCAnswer, map[string]string{"sdp": "a"}))
	h.Dispatch(rover, frame(t, EventWebRTCICE, map[string]string{"candidate": "from-rover"}))
	h.Dispatch(dash, frame(t, EventWebRTCICE, map[string]string{"candidate": "from-dash"}))
	h.Dispatch(anon, frame(t, EventWebRTCICE, map[string]string{"candidate": "from-anon"}))

	if len(dash.frames(EventWebRTCOffer)) != 1 || len(rover.frames(EventWebRTCOffer)) != 0 {
		t.Error("offer must reach dashboards only")
	}
	if len(rover.frames(EventWebRTCAnswer)) != 1 || len(dash.frames(EventWebRTCAnswer)) != 0 {
		t.Error("answer must reach rovers only")
	}
	dICE, rICE := dash.frames(EventWebRTCICE), rover.frames(EventWebRTCICE)
	if len(dICE) != 1 || string(dICE[0].Data) != `{"candidate":"from-rover"}` {
		t.Errorf("dashboard ICE = %+v", dICE)
	}
	if len(rICE) != 1 || string(rICE[0].Data) != `{"candidate":"from-dash"}` {
		t.Errorf("rover ICE = %+v", rICE)
	}
}

func TestDisconnectStopsDelivery(t *testing.T) {
	h, _, _ := newTestHub()
	c := newFakeClient("d1")
	h.Register(c, entities.RoleDashboard)
	h.Disconnect(c)
	h.Disconnect(c)

	h.BroadcastToDashboards(messages.KindGPS, messages.GPS{})
	if len(c.frames(string(messages.KindGPS))) != 0 {
		t.Fatal("disconnected client received a frame")
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	h, pub, _ := newTestHub()
	c := newFakeClient("d1")
	h.Register(c, entities.RoleDashboard)
	h.Dispatch(c, messages.Envelope{Event: "bogus"})

	if len(pub.sent) != 0 || len(c.got) != 1 {
		t.Fatalf("unexpected side effects: sent=%v frames=%v", pub.sent, c.got)
	}
}
