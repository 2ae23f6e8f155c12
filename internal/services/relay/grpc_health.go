package relay

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/rover_relay/pkg/mqttbus"
)

// HealthServiceName is reported by the gRPC health service.
const HealthServiceName = "rover-relay"

// GRPCHealth exposes grpc.health.v1.Health; the relay is SERVING while the
// main broker is connected.
type GRPCHealth struct {
	srv      *grpc.Server
	hs       *health.Server
	mainName string
}

func NewGRPCHealth(mainBroker string) *GRPCHealth {
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	g := &GRPCHealth{srv: srv, hs: hs, mainName: mainBroker}
	g.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return g
}

// BrokerState is an mqttbus state hook.
func (g *GRPCHealth) BrokerState(name string, s mqttbus.State) {
	if name != g.mainName {
		return
	}
	if s == mqttbus.StateConnected {
		g.set(healthpb.HealthCheckResponse_SERVING)
	} else {
		g.set(healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

func (g *GRPCHealth) set(st healthpb.HealthCheckResponse_ServingStatus) {
	g.hs.SetServingStatus("", st)
	g.hs.SetServingStatus(HealthServiceName, st)
}

// Serve blocks until Stop.
func (g *GRPCHealth) Serve(lis net.Listener) error { return g.srv.Serve(lis) }

func (g *GRPCHealth) Stop() {
	g.hs.Shutdown()
	g.srv.GracefulStop()
}
