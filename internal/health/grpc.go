package health

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/G0th1/brandsphere1-sub001/internal/core/domain"
)

// ServiceName is the gRPC health service name reported for the database.
const ServiceName = "brandsphere.database"

// GRPCServer serves the standard gRPC health protocol.
type GRPCServer struct {
	port   int
	srv    *grpc.Server
	health *grpchealth.Server
}

// NewGRPCServer creates a gRPC health server. It reports SERVING until told
// otherwise.
func NewGRPCServer(port int) *GRPCServer {
	hs := grpchealth.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	g := &GRPCServer{port: port, srv: srv, health: hs}
	g.SetStatus(domain.HealthHealthy)
	return g
}

// SetStatus maps a database health status onto the gRPC serving status.
// Degraded still serves; the manager is already reconnecting.
func (g *GRPCServer) SetStatus(s domain.HealthStatus) {
	st := healthpb.HealthCheckResponse_SERVING
	if s == domain.HealthUnhealthy {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", st)
	g.health.SetServingStatus(ServiceName, st)
}

// OnTransition is a manager status listener.
func (g *GRPCServer) OnTransition(t domain.HealthTransition) {
	g.SetStatus(t.To)
}

// Health returns the underlying health service, for in-process checks.
func (g *GRPCServer) Health() healthpb.HealthServer {
	return g.health
}

// Start listens on the configured port and blocks until the server stops.
func (g *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", g.port))
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port %d: %w", g.port, err)
	}
	return g.srv.Serve(lis)
}

// Stop drains in-flight calls, falling back to a hard stop when ctx ends.
func (g *GRPCServer) Stop(ctx context.Context) {
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		g.srv.Stop()
	}
}
