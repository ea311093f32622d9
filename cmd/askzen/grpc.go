package main

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// healthServiceName is reported alongside the overall "" service.
const healthServiceName = "askzen.Gateway"

// healthServer exposes the standard gRPC health protocol for orchestrators.
type healthServer struct {
	grpc   *grpc.Server
	health *health.Server
}

func newHealthServer() *healthServer {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(healthServiceName, healthpb.HealthCheckResponse_SERVING)
	return &healthServer{grpc: s, health: hs}
}

// Serve blocks until Stop is called.
func (s *healthServer) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop reports NOT_SERVING to watchers and then drains in-flight RPCs.
func (s *healthServer) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
