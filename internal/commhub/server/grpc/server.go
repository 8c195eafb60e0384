package grpc

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcmw "github.com/autopeer-io/commhub/internal/pkg/middleware/grpc"
	"github.com/autopeer-io/commhub/pkg/log"
	"github.com/autopeer-io/commhub/pkg/options"
)

// ServiceName is the health service entry tracking the communication subsystem.
const ServiceName = "commhub.DeviceCommunication"

// Server exposes the standard gRPC health protocol. Serving status follows the
// device communication subsystem through SetServing.
type Server struct {
	server  *grpc.Server
	health  *health.Server
	options *options.GrpcOptions
}

func NewServer(opts *options.GrpcOptions) *Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcmw.UnaryServerTimeoutInterceptor(opts.Timeout)),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	if opts.Reflection {
		reflection.Register(srv)
	}

	return &Server{server: srv, health: hs, options: opts}
}

// SetServing flips both the overall and the subsystem health status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc addr %s: %w", s.options.Addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve runs the server on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	log.Info("Starting gRPC Server", "addr", lis.Addr().String())

	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.server.GracefulStop()
	}()

	return s.server.Serve(lis)
}
