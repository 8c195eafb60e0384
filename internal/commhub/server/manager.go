package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/commhub/internal/commhub/server/grpc"
	"github.com/autopeer-io/commhub/internal/commhub/server/http"
	"github.com/autopeer-io/commhub/pkg/log"
)

// Server defines the common interface for all sub-servers (grpc, http).
type Server interface {
	Start(ctx context.Context) error
}

// Manager manages the lifecycle of all protocol servers.
type Manager struct {
	servers []Server
	health  *grpc.Server
}

// NewManager creates the HTTP API server and the gRPC health server.
func NewManager(cfg *Config, subsystem http.Subsystem, repo http.Repository) *Manager {
	// 1. gRPC health (the serving status follows the subsystem)
	grpcSrv := grpc.NewServer(cfg.GrpcOptions)

	// 2. HTTP Server (API, probes and metrics)
	httpSrv := http.NewServer(cfg.HttpOptions, subsystem, repo)

	return &Manager{
		servers: []Server{grpcSrv, httpSrv},
		health:  grpcSrv,
	}
}

// SetServing reports the subsystem status through the gRPC health service.
func (m *Manager) SetServing(serving bool) {
	m.health.SetServing(serving)
}

// Start launches all servers in parallel and waits for termination.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...")
	return g.Wait()
}
