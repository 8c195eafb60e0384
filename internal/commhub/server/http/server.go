package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/pkg/lifecycle"
	"github.com/autopeer-io/commhub/internal/pkg/metrics"
	"github.com/autopeer-io/commhub/pkg/log"
	"github.com/autopeer-io/commhub/pkg/options"
)

// Subsystem is the part of the device communication subsystem the API uses.
type Subsystem interface {
	State() lifecycle.State
	States() []lifecycle.ComponentState
	DeliverCommand(ctx context.Context, invocation *model.CommandInvocation) error
	NotifyCommandInvocationRecorded(invocation *model.CommandInvocation)
	NotifyBatchOperationRecorded(operation *model.BatchOperation)
}

// Repository is the store behind the API.
type Repository interface {
	core.DeviceRepository
	core.EventRepository
	core.BatchRepository
}

type Server struct {
	server  *http.Server
	options *options.HttpOptions
}

func NewServer(opts *options.HttpOptions, subsystem Subsystem, repo Repository) *Server {
	return &Server{
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewRouter(subsystem, repo),
			ReadHeaderTimeout: opts.Timeout,
			ReadTimeout:       opts.Timeout,
			WriteTimeout:      opts.Timeout,
		},
		options: opts,
	}
}

// NewRouter builds the probe, metrics and API routes.
func NewRouter(subsystem Subsystem, repo Repository) *mux.Router {
	h := &handler{subsystem: subsystem, repo: repo}
	r := mux.NewRouter()

	// Basic Liveness Probe
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	// Ready once the subsystem has started
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if subsystem.State() != lifecycle.StateStarted {
			http.Error(w, string(subsystem.State()), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/lifecycle", h.lifecycle).Methods(http.MethodGet)
	api.HandleFunc("/devices", h.createDevice).Methods(http.MethodPost)
	api.HandleFunc("/devices/{hardwareId}", h.getDevice).Methods(http.MethodGet)
	api.HandleFunc("/assignments", h.createAssignment).Methods(http.MethodPost)
	api.HandleFunc("/commands", h.createCommand).Methods(http.MethodPost)
	api.HandleFunc("/invocations", h.createInvocation).Methods(http.MethodPost)
	api.HandleFunc("/invocations/{id}", h.getInvocation).Methods(http.MethodGet)
	api.HandleFunc("/invocations/{id}/responses", h.listResponses).Methods(http.MethodGet)
	api.HandleFunc("/batch-operations", h.createBatchOperation).Methods(http.MethodPost)
	api.HandleFunc("/batch-operations/{token}", h.getBatchOperation).Methods(http.MethodGet)
	api.HandleFunc("/batch-operations/{token}/elements", h.listBatchElements).Methods(http.MethodGet)

	return r
}

func (s *Server) Start(ctx context.Context) error {
	log.Info("Starting HTTP Server", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
