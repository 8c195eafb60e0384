// Package inbound turns device traffic into registration and command
// response handling.
package inbound

import (
	"context"
	"fmt"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/pkg/log"
)

var _ core.InboundProcessingStrategy = (*Strategy)(nil)

// Strategy is the default InboundProcessingStrategy.
type Strategy struct {
	registration core.RegistrationManager
	events       core.EventRepository
	logger       log.Logger
}

func NewStrategy(registration core.RegistrationManager, events core.EventRepository) *Strategy {
	return &Strategy{registration: registration, events: events, logger: log.WithName("inbound")}
}

func (s *Strategy) Name() string { return "inbound-processing-strategy" }

func (s *Strategy) Start(context.Context) error {
	if s.registration == nil {
		return fmt.Errorf("%w: registration manager", core.ErrNotConfigured)
	}
	if s.events == nil {
		return fmt.Errorf("%w: event repository", core.ErrNotConfigured)
	}
	return nil
}

func (s *Strategy) Stop(context.Context) error { return nil }

func (s *Strategy) ProcessRegistration(ctx context.Context, request *model.RegistrationRequest) error {
	return s.registration.HandleRegistration(ctx, request)
}

// ProcessCommandResponse records a device acknowledgement against its invocation.
func (s *Strategy) ProcessCommandResponse(ctx context.Context, response *model.CommandResponse) error {
	if response.InvocationID == "" {
		return fmt.Errorf("%w: invocation id", core.ErrMissingRequiredParameter)
	}
	if err := s.events.AddCommandResponse(ctx, response); err != nil {
		return fmt.Errorf("record response for %s: %w", response.InvocationID, err)
	}
	s.logger.Debug("Command response recorded", "invocation", response.InvocationID, "hardwareID", response.HardwareID)
	return nil
}
