// Package strategy implements the synchronous build, route and deliver path.
package strategy

import (
	"context"
	"errors"
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/pkg/log"
)

var _ core.CommandProcessingStrategy = (*Strategy)(nil)

// Strategy is the default CommandProcessingStrategy. It holds its
// collaborators directly and spawns no goroutines.
type Strategy struct {
	repo         core.DeviceRepository
	builder      core.CommandExecutionBuilder
	router       core.OutboundCommandRouter
	destinations []core.CommandDestination

	byID   map[string]core.CommandDestination
	logger log.Logger
}

func New(repo core.DeviceRepository, builder core.CommandExecutionBuilder, router core.OutboundCommandRouter, destinations []core.CommandDestination) *Strategy {
	return &Strategy{
		repo:         repo,
		builder:      builder,
		router:       router,
		destinations: destinations,
		logger:       log.WithName("command-processing"),
	}
}

func (s *Strategy) Name() string { return "command-processing-strategy" }

// Start indexes the destinations by id. The destination list is immutable
// for the lifetime of the strategy.
func (s *Strategy) Start(context.Context) error {
	var errs []error
	if s.repo == nil {
		errs = append(errs, fmt.Errorf("%w: device repository", core.ErrNotConfigured))
	}
	if s.builder == nil {
		errs = append(errs, fmt.Errorf("%w: execution builder", core.ErrNotConfigured))
	}
	if s.router == nil {
		errs = append(errs, fmt.Errorf("%w: router", core.ErrNotConfigured))
	}

	byID := make(map[string]core.CommandDestination, len(s.destinations))
	for _, d := range s.destinations {
		if _, dup := byID[d.DestinationID()]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate destination id %q", core.ErrNotConfigured, d.DestinationID()))
			continue
		}
		byID[d.DestinationID()] = d
	}
	if err := utilerrors.NewAggregate(errs); err != nil {
		return err
	}

	s.byID = byID
	return nil
}

func (s *Strategy) Stop(context.Context) error { return nil }

// DeliverCommand builds the execution for invocation, routes it and delivers
// it synchronously. Every failure is returned to the caller.
func (s *Strategy) DeliverCommand(ctx context.Context, invocation *model.CommandInvocation) error {
	command, err := s.repo.GetCommand(ctx, invocation.CommandToken)
	if err != nil {
		return fmt.Errorf("resolve command %q: %w", invocation.CommandToken, err)
	}

	execution, err := s.builder.Build(command, invocation)
	if err != nil {
		return err
	}

	assignment, err := s.repo.GetAssignment(ctx, invocation.AssignmentToken)
	if err != nil {
		return fmt.Errorf("resolve assignment %q: %w", invocation.AssignmentToken, err)
	}

	device, err := s.repo.GetDevice(ctx, assignment.HardwareID)
	if err != nil {
		return fmt.Errorf("resolve device %q: %w", assignment.HardwareID, err)
	}

	nesting, err := s.nesting(ctx, device)
	if err != nil {
		return err
	}

	id, err := s.router.Route(command, assignment)
	if err != nil {
		return err
	}
	dest, err := s.destination(id)
	if err != nil {
		return err
	}

	s.logger.Debug("Delivering command", "invocation", invocation.ID, "command", command.Name, "destination", id)
	return dest.DeliverCommand(ctx, execution, nesting, assignment)
}

// DeliverSystemCommand delivers command to hardwareID. A device that is not
// registered yet is addressed by hardware id alone and has no assignment.
func (s *Strategy) DeliverSystemCommand(ctx context.Context, hardwareID string, command *model.SystemCommand) error {
	device, err := s.repo.GetDevice(ctx, hardwareID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		device = &model.Device{HardwareID: hardwareID}
	case err != nil:
		return fmt.Errorf("resolve device %q: %w", hardwareID, err)
	}

	var assignment *model.DeviceAssignment
	if device.AssignmentToken != "" {
		assignment, err = s.repo.GetAssignment(ctx, device.AssignmentToken)
		if err != nil {
			return fmt.Errorf("resolve assignment %q: %w", device.AssignmentToken, err)
		}
	}

	nesting, err := s.nesting(ctx, device)
	if err != nil {
		return err
	}

	id, err := s.router.RouteSystem(command, assignment)
	if err != nil {
		return err
	}
	dest, err := s.destination(id)
	if err != nil {
		return err
	}

	s.logger.Debug("Delivering system command", "hardwareID", hardwareID, "type", command.Type, "destination", id)
	return dest.DeliverSystemCommand(ctx, command, nesting, assignment)
}

func (s *Strategy) nesting(ctx context.Context, device *model.Device) (*model.NestingContext, error) {
	nc := &model.NestingContext{Nested: device, Path: device.MappingPath}
	if device.ParentHardwareID == "" {
		return nc, nil
	}

	gateway, err := s.repo.GetDevice(ctx, device.ParentHardwareID)
	if err != nil {
		return nil, fmt.Errorf("resolve gateway %q of %q: %w", device.ParentHardwareID, device.HardwareID, err)
	}
	nc.Gateway = gateway
	return nc, nil
}

func (s *Strategy) destination(id string) (core.CommandDestination, error) {
	d, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: router selected unknown destination %q", core.ErrNoMatchingDestination, id)
	}
	return d, nil
}
