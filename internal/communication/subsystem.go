// Package communication assembles the device communication subsystem: the
// command processing strategy, its destinations and router, and the
// outbound, registration, batch and inbound collaborators around them.
package communication

import (
	"context"
	"fmt"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/pkg/lifecycle"
	"github.com/autopeer-io/commhub/pkg/log"
)

// Config lists the nested components of a Subsystem. Destinations and the
// processing strategy are fixed for the lifetime of the subsystem.
type Config struct {
	ProcessingStrategy  core.CommandProcessingStrategy
	Destinations        []core.CommandDestination
	Router              core.OutboundCommandRouter
	OutboundStrategy    core.OutboundProcessingStrategy
	RegistrationManager core.RegistrationManager
	BatchManager        core.BatchOperationManager
	InboundStrategy     core.InboundProcessingStrategy
	InboundSources      []core.InboundEventSource
}

// Subsystem is the top-level composite. It starts its nested components in a
// fixed order, stops them in reverse, and only accepts deliveries while
// Started.
type Subsystem struct {
	cfg     Config
	tracker *lifecycle.Tracker
	nested  *lifecycle.Composite
	logger  log.Logger
}

func NewSubsystem(cfg Config) *Subsystem {
	return &Subsystem{
		cfg:     cfg,
		tracker: lifecycle.NewTracker("device-communication"),
		nested:  lifecycle.NewComposite("device-communication"),
		logger:  log.WithName("device-communication"),
	}
}

func (s *Subsystem) Name() string { return "device-communication" }

// Start validates the configuration and starts, in order: processing
// strategy, destinations, router, outbound strategy, registration manager,
// batch manager, inbound strategy and inbound sources. Any required failure
// unwinds what was started.
func (s *Subsystem) Start(ctx context.Context) error {
	return s.tracker.Start(ctx, s.start)
}

// Stop stops every started component in reverse order, attempting all of
// them even when some fail.
func (s *Subsystem) Stop(ctx context.Context) error {
	return s.tracker.Stop(ctx, s.nested.Stop)
}

func (s *Subsystem) start(ctx context.Context) error {
	seen := make(map[string]struct{}, len(s.cfg.Destinations))
	for _, d := range s.cfg.Destinations {
		if d == nil {
			continue
		}
		if _, dup := seen[d.DestinationID()]; dup {
			return fmt.Errorf("%w: duplicate destination id %q", core.ErrNotConfigured, d.DestinationID())
		}
		seen[d.DestinationID()] = struct{}{}
	}

	nested := []lifecycle.Nested{required("command processing strategy", s.cfg.ProcessingStrategy)}
	for i, d := range s.cfg.Destinations {
		nested = append(nested, required(fmt.Sprintf("command destination %d", i), d))
	}

	routerEntry := lifecycle.Nested{Name: "outbound command router", Required: true}
	if s.cfg.Router != nil {
		routerEntry.Component = &initializingRouter{router: s.cfg.Router, destinations: s.cfg.Destinations}
	}
	nested = append(nested,
		routerEntry,
		required("outbound processing strategy", s.cfg.OutboundStrategy),
		required("registration manager", s.cfg.RegistrationManager),
		required("batch operation manager", s.cfg.BatchManager),
		optional("inbound processing strategy", s.cfg.InboundStrategy),
	)
	for i, src := range s.cfg.InboundSources {
		nested = append(nested, optional(fmt.Sprintf("inbound event source %d", i), src))
	}

	if err := s.nested.Start(ctx, nested); err != nil {
		return err
	}
	s.logger.Info("Device communication started", "destinations", len(s.cfg.Destinations), "sources", len(s.cfg.InboundSources))
	return nil
}

// State is the subsystem's own lifecycle state.
func (s *Subsystem) State() lifecycle.State {
	return s.tracker.State()
}

// States reports every nested component in start order.
func (s *Subsystem) States() []lifecycle.ComponentState {
	return s.nested.States()
}

// Destinations returns the configured destinations.
func (s *Subsystem) Destinations() []core.CommandDestination {
	return s.cfg.Destinations
}

// DeliverCommand delivers invocation synchronously and returns every failure.
func (s *Subsystem) DeliverCommand(ctx context.Context, invocation *model.CommandInvocation) error {
	if err := s.running(); err != nil {
		return err
	}
	return s.cfg.ProcessingStrategy.DeliverCommand(ctx, invocation)
}

// DeliverSystemCommand delivers command to hardwareID synchronously.
func (s *Subsystem) DeliverSystemCommand(ctx context.Context, hardwareID string, command *model.SystemCommand) error {
	if err := s.running(); err != nil {
		return err
	}
	return s.cfg.ProcessingStrategy.DeliverSystemCommand(ctx, hardwareID, command)
}

// NotifyCommandInvocationRecorded hands a recorded invocation to the
// outbound strategy. Nothing is returned to the caller.
func (s *Subsystem) NotifyCommandInvocationRecorded(invocation *model.CommandInvocation) {
	if err := s.running(); err != nil {
		s.logger.Warn("Dropping invocation notification", "invocation", invocation.ID, "state", s.State())
		return
	}
	s.cfg.OutboundStrategy.NotifyCommandInvocationRecorded(invocation)
}

// NotifyBatchOperationRecorded hands a recorded batch operation to the
// outbound strategy.
func (s *Subsystem) NotifyBatchOperationRecorded(operation *model.BatchOperation) {
	if err := s.running(); err != nil {
		s.logger.Warn("Dropping batch notification", "batch", operation.Token, "state", s.State())
		return
	}
	s.cfg.OutboundStrategy.NotifyBatchOperationRecorded(operation)
}

func (s *Subsystem) running() error {
	if state := s.tracker.State(); state != lifecycle.StateStarted {
		return fmt.Errorf("%w: device communication is %s", core.ErrNotRunning, state)
	}
	return nil
}

// initializingRouter hands the destination list to the router right before
// starting it.
type initializingRouter struct {
	router       core.OutboundCommandRouter
	destinations []core.CommandDestination
}

func (r *initializingRouter) Name() string { return r.router.Name() }

func (r *initializingRouter) Start(ctx context.Context) error {
	if err := r.router.Initialize(r.destinations); err != nil {
		return fmt.Errorf("initialize %s: %w", r.router.Name(), err)
	}
	return r.router.Start(ctx)
}

func (r *initializingRouter) Stop(ctx context.Context) error { return r.router.Stop(ctx) }

func required[C lifecycle.Component](name string, c C) lifecycle.Nested {
	return lifecycle.Nested{Name: name, Component: component(c), Required: true}
}

func optional[C lifecycle.Component](name string, c C) lifecycle.Nested {
	return lifecycle.Nested{Name: name, Component: component(c)}
}

// component converts c to a lifecycle.Component, keeping a nil interface nil.
func component[C lifecycle.Component](c C) lifecycle.Component {
	if any(c) == nil {
		return nil
	}
	return c
}
