// Package destination binds an encoder, a delivery parameter extractor and a
// delivery provider into a single lifecycle-managed command destination.
package destination

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/pkg/lifecycle"
	"github.com/autopeer-io/commhub/internal/pkg/metrics"
	"github.com/autopeer-io/commhub/pkg/log"
)

// Encoder renders executions and system commands into the payload type T.
type Encoder[T any] interface {
	lifecycle.Component

	Encode(execution *model.CommandExecution, nesting *model.NestingContext, assignment *model.DeviceAssignment) (T, error)
	EncodeSystemCommand(command *model.SystemCommand, nesting *model.NestingContext, assignment *model.DeviceAssignment) (T, error)
}

// ParameterExtractor derives transport parameters P for a delivery.
// execution is nil for system commands.
type ParameterExtractor[P any] interface {
	Extract(nesting *model.NestingContext, assignment *model.DeviceAssignment, execution *model.CommandExecution) (P, error)
}

// Provider performs the transport I/O. Implementations that are not safe for
// concurrent use must synchronize internally.
type Provider[T, P any] interface {
	lifecycle.Component

	Deliver(ctx context.Context, nesting *model.NestingContext, assignment *model.DeviceAssignment, execution *model.CommandExecution, encoded T, params P) error
	DeliverSystemCommand(ctx context.Context, nesting *model.NestingContext, assignment *model.DeviceAssignment, encoded T, params P) error
}

var _ core.CommandDestination = (*Destination[[]byte, struct{}])(nil)

// Destination is a CommandDestination over encoded form T and delivery
// parameters P. T and P never leave the destination.
type Destination[T, P any] struct {
	id        string
	encoder   Encoder[T]
	extractor ParameterExtractor[P]
	provider  Provider[T, P]

	nested *lifecycle.Composite
	logger log.Logger
}

// New returns a destination. Missing parts are reported by Start.
func New[T, P any](id string, encoder Encoder[T], extractor ParameterExtractor[P], provider Provider[T, P]) *Destination[T, P] {
	return &Destination[T, P]{
		id:        id,
		encoder:   encoder,
		extractor: extractor,
		provider:  provider,
		nested:    lifecycle.NewComposite("destination." + id),
		logger:    log.WithName("destination").WithValues("destination", id),
	}
}

func (d *Destination[T, P]) Name() string {
	return "command-destination(" + d.id + ")"
}

func (d *Destination[T, P]) DestinationID() string {
	return d.id
}

// Start starts the encoder and then the provider. The parameter extractor has
// no lifecycle but must be configured.
func (d *Destination[T, P]) Start(ctx context.Context) error {
	if d.extractor == nil {
		return fmt.Errorf("%w: %s has no parameter extractor", core.ErrNotConfigured, d.Name())
	}

	nested := []lifecycle.Nested{
		{Name: d.id + " encoder", Required: true},
		{Name: d.id + " delivery provider", Required: true},
	}
	if d.encoder != nil {
		nested[0].Component = d.encoder
	}
	if d.provider != nil {
		nested[1].Component = d.provider
	}
	return d.nested.Start(ctx, nested)
}

// Stop stops the provider and the encoder; a failure in one does not skip the other.
func (d *Destination[T, P]) Stop(ctx context.Context) error {
	return d.nested.Stop(ctx)
}

// DeliverCommand encodes, extracts and delivers execution.
func (d *Destination[T, P]) DeliverCommand(ctx context.Context, execution *model.CommandExecution, nesting *model.NestingContext, assignment *model.DeviceAssignment) (err error) {
	defer d.observe("command", time.Now(), &err)

	encoded, err := d.encoder.Encode(execution, nesting, assignment)
	if err != nil {
		return fmt.Errorf("encode command for %s: %w", d.id, err)
	}

	params, err := d.extractor.Extract(nesting, assignment, execution)
	if err != nil {
		return fmt.Errorf("extract delivery parameters for %s: %w", d.id, err)
	}

	if err := d.provider.Deliver(ctx, nesting, assignment, execution, encoded, params); err != nil {
		return fmt.Errorf("%w: %s: %w", core.ErrDeliveryFailed, d.id, err)
	}

	d.logger.Debug("Command delivered", "invocation", execution.Invocation.ID, "command", execution.Command.Name)
	return nil
}

// DeliverSystemCommand encodes, extracts and delivers a system command.
func (d *Destination[T, P]) DeliverSystemCommand(ctx context.Context, command *model.SystemCommand, nesting *model.NestingContext, assignment *model.DeviceAssignment) (err error) {
	defer d.observe("system", time.Now(), &err)

	encoded, err := d.encoder.EncodeSystemCommand(command, nesting, assignment)
	if err != nil {
		return fmt.Errorf("encode system command for %s: %w", d.id, err)
	}

	params, err := d.extractor.Extract(nesting, assignment, nil)
	if err != nil {
		return fmt.Errorf("extract delivery parameters for %s: %w", d.id, err)
	}

	if err := d.provider.DeliverSystemCommand(ctx, nesting, assignment, encoded, params); err != nil {
		return fmt.Errorf("%w: %s: %w", core.ErrDeliveryFailed, d.id, err)
	}

	d.logger.Debug("System command delivered", "type", command.Type)
	return nil
}

func (d *Destination[T, P]) observe(kind string, start time.Time, err *error) {
	result := "success"
	if *err != nil {
		result = "failed"
	}
	metrics.DeliveriesTotal.WithLabelValues(d.id, kind, result).Inc()
	metrics.DeliveryLatency.WithLabelValues(d.id).Observe(time.Since(start).Seconds())
}
