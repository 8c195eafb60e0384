// Package delivery holds the transport providers behind command destinations.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/communication/destination"
	"github.com/autopeer-io/commhub/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/commhub/pkg/log"
	pkgmqtt "github.com/autopeer-io/commhub/pkg/mqtt"
	"github.com/autopeer-io/commhub/pkg/mqtt/topic"
)

// MQTTParameters are the topics a delivery is published to.
type MQTTParameters struct {
	CommandTopic string
	SystemTopic  string
}

var _ destination.ParameterExtractor[MQTTParameters] = (*MQTTParameterExtractor)(nil)

// MQTTParameterExtractor addresses the device that owns the connection:
// the gateway for nested devices, the device itself otherwise.
type MQTTParameterExtractor struct {
	topics *topic.Builder
}

func NewMQTTParameterExtractor(topics *topic.Builder) *MQTTParameterExtractor {
	return &MQTTParameterExtractor{topics: topics}
}

func (x *MQTTParameterExtractor) Extract(nesting *model.NestingContext, _ *model.DeviceAssignment, _ *model.CommandExecution) (MQTTParameters, error) {
	target := nesting.Target()
	if target == nil || target.HardwareID == "" {
		return MQTTParameters{}, errors.New("no hardware id to address")
	}
	return MQTTParameters{
		CommandTopic: x.topics.Build(paths.Command, target.HardwareID),
		SystemTopic:  x.topics.Build(paths.System, target.HardwareID),
	}, nil
}

// MQTTProviderOptions tunes publishing.
type MQTTProviderOptions struct {
	QoS    int
	Retain bool
	// ConnectTimeout bounds how long Start waits for the broker.
	ConnectTimeout time.Duration
}

var _ destination.Provider[[]byte, MQTTParameters] = (*MQTTProvider)(nil)

// MQTTProvider publishes encoded commands over its own egress connection.
type MQTTProvider struct {
	client pkgmqtt.Client
	opts   MQTTProviderOptions
	logger log.Logger
}

func NewMQTTProvider(client pkgmqtt.Client, opts MQTTProviderOptions) *MQTTProvider {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	return &MQTTProvider{client: client, opts: opts, logger: log.WithName("mqtt-provider")}
}

func (p *MQTTProvider) Name() string { return "mqtt-delivery-provider" }

// Start connects and waits for the first CONNACK.
func (p *MQTTProvider) Start(ctx context.Context) error {
	if err := p.client.Start(ctx); err != nil {
		return fmt.Errorf("start mqtt client: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.opts.ConnectTimeout)
	defer cancel()
	if err := p.client.AwaitConnection(waitCtx); err != nil {
		return fmt.Errorf("await mqtt connection: %w", err)
	}

	p.logger.Info("MQTT delivery provider connected")
	return nil
}

func (p *MQTTProvider) Stop(ctx context.Context) error {
	p.client.Disconnect(ctx)
	return nil
}

func (p *MQTTProvider) Deliver(ctx context.Context, _ *model.NestingContext, _ *model.DeviceAssignment, execution *model.CommandExecution, encoded []byte, params MQTTParameters) error {
	if err := p.client.Publish(ctx, params.CommandTopic, p.opts.QoS, p.opts.Retain, encoded); err != nil {
		return err
	}
	p.logger.Debug("Published command", "topic", params.CommandTopic, "invocation", execution.Invocation.ID, "bytes", len(encoded))
	return nil
}

// DeliverSystemCommand never retains: acks are only meaningful to a connected device.
func (p *MQTTProvider) DeliverSystemCommand(ctx context.Context, _ *model.NestingContext, _ *model.DeviceAssignment, encoded []byte, params MQTTParameters) error {
	return p.client.Publish(ctx, params.SystemTopic, p.opts.QoS, false, encoded)
}
