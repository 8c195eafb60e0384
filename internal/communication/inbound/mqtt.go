package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/commhub/pkg/log"
	pkgmqtt "github.com/autopeer-io/commhub/pkg/mqtt"
	"github.com/autopeer-io/commhub/pkg/mqtt/topic"
)

var _ core.InboundEventSource = (*MQTTSource)(nil)

// MQTTSourceOptions configures an MQTTSource.
type MQTTSourceOptions struct {
	ID string
	// SharedGroup splits the subscriptions across replicas when set.
	SharedGroup    string
	QoS            int
	ConnectTimeout time.Duration
}

// MQTTSource subscribes to registration and command acknowledgement topics
// and hands decoded events to the inbound strategy.
type MQTTSource struct {
	client   pkgmqtt.Client
	topics   *topic.Builder
	strategy core.InboundProcessingStrategy
	opts     MQTTSourceOptions

	filters []string
	logger  log.Logger
}

func NewMQTTSource(client pkgmqtt.Client, topics *topic.Builder, strategy core.InboundProcessingStrategy, opts MQTTSourceOptions) *MQTTSource {
	if opts.ID == "" {
		opts.ID = "mqtt"
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	return &MQTTSource{
		client:   client,
		topics:   topics,
		strategy: strategy,
		opts:     opts,
		logger:   log.WithName("inbound-mqtt").WithValues("source", opts.ID),
	}
}

func (s *MQTTSource) Name() string     { return "inbound-event-source(" + s.opts.ID + ")" }
func (s *MQTTSource) SourceID() string { return s.opts.ID }

func (s *MQTTSource) Start(ctx context.Context) error {
	if s.strategy == nil {
		return fmt.Errorf("%w: inbound processing strategy", core.ErrNotConfigured)
	}
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("start mqtt client: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()
	if err := s.client.AwaitConnection(waitCtx); err != nil {
		return fmt.Errorf("await mqtt connection: %w", err)
	}

	filters := s.topics
	if s.opts.SharedGroup != "" {
		filters = s.topics.Shared(s.opts.SharedGroup)
	}

	subscriptions := []struct {
		filter  string
		handler pkgmqtt.MessageHandler
	}{
		{filters.BuildWildcard(paths.Register), s.handleRegistration},
		{filters.BuildWildcard(paths.CommandAck), s.handleCommandAck},
	}
	for _, sub := range subscriptions {
		if err := s.client.Subscribe(ctx, sub.filter, s.opts.QoS, sub.handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.filter, err)
		}
		s.filters = append(s.filters, sub.filter)
	}

	s.logger.Info("Inbound MQTT source started", "filters", s.filters)
	return nil
}

func (s *MQTTSource) Stop(ctx context.Context) error {
	for _, f := range s.filters {
		if err := s.client.Unsubscribe(ctx, f); err != nil {
			s.logger.Warn("Failed to unsubscribe", "filter", f, "error", err)
		}
	}
	s.filters = nil
	s.client.Disconnect(ctx)
	return nil
}

func (s *MQTTSource) handleRegistration(ctx context.Context, t string, payload []byte) {
	var req model.RegistrationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logger.Error(err, "Dropping malformed registration", "topic", t)
		return
	}
	if req.HardwareID == "" {
		req.HardwareID, _ = s.topics.ID(paths.Register, t)
	}

	if err := s.strategy.ProcessRegistration(ctx, &req); err != nil {
		s.logger.Error(err, "Registration failed", "hardwareID", req.HardwareID, "kind", core.KindOf(err))
	}
}

func (s *MQTTSource) handleCommandAck(ctx context.Context, t string, payload []byte) {
	var resp model.CommandResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		s.logger.Error(err, "Dropping malformed command response", "topic", t)
		return
	}
	if resp.HardwareID == "" {
		resp.HardwareID, _ = s.topics.ID(paths.CommandAck, t)
	}

	if err := s.strategy.ProcessCommandResponse(ctx, &resp); err != nil {
		s.logger.Error(err, "Command response rejected", "invocation", resp.InvocationID, "kind", core.KindOf(err))
	}
}
