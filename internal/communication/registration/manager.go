// Package registration answers device registration requests.
package registration

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/pkg/metrics"
	"github.com/autopeer-io/commhub/pkg/log"
)

// Config controls how unknown devices are treated.
type Config struct {
	// AutoRegister creates devices that are not known yet.
	AutoRegister bool
	// DefaultSpecification is used when a request carries none.
	DefaultSpecification string
	// AllowedSpecifications restricts new registrations when not empty.
	AllowedSpecifications []string
}

var _ core.RegistrationManager = (*Manager)(nil)

// Manager is the default RegistrationManager. Every request is answered
// with a system command sent back to the device.
type Manager struct {
	repo      core.DeviceRepository
	deliverer core.SystemCommandDeliverer
	cfg       Config
	logger    log.Logger
}

func NewManager(repo core.DeviceRepository, deliverer core.SystemCommandDeliverer, cfg Config) *Manager {
	return &Manager{repo: repo, deliverer: deliverer, cfg: cfg, logger: log.WithName("registration")}
}

func (m *Manager) Name() string { return "registration-manager" }

func (m *Manager) Start(context.Context) error {
	if m.repo == nil {
		return fmt.Errorf("%w: device repository", core.ErrNotConfigured)
	}
	if m.deliverer == nil {
		return fmt.Errorf("%w: system command deliverer", core.ErrNotConfigured)
	}
	m.logger.Info("Registration manager started", "autoRegister", m.cfg.AutoRegister, "defaultSpecification", m.cfg.DefaultSpecification)
	return nil
}

func (m *Manager) Stop(context.Context) error { return nil }

// HandleRegistration registers the device if needed and replies with an ack
// or a failure. Rejections are not errors; failing to reply is.
func (m *Manager) HandleRegistration(ctx context.Context, request *model.RegistrationRequest) error {
	if request.HardwareID == "" {
		return fmt.Errorf("%w: hardware id", core.ErrMissingRequiredParameter)
	}
	logger := m.logger.WithValues("hardwareID", request.HardwareID)

	_, err := m.repo.GetDevice(ctx, request.HardwareID)
	switch {
	case err == nil:
		logger.Debug("Device already registered")
		metrics.RegistrationsTotal.WithLabelValues("already_registered").Inc()
		return m.reply(ctx, request.HardwareID, &model.SystemCommand{
			Type:   model.SystemCommandRegistrationAck,
			Reason: model.ReasonAlreadyRegistered,
		})
	case !errors.Is(err, core.ErrNotFound):
		metrics.RegistrationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("look up device: %w", err)
	}

	if !m.cfg.AutoRegister {
		logger.Info("Rejected registration of unknown device")
		metrics.RegistrationsTotal.WithLabelValues("rejected").Inc()
		return m.reply(ctx, request.HardwareID, &model.SystemCommand{
			Type:         model.SystemCommandRegistrationFailure,
			ErrorType:    model.ErrorTypeNewDevicesNotAllowed,
			ErrorMessage: "new devices are not allowed to register",
		})
	}

	spec := request.SpecificationToken
	if spec == "" {
		spec = m.cfg.DefaultSpecification
	}
	if spec == "" || (len(m.cfg.AllowedSpecifications) > 0 && !slices.Contains(m.cfg.AllowedSpecifications, spec)) {
		logger.Info("Rejected registration with invalid specification", "specification", spec)
		metrics.RegistrationsTotal.WithLabelValues("rejected").Inc()
		return m.reply(ctx, request.HardwareID, &model.SystemCommand{
			Type:         model.SystemCommandRegistrationFailure,
			ErrorType:    model.ErrorTypeInvalidSpecification,
			ErrorMessage: fmt.Sprintf("invalid device specification %q", spec),
		})
	}

	device := &model.Device{HardwareID: request.HardwareID, SpecificationToken: spec, Metadata: request.Metadata}
	assignment := &model.DeviceAssignment{SpecificationToken: spec}
	switch err := m.repo.RegisterDevice(ctx, device, assignment); {
	case errors.Is(err, core.ErrAlreadyExists):
		// A concurrent request for the same device won.
		logger.Debug("Device registered concurrently")
		metrics.RegistrationsTotal.WithLabelValues("already_registered").Inc()
		return m.reply(ctx, request.HardwareID, &model.SystemCommand{
			Type:   model.SystemCommandRegistrationAck,
			Reason: model.ReasonAlreadyRegistered,
		})
	case err != nil:
		metrics.RegistrationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("register device: %w", err)
	}

	logger.Info("Registered new device", "specification", spec, "assignment", assignment.Token)
	metrics.RegistrationsTotal.WithLabelValues("new").Inc()
	return m.reply(ctx, request.HardwareID, &model.SystemCommand{
		Type:   model.SystemCommandRegistrationAck,
		Reason: model.ReasonNewRegistration,
	})
}

func (m *Manager) reply(ctx context.Context, hardwareID string, command *model.SystemCommand) error {
	if err := m.deliverer.DeliverSystemCommand(ctx, hardwareID, command); err != nil {
		m.logger.Error(err, "Failed to send registration reply", "hardwareID", hardwareID, "type", command.Type)
		return fmt.Errorf("send %s: %w", command.Type, err)
	}
	return nil
}
