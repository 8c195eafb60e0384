package core

import (
	"context"

	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/pkg/lifecycle"
)

// DeviceRepository resolves devices, assignments and command definitions.
// Implementations return ErrNotFound for unknown keys.
type DeviceRepository interface {
	GetDevice(ctx context.Context, hardwareID string) (*model.Device, error)
	CreateDevice(ctx context.Context, device *model.Device) error
	GetAssignment(ctx context.Context, token string) (*model.DeviceAssignment, error)
	CreateAssignment(ctx context.Context, assignment *model.DeviceAssignment) error
	// RegisterDevice atomically creates a device and its first assignment.
	// It returns ErrAlreadyExists when the device is already known.
	RegisterDevice(ctx context.Context, device *model.Device, assignment *model.DeviceAssignment) error
	GetCommand(ctx context.Context, token string) (*model.DeviceCommand, error)
	CreateCommand(ctx context.Context, command *model.DeviceCommand) error
}

// EventRepository records invocations and device responses.
type EventRepository interface {
	CreateInvocation(ctx context.Context, invocation *model.CommandInvocation) error
	GetInvocation(ctx context.Context, id string) (*model.CommandInvocation, error)
	AddCommandResponse(ctx context.Context, response *model.CommandResponse) error
	ListCommandResponses(ctx context.Context, invocationID string) ([]*model.CommandResponse, error)
}

// BatchRepository persists batch operations and their elements.
type BatchRepository interface {
	CreateBatchOperation(ctx context.Context, op *model.BatchOperation) error
	GetBatchOperation(ctx context.Context, token string) (*model.BatchOperation, error)
	UpdateBatchOperation(ctx context.Context, token string, update *model.BatchOperationUpdate) (*model.BatchOperation, error)
	ListBatchElements(ctx context.Context, token string) ([]*model.BatchElement, error)
	UpdateBatchElement(ctx context.Context, element *model.BatchElement) error
}

// CommandExecutionBuilder merges a definition and an invocation.
type CommandExecutionBuilder interface {
	Build(command *model.DeviceCommand, invocation *model.CommandInvocation) (*model.CommandExecution, error)
}

// CommandDestination encodes and delivers commands over one transport.
type CommandDestination interface {
	lifecycle.Component

	DestinationID() string
	DeliverCommand(ctx context.Context, execution *model.CommandExecution, nesting *model.NestingContext, assignment *model.DeviceAssignment) error
	DeliverSystemCommand(ctx context.Context, command *model.SystemCommand, nesting *model.NestingContext, assignment *model.DeviceAssignment) error
}

// OutboundCommandRouter picks the destination for a command.
// Routing is deterministic for a fixed destination list.
type OutboundCommandRouter interface {
	lifecycle.Component

	Initialize(destinations []CommandDestination) error
	Route(command *model.DeviceCommand, assignment *model.DeviceAssignment) (string, error)
	RouteSystem(command *model.SystemCommand, assignment *model.DeviceAssignment) (string, error)
}

// CommandDeliverer delivers invocations synchronously.
type CommandDeliverer interface {
	DeliverCommand(ctx context.Context, invocation *model.CommandInvocation) error
}

// SystemCommandDeliverer delivers system commands synchronously.
type SystemCommandDeliverer interface {
	DeliverSystemCommand(ctx context.Context, hardwareID string, command *model.SystemCommand) error
}

// CommandProcessingStrategy is build, route and deliver in one synchronous call.
type CommandProcessingStrategy interface {
	lifecycle.Component
	CommandDeliverer
	SystemCommandDeliverer
}

// OutboundEventProcessor reacts to events after they are durably recorded.
// Notifications are fire-and-forget.
type OutboundEventProcessor interface {
	lifecycle.Component

	NotifyCommandInvocationRecorded(invocation *model.CommandInvocation)
	NotifyBatchOperationRecorded(operation *model.BatchOperation)
}

// OutboundProcessingStrategy hands recorded events to outbound processors.
type OutboundProcessingStrategy interface {
	OutboundEventProcessor
}

// RegistrationManager handles device registration requests.
type RegistrationManager interface {
	lifecycle.Component

	HandleRegistration(ctx context.Context, request *model.RegistrationRequest) error
}

// BatchOperationManager executes batch operations and owns their status.
type BatchOperationManager interface {
	lifecycle.Component

	Process(ctx context.Context, operation *model.BatchOperation) error
}

// InboundProcessingStrategy routes decoded device events to their handlers.
type InboundProcessingStrategy interface {
	lifecycle.Component

	ProcessRegistration(ctx context.Context, request *model.RegistrationRequest) error
	ProcessCommandResponse(ctx context.Context, response *model.CommandResponse) error
}

// InboundEventSource receives raw device traffic.
type InboundEventSource interface {
	lifecycle.Component

	SourceID() string
}
