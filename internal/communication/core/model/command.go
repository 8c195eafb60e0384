package model

import "time"

// ParameterType is the declared wire type of a command parameter.
type ParameterType string

const (
	ParameterTypeDouble   ParameterType = "Double"
	ParameterTypeFloat    ParameterType = "Float"
	ParameterTypeInt32    ParameterType = "Int32"
	ParameterTypeInt64    ParameterType = "Int64"
	ParameterTypeUInt32   ParameterType = "UInt32"
	ParameterTypeUInt64   ParameterType = "UInt64"
	ParameterTypeSInt32   ParameterType = "SInt32"
	ParameterTypeSInt64   ParameterType = "SInt64"
	ParameterTypeFixed32  ParameterType = "Fixed32"
	ParameterTypeFixed64  ParameterType = "Fixed64"
	ParameterTypeSFixed32 ParameterType = "SFixed32"
	ParameterTypeSFixed64 ParameterType = "SFixed64"
	ParameterTypeBool     ParameterType = "Bool"
	ParameterTypeString   ParameterType = "String"
	ParameterTypeBytes    ParameterType = "Bytes"
)

// CommandParameter declares one argument of a DeviceCommand.
type CommandParameter struct {
	Name     string        `json:"name"`
	Type     ParameterType `json:"type"`
	Required bool          `json:"required"`
}

// DeviceCommand is a command definition. Parameter names are unique.
type DeviceCommand struct {
	Token       string             `json:"token"`
	Namespace   string             `json:"namespace,omitempty"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  []CommandParameter `json:"parameters,omitempty"`
}

// CommandInitiator identifies who requested an invocation.
type CommandInitiator string

const (
	InitiatorREST           CommandInitiator = "REST"
	InitiatorBatchOperation CommandInitiator = "BatchOperation"
)

// CommandInvocation is a recorded request to run a command against an assignment.
// Parameter values are raw strings; typing happens in the execution builder.
type CommandInvocation struct {
	ID              string            `json:"id"`
	CommandToken    string            `json:"commandToken"`
	AssignmentToken string            `json:"assignmentToken"`
	HardwareID      string            `json:"hardwareId,omitempty"`
	Initiator       CommandInitiator  `json:"initiator,omitempty"`
	InitiatorID     string            `json:"initiatorId,omitempty"`
	Target          string            `json:"target,omitempty"`
	ParameterValues map[string]string `json:"parameterValues,omitempty"`
	EventDate       time.Time         `json:"eventDate"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// CommandExecution is an invocation merged with its command definition.
// Parameters holds typed values keyed by declared parameter name. It is never
// shared between goroutines.
type CommandExecution struct {
	Command    *DeviceCommand
	Invocation *CommandInvocation
	Parameters map[string]any
}

// CommandResponse is a device acknowledgement of an invocation.
type CommandResponse struct {
	InvocationID string    `json:"invocationId"`
	HardwareID   string    `json:"hardwareId"`
	Status       string    `json:"status,omitempty"`
	Response     string    `json:"response,omitempty"`
	EventDate    time.Time `json:"eventDate"`
}
