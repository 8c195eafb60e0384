// Package encoding renders command executions into wire payloads.
package encoding

import (
	"context"
	"time"

	"github.com/autopeer-io/commhub/internal/communication/core/model"
)

// document builds the transport-neutral map shared by all encoders.
func document(execution *model.CommandExecution, nesting *model.NestingContext, assignment *model.DeviceAssignment) map[string]any {
	cmd := execution.Command
	inv := execution.Invocation

	// Typed values (int32, int64, float32, []byte, ...) are rendered natively
	// by both encoding/json and structpb; []byte becomes base64 text.
	params := make(map[string]any, len(execution.Parameters))
	for k, v := range execution.Parameters {
		params[k] = v
	}

	doc := map[string]any{
		"command": map[string]any{
			"token":     cmd.Token,
			"namespace": cmd.Namespace,
			"name":      cmd.Name,
		},
		"invocation": map[string]any{
			"id":        inv.ID,
			"initiator": string(inv.Initiator),
			"eventDate": inv.EventDate.UTC().Format(time.RFC3339Nano),
		},
		"parameters": params,
	}
	if n := nestingDoc(nesting, assignment); n != nil {
		doc["nesting"] = n
	}
	return doc
}

func systemDocument(command *model.SystemCommand, nesting *model.NestingContext, assignment *model.DeviceAssignment) map[string]any {
	sys := map[string]any{"type": string(command.Type)}
	if command.Reason != "" {
		sys["reason"] = string(command.Reason)
	}
	if command.ErrorType != "" {
		sys["errorType"] = string(command.ErrorType)
	}
	if command.ErrorMessage != "" {
		sys["errorMessage"] = command.ErrorMessage
	}

	doc := map[string]any{"systemCommand": sys}
	if n := nestingDoc(nesting, assignment); n != nil {
		doc["nesting"] = n
	}
	return doc
}

func nestingDoc(nesting *model.NestingContext, assignment *model.DeviceAssignment) map[string]any {
	if nesting == nil || nesting.Nested == nil {
		return nil
	}
	n := map[string]any{"hardwareId": nesting.Nested.HardwareID}
	if nesting.Gateway != nil {
		n["gateway"] = nesting.Gateway.HardwareID
		n["path"] = nesting.Path
	}
	if assignment != nil {
		n["assignment"] = assignment.Token
	}
	return n
}

// stateless supplies the no-op lifecycle shared by encoders.
type stateless struct{ name string }

func (s stateless) Name() string                { return s.name }
func (s stateless) Start(context.Context) error { return nil }
func (s stateless) Stop(context.Context) error  { return nil }
