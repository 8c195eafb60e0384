// Package execution materializes command executions from invocations.
package execution

import (
	"errors"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
)

var _ core.CommandExecutionBuilder = (*Builder)(nil)

// Builder is the default CommandExecutionBuilder. It is stateless and safe
// for concurrent use.
type Builder struct{}

// NewBuilder returns a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build walks the declared parameters in order and converts each supplied
// value. Absent optional parameters produce no entry. On error no execution
// is returned.
func (b *Builder) Build(command *model.DeviceCommand, invocation *model.CommandInvocation) (*model.CommandExecution, error) {
	if command == nil || invocation == nil {
		return nil, errors.New("command and invocation are required")
	}

	params := make(map[string]any, len(command.Parameters))
	for _, p := range command.Parameters {
		raw, ok := invocation.ParameterValues[p.Name]
		if !ok {
			if p.Required {
				return nil, &core.ParameterError{Parameter: p.Name, Type: p.Type, Err: core.ErrMissingRequiredParameter}
			}
			continue
		}

		v, err := Convert(p, raw)
		if err != nil {
			return nil, err
		}
		params[p.Name] = v
	}

	return &model.CommandExecution{
		Command:    command,
		Invocation: invocation,
		Parameters: params,
	}, nil
}
