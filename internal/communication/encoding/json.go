package encoding

import (
	"encoding/json"
	"fmt"

	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/communication/destination"
)

var _ destination.Encoder[[]byte] = (*JSONEncoder)(nil)

// JSONEncoder renders commands as UTF-8 JSON documents.
type JSONEncoder struct {
	stateless
}

func NewJSONEncoder() *JSONEncoder {
	return &JSONEncoder{stateless{name: "json-encoder"}}
}

func (e *JSONEncoder) Encode(execution *model.CommandExecution, nesting *model.NestingContext, assignment *model.DeviceAssignment) ([]byte, error) {
	if execution == nil || execution.Command == nil || execution.Invocation == nil {
		return nil, fmt.Errorf("incomplete command execution")
	}
	return json.Marshal(document(execution, nesting, assignment))
}

func (e *JSONEncoder) EncodeSystemCommand(command *model.SystemCommand, nesting *model.NestingContext, assignment *model.DeviceAssignment) ([]byte, error) {
	if command == nil {
		return nil, fmt.Errorf("system command is required")
	}
	return json.Marshal(systemDocument(command, nesting, assignment))
}

// ContentType is the MIME type of the encoded payload.
func (e *JSONEncoder) ContentType() string {
	return "application/json"
}
