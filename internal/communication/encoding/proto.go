package encoding

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/communication/destination"
)

var _ destination.Encoder[[]byte] = (*ProtobufEncoder)(nil)

// ProtobufEncoder renders commands as a binary google.protobuf.Struct, for
// constrained devices that already link the protobuf runtime.
type ProtobufEncoder struct {
	stateless
	opts proto.MarshalOptions
}

func NewProtobufEncoder() *ProtobufEncoder {
	return &ProtobufEncoder{
		stateless: stateless{name: "protobuf-encoder"},
		opts:      proto.MarshalOptions{Deterministic: true},
	}
}

func (e *ProtobufEncoder) Encode(execution *model.CommandExecution, nesting *model.NestingContext, assignment *model.DeviceAssignment) ([]byte, error) {
	if execution == nil || execution.Command == nil || execution.Invocation == nil {
		return nil, fmt.Errorf("incomplete command execution")
	}
	return e.marshal(document(execution, nesting, assignment))
}

func (e *ProtobufEncoder) EncodeSystemCommand(command *model.SystemCommand, nesting *model.NestingContext, assignment *model.DeviceAssignment) ([]byte, error) {
	if command == nil {
		return nil, fmt.Errorf("system command is required")
	}
	return e.marshal(systemDocument(command, nesting, assignment))
}

func (e *ProtobufEncoder) ContentType() string {
	return "application/x-protobuf"
}

func (e *ProtobufEncoder) marshal(doc map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(doc)
	if err != nil {
		return nil, fmt.Errorf("build protobuf struct: %w", err)
	}
	return e.opts.Marshal(s)
}
