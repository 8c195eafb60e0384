// Package outbound fans recorded events out to outbound event processors.
package outbound

import (
	"context"
	"fmt"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/pkg/lifecycle"
)

var _ core.OutboundProcessingStrategy = (*Strategy)(nil)

// Strategy owns its processors: it starts them in order, stops them in
// reverse and forwards every notification to each of them.
type Strategy struct {
	processors []core.OutboundEventProcessor
	nested     *lifecycle.Composite
}

func New(processors ...core.OutboundEventProcessor) *Strategy {
	return &Strategy{
		processors: processors,
		nested:     lifecycle.NewComposite("outbound-processing"),
	}
}

func (s *Strategy) Name() string { return "outbound-processing-strategy" }

func (s *Strategy) Start(ctx context.Context) error {
	nested := make([]lifecycle.Nested, 0, len(s.processors))
	for i, p := range s.processors {
		n := lifecycle.Nested{Name: fmt.Sprintf("outbound processor %d", i), Required: true}
		if p != nil {
			n.Component = p
		}
		nested = append(nested, n)
	}
	return s.nested.Start(ctx, nested)
}

func (s *Strategy) Stop(ctx context.Context) error {
	return s.nested.Stop(ctx)
}

func (s *Strategy) NotifyCommandInvocationRecorded(invocation *model.CommandInvocation) {
	for _, p := range s.processors {
		p.NotifyCommandInvocationRecorded(invocation)
	}
}

func (s *Strategy) NotifyBatchOperationRecorded(operation *model.BatchOperation) {
	for _, p := range s.processors {
		p.NotifyBatchOperationRecorded(operation)
	}
}
