package outbound

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
)

type recorder struct {
	name        string
	log         *[]string
	invocations []string
	batches     []string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Start(context.Context) error {
	*r.log = append(*r.log, "start "+r.name)
	return nil
}

func (r *recorder) Stop(context.Context) error {
	*r.log = append(*r.log, "stop "+r.name)
	return nil
}

func (r *recorder) NotifyCommandInvocationRecorded(inv *model.CommandInvocation) {
	r.invocations = append(r.invocations, inv.ID)
}

func (r *recorder) NotifyBatchOperationRecorded(op *model.BatchOperation) {
	r.batches = append(r.batches, op.Token)
}

func TestFanOutAndLifecycleOrder(t *testing.T) {
	var events []string
	a := &recorder{name: "a", log: &events}
	b := &recorder{name: "b", log: &events}

	s := New(a, b)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	s.NotifyCommandInvocationRecorded(&model.CommandInvocation{ID: "inv"})
	s.NotifyBatchOperationRecorded(&model.BatchOperation{Token: "batch"})

	require.NoError(t, s.Stop(ctx))

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, events)
	for _, r := range []*recorder{a, b} {
		assert.Equal(t, []string{"inv"}, r.invocations)
		assert.Equal(t, []string{"batch"}, r.batches)
	}
}

func TestNilProcessorIsAConfigurationError(t *testing.T) {
	var events []string
	s := New(&recorder{name: "a", log: &events}, nil)

	assert.ErrorIs(t, s.Start(context.Background()), core.ErrNotConfigured)
	assert.Empty(t, events)
}
