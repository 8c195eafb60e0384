package batch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/communication/store"
)

type fakeDeliverer struct {
	mu      sync.Mutex
	failFor map[string]bool
	seen    []*model.CommandInvocation
}

func (f *fakeDeliverer) DeliverCommand(_ context.Context, inv *model.CommandInvocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, inv)
	if f.failFor[inv.HardwareID] {
		return errors.New("device offline")
	}
	return nil
}

func setup(t *testing.T, hardwareIDs ...string) *store.Memory {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemory()
	for _, hw := range hardwareIDs {
		require.NoError(t, repo.CreateDevice(ctx, &model.Device{HardwareID: hw, SpecificationToken: "tracker"}))
		require.NoError(t, repo.CreateAssignment(ctx, &model.DeviceAssignment{HardwareID: hw}))
	}
	return repo
}

func newOperation(t *testing.T, repo *store.Memory, hardwareIDs ...string) *model.BatchOperation {
	t.Helper()
	op := &model.BatchOperation{
		OperationType:   model.BatchInvokeCommand,
		Parameters:      map[string]string{model.ParamCommandToken: "reboot"},
		ParameterValues: map[string]string{"delay": "5"},
		HardwareIDs:     hardwareIDs,
	}
	require.NoError(t, repo.CreateBatchOperation(context.Background(), op))
	return op
}

func TestProcessOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		devices []string
		failFor map[string]bool
		want    model.BatchOperationStatus
	}{
		{name: "all succeed", devices: []string{"a", "b", "c"}, want: model.BatchSucceeded},
		{name: "some fail", devices: []string{"a", "b", "c"}, failFor: map[string]bool{"b": true}, want: model.BatchFailedPartially},
		{name: "all fail", devices: []string{"a", "b"}, failFor: map[string]bool{"a": true, "b": true}, want: model.BatchFailed},
		{name: "empty", want: model.BatchSucceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := setup(t, tt.devices...)
			op := newOperation(t, repo, tt.devices...)
			deliverer := &fakeDeliverer{failFor: tt.failFor}

			m := NewManager(repo, repo, repo, deliverer, 2)
			require.NoError(t, m.Start(ctx))
			require.NoError(t, m.Process(ctx, op))

			got, err := repo.GetBatchOperation(ctx, op.Token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ProcessingStatus)
			assert.NotNil(t, got.ProcessingStartedDate)
			assert.NotNil(t, got.ProcessingEndedDate)

			elements, err := repo.ListBatchElements(ctx, op.Token)
			require.NoError(t, err)
			for _, e := range elements {
				if tt.failFor[e.HardwareID] {
					assert.Equal(t, model.ElementFailed, e.ProcessingStatus, e.HardwareID)
					assert.Equal(t, "device offline", e.Metadata["error"])
				} else {
					assert.Equal(t, model.ElementSucceeded, e.ProcessingStatus, e.HardwareID)
				}
				assert.NotNil(t, e.ProcessedDate)

				inv, err := repo.GetInvocation(ctx, e.Metadata["invocation"])
				require.NoError(t, err)
				assert.Equal(t, model.InitiatorBatchOperation, inv.Initiator)
				assert.Equal(t, op.Token, inv.InitiatorID)
				assert.Equal(t, "5", inv.ParameterValues["delay"])
			}
			assert.Len(t, deliverer.seen, len(tt.devices))
		})
	}
}

func TestProcessIsAtMostOnce(t *testing.T) {
	ctx := context.Background()
	repo := setup(t, "a")
	op := newOperation(t, repo, "a")
	deliverer := &fakeDeliverer{}
	m := NewManager(repo, repo, repo, deliverer, 1)

	require.NoError(t, m.Process(ctx, op))
	assert.ErrorIs(t, m.Process(ctx, op), ErrAlreadyProcessed)
	assert.Len(t, deliverer.seen, 1)
}

func TestUnknownDeviceFailsItsElement(t *testing.T) {
	ctx := context.Background()
	repo := setup(t, "a")
	op := newOperation(t, repo, "a", "ghost")

	require.NoError(t, NewManager(repo, repo, repo, &fakeDeliverer{}, 1).Process(ctx, op))

	got, err := repo.GetBatchOperation(ctx, op.Token)
	require.NoError(t, err)
	assert.Equal(t, model.BatchFailedPartially, got.ProcessingStatus)

	elements, err := repo.ListBatchElements(ctx, op.Token)
	require.NoError(t, err)
	assert.Equal(t, model.ElementFailed, elements[1].ProcessingStatus)
	assert.Empty(t, elements[1].Metadata["invocation"])
}

func TestMissingCommandTokenFailsOperation(t *testing.T) {
	ctx := context.Background()
	repo := setup(t, "a")
	op := &model.BatchOperation{OperationType: model.BatchInvokeCommand, HardwareIDs: []string{"a"}}
	require.NoError(t, repo.CreateBatchOperation(ctx, op))

	err := NewManager(repo, repo, repo, &fakeDeliverer{}, 1).Process(ctx, op)
	assert.ErrorIs(t, err, core.ErrMissingRequiredParameter)

	got, err := repo.GetBatchOperation(ctx, op.Token)
	require.NoError(t, err)
	assert.Equal(t, model.BatchFailed, got.ProcessingStatus)
}

func TestUnsupportedOperationTypeFailsOperation(t *testing.T) {
	ctx := context.Background()
	repo := setup(t, "a")
	op := &model.BatchOperation{
		OperationType: "Reset",
		Parameters:    map[string]string{model.ParamCommandToken: "reboot"},
		HardwareIDs:   []string{"a"},
	}
	require.NoError(t, repo.CreateBatchOperation(ctx, op))

	deliverer := &fakeDeliverer{}
	err := NewManager(repo, repo, repo, deliverer, 1).Process(ctx, op)
	assert.ErrorIs(t, err, core.ErrUnsupportedOperation)
	assert.Equal(t, core.KindValidation, core.KindOf(err))
	assert.Empty(t, deliverer.seen)

	got, err := repo.GetBatchOperation(ctx, op.Token)
	require.NoError(t, err)
	assert.Equal(t, model.BatchFailed, got.ProcessingStatus)
}
