// Package batch executes batch operations element by element.
package batch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/pkg/metrics"
	"github.com/autopeer-io/commhub/pkg/log"
)

const DefaultConcurrency = 4

// ErrAlreadyProcessed is returned for operations that are not Unprocessed.
var ErrAlreadyProcessed = errors.New("batch operation already processed")

var _ core.BatchOperationManager = (*Manager)(nil)

// Manager is the default BatchOperationManager. It owns the processing
// status and dates of every operation it is given.
type Manager struct {
	batches   core.BatchRepository
	devices   core.DeviceRepository
	events    core.EventRepository
	deliverer core.CommandDeliverer

	concurrency int
	inflight    sync.Map
	now         func() time.Time
	logger      log.Logger
}

func NewManager(batches core.BatchRepository, devices core.DeviceRepository, events core.EventRepository, deliverer core.CommandDeliverer, concurrency int) *Manager {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Manager{
		batches:     batches,
		devices:     devices,
		events:      events,
		deliverer:   deliverer,
		concurrency: concurrency,
		now:         time.Now,
		logger:      log.WithName("batch"),
	}
}

func (m *Manager) Name() string { return "batch-operation-manager" }

func (m *Manager) Start(context.Context) error {
	switch {
	case m.batches == nil:
		return fmt.Errorf("%w: batch repository", core.ErrNotConfigured)
	case m.devices == nil:
		return fmt.Errorf("%w: device repository", core.ErrNotConfigured)
	case m.events == nil:
		return fmt.Errorf("%w: event repository", core.ErrNotConfigured)
	case m.deliverer == nil:
		return fmt.Errorf("%w: command deliverer", core.ErrNotConfigured)
	}
	return nil
}

func (m *Manager) Stop(context.Context) error { return nil }

// Process runs operation once. Elements are handled concurrently and each
// outcome is recorded on the element; the operation ends Succeeded, Failed
// or FailedPartially.
func (m *Manager) Process(ctx context.Context, operation *model.BatchOperation) error {
	if _, busy := m.inflight.LoadOrStore(operation.Token, struct{}{}); busy {
		return fmt.Errorf("%w: %s is being processed", ErrAlreadyProcessed, operation.Token)
	}
	defer m.inflight.Delete(operation.Token)

	current, err := m.batches.GetBatchOperation(ctx, operation.Token)
	if err != nil {
		return err
	}
	if current.ProcessingStatus != model.BatchUnprocessed {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyProcessed, current.Token, current.ProcessingStatus)
	}

	logger := m.logger.WithValues("batch", current.Token)
	started := m.now()
	if _, err := m.batches.UpdateBatchOperation(ctx, current.Token, &model.BatchOperationUpdate{
		ProcessingStatus:      model.BatchProcessing,
		ProcessingStartedDate: &started,
	}); err != nil {
		return fmt.Errorf("mark batch processing: %w", err)
	}

	status, meta, err := m.run(ctx, current)
	if err != nil {
		logger.Error(err, "Batch operation failed")
		status = model.BatchFailed
		meta = map[string]string{"error": err.Error()}
	}

	ended := m.now()
	if _, uerr := m.batches.UpdateBatchOperation(ctx, current.Token, &model.BatchOperationUpdate{
		ProcessingStatus:    status,
		ProcessingEndedDate: &ended,
		Metadata:            meta,
	}); uerr != nil {
		return fmt.Errorf("mark batch %s: %w", status, uerr)
	}

	metrics.BatchOperationsTotal.WithLabelValues(string(status)).Inc()
	logger.Info("Batch operation processed", "status", status, "duration", ended.Sub(started))
	return err
}

func (m *Manager) run(ctx context.Context, op *model.BatchOperation) (model.BatchOperationStatus, map[string]string, error) {
	if op.OperationType != model.BatchInvokeCommand {
		return "", nil, fmt.Errorf("%w: operation type %q", core.ErrUnsupportedOperation, op.OperationType)
	}
	commandToken := op.Parameters[model.ParamCommandToken]
	if commandToken == "" {
		return "", nil, fmt.Errorf("%w: %s", core.ErrMissingRequiredParameter, model.ParamCommandToken)
	}

	elements, err := m.batches.ListBatchElements(ctx, op.Token)
	if err != nil {
		return "", nil, err
	}

	var succeeded, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, element := range elements {
		g.Go(func() error {
			if err := m.processElement(gctx, op, commandToken, element); err != nil {
				failed.Add(1)
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	meta := map[string]string{
		"succeeded": strconv.Itoa(int(succeeded.Load())),
		"failed":    strconv.Itoa(int(failed.Load())),
	}
	switch {
	case failed.Load() == 0:
		return model.BatchSucceeded, meta, nil
	case succeeded.Load() == 0:
		return model.BatchFailed, meta, nil
	default:
		return model.BatchFailedPartially, meta, nil
	}
}

// processElement invokes the command for a single device. The returned error
// is already recorded on the element.
func (m *Manager) processElement(ctx context.Context, op *model.BatchOperation, commandToken string, element *model.BatchElement) error {
	element.ProcessingStatus = model.ElementProcessing
	if err := m.batches.UpdateBatchElement(ctx, element); err != nil {
		return err
	}

	invocationID, err := m.invoke(ctx, op, commandToken, element.HardwareID)

	processed := m.now()
	element.ProcessedDate = &processed
	if element.Metadata == nil {
		element.Metadata = make(map[string]string)
	}
	if invocationID != "" {
		element.Metadata["invocation"] = invocationID
	}
	if err != nil {
		element.ProcessingStatus = model.ElementFailed
		element.Metadata["error"] = err.Error()
		m.logger.Debug("Batch element failed", "batch", op.Token, "hardwareID", element.HardwareID, "kind", core.KindOf(err))
	} else {
		element.ProcessingStatus = model.ElementSucceeded
	}

	if uerr := m.batches.UpdateBatchElement(ctx, element); uerr != nil {
		m.logger.Error(uerr, "Failed to record batch element outcome", "batch", op.Token, "index", element.Index)
	}
	return err
}

func (m *Manager) invoke(ctx context.Context, op *model.BatchOperation, commandToken, hardwareID string) (string, error) {
	device, err := m.devices.GetDevice(ctx, hardwareID)
	if err != nil {
		return "", err
	}
	if device.AssignmentToken == "" {
		return "", fmt.Errorf("device %q has no active assignment: %w", hardwareID, core.ErrNotFound)
	}

	invocation := &model.CommandInvocation{
		CommandToken:    commandToken,
		AssignmentToken: device.AssignmentToken,
		HardwareID:      hardwareID,
		Initiator:       model.InitiatorBatchOperation,
		InitiatorID:     op.Token,
		Target:          hardwareID,
		ParameterValues: maps.Clone(op.ParameterValues),
		EventDate:       m.now(),
	}
	if err := m.events.CreateInvocation(ctx, invocation); err != nil {
		return "", fmt.Errorf("record invocation: %w", err)
	}
	return invocation.ID, m.deliverer.DeliverCommand(ctx, invocation)
}
