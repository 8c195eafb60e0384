// Package dispatch runs command delivery off the caller's goroutine.
//
// Work is fire-and-forget: the recorded event log is the source of truth and
// delivery is best effort relative to it. Every failure, including a panic,
// is handed to the processor's ErrorHandler and the worker moves on.
package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/pkg/metrics"
	"github.com/autopeer-io/commhub/pkg/log"
)

const (
	DefaultNumThreads = 10
	DefaultQueueSize  = 10000
)

// ItemKind is the type of a queued work item.
type ItemKind string

const (
	ItemInvocation ItemKind = "invocation"
	ItemBatch      ItemKind = "batch"
)

// WorkItem identifies a unit of work in logs and error handlers.
type WorkItem struct {
	Kind ItemKind
	ID   string
}

// ErrorHandler is the failure policy applied at the worker boundary. It must
// not block.
type ErrorHandler func(worker string, item WorkItem, err error)

// LogAndContinue logs the failure with the item identity and its error kind
// and drops it. There is no retry and no dead letter.
func LogAndContinue(worker string, item WorkItem, err error) {
	log.Error(err, "Dispatch failed, continuing",
		"worker", worker, "item", item.Kind, "id", item.ID, "kind", core.KindOf(err))
}

// Config configures a Processor.
type Config struct {
	NumThreads int
	QueueSize  int
	// ErrorHandler defaults to LogAndContinue.
	ErrorHandler ErrorHandler
}

type task struct {
	item WorkItem
	run  func(ctx context.Context) error
}

var _ core.OutboundEventProcessor = (*Processor)(nil)

// Processor is a fixed pool of workers reading a bounded queue. Items are
// executed at most once and in no particular order.
type Processor struct {
	deliverer core.CommandDeliverer
	batches   core.BatchOperationManager
	cfg       Config

	mu      sync.RWMutex
	running bool
	queue   chan task
	cancel  context.CancelFunc

	logger log.Logger
}

func NewProcessor(deliverer core.CommandDeliverer, batches core.BatchOperationManager, cfg Config) *Processor {
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = DefaultNumThreads
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = LogAndContinue
	}
	return &Processor{
		deliverer: deliverer,
		batches:   batches,
		cfg:       cfg,
		logger:    log.WithName("dispatch"),
	}
}

func (p *Processor) Name() string { return "async-dispatch-processor" }

// Start allocates the queue and launches the workers. Workers outlive ctx;
// only Stop ends them.
func (p *Processor) Start(ctx context.Context) error {
	if p.deliverer == nil {
		return fmt.Errorf("%w: command deliverer", core.ErrNotConfigured)
	}
	if p.batches == nil {
		return fmt.Errorf("%w: batch operation manager", core.ErrNotConfigured)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.queue = make(chan task, p.cfg.QueueSize)
	p.cancel = cancel
	p.running = true

	for i := 1; i <= p.cfg.NumThreads; i++ {
		go p.worker(workCtx, "command-processor-"+strconv.Itoa(i), p.queue)
	}

	p.logger.Info("Dispatch processor started", "workers", p.cfg.NumThreads, "queueSize", p.cfg.QueueSize)
	return nil
}

// Stop cancels the workers and abandons queued items. It does not wait for
// deliveries already in flight.
func (p *Processor) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false
	p.cancel()

	abandoned := 0
drain:
	for {
		select {
		case <-p.queue:
			abandoned++
			metrics.DispatchQueueDepth.Dec()
		default:
			break drain
		}
	}

	p.logger.Info("Dispatch processor stopped", "abandoned", abandoned)
	return nil
}

// NotifyCommandInvocationRecorded queues delivery of invocation.
func (p *Processor) NotifyCommandInvocationRecorded(invocation *model.CommandInvocation) {
	p.submit(task{
		item: WorkItem{Kind: ItemInvocation, ID: invocation.ID},
		run: func(ctx context.Context) error {
			return p.deliverer.DeliverCommand(ctx, invocation)
		},
	})
}

// NotifyBatchOperationRecorded queues processing of operation.
func (p *Processor) NotifyBatchOperationRecorded(operation *model.BatchOperation) {
	p.submit(task{
		item: WorkItem{Kind: ItemBatch, ID: operation.Token},
		run: func(ctx context.Context) error {
			return p.batches.Process(ctx, operation)
		},
	})
}

func (p *Processor) submit(t task) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		p.drop(t, "processor not running")
		return
	}

	select {
	case p.queue <- t:
		metrics.DispatchQueueDepth.Inc()
	default:
		// Load shedding: the event is already recorded, so dropping the
		// delivery is preferable to blocking the recorder.
		p.drop(t, "queue full")
	}
}

func (p *Processor) drop(t task, reason string) {
	metrics.DispatchItemsTotal.WithLabelValues(string(t.item.Kind), "dropped").Inc()
	p.logger.Warn("Dropping dispatch item", "item", t.item.Kind, "id", t.item.ID, "reason", reason)
}

func (p *Processor) worker(ctx context.Context, name string, queue <-chan task) {
	logger := p.logger.WithValues("worker", name)
	logger.Debug("Worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Worker stopped")
			return
		case t := <-queue:
			metrics.DispatchQueueDepth.Dec()
			if ctx.Err() != nil {
				return
			}
			p.execute(ctx, name, t)
		}
	}
}

func (p *Processor) execute(ctx context.Context, worker string, t task) {
	err := safeRun(ctx, t.run)
	if err == nil {
		metrics.DispatchItemsTotal.WithLabelValues(string(t.item.Kind), "success").Inc()
		return
	}

	metrics.DispatchItemsTotal.WithLabelValues(string(t.item.Kind), "failed").Inc()
	metrics.DispatchFailuresTotal.WithLabelValues(string(core.KindOf(err))).Inc()
	p.cfg.ErrorHandler(worker, t.item, err)
}

func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", core.ErrUnexpected, r)
		}
	}()
	return fn(ctx)
}
