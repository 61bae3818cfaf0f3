package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"
)

// Common errors returned by the Dispatcher
var (
	ErrQueueClosed = errors.New("event queue is closed")
	ErrQueueFull   = errors.New("event queue is full")
)

// DispatcherConfig holds configuration options for the Dispatcher
type DispatcherConfig struct {
	// QueueSize bounds the number of undelivered events.
	// If zero or negative, defaults to 1
	QueueSize int

	// WorkerCount determines how many concurrent delivery goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultDispatcherConfig returns a DispatcherConfig with reasonable defaults
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:   256,
		WorkerCount: 2,
	}
}

// Dispatcher is an asynchronous EventEmitter. EmitEvent never blocks; queued
// events are delivered to the target emitter by a pool of workers.
type Dispatcher struct {
	target EventEmitter
	queue  chan *TaskEvent

	workerCount int
	wg          conc.WaitGroup

	mu      sync.RWMutex
	closed  bool
	started bool

	logger *slog.Logger
}

// NewDispatcher creates a dispatcher delivering to target.
// If logger is nil, a default logger will be used.
func NewDispatcher(target EventEmitter, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if target == nil {
		panic("target emitter cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "event_dispatcher"))

	if config.QueueSize <= 0 {
		logger.Warn("invalid queue size specified, using default",
			slog.Int("specified_size", config.QueueSize),
			slog.Int("default_size", 1))
		config.QueueSize = 1
	}
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			slog.Int("specified_count", config.WorkerCount),
			slog.Int("default_count", 1))
		config.WorkerCount = 1
	}

	return &Dispatcher{
		target:      target,
		queue:       make(chan *TaskEvent, config.QueueSize),
		workerCount: config.WorkerCount,
		logger:      logger,
	}
}

var _ EventEmitter = (*Dispatcher)(nil)

// Start launches the worker goroutines. Calling Start more than once has no
// effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.workerCount; i++ {
		workerID := i
		d.wg.Go(func() {
			d.work(workerID)
		})
	}
	d.logger.Info("event dispatcher started", slog.Int("worker_count", d.workerCount))
}

func (d *Dispatcher) work(workerID int) {
	for event := range d.queue {
		// Delivery is detached from the request that emitted the event.
		if err := d.target.EmitEvent(context.Background(), event); err != nil {
			d.logger.Warn("event delivery failed",
				slog.Int("worker_id", workerID),
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", event.Type),
				slog.String("error", err.Error()))
		}
	}
}

// EmitEvent queues the event for delivery. It returns ErrQueueFull when the
// buffer is full and ErrQueueClosed after Stop; the event is dropped in both
// cases.
func (d *Dispatcher) EmitEvent(ctx context.Context, event *TaskEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrQueueClosed
	}

	select {
	case d.queue <- event:
		d.logger.Debug("event enqueued",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", event.Type),
			slog.Int("queue_len", len(d.queue)),
			slog.Int("queue_cap", cap(d.queue)))
		return nil
	default:
		d.logger.Warn("dropping event, queue full",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", event.Type),
			slog.String("task_id", event.TaskID.String()))
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(d.queue))
	}
}

// Stop closes the queue and waits for queued events to be delivered or for
// ctx to expire, whichever comes first.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if recovered := d.wg.WaitAndRecover(); recovered != nil {
			d.logger.Error("event worker panicked", slog.String("panic", recovered.String()))
		}
	}()

	select {
	case <-done:
		d.logger.Info("event dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("event dispatcher stop timed out",
			slog.Int("undelivered", len(d.queue)))
		return ctx.Err()
	}
}
