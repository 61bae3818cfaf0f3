package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventHandler records the events it receives.
type MockEventHandler struct {
	mu           sync.Mutex
	HandledCount int
	LastEvent    *TaskEvent
	HandlerError error
}

func (m *MockEventHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HandledCount++
	m.LastEvent = event
	return m.HandlerError
}

func (m *MockEventHandler) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.HandledCount
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEvent(t *testing.T) *TaskEvent {
	t.Helper()
	task, err := domain.NewTask(uuid.New(), uuid.New(), domain.TaskDetails{Title: "Paint wall"})
	require.NoError(t, err)
	worker := uuid.New()
	return NewTaskEvent(TypeTaskAssigned, task, domain.Actor{UserID: uuid.New(), Role: domain.RoleManager}, &worker, "")
}

func TestNewTaskEvent(t *testing.T) {
	task, err := domain.NewTask(uuid.New(), uuid.New(), domain.TaskDetails{Title: "Paint wall"})
	require.NoError(t, err)

	event := NewTaskEvent(TypeTaskCancelled, task, domain.System(task.CompanyID), nil, "budget")
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, task.ID, event.TaskID)
	assert.Equal(t, task.CompanyID, event.CompanyID)
	assert.Nil(t, event.ActorID)
	assert.Nil(t, event.RecipientID)

	data, err := event.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"task.cancelled"`)
	assert.Contains(t, string(data), `"motive":"budget"`)
}

func TestInMemoryEventEmitter(t *testing.T) {
	logger := discardLogger()

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		assert.NoError(t, emitter.EmitEvent(context.Background(), newTestEvent(t)))
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := newTestEvent(t)
		require.NoError(t, emitter.EmitEvent(context.Background(), event))

		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Equal(t, event, handler1.LastEvent)
		assert.Equal(t, event, handler2.LastEvent)
	})

	t.Run("emit event with failing handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		failing := &MockEventHandler{HandlerError: errors.New("handler error")}
		succeeding := &MockEventHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(succeeding)

		err := emitter.EmitEvent(context.Background(), newTestEvent(t))
		assert.EqualError(t, err, "handler error")
		assert.Equal(t, 1, succeeding.HandledCount)
	})
}

func TestDispatcherDeliversQueuedEventsOnStop(t *testing.T) {
	handler := &MockEventHandler{}
	emitter := NewInMemoryEventEmitter(discardLogger())
	emitter.RegisterHandler(handler)

	d := NewDispatcher(emitter, DispatcherConfig{QueueSize: 10, WorkerCount: 3}, discardLogger())
	for i := 0; i < 10; i++ {
		require.NoError(t, d.EmitEvent(context.Background(), newTestEvent(t)))
	}
	d.Start()
	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, 10, handler.Count())
	assert.ErrorIs(t, d.EmitEvent(context.Background(), newTestEvent(t)), ErrQueueClosed)
	assert.NoError(t, d.Stop(context.Background()))
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	handler := &MockEventHandler{}
	d := NewDispatcher(handlerEmitter(handler), DispatcherConfig{QueueSize: 1, WorkerCount: 1}, discardLogger())

	require.NoError(t, d.EmitEvent(context.Background(), newTestEvent(t)))
	err := d.EmitEvent(context.Background(), newTestEvent(t))
	assert.ErrorIs(t, err, ErrQueueFull)

	d.Start()
	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, 1, handler.Count())
}

func TestDispatcherDefaultsInvalidConfig(t *testing.T) {
	d := NewDispatcher(NoopEmitter{}, DispatcherConfig{}, discardLogger())
	assert.Equal(t, 1, cap(d.queue))
	assert.Equal(t, 1, d.workerCount)
	assert.Panics(t, func() { NewDispatcher(nil, DefaultDispatcherConfig(), nil) })
}

func TestDispatcherSurvivesHandlerFailure(t *testing.T) {
	failing := &MockEventHandler{HandlerError: errors.New("redis down")}
	d := NewDispatcher(handlerEmitter(failing), DefaultDispatcherConfig(), discardLogger())
	d.Start()
	require.NoError(t, d.EmitEvent(context.Background(), newTestEvent(t)))
	require.NoError(t, d.EmitEvent(context.Background(), newTestEvent(t)))
	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, 2, failing.Count())
}

func TestLogHandler(t *testing.T) {
	h := NewLogHandler(discardLogger())
	assert.NoError(t, h.HandleEvent(context.Background(), newTestEvent(t)))
}

func handlerEmitter(h EventHandler) EventEmitter {
	e := NewInMemoryEventEmitter(discardLogger())
	e.RegisterHandler(h)
	return e
}
