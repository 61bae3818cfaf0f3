package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// Event types emitted after a task mutation commits.
const (
	TypeTaskAssigned           = "task.assigned"
	TypeTaskUnassigned         = "task.unassigned"
	TypeTaskAccepted           = "task.accepted"
	TypeTaskFinalized          = "task.finalized"
	TypeTaskCancelled          = "task.cancelled"
	TypeTaskDelegated          = "task.delegated"
	TypeTaskDelegationAccepted = "task.delegation_accepted"
	TypeTaskDelegationRejected = "task.delegation_rejected"
)

// TaskEvent describes a committed change to a task. Events are push
// notifications only; the assignment ledger remains the source of truth.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	CompanyID uuid.UUID        `json:"company_id"`
	TaskID    uuid.UUID        `json:"task_id"`
	State     domain.TaskState `json:"state"`

	// ActorID is nil when the engine acted on its own.
	ActorID *uuid.UUID `json:"actor_id,omitempty"`

	// RecipientID is the user the notification is addressed to, if any:
	// the worker for assignment events, the destination manager for delegations.
	RecipientID *uuid.UUID `json:"recipient_id,omitempty"`

	Motive string `json:"motive,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskEvent creates an event of eventType for task.
func NewTaskEvent(eventType string, task *domain.Task, actor domain.Actor, recipient *uuid.UUID, motive string) *TaskEvent {
	event := &TaskEvent{
		ID:        uuid.New(),
		Type:      eventType,
		CompanyID: task.CompanyID,
		TaskID:    task.ID,
		State:     task.State,
		Motive:    motive,
		CreatedAt: time.Now().UTC(),
	}
	if !actor.IsSystem() {
		id := actor.UserID
		event.ActorID = &id
	}
	if recipient != nil {
		id := *recipient
		event.RecipientID = &id
	}
	return event
}

// Marshal encodes the event as JSON.
func (e *TaskEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NoopEmitter) EmitEvent(context.Context, *TaskEvent) error { return nil }
