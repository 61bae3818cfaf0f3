// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity or request fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a task or user is absent or belongs to
	// another company.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor's role or ownership does not
	// permit the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrIllegalStateTransition is returned when an event is not valid for
	// the task's current lifecycle state.
	ErrIllegalStateTransition = errors.New("illegal state transition")

	// ErrInvalidCandidate is returned when a manual assignee fails the role,
	// company or active checks.
	ErrInvalidCandidate = errors.New("invalid assignment candidate")

	// ErrCapacityExceeded is returned when a candidate already holds the
	// maximum number of active tasks.
	ErrCapacityExceeded = errors.New("worker capacity exceeded")

	// ErrInvalidDelegationTarget is returned when the destination of a
	// delegation is not an active manager of the same company, or is the
	// delegating manager.
	ErrInvalidDelegationTarget = errors.New("invalid delegation target")

	// ErrDelegationAlreadyPending is returned when a task already awaits a
	// delegation response.
	ErrDelegationAlreadyPending = errors.New("delegation already pending")

	// ErrConcurrentModification is returned when another operation changed
	// the task first.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrPersistenceFailure is returned when storage failed or timed out.
	// The operation was not applied.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// TaskError carries the context of a rejected task operation: which task,
// which operation, the state the task was in and the attempted event.
// It unwraps to one of the sentinel errors above.
type TaskError struct {
	TaskID uuid.UUID
	Op     string
	State  TaskState
	Event  Event
	Err    error
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("task %s: %s: cannot apply %q in state %q: %v",
			e.TaskID, e.Op, e.Event, e.State, e.Err)
	}
	return fmt.Sprintf("task %s: %s: %v", e.TaskID, e.Op, e.Err)
}

// Unwrap returns the underlying sentinel error.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// NewTaskError builds a TaskError for task t.
func NewTaskError(t *Task, op string, event Event, err error) *TaskError {
	return &TaskError{
		TaskID: t.ID,
		Op:     op,
		State:  t.State,
		Event:  event,
		Err:    err,
	}
}
