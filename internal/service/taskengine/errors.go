package taskengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// taxonomy lists the errors callers are expected to branch on.
var taxonomy = []error{
	domain.ErrValidation,
	domain.ErrNotFound,
	domain.ErrForbidden,
	domain.ErrIllegalStateTransition,
	domain.ErrInvalidCandidate,
	domain.ErrCapacityExceeded,
	domain.ErrInvalidDelegationTarget,
	domain.ErrDelegationAlreadyPending,
	domain.ErrConcurrentModification,
	domain.ErrPersistenceFailure,
}

// EngineError wraps a failure from the storage layer. Err is one of the
// domain sentinels; Cause is the underlying error.
type EngineError struct {
	// Operation is the operation that failed (e.g., "assign_manual")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the domain error callers match with errors.Is
	Err error
	// Cause is the underlying store or driver error
	Cause error
}

// Error implements the error interface for EngineError.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("task engine %s failed: %s: %v", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("task engine %s failed: %s", e.Operation, e.Message)
}

// Unwrap exposes both the domain error and its cause to errors.Is/errors.As.
func (e *EngineError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func isTaxonomyError(err error) bool {
	for _, sentinel := range taxonomy {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// normalizeError maps any error escaping an operation onto the domain
// taxonomy. Domain errors pass through unchanged.
func normalizeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isTaxonomyError(err):
		return err
	case store.IsConcurrencyError(err):
		return &EngineError{Operation: op, Message: "task was modified concurrently",
			Err: domain.ErrConcurrentModification, Cause: err}
	case store.IsNotFoundError(err):
		return &EngineError{Operation: op, Message: "entity not found",
			Err: domain.ErrNotFound, Cause: err}
	case errors.Is(err, store.ErrInvalidEntity):
		return &EngineError{Operation: op, Message: "entity rejected by store",
			Err: domain.ErrValidation, Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &EngineError{Operation: op, Message: "operation timed out, nothing was applied",
			Err: domain.ErrPersistenceFailure, Cause: err}
	case errors.Is(err, context.Canceled):
		return &EngineError{Operation: op, Message: "operation cancelled, nothing was applied",
			Err: domain.ErrPersistenceFailure, Cause: err}
	default:
		return &EngineError{Operation: op, Message: "storage failure, nothing was applied",
			Err: domain.ErrPersistenceFailure, Cause: err}
	}
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}
