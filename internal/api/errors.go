package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidClaims):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, domain.ErrIllegalStateTransition),
		errors.Is(err, domain.ErrDelegationAlreadyPending),
		errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict

	// Rejected candidates
	case errors.Is(err, domain.ErrCapacityExceeded),
		errors.Is(err, domain.ErrInvalidCandidate),
		errors.Is(err, domain.ErrInvalidDelegationTarget):
		return http.StatusUnprocessableEntity

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, shared.ErrEmptyBody):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrPersistenceFailure):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidClaims):
		return "Invalid token"

	case errors.Is(err, domain.ErrForbidden):
		return "You are not allowed to perform this operation"
	case errors.Is(err, domain.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, domain.ErrIllegalStateTransition):
		return illegalTransitionMessage(err)
	case errors.Is(err, domain.ErrDelegationAlreadyPending):
		return "Task already has a pending delegation"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "Task was modified concurrently, please retry"

	case errors.Is(err, domain.ErrCapacityExceeded):
		return "Worker has reached the maximum number of active tasks"
	case errors.Is(err, domain.ErrInvalidCandidate):
		return "Worker cannot be assigned to this task"
	case errors.Is(err, domain.ErrInvalidDelegationTarget):
		return "Destination is not a valid delegation target"

	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"
	case errors.Is(err, domain.ErrValidation):
		return validationMessage(err)

	case errors.Is(err, domain.ErrPersistenceFailure):
		return "Service temporarily unavailable, the operation was not applied"

	default:
		return "An unexpected error occurred"
	}
}

// illegalTransitionMessage names the rejected event and the current state
// when the error carries them.
func illegalTransitionMessage(err error) string {
	var taskErr *domain.TaskError
	if errors.As(err, &taskErr) && taskErr.Event != "" {
		return fmt.Sprintf("Cannot %s: task is %s", strings.ReplaceAll(string(taskErr.Event), "_", " "), taskErr.State)
	}
	return "Operation is not allowed in the task's current state"
}

// validationMessage exposes the domain's description of a validation failure.
// Those messages are built from constant strings and request values only.
func validationMessage(err error) string {
	msg := err.Error()
	prefix := domain.ErrValidation.Error() + ": "
	if i := strings.LastIndex(msg, prefix); i >= 0 {
		msg = msg[i+len(prefix):]
	}
	if msg == "" || msg == domain.ErrValidation.Error() {
		return "Validation error"
	}
	return "Invalid request: " + msg
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}

	// Fall back to a generic validation error message
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "url":
		return "invalid URL"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the error response for err. The status and message
// come from the error taxonomy; defaultMsg replaces the generic message of
// unexpected errors. The full error is logged with redaction.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	msg := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && defaultMsg != "" {
		msg = defaultMsg
	}
	shared.RespondWithErrorAndLog(w, r, status, msg, err)
}

// HandleValidationError writes a 400 response for a request that failed
// decoding or struct validation.
func HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	msg := SanitizeValidationError(err)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if errors.Is(err, shared.ErrEmptyBody) {
			msg = GetSafeErrorMessage(err)
		} else {
			msg = "Invalid request format"
		}
	}
	shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, msg, err)
}
