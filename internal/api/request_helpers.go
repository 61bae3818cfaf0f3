package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
	"github.com/phrazzld/taskflow-api/internal/service/taskengine"
)

// Paging bounds for list endpoints.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// getActorFromContext extracts the authenticated actor placed in the request
// context by the authentication middleware.
func getActorFromContext(r *http.Request) (domain.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok || actor.UserID == uuid.Nil || actor.CompanyID == uuid.Nil {
		return domain.Actor{}, false
	}
	return actor, true
}

// getPathUUID extracts a UUID from the URL path parameters.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrValidation, paramName)
	}

	return id, nil
}

// handleActorAndPathUUID extracts both the actor from context and a UUID
// from the path parameters. It writes an error response if either extraction
// fails.
func handleActorAndPathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
) (domain.Actor, uuid.UUID, bool) {
	log := logger.FromContextOrDefault(r.Context(), slog.Default())

	actor, ok := getActorFromContext(r)
	if !ok {
		log.Warn("actor not found or invalid in request context")
		HandleAPIError(w, r, auth.ErrMissingToken, "")
		return domain.Actor{}, uuid.Nil, false
	}

	pathID, err := getPathUUID(r, paramName)
	if err != nil {
		log.Warn("invalid "+paramName,
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return domain.Actor{}, uuid.Nil, false
	}

	return actor, pathID, true
}

// parseListFilter builds a list filter from query parameters. Limit defaults
// to DefaultListLimit and is capped at MaxListLimit.
func parseListFilter(q url.Values) (taskengine.ListFilter, error) {
	filter := taskengine.ListFilter{
		State:      domain.TaskState(q.Get("state")),
		Priority:   domain.Priority(q.Get("priority")),
		Department: q.Get("department"),
		Limit:      DefaultListLimit,
	}

	var err error
	if filter.AssigneeID, err = optionalUUID(q, "assignee_id"); err != nil {
		return filter, err
	}
	if filter.DelegatedToID, err = optionalUUID(q, "delegated_to"); err != nil {
		return filter, err
	}
	if v := q.Get("pending_delegation"); v != "" {
		if filter.PendingDelegationOnly, err = strconv.ParseBool(v); err != nil {
			return filter, fmt.Errorf("%w: pending_delegation must be a boolean", domain.ErrValidation)
		}
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 1 {
			return filter, fmt.Errorf("%w: limit must be a positive integer", domain.ErrValidation)
		}
		if filter.Limit > MaxListLimit {
			filter.Limit = MaxListLimit
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil {
			return filter, fmt.Errorf("%w: offset must be an integer", domain.ErrValidation)
		}
	}

	return filter, nil
}

func optionalUUID(q url.Values, key string) (*uuid.UUID, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s has invalid format", domain.ErrValidation, key)
	}
	return &id, nil
}
