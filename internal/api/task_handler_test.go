package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/domain/assignment"
	"github.com/phrazzld/taskflow-api/internal/platform/memory"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
	"github.com/phrazzld/taskflow-api/internal/service/taskengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-characters-long"

// testAPI is a router backed by the in-memory store with a single company.
type testAPI struct {
	db      *memory.DB
	jwt     auth.JWTService
	handler http.Handler
	company uuid.UUID

	manager  domain.Actor
	manager2 domain.Actor
	admin    domain.Actor
	worker   domain.Actor
	worker2  domain.Actor
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := &testAPI{db: memory.New(log), company: uuid.New()}
	a.manager = a.addUser(domain.RoleManager, "Ops")
	a.manager2 = a.addUser(domain.RoleManager, "Ops")
	a.admin = a.addUser(domain.RoleAdmin, "")
	a.worker = a.addUser(domain.RoleWorker, "Ops", "welding")
	a.worker2 = a.addUser(domain.RoleWorker, "Ops")

	engine, err := taskengine.NewEngine(a.db, assignment.NewDefaultService(), nil, taskengine.Config{}, log)
	require.NoError(t, err)

	a.jwt, err = auth.NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetime: time.Hour})
	require.NoError(t, err)

	a.handler = NewRouter(engine, a.jwt, log)
	return a
}

func (a *testAPI) addUser(role domain.Role, department string, caps ...string) domain.Actor {
	u := &domain.User{
		ID:         uuid.New(),
		CompanyID:  a.company,
		Name:       string(role),
		Role:       role,
		Department: department,
		IsActive:   true,
	}
	for _, c := range caps {
		u.Capabilities = append(u.Capabilities, domain.Capability{Name: c, Level: 3})
	}
	a.db.SaveUser(u)
	return domain.Actor{UserID: u.ID, CompanyID: a.company, Role: role}
}

func (a *testAPI) do(t *testing.T, actor *domain.Actor, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := a.jwt.GenerateToken(context.Background(), *actor)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[shared.ErrorResponse](t, rr).Error
}

func (a *testAPI) createTask(t *testing.T, body CreateTaskRequest) AssignmentResultResponse {
	t.Helper()
	rr := a.do(t, &a.manager, http.MethodPost, "/api/tasks", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[AssignmentResultResponse](t, rr)
}

func taskPath(id uuid.UUID, suffix string) string {
	return "/api/tasks/" + id.String() + suffix
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	rr := a.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestAuthentication(t *testing.T) {
	a := newTestAPI(t)

	t.Run("missing header", func(t *testing.T) {
		rr := a.do(t, nil, http.MethodGet, "/api/tasks", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Authorization header required", errorMessage(t, rr))
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		req.Header.Set("Authorization", "Token abc")
		rr := httptest.NewRecorder()
		a.handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Invalid authorization format", errorMessage(t, rr))
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rr := httptest.NewRecorder()
		a.handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Invalid token", errorMessage(t, rr))
		assert.NotEmpty(t, decode[shared.ErrorResponse](t, rr).TraceID)
	})
}

func TestCreateTask(t *testing.T) {
	a := newTestAPI(t)

	t.Run("unassigned", func(t *testing.T) {
		res := a.createTask(t, CreateTaskRequest{TaskDetailsRequest: TaskDetailsRequest{Title: "Fix fence"}})
		assert.Equal(t, string(domain.OutcomeUnassigned), res.Outcome)
		assert.Equal(t, string(domain.TaskStatePending), res.Task.State)
		assert.Equal(t, string(domain.PriorityMedium), res.Task.Priority)
		assert.Equal(t, a.manager.UserID, res.Task.CreatedByUserID)
		assert.NotNil(t, res.Task.RequiredCapabilities)
	})

	t.Run("auto assigned by capability", func(t *testing.T) {
		res := a.createTask(t, CreateTaskRequest{
			TaskDetailsRequest: TaskDetailsRequest{Title: "Weld gate", Department: "Ops", RequiredCapabilities: []string{"Welding"}},
			AutoAssign:         true,
		})
		assert.Equal(t, string(domain.OutcomeAssigned), res.Outcome)
		require.NotNil(t, res.Task.AssignedWorkerID)
		assert.Equal(t, a.worker.UserID, *res.Task.AssignedWorkerID)
	})

	t.Run("missing title", func(t *testing.T) {
		rr := a.do(t, &a.manager, http.MethodPost, "/api/tasks", map[string]string{"description": "x"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid Title: required field", errorMessage(t, rr))
	})

	t.Run("unknown priority", func(t *testing.T) {
		rr := a.do(t, &a.manager, http.MethodPost, "/api/tasks",
			map[string]string{"title": "x", "priority": "urgent"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid Priority: invalid value", errorMessage(t, rr))
	})

	t.Run("empty body", func(t *testing.T) {
		rr := a.do(t, &a.manager, http.MethodPost, "/api/tasks", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Request body is required", errorMessage(t, rr))
	})

	t.Run("worker cannot create", func(t *testing.T) {
		rr := a.do(t, &a.worker, http.MethodPost, "/api/tasks",
			CreateTaskRequest{TaskDetailsRequest: TaskDetailsRequest{Title: "x"}})
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("invalid explicit assignee", func(t *testing.T) {
		rr := a.do(t, &a.manager, http.MethodPost, "/api/tasks", CreateTaskRequest{
			TaskDetailsRequest: TaskDetailsRequest{Title: "x"},
			AssigneeID:         &a.manager2.UserID,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "Worker cannot be assigned to this task", errorMessage(t, rr))
	})
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	task := a.createTask(t, CreateTaskRequest{TaskDetailsRequest: TaskDetailsRequest{Title: "Paint hall"}}).Task

	rr := a.do(t, &a.manager, http.MethodPost, taskPath(task.ID, "/assign"), AssignTaskRequest{WorkerID: a.worker2.UserID})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, string(domain.TaskStateAssigned), decode[TaskResponse](t, rr).State)

	rr = a.do(t, &a.worker, http.MethodPost, taskPath(task.ID, "/accept"), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code, "another worker cannot accept")

	rr = a.do(t, &a.worker2, http.MethodPost, taskPath(task.ID, "/accept"), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, string(domain.TaskStateAccepted), decode[TaskResponse](t, rr).State)

	rr = a.do(t, &a.worker2, http.MethodPost, taskPath(task.ID, "/finalize"), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid EvidenceText: required field", errorMessage(t, rr))

	rr = a.do(t, &a.worker2, http.MethodPost, taskPath(task.ID, "/finalize"),
		FinalizeTaskRequest{EvidenceText: "two coats applied", EvidenceImageURL: "https://img.example.com/hall.jpg"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	finalized := decode[TaskResponse](t, rr)
	assert.Equal(t, string(domain.TaskStateFinalized), finalized.State)
	require.NotNil(t, finalized.FinalizedByUserID)
	assert.Equal(t, a.worker2.UserID, *finalized.FinalizedByUserID)

	rr = a.do(t, &a.worker2, http.MethodGet, taskPath(task.ID, ""), nil)
	assert.Equal(t, http.StatusOK, rr.Code, "finalizer still sees the task")

	rr = a.do(t, &a.manager, http.MethodPost, taskPath(task.ID, "/cancel"), CancelTaskRequest{Reason: "late"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Cannot cancel: task is finalized", errorMessage(t, rr))

	rr = a.do(t, &a.manager, http.MethodGet, taskPath(task.ID, "/history"), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[[]HistoryEntryResponse](t, rr)
	require.Len(t, history, 1)
	assert.Equal(t, string(domain.AssignmentKindManual), history[0].Kind)
	assert.Equal(t, a.manager.UserID, *history[0].AssignedByUserID)
}

func TestAutoAssignAndReassign(t *testing.T) {
	a := newTestAPI(t)
	task := a.createTask(t, CreateTaskRequest{TaskDetailsRequest: TaskDetailsRequest{
		Title: "Weld rail", Department: "Ops", RequiredCapabilities: []string{"welding"},
	}}).Task

	rr := a.do(t, &a.manager, http.MethodPost, taskPath(task.ID, "/auto-assign"), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[AssignmentResultResponse](t, rr)
	assert.Equal(t, string(domain.OutcomeAssigned), res.Outcome)

	rr = a.do(t, &a.manager, http.MethodPost, taskPath(task.ID, "/auto-assign"), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, string(domain.OutcomeAlreadyAssigned), decode[AssignmentResultResponse](t, rr).Outcome)

	rr = a.do(t, &a.manager, http.MethodPost, taskPath(task.ID, "/reassign"),
		ReassignTaskRequest{WorkerID: &a.worker2.UserID, Motive: "workload"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res = decode[AssignmentResultResponse](t, rr)
	assert.Equal(t, string(domain.OutcomeAssigned), res.Outcome)
	assert.Equal(t, a.worker2.UserID, *res.Task.AssignedWorkerID)

	rr = a.do(t, &a.manager, http.MethodPost, taskPath(task.ID, "/reassign"), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res = decode[AssignmentResultResponse](t, rr)
	assert.Equal(t, string(domain.OutcomeUnassigned), res.Outcome)
	assert.Equal(t, string(domain.TaskStatePending), res.Task.State)

	rr = a.do(t, &a.manager, http.MethodGet, taskPath(task.ID, "/history"), nil)
	kinds := []string{}
	for _, e := range decode[[]HistoryEntryResponse](t, rr) {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{"automatic", "reassignment", "manual", "reassignment"}, kinds)
}

func TestDelegationOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	task := a.createTask(t, CreateTaskRequest{TaskDetailsRequest: TaskDetailsRequest{Title: "Audit stock"}}).Task

	rr := a.do(t, &a.manager, http.MethodPost, taskPath(task.ID, "/delegate"),
		DelegateTaskRequest{DestinationManagerID: a.worker.UserID})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = a.do(t, &a.manager, http.MethodPost, taskPath(task.ID, "/delegate"),
		DelegateTaskRequest{DestinationManagerID: a.manager2.UserID, Comment: "on leave"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	delegated := decode[TaskResponse](t, rr)
	require.NotNil(t, delegated.Delegation)
	assert.Equal(t, "pending", delegated.Delegation.Status)

	rr = a.do(t, &a.manager, http.MethodPost, taskPath(task.ID, "/delegate"),
		DelegateTaskRequest{DestinationManagerID: a.manager2.UserID})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Task already has a pending delegation", errorMessage(t, rr))

	rr = a.do(t, &a.manager2, http.MethodGet, "/api/tasks?delegated_to="+a.manager2.UserID.String()+"&pending_delegation=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	inbox := decode[TaskListResponse](t, rr)
	require.Len(t, inbox.Tasks, 1)
	assert.Equal(t, task.ID, inbox.Tasks[0].ID)

	rr = a.do(t, &a.manager2, http.MethodPost, taskPath(task.ID, "/delegation/reject"), RejectDelegationRequest{Reason: "no"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid request: rejection reason must be at least 10 characters", errorMessage(t, rr))

	rr = a.do(t, &a.manager, http.MethodPost, taskPath(task.ID, "/delegation/accept"), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code, "only the destination resolves")

	rr = a.do(t, &a.manager2, http.MethodPost, taskPath(task.ID, "/delegation/accept"), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "accepted", decode[TaskResponse](t, rr).Delegation.Status)
	assert.Equal(t, string(domain.TaskStatePending), decode[TaskResponse](t, rr).State)
}

func TestUpdateAndDeactivate(t *testing.T) {
	a := newTestAPI(t)
	task := a.createTask(t, CreateTaskRequest{TaskDetailsRequest: TaskDetailsRequest{Title: "Old"}}).Task

	rr := a.do(t, &a.manager, http.MethodPatch, taskPath(task.ID, ""),
		TaskDetailsRequest{Title: "New", Priority: "high", Department: "Ops"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[TaskResponse](t, rr)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, "high", updated.Priority)

	rr = a.do(t, &a.manager, http.MethodDelete, taskPath(task.ID, ""), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = a.do(t, &a.manager, http.MethodGet, taskPath(task.ID, ""), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Resource not found", errorMessage(t, rr))
}

func TestListTasksFilters(t *testing.T) {
	a := newTestAPI(t)
	a.createTask(t, CreateTaskRequest{TaskDetailsRequest: TaskDetailsRequest{Title: "A", Priority: "high"}})
	a.createTask(t, CreateTaskRequest{TaskDetailsRequest: TaskDetailsRequest{Title: "B", Priority: "low"}})

	rr := a.do(t, &a.manager, http.MethodGet, "/api/tasks?priority=high", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[TaskListResponse](t, rr)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, "A", list.Tasks[0].Title)
	assert.Equal(t, DefaultListLimit, list.Limit)

	rr = a.do(t, &a.worker, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[TaskListResponse](t, rr).Tasks, "workers only see their own tasks")

	rr = a.do(t, &a.manager, http.MethodGet, "/api/tasks?state=archived", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = a.do(t, &a.manager, http.MethodGet, "/api/tasks?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInvalidPathID(t *testing.T) {
	a := newTestAPI(t)
	rr := a.do(t, &a.manager, http.MethodGet, "/api/tasks/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid request: id has invalid format", errorMessage(t, rr))

	rr = a.do(t, &a.manager, http.MethodGet, taskPath(uuid.New(), ""), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReleaseWorkerTasks(t *testing.T) {
	a := newTestAPI(t)
	task := a.createTask(t, CreateTaskRequest{
		TaskDetailsRequest: TaskDetailsRequest{Title: "Sweep"},
		AssigneeID:         &a.worker.UserID,
	}).Task
	path := "/api/workers/" + a.worker.UserID.String() + "/release"

	rr := a.do(t, &a.manager, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = a.do(t, &a.admin, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	released := decode[ReleaseWorkerResponse](t, rr)
	assert.Equal(t, a.worker.UserID, released.WorkerID)
	require.Len(t, released.Tasks, 1)
	assert.Equal(t, task.ID, released.Tasks[0].ID)
	assert.Equal(t, string(domain.TaskStatePending), released.Tasks[0].State)
}
