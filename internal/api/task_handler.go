package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/service/taskengine"
)

// TaskHandler exposes the task engine over HTTP.
type TaskHandler struct {
	engine taskengine.Engine
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(engine taskengine.Engine, logger *slog.Logger) *TaskHandler {
	if engine == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("engine cannot be nil for TaskHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		engine: engine,
		logger: logger.With(slog.String("component", "task_handler")),
	}
}

// decodeRequest decodes and validates the body into v, writing a 400 on
// failure. When optional is set an empty body leaves v untouched.
func (h *TaskHandler) decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		if optional && errors.Is(err, shared.ErrEmptyBody) {
			return true
		}
		HandleValidationError(w, r, err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		HandleValidationError(w, r, err)
		return false
	}
	return true
}

// CreateTask handles POST /tasks requests.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	actor, ok := getActorFromContext(r)
	if !ok {
		log.Warn("actor not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	var req CreateTaskRequest
	if !h.decodeRequest(w, r, &req, false) {
		return
	}

	result, err := h.engine.CreateTask(r.Context(), actor, req.toInput())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	log.Debug("task created",
		slog.String("task_id", result.Task.ID.String()),
		slog.String("outcome", string(result.Outcome)))
	shared.RespondWithJSON(w, r, http.StatusCreated, resultToResponse(result))
}

// ListTasks handles GET /tasks requests.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := getActorFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	tasks, err := h.engine.ListTasks(r.Context(), actor, filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{
		Tasks:  tasksToResponse(tasks),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// GetTask handles GET /tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	actor, taskID, ok := handleActorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.engine.GetTask(r.Context(), actor, taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// UpdateTask handles PATCH /tasks/{id} requests. The body replaces every
// editable attribute.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	actor, taskID, ok := handleActorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req TaskDetailsRequest
	if !h.decodeRequest(w, r, &req, false) {
		return
	}

	task, err := h.engine.UpdateTask(r.Context(), actor, taskID, req.toDomain())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// DeactivateTask handles DELETE /tasks/{id} requests.
func (h *TaskHandler) DeactivateTask(w http.ResponseWriter, r *http.Request) {
	actor, taskID, ok := handleActorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.engine.DeactivateTask(r.Context(), actor, taskID); err != nil {
		HandleAPIError(w, r, err, "Failed to deactivate task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AssignTask handles POST /tasks/{id}/assign requests.
func (h *TaskHandler) AssignTask(w http.ResponseWriter, r *http.Request) {
	actor, taskID, ok := handleActorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req AssignTaskRequest
	if !h.decodeRequest(w, r, &req, false) {
		return
	}

	task, err := h.engine.AssignManual(r.Context(), actor, taskID, req.WorkerID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to assign task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// AutoAssignTask handles POST /tasks/{id}/auto-assign requests. The body is
// optional.
func (h *TaskHandler) AutoAssignTask(w http.ResponseWriter, r *http.Request) {
	actor, taskID, ok := handleActorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req AutoAssignRequest
	if !h.decodeRequest(w, r, &req, true) {
		return
	}

	result, err := h.engine.AssignAutomatic(r.Context(), actor, taskID, req.Force)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to assign task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resultToResponse(result))
}

// AcceptTask handles POST /tasks/{id}/accept requests.
func (h *TaskHandler) AcceptTask(w http.ResponseWriter, r *http.Request) {
	actor, taskID, ok := handleActorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.engine.Accept(r.Context(), actor, taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to accept task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// FinalizeTask handles POST /tasks/{id}/finalize requests.
func (h *TaskHandler) FinalizeTask(w http.ResponseWriter, r *http.Request) {
	actor, taskID, ok := handleActorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req FinalizeTaskRequest
	if !h.decodeRequest(w, r, &req, false) {
		return
	}

	task, err := h.engine.Finalize(r.Context(), actor, taskID, taskengine.FinalizeInput{
		EvidenceText:     req.EvidenceText,
		EvidenceImageURL: req.EvidenceImageURL,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to finalize task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// CancelTask handles POST /tasks/{id}/cancel requests.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	actor, taskID, ok := handleActorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req CancelTaskRequest
	if !h.decodeRequest(w, r, &req, false) {
		return
	}

	task, err := h.engine.Cancel(r.Context(), actor, taskID, req.Reason)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to cancel task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// ReassignTask handles POST /tasks/{id}/reassign requests. An empty body
// only detaches the current assignee.
func (h *TaskHandler) ReassignTask(w http.ResponseWriter, r *http.Request) {
	actor, taskID, ok := handleActorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req ReassignTaskRequest
	if !h.decodeRequest(w, r, &req, true) {
		return
	}

	result, err := h.engine.Reassign(r.Context(), actor, taskID, taskengine.ReassignInput{
		WorkerID:   req.WorkerID,
		AutoAssign: req.AutoAssign,
		Motive:     req.Motive,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to reassign task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resultToResponse(result))
}

// DelegateTask handles POST /tasks/{id}/delegate requests.
func (h *TaskHandler) DelegateTask(w http.ResponseWriter, r *http.Request) {
	actor, taskID, ok := handleActorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req DelegateTaskRequest
	if !h.decodeRequest(w, r, &req, false) {
		return
	}

	task, err := h.engine.Delegate(r.Context(), actor, taskID, taskengine.DelegateInput{
		DestinationManagerID: req.DestinationManagerID,
		Comment:              req.Comment,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to delegate task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// AcceptDelegation handles POST /tasks/{id}/delegation/accept requests.
func (h *TaskHandler) AcceptDelegation(w http.ResponseWriter, r *http.Request) {
	actor, taskID, ok := handleActorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.engine.AcceptDelegation(r.Context(), actor, taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to accept delegation")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// RejectDelegation handles POST /tasks/{id}/delegation/reject requests.
func (h *TaskHandler) RejectDelegation(w http.ResponseWriter, r *http.Request) {
	actor, taskID, ok := handleActorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req RejectDelegationRequest
	if !h.decodeRequest(w, r, &req, false) {
		return
	}

	task, err := h.engine.RejectDelegation(r.Context(), actor, taskID, req.Reason)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to reject delegation")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// GetAssignmentHistory handles GET /tasks/{id}/history requests.
func (h *TaskHandler) GetAssignmentHistory(w http.ResponseWriter, r *http.Request) {
	actor, taskID, ok := handleActorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.engine.GetAssignmentHistory(r.Context(), actor, taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get assignment history")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, historyToResponse(entries))
}

// ReleaseWorkerTasks handles POST /workers/{id}/release requests. It is
// called when a worker is deactivated in the user directory.
func (h *TaskHandler) ReleaseWorkerTasks(w http.ResponseWriter, r *http.Request) {
	actor, workerID, ok := handleActorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	tasks, err := h.engine.ReleaseWorkerTasks(r.Context(), actor, workerID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to release worker tasks")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("released worker tasks",
		slog.String("worker_id", workerID.String()),
		slog.Int("task_count", len(tasks)))
	shared.RespondWithJSON(w, r, http.StatusOK, ReleaseWorkerResponse{
		WorkerID: workerID,
		Tasks:    tasksToResponse(tasks),
	})
}
