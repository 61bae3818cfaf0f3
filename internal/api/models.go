package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/service/taskengine"
)

// Task request structures

// TaskDetailsRequest holds the editable attributes of a task. Updates replace
// every attribute, including the capability list.
type TaskDetailsRequest struct {
	Title                string     `json:"title"                           validate:"required,max=200"`
	Description          string     `json:"description,omitempty"           validate:"max=5000"`
	Priority             string     `json:"priority,omitempty"              validate:"omitempty,oneof=low medium high"`
	DueDate              *time.Time `json:"due_date,omitempty"`
	Department           string     `json:"department,omitempty"            validate:"max=100"`
	RequiredCapabilities []string   `json:"required_capabilities,omitempty" validate:"max=50,dive,required,max=100"`
}

func (d TaskDetailsRequest) toDomain() domain.TaskDetails {
	return domain.TaskDetails{
		Title:                d.Title,
		Description:          d.Description,
		Priority:             domain.Priority(d.Priority),
		DueDate:              d.DueDate,
		Department:           d.Department,
		RequiredCapabilities: d.RequiredCapabilities,
	}
}

// CreateTaskRequest defines the payload for the task creation endpoint.
type CreateTaskRequest struct {
	TaskDetailsRequest
	// AssigneeID assigns the new task to a worker. It wins over AutoAssign.
	AssigneeID *uuid.UUID `json:"assignee_id,omitempty"`
	AutoAssign bool       `json:"auto_assign,omitempty"`
}

// AssignTaskRequest defines the payload for manual assignment.
type AssignTaskRequest struct {
	WorkerID uuid.UUID `json:"worker_id" validate:"required"`
}

// AutoAssignRequest defines the optional payload for automatic assignment.
type AutoAssignRequest struct {
	Force bool `json:"force,omitempty"`
}

// FinalizeTaskRequest defines the payload for completing a task.
type FinalizeTaskRequest struct {
	EvidenceText     string `json:"evidence_text"                validate:"required,max=5000"`
	EvidenceImageURL string `json:"evidence_image_url,omitempty" validate:"omitempty,url"`
}

// CancelTaskRequest defines the payload for cancelling a task.
type CancelTaskRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// ReassignTaskRequest defines the payload for reassignment.
type ReassignTaskRequest struct {
	WorkerID   *uuid.UUID `json:"worker_id,omitempty"`
	AutoAssign bool       `json:"auto_assign,omitempty"`
	Motive     string     `json:"motive,omitempty" validate:"max=1000"`
}

// DelegateTaskRequest defines the payload for delegating a task.
type DelegateTaskRequest struct {
	DestinationManagerID uuid.UUID `json:"destination_manager_id" validate:"required"`
	Comment              string    `json:"comment,omitempty"      validate:"max=1000"`
}

// RejectDelegationRequest defines the payload for rejecting a delegation.
type RejectDelegationRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// Task response structures

// DelegationResponse is the delegation overlay of a task.
type DelegationResponse struct {
	OriginManagerID      uuid.UUID  `json:"origin_manager_id"`
	DestinationManagerID uuid.UUID  `json:"destination_manager_id"`
	Comment              string     `json:"comment,omitempty"`
	Status               string     `json:"status"`
	RejectionReason      string     `json:"rejection_reason,omitempty"`
	DelegatedAt          time.Time  `json:"delegated_at"`
	ResolvedAt           *time.Time `json:"resolved_at,omitempty"`
}

// TaskResponse defines the representation of a task returned to clients.
type TaskResponse struct {
	ID                   uuid.UUID           `json:"id"`
	Title                string              `json:"title"`
	Description          string              `json:"description,omitempty"`
	Priority             string              `json:"priority"`
	DueDate              *time.Time          `json:"due_date,omitempty"`
	Department           string              `json:"department,omitempty"`
	State                string              `json:"state"`
	AssignedWorkerID     *uuid.UUID          `json:"assigned_worker_id,omitempty"`
	CreatedByUserID      uuid.UUID           `json:"created_by_user_id"`
	RequiredCapabilities []string            `json:"required_capabilities"`
	EvidenceText         string              `json:"evidence_text,omitempty"`
	EvidenceImageURL     string              `json:"evidence_image_url,omitempty"`
	CancellationReason   string              `json:"cancellation_reason,omitempty"`
	AssignedAt           *time.Time          `json:"assigned_at,omitempty"`
	AcceptedAt           *time.Time          `json:"accepted_at,omitempty"`
	FinalizedAt          *time.Time          `json:"finalized_at,omitempty"`
	FinalizedByUserID    *uuid.UUID          `json:"finalized_by_user_id,omitempty"`
	CancelledAt          *time.Time          `json:"cancelled_at,omitempty"`
	Delegation           *DelegationResponse `json:"delegation,omitempty"`
	Version              int                 `json:"version"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// AssignmentResultResponse is returned by endpoints that may or may not
// assign the task.
type AssignmentResultResponse struct {
	Task    TaskResponse `json:"task"`
	Outcome string       `json:"outcome"`
}

// HistoryEntryResponse is one row of the assignment ledger.
type HistoryEntryResponse struct {
	ID               uuid.UUID  `json:"id"`
	Kind             string     `json:"kind"`
	AssignedToUserID *uuid.UUID `json:"assigned_to_user_id,omitempty"`
	AssignedByUserID *uuid.UUID `json:"assigned_by_user_id,omitempty"`
	Motive           string     `json:"motive,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// TaskListResponse wraps a page of tasks.
type TaskListResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ReleaseWorkerResponse lists the tasks returned to Pending for a worker.
type ReleaseWorkerResponse struct {
	WorkerID uuid.UUID      `json:"worker_id"`
	Tasks    []TaskResponse `json:"tasks"`
}

// Conversion helpers

func taskToResponse(t *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:                   t.ID,
		Title:                t.Title,
		Description:          t.Description,
		Priority:             string(t.Priority),
		DueDate:              t.DueDate,
		Department:           t.Department,
		State:                string(t.State),
		AssignedWorkerID:     t.AssignedWorkerID,
		CreatedByUserID:      t.CreatedByUserID,
		RequiredCapabilities: t.RequiredCapabilities,
		EvidenceText:         t.EvidenceText,
		EvidenceImageURL:     t.EvidenceImageURL,
		CancellationReason:   t.CancellationReason,
		AssignedAt:           t.AssignedAt,
		AcceptedAt:           t.AcceptedAt,
		FinalizedAt:          t.FinalizedAt,
		FinalizedByUserID:    t.FinalizedByUserID,
		CancelledAt:          t.CancelledAt,
		Version:              t.Version,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
	if resp.RequiredCapabilities == nil {
		resp.RequiredCapabilities = []string{}
	}
	if d := t.Delegation; d != nil {
		resp.Delegation = &DelegationResponse{
			OriginManagerID:      d.OriginManagerID,
			DestinationManagerID: d.DestinationManagerID,
			Comment:              d.Comment,
			Status:               string(d.Status),
			RejectionReason:      d.RejectionReason,
			DelegatedAt:          d.DelegatedAt,
			ResolvedAt:           d.ResolvedAt,
		}
	}
	return resp
}

func tasksToResponse(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToResponse(t))
	}
	return out
}

func resultToResponse(r *domain.AssignmentResult) AssignmentResultResponse {
	return AssignmentResultResponse{
		Task:    taskToResponse(r.Task),
		Outcome: string(r.Outcome),
	}
}

func historyToResponse(entries []*domain.AssignmentHistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntryResponse{
			ID:               e.ID,
			Kind:             string(e.Kind),
			AssignedToUserID: e.AssignedToUserID,
			AssignedByUserID: e.AssignedByUserID,
			Motive:           e.Motive,
			CreatedAt:        e.CreatedAt,
		})
	}
	return out
}

func (r CreateTaskRequest) toInput() taskengine.CreateTaskInput {
	return taskengine.CreateTaskInput{
		Details:    r.TaskDetailsRequest.toDomain(),
		AssigneeID: r.AssigneeID,
		AutoAssign: r.AutoAssign,
	}
}
