package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority orders tasks by urgency.
type Priority string

// Supported priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// MaxTitleLength bounds task titles.
const MaxTitleLength = 200

// Task validation errors
var (
	ErrEmptyTaskTitle     = errors.New("task title cannot be empty")
	ErrTaskTitleTooLong   = fmt.Errorf("task title cannot exceed %d characters", MaxTitleLength)
	ErrEmptyTaskCompanyID = errors.New("task company ID cannot be empty")
	ErrEmptyTaskCreatorID = errors.New("task creator ID cannot be empty")
	ErrInvalidPriority    = errors.New("invalid task priority")
	ErrInvalidTaskState   = errors.New("invalid task state")
	ErrAssigneeMismatch   = errors.New("assignee must be set exactly when the task is assigned or accepted")
	ErrEvidenceRequired   = errors.New("evidence text is required to finalize a task")
)

// Task is a unit of work owned by a company.
type Task struct {
	ID                   uuid.UUID   `json:"id"`
	CompanyID            uuid.UUID   `json:"company_id"`
	Title                string      `json:"title"`
	Description          string      `json:"description,omitempty"`
	Priority             Priority    `json:"priority"`
	DueDate              *time.Time  `json:"due_date,omitempty"`
	Department           string      `json:"department,omitempty"`
	State                TaskState   `json:"state"`
	AssignedWorkerID     *uuid.UUID  `json:"assigned_worker_id,omitempty"`
	CreatedByUserID      uuid.UUID   `json:"created_by_user_id"`
	RequiredCapabilities []string    `json:"required_capabilities"`
	EvidenceText         string      `json:"evidence_text,omitempty"`
	EvidenceImageURL     string      `json:"evidence_image_url,omitempty"`
	CancellationReason   string      `json:"cancellation_reason,omitempty"`
	AssignedAt           *time.Time  `json:"assigned_at,omitempty"`
	AcceptedAt           *time.Time  `json:"accepted_at,omitempty"`
	FinalizedAt          *time.Time  `json:"finalized_at,omitempty"`
	FinalizedByUserID    *uuid.UUID  `json:"finalized_by_user_id,omitempty"`
	CancelledAt          *time.Time  `json:"cancelled_at,omitempty"`
	Delegation           *Delegation `json:"delegation,omitempty"`
	IsActive             bool        `json:"is_active"`
	Version              int         `json:"version"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// TaskDetails are the editable attributes of a task.
type TaskDetails struct {
	Title                string
	Description          string
	Priority             Priority
	DueDate              *time.Time
	Department           string
	RequiredCapabilities []string
}

// NewTask creates a Pending task from details. An empty priority defaults to
// medium. Capability names are normalized and de-duplicated.
func NewTask(companyID, creatorID uuid.UUID, details TaskDetails) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:              uuid.New(),
		CompanyID:       companyID,
		CreatedByUserID: creatorID,
		State:           TaskStatePending,
		IsActive:        true,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	task.applyDetails(details)

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

func (t *Task) applyDetails(d TaskDetails) {
	t.Title = strings.TrimSpace(d.Title)
	t.Description = d.Description
	t.Priority = d.Priority
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if d.DueDate != nil {
		due := d.DueDate.UTC()
		t.DueDate = &due
	} else {
		t.DueDate = nil
	}
	t.Department = strings.TrimSpace(d.Department)
	t.RequiredCapabilities = NormalizeCapabilities(d.RequiredCapabilities)
}

// Validate checks field constraints and the assignee invariant.
func (t *Task) Validate() error {
	if t.CompanyID == uuid.Nil {
		return ErrEmptyTaskCompanyID
	}
	if t.CreatedByUserID == uuid.Nil {
		return ErrEmptyTaskCreatorID
	}
	if t.Title == "" {
		return ErrEmptyTaskTitle
	}
	if len([]rune(t.Title)) > MaxTitleLength {
		return ErrTaskTitleTooLong
	}
	if !t.Priority.Valid() {
		return ErrInvalidPriority
	}
	if !t.State.Valid() {
		return ErrInvalidTaskState
	}
	if (t.AssignedWorkerID != nil) != t.State.IsActive() {
		return ErrAssigneeMismatch
	}
	return nil
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssignedWorkerID != nil && *t.AssignedWorkerID == userID
}

// VisibleTo reports whether a worker may see the task: it is assigned to
// them or they finalized it.
func (t *Task) VisibleTo(workerID uuid.UUID) bool {
	if t.IsAssignedTo(workerID) {
		return true
	}
	return t.FinalizedByUserID != nil && *t.FinalizedByUserID == workerID
}

// CanBeManagedBy reports whether the actor holds management rights. Admins
// always do. A manager does when the task has no delegation overlay, when the
// last delegation was rejected, or when they are its manager of record.
func (t *Task) CanBeManagedBy(actor Actor) bool {
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleManager:
		if t.Delegation == nil || t.Delegation.Status == DelegationRejected {
			return true
		}
		return t.Delegation.ManagerOfRecord() == actor.UserID
	default:
		return false
	}
}

// HasAutoAssignSignal reports whether the task declares both a department
// and at least one required capability.
func (t *Task) HasAutoAssignSignal() bool {
	return t.Department != "" && len(t.RequiredCapabilities) > 0
}

func (t *Task) transition(op string, event Event) error {
	to, ok := NextState(t.State, event)
	if !ok {
		return NewTaskError(t, op, event, ErrIllegalStateTransition)
	}
	t.State = to
	return nil
}

func (t *Task) touch(now time.Time) {
	t.UpdatedAt = now.UTC()
}

// Update replaces the editable attributes of a non-terminal task.
func (t *Task) Update(details TaskDetails, now time.Time) error {
	if !CanApply(t.State, EventUpdate) {
		return NewTaskError(t, "update", EventUpdate, ErrIllegalStateTransition)
	}
	next := *t
	next.applyDetails(details)
	if err := next.Validate(); err != nil {
		return err
	}
	*t = next
	t.touch(now)
	return nil
}

// Assign attaches workerID to a Pending task.
func (t *Task) Assign(workerID uuid.UUID, now time.Time) error {
	if err := t.transition("assign", EventAssign); err != nil {
		return err
	}
	id := workerID
	at := now.UTC()
	t.AssignedWorkerID = &id
	t.AssignedAt = &at
	t.AcceptedAt = nil
	t.touch(now)
	return nil
}

// Accept moves an Assigned task to Accepted. Only the assignee may accept.
func (t *Task) Accept(workerID uuid.UUID, now time.Time) error {
	if !CanApply(t.State, EventAccept) {
		return NewTaskError(t, "accept", EventAccept, ErrIllegalStateTransition)
	}
	if !t.IsAssignedTo(workerID) {
		return NewTaskError(t, "accept", "", ErrForbidden)
	}
	_ = t.transition("accept", EventAccept)
	at := now.UTC()
	t.AcceptedAt = &at
	t.touch(now)
	return nil
}

// Finalize completes an Accepted task with evidence. Only the assignee may
// finalize. The assignee moves to FinalizedByUserID.
func (t *Task) Finalize(workerID uuid.UUID, evidenceText, evidenceImageURL string, now time.Time) error {
	if !CanApply(t.State, EventFinalize) {
		return NewTaskError(t, "finalize", EventFinalize, ErrIllegalStateTransition)
	}
	if !t.IsAssignedTo(workerID) {
		return NewTaskError(t, "finalize", "", ErrForbidden)
	}
	evidenceText = strings.TrimSpace(evidenceText)
	if evidenceText == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEvidenceRequired)
	}
	_ = t.transition("finalize", EventFinalize)
	at := now.UTC()
	by := workerID
	t.EvidenceText = evidenceText
	t.EvidenceImageURL = strings.TrimSpace(evidenceImageURL)
	t.FinalizedAt = &at
	t.FinalizedByUserID = &by
	t.AssignedWorkerID = nil
	t.touch(now)
	return nil
}

// Cancel terminates a Pending or Assigned task. It returns the worker that
// was detached, if any.
func (t *Task) Cancel(reason string, now time.Time) (*uuid.UUID, error) {
	if err := t.transition("cancel", EventCancel); err != nil {
		return nil, err
	}
	previous := t.AssignedWorkerID
	at := now.UTC()
	t.CancellationReason = strings.TrimSpace(reason)
	t.CancelledAt = &at
	t.AssignedWorkerID = nil
	t.touch(now)
	return previous, nil
}

// Detach returns a non-terminal task to Pending and clears its assignee.
// It returns the worker that was detached, if any.
func (t *Task) Detach(now time.Time) (*uuid.UUID, error) {
	if err := t.transition("reassign", EventReassign); err != nil {
		return nil, err
	}
	previous := t.AssignedWorkerID
	t.AssignedWorkerID = nil
	t.AssignedAt = nil
	t.AcceptedAt = nil
	t.touch(now)
	return previous, nil
}

// Delegate hands management of the task from origin to destination. The
// lifecycle state is unchanged.
func (t *Task) Delegate(originID, destinationID uuid.UUID, comment string, now time.Time) error {
	if !CanApply(t.State, EventDelegate) {
		return NewTaskError(t, "delegate", EventDelegate, ErrIllegalStateTransition)
	}
	if t.Delegation.IsPending() {
		return NewTaskError(t, "delegate", "", ErrDelegationAlreadyPending)
	}
	if originID == destinationID {
		return NewTaskError(t, "delegate", "", ErrInvalidDelegationTarget)
	}
	t.Delegation = &Delegation{
		OriginManagerID:      originID,
		DestinationManagerID: destinationID,
		Comment:              strings.TrimSpace(comment),
		DelegatedAt:          now.UTC(),
		Status:               DelegationPending,
	}
	t.touch(now)
	return nil
}

// ResolveDelegation records the destination manager's answer to a pending
// delegation. Rejections need a reason of at least minReasonLength runes.
func (t *Task) ResolveDelegation(managerID uuid.UUID, accept bool, reason string, minReasonLength int, now time.Time) error {
	op := "reject delegation"
	if accept {
		op = "accept delegation"
	}
	if !CanApply(t.State, EventResolveDelegation) {
		return NewTaskError(t, op, EventResolveDelegation, ErrIllegalStateTransition)
	}
	if !t.Delegation.IsPending() {
		return NewTaskError(t, op, EventResolveDelegation, ErrIllegalStateTransition)
	}
	if t.Delegation.DestinationManagerID != managerID {
		return NewTaskError(t, op, "", ErrForbidden)
	}

	at := now.UTC()
	if accept {
		t.Delegation.Status = DelegationAccepted
	} else {
		reason = strings.TrimSpace(reason)
		if len([]rune(reason)) < minReasonLength {
			return fmt.Errorf("%w: rejection reason must be at least %d characters",
				ErrValidation, minReasonLength)
		}
		t.Delegation.Status = DelegationRejected
		t.Delegation.RejectionReason = reason
	}
	t.Delegation.ResolvedAt = &at
	t.touch(now)
	return nil
}

// Deactivate soft-deletes a task that has no active assignee.
func (t *Task) Deactivate(now time.Time) error {
	if t.State.IsActive() {
		return NewTaskError(t, "deactivate", "", ErrIllegalStateTransition)
	}
	t.IsActive = false
	t.touch(now)
	return nil
}

// NormalizeCapabilities normalizes names, drops blanks and duplicates, and
// returns them sorted.
func NormalizeCapabilities(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		norm := NormalizeCapabilityName(n)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.DueDate = cloneTime(t.DueDate)
	c.AssignedWorkerID = cloneUUID(t.AssignedWorkerID)
	c.FinalizedByUserID = cloneUUID(t.FinalizedByUserID)
	c.AssignedAt = cloneTime(t.AssignedAt)
	c.AcceptedAt = cloneTime(t.AcceptedAt)
	c.FinalizedAt = cloneTime(t.FinalizedAt)
	c.CancelledAt = cloneTime(t.CancelledAt)
	c.RequiredCapabilities = append([]string(nil), t.RequiredCapabilities...)
	if t.Delegation != nil {
		d := *t.Delegation
		d.ResolvedAt = cloneTime(t.Delegation.ResolvedAt)
		c.Delegation = &d
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
