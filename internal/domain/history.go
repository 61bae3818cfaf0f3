package domain

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentKind classifies an assignment history entry.
type AssignmentKind string

// History entry kinds.
const (
	AssignmentKindManual       AssignmentKind = "manual"
	AssignmentKindAutomatic    AssignmentKind = "automatic"
	AssignmentKindReassignment AssignmentKind = "reassignment"
	AssignmentKindDelegation   AssignmentKind = "delegation"
)

// Valid reports whether k is a known kind.
func (k AssignmentKind) Valid() bool {
	switch k {
	case AssignmentKindManual, AssignmentKindAutomatic,
		AssignmentKindReassignment, AssignmentKindDelegation:
		return true
	default:
		return false
	}
}

// AssignmentHistoryEntry is an immutable ledger row describing a change of
// assignee or delegation state. A nil AssignedByUserID means the engine
// acted on its own.
type AssignmentHistoryEntry struct {
	ID               uuid.UUID      `json:"id"`
	TaskID           uuid.UUID      `json:"task_id"`
	AssignedToUserID *uuid.UUID     `json:"assigned_to_user_id,omitempty"`
	AssignedByUserID *uuid.UUID     `json:"assigned_by_user_id,omitempty"`
	Kind             AssignmentKind `json:"kind"`
	Motive           string         `json:"motive,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// NewHistoryEntry creates a ledger entry for taskID. A system actor is
// recorded as a nil AssignedByUserID.
func NewHistoryEntry(
	taskID uuid.UUID,
	kind AssignmentKind,
	to *uuid.UUID,
	by Actor,
	motive string,
	now time.Time,
) *AssignmentHistoryEntry {
	entry := &AssignmentHistoryEntry{
		ID:        uuid.New(),
		TaskID:    taskID,
		Kind:      kind,
		Motive:    motive,
		CreatedAt: now.UTC(),
	}
	if to != nil {
		id := *to
		entry.AssignedToUserID = &id
	}
	if !by.IsSystem() {
		id := by.UserID
		entry.AssignedByUserID = &id
	}
	return entry
}

// AssignmentOutcome tells callers what an assignment attempt did.
type AssignmentOutcome string

// Assignment outcomes. Only OutcomeAssigned changes the task.
const (
	OutcomeAssigned           AssignmentOutcome = "assigned"
	OutcomeAlreadyAssigned    AssignmentOutcome = "already_assigned"
	OutcomeInsufficientSignal AssignmentOutcome = "insufficient_signal"
	OutcomeNoEligibleWorker   AssignmentOutcome = "no_eligible_worker"
	OutcomeUnassigned         AssignmentOutcome = "unassigned"
)

// AssignmentResult is the task after an assignment attempt plus what happened.
type AssignmentResult struct {
	Task    *Task             `json:"task"`
	Outcome AssignmentOutcome `json:"outcome"`
}
