package domain

import (
	"time"

	"github.com/google/uuid"
)

// DelegationStatus is the resolution state of a delegation.
type DelegationStatus string

// Delegation statuses.
const (
	DelegationPending  DelegationStatus = "pending"
	DelegationAccepted DelegationStatus = "accepted"
	DelegationRejected DelegationStatus = "rejected"
)

// Valid reports whether s is a known delegation status.
func (s DelegationStatus) Valid() bool {
	switch s {
	case DelegationPending, DelegationAccepted, DelegationRejected:
		return true
	default:
		return false
	}
}

// Delegation is the manager-to-manager handoff overlay of a task. It never
// changes the task's lifecycle state.
type Delegation struct {
	OriginManagerID      uuid.UUID        `json:"origin_manager_id"`
	DestinationManagerID uuid.UUID        `json:"destination_manager_id"`
	Comment              string           `json:"comment,omitempty"`
	DelegatedAt          time.Time        `json:"delegated_at"`
	Status               DelegationStatus `json:"status"`
	RejectionReason      string           `json:"rejection_reason,omitempty"`
	ResolvedAt           *time.Time       `json:"resolved_at,omitempty"`
}

// IsPending reports whether the destination has not answered yet.
func (d *Delegation) IsPending() bool {
	return d != nil && d.Status == DelegationPending
}

// ManagerOfRecord returns the manager holding management rights: the
// destination once accepted, the origin otherwise.
func (d *Delegation) ManagerOfRecord() uuid.UUID {
	if d.Status == DelegationAccepted {
		return d.DestinationManagerID
	}
	return d.OriginManagerID
}
