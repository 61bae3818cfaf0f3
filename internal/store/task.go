package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// TaskFilter narrows task listings. Zero values do not filter.
type TaskFilter struct {
	State      domain.TaskState
	Priority   domain.Priority
	Department string
	// AssigneeID matches the current assignee.
	AssigneeID *uuid.UUID
	// VisibleToWorkerID matches tasks assigned to or finalized by the worker.
	VisibleToWorkerID *uuid.UUID
	// DelegatedToID matches tasks whose delegation destination is the manager.
	DelegatedToID *uuid.UUID
	// PendingDelegationOnly keeps only tasks awaiting a delegation answer.
	PendingDelegationOnly bool
	Limit                 int
	Offset                int
}

// TaskStore defines the interface for task data persistence.
// Only active tasks (IsActive=true) are visible through reads.
type TaskStore interface {
	// Create saves a new task together with its required capabilities.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves an active task of the company.
	// Returns ErrTaskNotFound if it does not exist or belongs to another company.
	GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.Task, error)

	// GetForUpdate retrieves a task like GetByID and locks it until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, companyID, id uuid.UUID) (*domain.Task, error)

	// Update saves changes to an existing task, replacing its capabilities.
	// The write only succeeds when the stored version equals task.Version;
	// on success task.Version is incremented. Returns
	// ErrConcurrentModification when the version moved.
	Update(ctx context.Context, task *domain.Task) error

	// List returns the company's tasks matching filter, newest first.
	List(ctx context.Context, companyID uuid.UUID, filter TaskFilter) ([]*domain.Task, error)

	// CountActiveByWorkers returns the number of Assigned and Accepted tasks
	// held by each worker. Workers without tasks map to zero.
	CountActiveByWorkers(ctx context.Context, companyID uuid.UUID, workerIDs []uuid.UUID) (map[uuid.UUID]int, error)

	// LockWorkers serializes assignments to the given workers until the
	// surrounding transaction ends. Implementations lock in ascending ID order.
	LockWorkers(ctx context.Context, workerIDs []uuid.UUID) error
}

// HistoryStore defines the interface for the append-only assignment ledger.
type HistoryStore interface {
	// Append records a new entry. Entries are never updated or deleted.
	Append(ctx context.Context, entry *domain.AssignmentHistoryEntry) error

	// ListByTask returns a task's entries in chronological order.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.AssignmentHistoryEntry, error)
}

// UserDirectory is the read-only view of the external user directory.
type UserDirectory interface {
	// GetUser returns a user of the company.
	// Returns ErrUserNotFound if the user does not exist or belongs to another company.
	GetUser(ctx context.Context, companyID, userID uuid.UUID) (*domain.User, error)

	// ListActiveWorkers returns the company's active workers in a department,
	// with their capabilities.
	ListActiveWorkers(ctx context.Context, companyID uuid.UUID, department string) ([]*domain.User, error)
}

// Stores groups the repositories bound to one connection or transaction.
type Stores struct {
	Tasks   TaskStore
	History HistoryStore
	Users   UserDirectory
}

// Transactor runs functions atomically against a set of stores.
type Transactor interface {
	// WithinTx calls fn with stores bound to a new transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error

	// Stores returns stores that run outside any transaction.
	Stores() Stores
}
