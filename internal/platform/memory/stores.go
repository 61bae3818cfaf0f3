package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// TaskStore implements store.TaskStore in memory.
type TaskStore struct {
	db   *DB
	inTx bool
}

var _ store.TaskStore = (*TaskStore)(nil)

// Create implements store.TaskStore.Create
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	return s.db.run(ctx, s.inTx, "tasks.create", func(st *state) error {
		if err := task.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
		if _, exists := st.tasks[task.ID]; exists {
			return fmt.Errorf("%w: task %s", store.ErrDuplicate, task.ID)
		}
		st.tasks[task.ID] = task.Clone()
		return nil
	})
}

// GetByID implements store.TaskStore.GetByID
func (s *TaskStore) GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.Task, error) {
	var out *domain.Task
	err := s.db.run(ctx, s.inTx, "tasks.get", func(st *state) error {
		t, ok := st.tasks[id]
		if !ok || t.CompanyID != companyID || !t.IsActive {
			return store.ErrTaskNotFound
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

// GetForUpdate implements store.TaskStore.GetForUpdate. Transactions are
// already serialized, so this is a plain read.
func (s *TaskStore) GetForUpdate(ctx context.Context, companyID, id uuid.UUID) (*domain.Task, error) {
	return s.GetByID(ctx, companyID, id)
}

// Update implements store.TaskStore.Update
func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	return s.db.run(ctx, s.inTx, "tasks.update", func(st *state) error {
		if err := task.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
		current, ok := st.tasks[task.ID]
		if !ok || current.CompanyID != task.CompanyID {
			return store.ErrTaskNotFound
		}
		if current.Version != task.Version {
			return fmt.Errorf("%w: task %s changed since version %d",
				store.ErrConcurrentModification, task.ID, task.Version)
		}
		task.Version++
		st.tasks[task.ID] = task.Clone()
		return nil
	})
}

// List implements store.TaskStore.List
func (s *TaskStore) List(ctx context.Context, companyID uuid.UUID, filter store.TaskFilter) ([]*domain.Task, error) {
	out := make([]*domain.Task, 0)
	err := s.db.run(ctx, s.inTx, "tasks.list", func(st *state) error {
		for _, t := range st.tasks {
			if t.CompanyID == companyID && t.IsActive && matchesFilter(t, filter) {
				out = append(out, t.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*domain.Task{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesFilter(t *domain.Task, f store.TaskFilter) bool {
	if f.State != "" && t.State != f.State {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Department != "" && t.Department != f.Department {
		return false
	}
	if f.AssigneeID != nil && !t.IsAssignedTo(*f.AssigneeID) {
		return false
	}
	if f.VisibleToWorkerID != nil && !t.VisibleTo(*f.VisibleToWorkerID) {
		return false
	}
	if f.DelegatedToID != nil && (t.Delegation == nil || t.Delegation.DestinationManagerID != *f.DelegatedToID) {
		return false
	}
	if f.PendingDelegationOnly && !t.Delegation.IsPending() {
		return false
	}
	return true
}

// CountActiveByWorkers implements store.TaskStore.CountActiveByWorkers
func (s *TaskStore) CountActiveByWorkers(
	ctx context.Context,
	companyID uuid.UUID,
	workerIDs []uuid.UUID,
) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(workerIDs))
	err := s.db.run(ctx, s.inTx, "tasks.count", func(st *state) error {
		for _, id := range workerIDs {
			counts[id] = 0
		}
		for _, t := range st.tasks {
			if t.CompanyID != companyID || !t.State.IsActive() || t.AssignedWorkerID == nil {
				continue
			}
			if _, tracked := counts[*t.AssignedWorkerID]; tracked {
				counts[*t.AssignedWorkerID]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// LockWorkers implements store.TaskStore.LockWorkers. Transactions are
// serialized, so there is nothing to lock.
func (s *TaskStore) LockWorkers(ctx context.Context, _ []uuid.UUID) error {
	return s.db.run(ctx, s.inTx, "tasks.lock", func(*state) error { return nil })
}

// HistoryStore implements store.HistoryStore in memory.
type HistoryStore struct {
	db   *DB
	inTx bool
}

var _ store.HistoryStore = (*HistoryStore)(nil)

// Append implements store.HistoryStore.Append
func (s *HistoryStore) Append(ctx context.Context, entry *domain.AssignmentHistoryEntry) error {
	return s.db.run(ctx, s.inTx, "history.append", func(st *state) error {
		if !entry.Kind.Valid() {
			return fmt.Errorf("%w: unknown history kind %q", store.ErrInvalidEntity, entry.Kind)
		}
		if _, ok := st.tasks[entry.TaskID]; !ok {
			return fmt.Errorf("%w: task %s does not exist", store.ErrInvalidEntity, entry.TaskID)
		}
		c := *entry
		st.history = append(st.history, &c)
		return nil
	})
}

// ListByTask implements store.HistoryStore.ListByTask
func (s *HistoryStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.AssignmentHistoryEntry, error) {
	out := make([]*domain.AssignmentHistoryEntry, 0)
	err := s.db.run(ctx, s.inTx, "history.list", func(st *state) error {
		for _, e := range st.history {
			if e.TaskID == taskID {
				c := *e
				out = append(out, &c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UserDirectory implements store.UserDirectory in memory.
type UserDirectory struct {
	db   *DB
	inTx bool
}

var _ store.UserDirectory = (*UserDirectory)(nil)

// GetUser implements store.UserDirectory.GetUser
func (s *UserDirectory) GetUser(ctx context.Context, companyID, userID uuid.UUID) (*domain.User, error) {
	var out *domain.User
	err := s.db.run(ctx, s.inTx, "users.get", func(st *state) error {
		u, ok := st.users[userID]
		if !ok || u.CompanyID != companyID {
			return store.ErrUserNotFound
		}
		out = cloneUser(u)
		return nil
	})
	return out, err
}

// ListActiveWorkers implements store.UserDirectory.ListActiveWorkers
func (s *UserDirectory) ListActiveWorkers(
	ctx context.Context,
	companyID uuid.UUID,
	department string,
) ([]*domain.User, error) {
	out := make([]*domain.User, 0)
	err := s.db.run(ctx, s.inTx, "users.list", func(st *state) error {
		for _, u := range st.users {
			if u.CompanyID == companyID && u.Department == department && u.IsActiveWorker() {
				out = append(out, cloneUser(u))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out, nil
}
