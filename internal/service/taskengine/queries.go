package taskengine

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// GetTask implements Engine.GetTask.
func (e *engine) GetTask(ctx context.Context, actor domain.Actor, taskID uuid.UUID) (*domain.Task, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}

	var task *domain.Task
	err := e.read(ctx, "get_task", func(ctx context.Context, s store.Stores) error {
		var err error
		task, err = e.visibleTask(ctx, s, actor, taskID, "get")
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks implements Engine.ListTasks.
func (e *engine) ListTasks(ctx context.Context, actor domain.Actor, filter ListFilter) ([]*domain.Task, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, validationError("limit and offset must not be negative")
	}
	if filter.State != "" && !filter.State.Valid() {
		return nil, validationError("unknown state %q", filter.State)
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, validationError("unknown priority %q", filter.Priority)
	}

	sf := store.TaskFilter{
		State:                 filter.State,
		Priority:              filter.Priority,
		Department:            filter.Department,
		AssigneeID:            filter.AssigneeID,
		DelegatedToID:         filter.DelegatedToID,
		PendingDelegationOnly: filter.PendingDelegationOnly,
		Limit:                 filter.Limit,
		Offset:                filter.Offset,
	}
	if actor.Role == domain.RoleWorker {
		self := actor.UserID
		sf.VisibleToWorkerID = &self
	}

	var tasks []*domain.Task
	err := e.read(ctx, "list_tasks", func(ctx context.Context, s store.Stores) error {
		var err error
		tasks, err = s.Tasks.List(ctx, actor.CompanyID, sf)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetAssignmentHistory implements Engine.GetAssignmentHistory.
func (e *engine) GetAssignmentHistory(
	ctx context.Context,
	actor domain.Actor,
	taskID uuid.UUID,
) ([]*domain.AssignmentHistoryEntry, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}

	var entries []*domain.AssignmentHistoryEntry
	err := e.read(ctx, "get_assignment_history", func(ctx context.Context, s store.Stores) error {
		if _, err := e.visibleTask(ctx, s, actor, taskID, "history"); err != nil {
			return err
		}
		var err error
		entries, err = s.History.ListByTask(ctx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (e *engine) visibleTask(ctx context.Context, s store.Stores, actor domain.Actor, taskID uuid.UUID, op string) (*domain.Task, error) {
	task, err := s.Tasks.GetByID(ctx, actor.CompanyID, taskID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleWorker && !task.VisibleTo(actor.UserID) {
		return nil, &domain.TaskError{TaskID: task.ID, Op: op, Err: domain.ErrForbidden}
	}
	return task, nil
}
