package taskengine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// UpdateTask implements Engine.UpdateTask.
func (e *engine) UpdateTask(ctx context.Context, actor domain.Actor, taskID uuid.UUID, details domain.TaskDetails) (*domain.Task, error) {
	if err := requireManagerial(actor); err != nil {
		return nil, err
	}

	var task *domain.Task
	err := e.mutate(ctx, "update_task", func(ctx context.Context, s store.Stores, _ *outbox) error {
		var err error
		task, err = loadManaged(ctx, s, actor, taskID, "update")
		if err != nil {
			return err
		}
		if err := task.Update(details, e.now()); err != nil {
			return asValidation(err)
		}
		return s.Tasks.Update(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	e.logTransition(ctx, "task updated", task, task.State)
	return task, nil
}

// DeactivateTask implements Engine.DeactivateTask.
func (e *engine) DeactivateTask(ctx context.Context, actor domain.Actor, taskID uuid.UUID) error {
	if err := requireManagerial(actor); err != nil {
		return err
	}

	var task *domain.Task
	err := e.mutate(ctx, "deactivate_task", func(ctx context.Context, s store.Stores, _ *outbox) error {
		var err error
		task, err = loadManaged(ctx, s, actor, taskID, "deactivate")
		if err != nil {
			return err
		}
		if err := task.Deactivate(e.now()); err != nil {
			return err
		}
		return s.Tasks.Update(ctx, task)
	})
	if err != nil {
		return err
	}

	e.logTransition(ctx, "task deactivated", task, task.State)
	return nil
}

// Accept implements Engine.Accept.
func (e *engine) Accept(ctx context.Context, actor domain.Actor, taskID uuid.UUID) (*domain.Task, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}

	var task *domain.Task
	err := e.mutate(ctx, "accept", func(ctx context.Context, s store.Stores, box *outbox) error {
		var err error
		task, err = loadOwn(ctx, s, actor, taskID, "accept")
		if err != nil {
			return err
		}
		if err := task.Accept(actor.UserID, e.now()); err != nil {
			return err
		}
		if err := s.Tasks.Update(ctx, task); err != nil {
			return err
		}
		box.add(events.TypeTaskAccepted, task, actor, managerRecipient(task), "")
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logTransition(ctx, "task accepted", task, domain.TaskStateAssigned)
	return task, nil
}

// Finalize implements Engine.Finalize.
func (e *engine) Finalize(ctx context.Context, actor domain.Actor, taskID uuid.UUID, in FinalizeInput) (*domain.Task, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}

	var task *domain.Task
	err := e.mutate(ctx, "finalize", func(ctx context.Context, s store.Stores, box *outbox) error {
		var err error
		task, err = loadOwn(ctx, s, actor, taskID, "finalize")
		if err != nil {
			return err
		}
		if err := task.Finalize(actor.UserID, in.EvidenceText, in.EvidenceImageURL, e.now()); err != nil {
			return err
		}
		if err := s.Tasks.Update(ctx, task); err != nil {
			return err
		}
		box.add(events.TypeTaskFinalized, task, actor, managerRecipient(task), "")
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logTransition(ctx, "task finalized", task, domain.TaskStateAccepted,
		slog.String("worker_id", actor.UserID.String()))
	return task, nil
}

// Cancel implements Engine.Cancel. Cancelling an Assigned task also records
// the detachment of its worker in the ledger.
func (e *engine) Cancel(ctx context.Context, actor domain.Actor, taskID uuid.UUID, reason string) (*domain.Task, error) {
	if err := requireManagerial(actor); err != nil {
		return nil, err
	}

	var (
		task *domain.Task
		from domain.TaskState
	)
	err := e.mutate(ctx, "cancel", func(ctx context.Context, s store.Stores, box *outbox) error {
		var err error
		task, err = loadManaged(ctx, s, actor, taskID, "cancel")
		if err != nil {
			return err
		}
		from = task.State

		now := e.now()
		previous, err := task.Cancel(reason, now)
		if err != nil {
			return err
		}
		if err := s.Tasks.Update(ctx, task); err != nil {
			return err
		}
		if previous != nil {
			entry := domain.NewHistoryEntry(task.ID, domain.AssignmentKindReassignment, nil, actor,
				task.CancellationReason, now)
			if err := s.History.Append(ctx, entry); err != nil {
				return err
			}
		}
		box.add(events.TypeTaskCancelled, task, actor, previous, task.CancellationReason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logTransition(ctx, "task cancelled", task, from)
	return task, nil
}
