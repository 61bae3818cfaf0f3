package taskengine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/domain/assignment"
	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// CreateTask implements Engine.CreateTask.
func (e *engine) CreateTask(ctx context.Context, actor domain.Actor, in CreateTaskInput) (*domain.AssignmentResult, error) {
	if err := requireManagerial(actor); err != nil {
		return nil, err
	}
	creator := actor.UserID
	task, err := domain.NewTask(actor.CompanyID, creator, in.Details)
	if err != nil {
		return nil, asValidation(err)
	}

	result := &domain.AssignmentResult{Outcome: domain.OutcomeUnassigned}
	err = e.mutate(ctx, "create_task", func(ctx context.Context, s store.Stores, box *outbox) error {
		working := task.Clone()
		if err := s.Tasks.Create(ctx, working); err != nil {
			return err
		}
		now := e.now()
		switch {
		case in.AssigneeID != nil:
			if err := e.assignManualTx(ctx, s, box, working, actor, *in.AssigneeID, now); err != nil {
				return err
			}
			result.Outcome = domain.OutcomeAssigned
		case in.AutoAssign:
			outcome, err := e.assignAutomaticTx(ctx, s, box, working, actor, now)
			if err != nil {
				return err
			}
			result.Outcome = outcome
		}
		result.Task = working
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logTransition(ctx, "task created", result.Task, domain.TaskStatePending,
		slog.String("outcome", string(result.Outcome)))
	return result, nil
}

// AssignManual implements Engine.AssignManual.
func (e *engine) AssignManual(ctx context.Context, actor domain.Actor, taskID, workerID uuid.UUID) (*domain.Task, error) {
	if err := requireManagerial(actor); err != nil {
		return nil, err
	}

	var task *domain.Task
	err := e.mutate(ctx, "assign_manual", func(ctx context.Context, s store.Stores, box *outbox) error {
		var err error
		task, err = loadManaged(ctx, s, actor, taskID, "assign")
		if err != nil {
			return err
		}
		return e.assignManualTx(ctx, s, box, task, actor, workerID, e.now())
	})
	if err != nil {
		return nil, err
	}

	e.logTransition(ctx, "task assigned manually", task, domain.TaskStatePending)
	return task, nil
}

// AssignAutomatic implements Engine.AssignAutomatic.
func (e *engine) AssignAutomatic(ctx context.Context, actor domain.Actor, taskID uuid.UUID, force bool) (*domain.AssignmentResult, error) {
	if err := requireManagerial(actor); err != nil {
		return nil, err
	}

	result := &domain.AssignmentResult{}
	var from domain.TaskState
	err := e.mutate(ctx, "assign_automatic", func(ctx context.Context, s store.Stores, box *outbox) error {
		task, err := loadManaged(ctx, s, actor, taskID, "assign")
		if err != nil {
			return err
		}
		from = task.State
		result.Task = task

		if task.State.IsActive() && !force {
			result.Outcome = domain.OutcomeAlreadyAssigned
			return nil
		}
		if !domain.CanApply(task.State, domain.EventReassign) {
			return domain.NewTaskError(task, "assign", domain.EventAssign, domain.ErrIllegalStateTransition)
		}

		now := e.now()
		if task.State.IsActive() {
			if err := e.detachTx(ctx, s, box, task, actor, MotiveForcedReassignment, now); err != nil {
				return err
			}
		}
		result.Outcome, err = e.assignAutomaticTx(ctx, s, box, task, actor, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Outcome != domain.OutcomeAlreadyAssigned {
		e.logTransition(ctx, "automatic assignment finished", result.Task, from,
			slog.String("outcome", string(result.Outcome)),
			slog.Bool("force", force))
	}
	return result, nil
}

// Reassign implements Engine.Reassign.
func (e *engine) Reassign(ctx context.Context, actor domain.Actor, taskID uuid.UUID, in ReassignInput) (*domain.AssignmentResult, error) {
	if err := requireManagerial(actor); err != nil {
		return nil, err
	}

	result := &domain.AssignmentResult{Outcome: domain.OutcomeUnassigned}
	var from domain.TaskState
	err := e.mutate(ctx, "reassign", func(ctx context.Context, s store.Stores, box *outbox) error {
		task, err := loadManaged(ctx, s, actor, taskID, "reassign")
		if err != nil {
			return err
		}
		from = task.State
		result.Task = task

		now := e.now()
		if err := e.detachTx(ctx, s, box, task, actor, in.Motive, now); err != nil {
			return err
		}

		switch {
		case in.WorkerID != nil:
			if err := e.assignManualTx(ctx, s, box, task, actor, *in.WorkerID, now); err != nil {
				return err
			}
			result.Outcome = domain.OutcomeAssigned
		case in.AutoAssign:
			result.Outcome, err = e.assignAutomaticTx(ctx, s, box, task, actor, now)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logTransition(ctx, "task reassigned", result.Task, from,
		slog.String("outcome", string(result.Outcome)))
	return result, nil
}

// ReleaseWorkerTasks implements Engine.ReleaseWorkerTasks.
func (e *engine) ReleaseWorkerTasks(ctx context.Context, actor domain.Actor, workerID uuid.UUID) ([]*domain.Task, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}

	var (
		released []*domain.Task
		from     []domain.TaskState
	)
	err := e.mutate(ctx, "release_worker_tasks", func(ctx context.Context, s store.Stores, box *outbox) error {
		released, from = nil, nil
		if err := s.Tasks.LockWorkers(ctx, []uuid.UUID{workerID}); err != nil {
			return err
		}
		held, err := s.Tasks.List(ctx, actor.CompanyID, store.TaskFilter{AssigneeID: &workerID})
		if err != nil {
			return err
		}
		now := e.now()
		for _, h := range held {
			task, err := s.Tasks.GetForUpdate(ctx, actor.CompanyID, h.ID)
			if err != nil {
				return err
			}
			if !task.IsAssignedTo(workerID) {
				continue
			}
			from = append(from, task.State)
			if err := e.detachTx(ctx, s, box, task, actor, MotiveWorkerDeactivated, now); err != nil {
				return err
			}
			released = append(released, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, task := range released {
		e.logTransition(ctx, "task released from deactivated worker", task, from[i],
			slog.String("released_worker_id", workerID.String()))
	}
	return released, nil
}

// assignManualTx validates workerID under its worker lock and attaches it
// to the Pending task.
func (e *engine) assignManualTx(
	ctx context.Context,
	s store.Stores,
	box *outbox,
	task *domain.Task,
	actor domain.Actor,
	workerID uuid.UUID,
	now time.Time,
) error {
	if !domain.CanApply(task.State, domain.EventAssign) {
		return domain.NewTaskError(task, "assign", domain.EventAssign, domain.ErrIllegalStateTransition)
	}

	candidate, err := s.Users.GetUser(ctx, task.CompanyID, workerID)
	if err != nil {
		if !store.IsNotFoundError(err) {
			return err
		}
		candidate = nil
	}
	if candidate == nil {
		return e.assigner.CheckManual(task, nil, 0)
	}

	if err := s.Tasks.LockWorkers(ctx, []uuid.UUID{workerID}); err != nil {
		return err
	}
	counts, err := s.Tasks.CountActiveByWorkers(ctx, task.CompanyID, []uuid.UUID{workerID})
	if err != nil {
		return err
	}
	if err := e.assigner.CheckManual(task, candidate, counts[workerID]); err != nil {
		return err
	}

	return e.attachTx(ctx, s, box, task, actor, actor, workerID, domain.AssignmentKindManual, now)
}

// assignAutomaticTx selects the least-loaded eligible worker and attaches
// them. Only OutcomeAssigned changes the task.
func (e *engine) assignAutomaticTx(
	ctx context.Context,
	s store.Stores,
	box *outbox,
	task *domain.Task,
	actor domain.Actor,
	now time.Time,
) (domain.AssignmentOutcome, error) {
	if !domain.CanApply(task.State, domain.EventAssign) {
		return "", domain.NewTaskError(task, "assign", domain.EventAssign, domain.ErrIllegalStateTransition)
	}
	if !task.HasAutoAssignSignal() {
		return domain.OutcomeInsufficientSignal, nil
	}

	pool, err := s.Users.ListActiveWorkers(ctx, task.CompanyID, task.Department)
	if err != nil {
		return "", err
	}
	eligible := e.assigner.Eligible(task, pool)
	if len(eligible) == 0 {
		return domain.OutcomeNoEligibleWorker, nil
	}

	ids := make([]uuid.UUID, len(eligible))
	for i, w := range eligible {
		ids[i] = w.ID
	}
	if err := s.Tasks.LockWorkers(ctx, ids); err != nil {
		return "", err
	}
	counts, err := s.Tasks.CountActiveByWorkers(ctx, task.CompanyID, ids)
	if err != nil {
		return "", err
	}
	candidates := make([]assignment.Candidate, len(ids))
	for i, id := range ids {
		candidates[i] = assignment.Candidate{WorkerID: id, ActiveTasks: counts[id]}
	}

	workerID, outcome := e.assigner.Select(task, candidates)
	if outcome != domain.OutcomeAssigned {
		return outcome, nil
	}
	system := domain.System(task.CompanyID)
	if err := e.attachTx(ctx, s, box, task, system, actor, workerID, domain.AssignmentKindAutomatic, now); err != nil {
		return "", err
	}
	return domain.OutcomeAssigned, nil
}

// attachTx assigns workerID, saves the task and records the ledger entry.
// recordedBy is written to the ledger; notifiedBy appears on the event.
func (e *engine) attachTx(
	ctx context.Context,
	s store.Stores,
	box *outbox,
	task *domain.Task,
	recordedBy domain.Actor,
	notifiedBy domain.Actor,
	workerID uuid.UUID,
	kind domain.AssignmentKind,
	now time.Time,
) error {
	if err := task.Assign(workerID, now); err != nil {
		return err
	}
	if err := s.Tasks.Update(ctx, task); err != nil {
		return err
	}
	entry := domain.NewHistoryEntry(task.ID, kind, &workerID, recordedBy, "", now)
	if err := s.History.Append(ctx, entry); err != nil {
		return err
	}
	box.add(events.TypeTaskAssigned, task, notifiedBy, &workerID, string(kind))
	return nil
}

// detachTx returns the task to Pending and records the Reassignment entry.
func (e *engine) detachTx(
	ctx context.Context,
	s store.Stores,
	box *outbox,
	task *domain.Task,
	actor domain.Actor,
	motive string,
	now time.Time,
) error {
	previous, err := task.Detach(now)
	if err != nil {
		return err
	}
	if err := s.Tasks.Update(ctx, task); err != nil {
		return err
	}
	entry := domain.NewHistoryEntry(task.ID, domain.AssignmentKindReassignment, nil, actor, motive, now)
	if err := s.History.Append(ctx, entry); err != nil {
		return err
	}
	if previous != nil {
		box.add(events.TypeTaskUnassigned, task, actor, previous, motive)
	}
	return nil
}
