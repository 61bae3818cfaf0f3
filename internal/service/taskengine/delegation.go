package taskengine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// Delegate implements Engine.Delegate.
func (e *engine) Delegate(ctx context.Context, actor domain.Actor, taskID uuid.UUID, in DelegateInput) (*domain.Task, error) {
	if err := requireManagerial(actor); err != nil {
		return nil, err
	}

	var task *domain.Task
	err := e.mutate(ctx, "delegate", func(ctx context.Context, s store.Stores, box *outbox) error {
		var err error
		task, err = loadManaged(ctx, s, actor, taskID, "delegate")
		if err != nil {
			return err
		}
		if !domain.CanApply(task.State, domain.EventDelegate) {
			return domain.NewTaskError(task, "delegate", domain.EventDelegate, domain.ErrIllegalStateTransition)
		}
		if task.Delegation.IsPending() {
			return domain.NewTaskError(task, "delegate", "", domain.ErrDelegationAlreadyPending)
		}
		if err := checkDelegationTarget(ctx, s, task, actor, in.DestinationManagerID); err != nil {
			return err
		}

		now := e.now()
		if err := task.Delegate(actor.UserID, in.DestinationManagerID, in.Comment, now); err != nil {
			return err
		}
		if err := s.Tasks.Update(ctx, task); err != nil {
			return err
		}
		dest := in.DestinationManagerID
		entry := domain.NewHistoryEntry(task.ID, domain.AssignmentKindDelegation, &dest, actor,
			task.Delegation.Comment, now)
		if err := s.History.Append(ctx, entry); err != nil {
			return err
		}
		box.add(events.TypeTaskDelegated, task, actor, &dest, task.Delegation.Comment)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logTransition(ctx, "task delegated", task, task.State,
		slog.String("destination_manager_id", in.DestinationManagerID.String()))
	return task, nil
}

// checkDelegationTarget requires an active manager of the task's company
// other than the delegating one.
func checkDelegationTarget(ctx context.Context, s store.Stores, task *domain.Task, actor domain.Actor, destID uuid.UUID) error {
	if destID == uuid.Nil || destID == actor.UserID {
		return domain.NewTaskError(task, "delegate", "", domain.ErrInvalidDelegationTarget)
	}
	dest, err := s.Users.GetUser(ctx, task.CompanyID, destID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return domain.NewTaskError(task, "delegate", "", domain.ErrInvalidDelegationTarget)
		}
		return err
	}
	if dest.CompanyID != task.CompanyID || !dest.IsActiveManager() {
		return domain.NewTaskError(task, "delegate", "", domain.ErrInvalidDelegationTarget)
	}
	return nil
}

// AcceptDelegation implements Engine.AcceptDelegation.
func (e *engine) AcceptDelegation(ctx context.Context, actor domain.Actor, taskID uuid.UUID) (*domain.Task, error) {
	return e.resolveDelegation(ctx, actor, taskID, true, "")
}

// RejectDelegation implements Engine.RejectDelegation.
func (e *engine) RejectDelegation(ctx context.Context, actor domain.Actor, taskID uuid.UUID, reason string) (*domain.Task, error) {
	return e.resolveDelegation(ctx, actor, taskID, false, reason)
}

func (e *engine) resolveDelegation(
	ctx context.Context,
	actor domain.Actor,
	taskID uuid.UUID,
	accept bool,
	reason string,
) (*domain.Task, error) {
	if err := requireManagerial(actor); err != nil {
		return nil, err
	}
	op := "reject_delegation"
	if accept {
		op = "accept_delegation"
	}
	minReason := e.assigner.Params().MinRejectionReasonLength

	var task *domain.Task
	err := e.mutate(ctx, op, func(ctx context.Context, s store.Stores, box *outbox) error {
		var err error
		// Only the destination may answer, so management rights are not
		// required here.
		task, err = s.Tasks.GetForUpdate(ctx, actor.CompanyID, taskID)
		if err != nil {
			return err
		}

		now := e.now()
		if err := task.ResolveDelegation(actor.UserID, accept, reason, minReason, now); err != nil {
			return err
		}
		if err := s.Tasks.Update(ctx, task); err != nil {
			return err
		}

		d := task.Delegation
		to := d.ManagerOfRecord()
		motive, eventType := MotiveDelegationAccepted, events.TypeTaskDelegationAccepted
		if !accept {
			motive, eventType = d.RejectionReason, events.TypeTaskDelegationRejected
		}
		entry := domain.NewHistoryEntry(task.ID, domain.AssignmentKindDelegation, &to, actor, motive, now)
		if err := s.History.Append(ctx, entry); err != nil {
			return err
		}
		origin := d.OriginManagerID
		box.add(eventType, task, actor, &origin, motive)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logTransition(ctx, "delegation resolved", task, task.State,
		slog.Bool("accepted", accept))
	return task, nil
}
