package taskengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/domain/assignment"
	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// Motives recorded on ledger entries the engine writes on its own.
const (
	MotiveForcedReassignment = "forced automatic reassignment"
	MotiveWorkerDeactivated  = "worker deactivated"
	MotiveDelegationAccepted = "delegation accepted"
)

// Common engine errors
var (
	// ErrNilTransactor is returned when the engine is built without storage.
	ErrNilTransactor = errors.New("transactor cannot be nil")
	// ErrNilAssigner is returned when the engine is built without an assignment service.
	ErrNilAssigner = errors.New("assignment service cannot be nil")
)

// CreateTaskInput holds the attributes of a new task and how to assign it.
// An explicit AssigneeID takes precedence over AutoAssign.
type CreateTaskInput struct {
	Details    domain.TaskDetails
	AssigneeID *uuid.UUID
	AutoAssign bool
}

// ListFilter narrows ListTasks. Zero values do not filter.
type ListFilter struct {
	State                 domain.TaskState
	Priority              domain.Priority
	Department            string
	AssigneeID            *uuid.UUID
	DelegatedToID         *uuid.UUID
	PendingDelegationOnly bool
	Limit                 int
	Offset                int
}

// ReassignInput describes where a task goes after it is detached. An explicit
// WorkerID takes precedence over AutoAssign; with neither the task stays
// Pending.
type ReassignInput struct {
	WorkerID   *uuid.UUID
	AutoAssign bool
	Motive     string
}

// FinalizeInput carries the completion evidence.
type FinalizeInput struct {
	EvidenceText     string
	EvidenceImageURL string
}

// DelegateInput names the destination manager of a delegation.
type DelegateInput struct {
	DestinationManagerID uuid.UUID
	Comment              string
}

// Engine defines the task lifecycle and assignment operations. Every
// operation is scoped to the actor's company.
type Engine interface {
	// CreateTask creates a Pending task and optionally assigns it. A failed
	// explicit assignment fails the whole creation.
	CreateTask(ctx context.Context, actor domain.Actor, in CreateTaskInput) (*domain.AssignmentResult, error)

	// ListTasks returns tasks visible to the actor. Workers only see tasks
	// assigned to or finalized by them.
	ListTasks(ctx context.Context, actor domain.Actor, filter ListFilter) ([]*domain.Task, error)

	// GetTask returns a task. Workers get ErrForbidden for tasks that are not theirs.
	GetTask(ctx context.Context, actor domain.Actor, taskID uuid.UUID) (*domain.Task, error)

	// UpdateTask replaces the editable attributes of a non-terminal task.
	UpdateTask(ctx context.Context, actor domain.Actor, taskID uuid.UUID, details domain.TaskDetails) (*domain.Task, error)

	// DeactivateTask hides a task without an active assignee from all reads.
	DeactivateTask(ctx context.Context, actor domain.Actor, taskID uuid.UUID) error

	// AssignManual assigns a Pending task to workerID.
	AssignManual(ctx context.Context, actor domain.Actor, taskID, workerID uuid.UUID) (*domain.Task, error)

	// AssignAutomatic runs least-loaded selection for a Pending task. Without
	// force an assigned task is left untouched (OutcomeAlreadyAssigned); with
	// force it is detached first.
	AssignAutomatic(ctx context.Context, actor domain.Actor, taskID uuid.UUID, force bool) (*domain.AssignmentResult, error)

	// Accept moves the actor's Assigned task to Accepted.
	Accept(ctx context.Context, actor domain.Actor, taskID uuid.UUID) (*domain.Task, error)

	// Finalize completes the actor's Accepted task with evidence.
	Finalize(ctx context.Context, actor domain.Actor, taskID uuid.UUID, in FinalizeInput) (*domain.Task, error)

	// Cancel terminates a Pending or Assigned task.
	Cancel(ctx context.Context, actor domain.Actor, taskID uuid.UUID, reason string) (*domain.Task, error)

	// Reassign detaches the current assignee, resets the task to Pending and
	// then assigns it manually, automatically or not at all.
	Reassign(ctx context.Context, actor domain.Actor, taskID uuid.UUID, in ReassignInput) (*domain.AssignmentResult, error)

	// Delegate hands management of a task to another manager.
	Delegate(ctx context.Context, actor domain.Actor, taskID uuid.UUID, in DelegateInput) (*domain.Task, error)

	// AcceptDelegation is called by the destination manager to take over.
	AcceptDelegation(ctx context.Context, actor domain.Actor, taskID uuid.UUID) (*domain.Task, error)

	// RejectDelegation is called by the destination manager to decline;
	// management reverts to the origin manager.
	RejectDelegation(ctx context.Context, actor domain.Actor, taskID uuid.UUID, reason string) (*domain.Task, error)

	// GetAssignmentHistory returns the task's ledger in chronological order.
	GetAssignmentHistory(ctx context.Context, actor domain.Actor, taskID uuid.UUID) ([]*domain.AssignmentHistoryEntry, error)

	// ReleaseWorkerTasks returns every Assigned or Accepted task of a worker
	// to Pending. It is called when the directory deactivates the worker.
	ReleaseWorkerTasks(ctx context.Context, actor domain.Actor, workerID uuid.UUID) ([]*domain.Task, error)
}

// Config tunes the engine.
type Config struct {
	// OperationTimeout bounds every operation. Zero means only the caller's
	// deadline applies.
	OperationTimeout time.Duration

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// engine implements the Engine interface
type engine struct {
	tx       store.Transactor
	assigner assignment.Service
	emitter  events.EventEmitter
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

var _ Engine = (*engine)(nil)

// NewEngine creates a new task engine.
// A nil emitter discards events; a nil logger uses slog.Default().
func NewEngine(
	tx store.Transactor,
	assigner assignment.Service,
	emitter events.EventEmitter,
	cfg Config,
	log *slog.Logger,
) (Engine, error) {
	if tx == nil {
		return nil, ErrNilTransactor
	}
	if assigner == nil {
		return nil, ErrNilAssigner
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &engine{
		tx:       tx,
		assigner: assigner,
		emitter:  emitter,
		timeout:  cfg.OperationTimeout,
		now:      func() time.Time { return now().UTC() },
		logger:   log.With(slog.String("component", "task_engine")),
	}, nil
}

// outbox collects events produced inside a transaction. They are only
// emitted once it commits.
type outbox struct {
	events []*events.TaskEvent
}

func (o *outbox) add(eventType string, task *domain.Task, actor domain.Actor, recipient *uuid.UUID, motive string) {
	o.events = append(o.events, events.NewTaskEvent(eventType, task, actor, recipient, motive))
}

func (e *engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

// mutate runs fn in one transaction bounded by the operation timeout, maps
// failures onto the domain taxonomy and emits the collected events after
// commit.
func (e *engine) mutate(
	ctx context.Context,
	op string,
	fn func(ctx context.Context, s store.Stores, box *outbox) error,
) error {
	log := logger.FromContextOrDefault(ctx, e.logger)

	opCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	var box *outbox
	err := e.tx.WithinTx(opCtx, func(txCtx context.Context, s store.Stores) error {
		box = &outbox{}
		return fn(txCtx, s, box)
	})
	if err != nil {
		mapped := normalizeError(op, err)
		if errors.Is(mapped, domain.ErrPersistenceFailure) {
			log.Error("task operation failed in storage",
				slog.String("operation", op),
				slog.String("error", err.Error()))
		} else {
			log.Debug("task operation rejected",
				slog.String("operation", op),
				slog.String("error", err.Error()))
		}
		return mapped
	}

	e.emit(context.WithoutCancel(ctx), box)
	return nil
}

// emit forwards committed events. Delivery failures never fail the operation.
func (e *engine) emit(ctx context.Context, box *outbox) {
	if box == nil {
		return
	}
	log := logger.FromContextOrDefault(ctx, e.logger)
	for _, ev := range box.events {
		if err := e.emitter.EmitEvent(ctx, ev); err != nil {
			log.Warn("failed to emit task event",
				slog.String("event_type", ev.Type),
				slog.String("task_id", ev.TaskID.String()),
				slog.String("error", err.Error()))
		}
	}
}

// read runs fn against non-transactional stores under the operation timeout.
func (e *engine) read(ctx context.Context, op string, fn func(ctx context.Context, s store.Stores) error) error {
	opCtx, cancel := e.withTimeout(ctx)
	defer cancel()
	if err := fn(opCtx, e.tx.Stores()); err != nil {
		mapped := normalizeError(op, err)
		if errors.Is(mapped, domain.ErrPersistenceFailure) {
			logger.FromContextOrDefault(ctx, e.logger).Error("task read failed in storage",
				slog.String("operation", op),
				slog.String("error", err.Error()))
		}
		return mapped
	}
	return nil
}

// checkActor rejects actors without a company or a known role.
func checkActor(actor domain.Actor) error {
	if actor.CompanyID == uuid.Nil || !actor.Role.Valid() {
		return domain.ErrForbidden
	}
	return nil
}

// requireManagerial rejects workers.
func requireManagerial(actor domain.Actor) error {
	if err := checkActor(actor); err != nil {
		return err
	}
	if !actor.IsManagerial() {
		return domain.ErrForbidden
	}
	return nil
}

// loadManaged fetches and locks a task the actor holds management rights over.
func loadManaged(ctx context.Context, s store.Stores, actor domain.Actor, taskID uuid.UUID, op string) (*domain.Task, error) {
	task, err := s.Tasks.GetForUpdate(ctx, actor.CompanyID, taskID)
	if err != nil {
		return nil, err
	}
	if !task.CanBeManagedBy(actor) {
		return nil, domain.NewTaskError(task, op, "", domain.ErrForbidden)
	}
	return task, nil
}

// loadOwn fetches and locks a task for a worker operation. Workers may not
// learn anything about tasks that are not theirs.
func loadOwn(ctx context.Context, s store.Stores, actor domain.Actor, taskID uuid.UUID, op string) (*domain.Task, error) {
	task, err := s.Tasks.GetForUpdate(ctx, actor.CompanyID, taskID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleWorker && !task.VisibleTo(actor.UserID) {
		return nil, &domain.TaskError{TaskID: task.ID, Op: op, Err: domain.ErrForbidden}
	}
	return task, nil
}

// managerRecipient is who hears about worker progress on a task.
func managerRecipient(task *domain.Task) *uuid.UUID {
	id := task.CreatedByUserID
	if task.Delegation != nil {
		id = task.Delegation.ManagerOfRecord()
	}
	return &id
}

// asValidation tags plain entity validation errors with domain.ErrValidation.
func asValidation(err error) error {
	if err == nil || isTaxonomyError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrValidation, err)
}

func (e *engine) logTransition(ctx context.Context, msg string, task *domain.Task, from domain.TaskState, attrs ...slog.Attr) {
	base := []slog.Attr{
		slog.String("task_id", task.ID.String()),
		slog.String("company_id", task.CompanyID.String()),
		slog.String("from_state", string(from)),
		slog.String("to_state", string(task.State)),
	}
	if task.AssignedWorkerID != nil {
		base = append(base, slog.String("worker_id", task.AssignedWorkerID.String()))
	}
	logger.FromContextOrDefault(ctx, e.logger).LogAttrs(ctx, slog.LevelInfo, msg, append(base, attrs...)...)
}
