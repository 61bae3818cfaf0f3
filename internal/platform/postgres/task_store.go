package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx returns a new PostgresTaskStore bound to tx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) *PostgresTaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

// Create implements store.TaskStore.Create. The task row and its capability
// rows are written with separate statements, so callers run it inside a
// transaction.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	args := []any{
		task.ID, task.CompanyID, task.Title, task.Description, string(task.Priority),
		nullTime(task.DueDate), task.Department, string(task.State), nullUUID(task.AssignedWorkerID),
		task.CreatedByUserID, task.EvidenceText, task.EvidenceImageURL, task.CancellationReason,
		nullTime(task.AssignedAt), nullTime(task.AcceptedAt), nullTime(task.FinalizedAt),
		nullUUID(task.FinalizedByUserID), nullTime(task.CancelledAt),
	}
	args = append(args, delegationColumns(task.Delegation)...)
	args = append(args, task.IsActive, task.Version, task.CreatedAt, task.UpdatedAt)

	query := `
		INSERT INTO tasks (
			id, company_id, title, description, priority, due_date, department,
			state, assigned_worker_id, created_by_user_id,
			evidence_text, evidence_image_url, cancellation_reason,
			assigned_at, accepted_at, finalized_at, finalized_by_user_id, cancelled_at,
			delegation_status, delegated_by_user_id, delegated_to_user_id, delegated_at,
			delegation_comment, delegation_rejection_reason, delegation_resolved_at,
			is_active, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29
		)
	`
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	if err := s.insertCapabilities(ctx, task.ID, task.RequiredCapabilities); err != nil {
		log.Error("failed to store task capabilities",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	log.Debug("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("company_id", task.CompanyID.String()))
	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, companyID, id uuid.UUID) (*domain.Task, error) {
	return s.get(ctx, companyID, id, false)
}

// GetForUpdate implements store.TaskStore.GetForUpdate using SELECT ... FOR UPDATE.
func (s *PostgresTaskStore) GetForUpdate(ctx context.Context, companyID, id uuid.UUID) (*domain.Task, error) {
	return s.get(ctx, companyID, id, true)
}

func (s *PostgresTaskStore) get(ctx context.Context, companyID, id uuid.UUID, forUpdate bool) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + `
		FROM tasks t
		WHERE t.id = $1 AND t.company_id = $2 AND t.is_active`
	if forUpdate {
		query += ` FOR UPDATE OF t`
	}

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}
	return task, nil
}

// Update implements store.TaskStore.Update with an optimistic version check.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during update",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	args := []any{
		task.Title, task.Description, string(task.Priority), nullTime(task.DueDate), task.Department,
		string(task.State), nullUUID(task.AssignedWorkerID),
		task.EvidenceText, task.EvidenceImageURL, task.CancellationReason,
		nullTime(task.AssignedAt), nullTime(task.AcceptedAt), nullTime(task.FinalizedAt),
		nullUUID(task.FinalizedByUserID), nullTime(task.CancelledAt),
	}
	args = append(args, delegationColumns(task.Delegation)...)
	args = append(args, task.IsActive, task.UpdatedAt, task.ID, task.CompanyID, task.Version)

	query := `
		UPDATE tasks SET
			title = $1, description = $2, priority = $3, due_date = $4, department = $5,
			state = $6, assigned_worker_id = $7,
			evidence_text = $8, evidence_image_url = $9, cancellation_reason = $10,
			assigned_at = $11, accepted_at = $12, finalized_at = $13,
			finalized_by_user_id = $14, cancelled_at = $15,
			delegation_status = $16, delegated_by_user_id = $17, delegated_to_user_id = $18,
			delegated_at = $19, delegation_comment = $20, delegation_rejection_reason = $21,
			delegation_resolved_at = $22,
			is_active = $23, updated_at = $24, version = version + 1
		WHERE id = $25 AND company_id = $26 AND version = $27
	`
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	conflict := fmt.Errorf("%w: task %s changed since version %d",
		store.ErrConcurrentModification, task.ID, task.Version)
	if err := CheckRowsAffected(result, conflict); err != nil {
		log.Warn("optimistic version check failed",
			slog.String("task_id", task.ID.String()),
			slog.Int("version", task.Version))
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM task_capabilities WHERE task_id = $1`, task.ID); err != nil {
		return MapError(err)
	}
	if err := s.insertCapabilities(ctx, task.ID, task.RequiredCapabilities); err != nil {
		return err
	}

	task.Version++
	return nil
}

func (s *PostgresTaskStore) insertCapabilities(ctx context.Context, taskID uuid.UUID, names []string) error {
	if len(names) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(names))
	args := make([]any, 0, len(names)+1)
	args = append(args, taskID)
	for i, name := range names {
		placeholders = append(placeholders, fmt.Sprintf("($1, $%d)", i+2))
		args = append(args, name)
	}

	query := `INSERT INTO task_capabilities (task_id, name) VALUES ` + strings.Join(placeholders, ", ")
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return MapError(err)
	}
	return nil
}

// List implements store.TaskStore.List
func (s *PostgresTaskStore) List(ctx context.Context, companyID uuid.UUID, filter store.TaskFilter) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	conds := []string{"t.company_id = $1", "t.is_active"}
	args := []any{companyID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.State != "" {
		add("t.state = $%d", string(filter.State))
	}
	if filter.Priority != "" {
		add("t.priority = $%d", string(filter.Priority))
	}
	if filter.Department != "" {
		add("t.department = $%d", filter.Department)
	}
	if filter.AssigneeID != nil {
		add("t.assigned_worker_id = $%d", *filter.AssigneeID)
	}
	if filter.VisibleToWorkerID != nil {
		args = append(args, *filter.VisibleToWorkerID)
		n := len(args)
		conds = append(conds, fmt.Sprintf("(t.assigned_worker_id = $%d OR t.finalized_by_user_id = $%d)", n, n))
	}
	if filter.DelegatedToID != nil {
		add("t.delegated_to_user_id = $%d", *filter.DelegatedToID)
	}
	if filter.PendingDelegationOnly {
		conds = append(conds, "t.delegation_status = 'pending'")
	}

	query := `SELECT ` + taskColumns + `
		FROM tasks t
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY t.created_at DESC, t.id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks",
			slog.String("error", err.Error()),
			slog.String("company_id", companyID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return tasks, nil
}

// CountActiveByWorkers implements store.TaskStore.CountActiveByWorkers
func (s *PostgresTaskStore) CountActiveByWorkers(
	ctx context.Context,
	companyID uuid.UUID,
	workerIDs []uuid.UUID,
) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(workerIDs))
	if len(workerIDs) == 0 {
		return counts, nil
	}

	ids := make([]string, 0, len(workerIDs))
	for _, id := range workerIDs {
		counts[id] = 0
		ids = append(ids, id.String())
	}

	query := `
		SELECT assigned_worker_id, COUNT(*)
		FROM tasks
		WHERE company_id = $1
			AND assigned_worker_id = ANY($2::uuid[])
			AND state IN ('assigned', 'accepted')
		GROUP BY assigned_worker_id
	`
	rows, err := s.db.QueryContext(ctx, query, companyID, ids)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id    uuid.UUID
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, MapError(err)
		}
		counts[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return counts, nil
}

// LockWorkers implements store.TaskStore.LockWorkers with transaction-scoped
// advisory locks taken in ascending ID order.
func (s *PostgresTaskStore) LockWorkers(ctx context.Context, workerIDs []uuid.UUID) error {
	ids := make([]string, 0, len(workerIDs))
	for _, id := range workerIDs {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)

	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, id); err != nil {
			return MapError(err)
		}
	}
	return nil
}
