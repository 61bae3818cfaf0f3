package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// PostgresHistoryStore implements the store.HistoryStore interface
// on the append-only task_assignment_history table.
type PostgresHistoryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresHistoryStore creates a new PostgresHistoryStore.
// If logger is nil, a default logger will be used.
func NewPostgresHistoryStore(db store.DBTX, logger *slog.Logger) *PostgresHistoryStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresHistoryStore{
		db:     db,
		logger: logger.With(slog.String("component", "history_store")),
	}
}

var _ store.HistoryStore = (*PostgresHistoryStore)(nil)

// WithTx returns a new PostgresHistoryStore bound to tx.
func (s *PostgresHistoryStore) WithTx(tx *sql.Tx) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: tx, logger: s.logger}
}

// Append implements store.HistoryStore.Append
func (s *PostgresHistoryStore) Append(ctx context.Context, entry *domain.AssignmentHistoryEntry) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !entry.Kind.Valid() {
		return fmt.Errorf("%w: unknown history kind %q", store.ErrInvalidEntity, entry.Kind)
	}

	query := `
		INSERT INTO task_assignment_history
			(id, task_id, assigned_to_user_id, assigned_by_user_id, kind, motive, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.TaskID,
		nullUUID(entry.AssignedToUserID),
		nullUUID(entry.AssignedByUserID),
		string(entry.Kind),
		entry.Motive,
		entry.CreatedAt,
	)
	if err != nil {
		log.Error("failed to append history entry",
			slog.String("error", err.Error()),
			slog.String("task_id", entry.TaskID.String()),
			slog.String("kind", string(entry.Kind)))
		return MapError(err)
	}

	return nil
}

// ListByTask implements store.HistoryStore.ListByTask
func (s *PostgresHistoryStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.AssignmentHistoryEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_id, assigned_to_user_id, assigned_by_user_id, kind, motive, created_at
		FROM task_assignment_history
		WHERE task_id = $1
		ORDER BY created_at, seq
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to list history",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*domain.AssignmentHistoryEntry, 0)
	for rows.Next() {
		var (
			entry  domain.AssignmentHistoryEntry
			to, by uuid.NullUUID
			kind   string
		)
		if err := rows.Scan(&entry.ID, &entry.TaskID, &to, &by, &kind, &entry.Motive, &entry.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		entry.AssignedToUserID = uuidPtr(to)
		entry.AssignedByUserID = uuidPtr(by)
		entry.Kind = domain.AssignmentKind(kind)
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return entries, nil
}
