package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/taskflow-api/internal/store"
)

// Transactor implements store.Transactor on a *sql.DB.
type Transactor struct {
	db      *sql.DB
	tasks   *PostgresTaskStore
	history *PostgresHistoryStore
	users   *PostgresUserDirectory
}

// NewTransactor creates a Transactor whose stores share logger.
func NewTransactor(db *sql.DB, logger *slog.Logger) *Transactor {
	if db == nil {
		panic("db cannot be nil")
	}

	return &Transactor{
		db:      db,
		tasks:   NewPostgresTaskStore(db, logger),
		history: NewPostgresHistoryStore(db, logger),
		users:   NewPostgresUserDirectory(db, logger),
	}
}

var _ store.Transactor = (*Transactor)(nil)

// WithinTx implements store.Transactor.WithinTx using store.RunInTransaction.
// Row locks and advisory locks taken by the stores last until fn returns.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, s store.Stores) error) error {
	return store.RunInTransaction(ctx, t.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, store.Stores{
			Tasks:   t.tasks.WithTx(tx),
			History: t.history.WithTx(tx),
			Users:   t.users.WithTx(tx),
		})
	})
}

// Stores implements store.Transactor.Stores.
func (t *Transactor) Stores() store.Stores {
	return store.Stores{
		Tasks:   t.tasks,
		History: t.history,
		Users:   t.users,
	}
}

// Directory returns the user directory bound to the pool.
func (t *Transactor) Directory() *PostgresUserDirectory {
	return t.users
}
