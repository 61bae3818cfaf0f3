package memory

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
	"golang.org/x/sync/semaphore"
)

type state struct {
	tasks   map[uuid.UUID]*domain.Task
	history []*domain.AssignmentHistoryEntry
	users   map[uuid.UUID]*domain.User
}

func newState() *state {
	return &state{
		tasks: make(map[uuid.UUID]*domain.Task),
		users: make(map[uuid.UUID]*domain.User),
	}
}

func (s *state) clone() *state {
	c := &state{
		tasks:   make(map[uuid.UUID]*domain.Task, len(s.tasks)),
		history: append([]*domain.AssignmentHistoryEntry(nil), s.history...),
		users:   make(map[uuid.UUID]*domain.User, len(s.users)),
	}
	for id, t := range s.tasks {
		c.tasks[id] = t.Clone()
	}
	for id, u := range s.users {
		c.users[id] = cloneUser(u)
	}
	return c
}

// DB is an in-memory database shared by the stores it hands out.
// It implements store.Transactor. A single-slot semaphore serializes access
// so that waiting for it honors the caller's context.
type DB struct {
	sem    *semaphore.Weighted
	data   *state
	faults map[string]error
	logger *slog.Logger
}

// New creates an empty DB. If logger is nil, a default logger will be used.
func New(logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{
		sem:    semaphore.NewWeighted(1),
		data:   newState(),
		faults: make(map[string]error),
		logger: logger.With(slog.String("component", "memory_store")),
	}
}

var _ store.Transactor = (*DB)(nil)

// FailOn makes every subsequent call of the named store operation (for
// example "tasks.update" or "history.append") return err. A nil err clears
// the fault.
func (db *DB) FailOn(op string, err error) {
	db.mustLock()
	defer db.unlock()
	if err == nil {
		delete(db.faults, op)
		return
	}
	db.faults[op] = err
}

func (db *DB) lock(ctx context.Context) error {
	return db.sem.Acquire(ctx, 1)
}

func (db *DB) unlock() {
	db.sem.Release(1)
}

// mustLock is used by setup helpers that take no context.
func (db *DB) mustLock() {
	_ = db.lock(context.Background())
}

// WithinTx implements store.Transactor.WithinTx. Transactions run one at a
// time and give up waiting for their turn when ctx ends. On error, panic or
// context expiry every change made by fn is discarded.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, s store.Stores) error) (err error) {
	log := logger.FromContextOrDefault(ctx, db.logger)

	if err := db.lock(ctx); err != nil {
		log.Debug("gave up waiting for transaction", slog.String("error", err.Error()))
		return err
	}
	defer db.unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := db.data.clone()
	defer func() {
		if p := recover(); p != nil {
			db.data = snapshot
			log.Error("rolled back transaction after panic", slog.Any("panic", p))
			// ALLOW-PANIC: Propagating caught panic from transaction
			panic(p)
		}
	}()

	if err = fn(ctx, db.stores(true)); err == nil {
		err = ctx.Err()
	}
	if err != nil {
		db.data = snapshot
		log.Debug("rolled back transaction due to error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Stores implements store.Transactor.Stores.
func (db *DB) Stores() store.Stores {
	return db.stores(false)
}

func (db *DB) stores(inTx bool) store.Stores {
	return store.Stores{
		Tasks:   &TaskStore{db: db, inTx: inTx},
		History: &HistoryStore{db: db, inTx: inTx},
		Users:   &UserDirectory{db: db, inTx: inTx},
	}
}

// run executes fn against the current state, taking the lock unless the
// caller already holds it through WithinTx.
func (db *DB) run(ctx context.Context, inTx bool, op string, fn func(s *state) error) error {
	if !inTx {
		if err := db.lock(ctx); err != nil {
			return err
		}
		defer db.unlock()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := db.faults[op]; ok {
		return err
	}
	return fn(db.data)
}

// SaveUser inserts or replaces a directory user.
func (db *DB) SaveUser(u *domain.User) {
	db.mustLock()
	defer db.unlock()
	db.data.users[u.ID] = cloneUser(u)
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Capabilities = append([]domain.Capability(nil), u.Capabilities...)
	return &c
}
