package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "tasks",
		ColumnName:     "title",
		ConstraintName: "tasks_assignee_state_check",
	}
}

// MockResult implements sql.Result for testing
type MockResult struct {
	rowsAffected int64
	err          error
}

func (m MockResult) LastInsertId() (int64, error) {
	return 0, m.err
}

func (m MockResult) RowsAffected() (int64, error) {
	return m.rowsAffected, m.err
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique", newPgError("23505"), store.ErrDuplicate},
		{"foreign key", newPgError("23503"), store.ErrInvalidEntity},
		{"check", newPgError("23514"), store.ErrInvalidEntity},
		{"not null", newPgError("23502"), store.ErrInvalidEntity},
		{"serialization", newPgError("40001"), store.ErrConcurrentModification},
		{"deadlock", newPgError("40P01"), store.ErrConcurrentModification},
		{"lock timeout", fmt.Errorf("wrapped: %w", newPgError("55P03")), store.ErrConcurrentModification},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, postgres.MapError(tt.err), tt.wantErr)
		})
	}

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, postgres.MapError(nil))
	})

	t.Run("unmapped passes through", func(t *testing.T) {
		original := errors.New("connection reset")
		assert.Equal(t, original, postgres.MapError(original))

		pgErr := newPgError("42P01")
		assert.Equal(t, error(pgErr), postgres.MapError(pgErr))
	})
}

func TestErrorPredicates(t *testing.T) {
	t.Parallel()

	for _, code := range []string{"40001", "40P01", "55P03"} {
		assert.True(t, postgres.IsConcurrencyConflict(newPgError(code)), code)
	}
	assert.False(t, postgres.IsConcurrencyConflict(errors.New("generic error")))
	assert.False(t, postgres.IsConcurrencyConflict(nil))
	assert.False(t, postgres.IsConcurrencyConflict(newPgError("23505")))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.NoError(t, postgres.CheckRowsAffected(MockResult{rowsAffected: 1}, nil))
	assert.ErrorIs(t, postgres.CheckRowsAffected(MockResult{}, nil), store.ErrNotFound)
	assert.ErrorIs(t, postgres.CheckRowsAffected(MockResult{}, store.ErrTaskNotFound), store.ErrTaskNotFound)
	assert.Error(t, postgres.CheckRowsAffected(nil, nil))

	resultErr := errors.New("driver failure")
	err := postgres.CheckRowsAffected(MockResult{err: resultErr}, nil)
	assert.ErrorIs(t, err, resultErr)
}
