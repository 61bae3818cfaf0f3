//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/domain/assignment"
	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
	"github.com/phrazzld/taskflow-api/internal/service/taskengine"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/phrazzld/taskflow-api/internal/testdb"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pgFixture struct {
	tx      *postgres.Transactor
	engine  taskengine.Engine
	company uuid.UUID
	manager domain.Actor
}

func newPGFixture(t *testing.T, maxActive int) *pgFixture {
	t.Helper()
	db := testdb.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &pgFixture{tx: postgres.NewTransactor(db, logger), company: uuid.New()}
	f.manager = f.addUser(t, domain.RoleManager, "Ops")

	params := assignment.NewParams(assignment.ParamsConfig{MaxActiveTasks: maxActive, MinRejectionReasonLength: 10})
	eng, err := taskengine.NewEngine(f.tx, assignment.NewServiceWithParams(params), nil, taskengine.Config{}, logger)
	require.NoError(t, err)
	f.engine = eng
	return f
}

func (f *pgFixture) addUser(t *testing.T, role domain.Role, department string, caps ...string) domain.Actor {
	t.Helper()
	u := &domain.User{
		ID:         uuid.New(),
		CompanyID:  f.company,
		Name:       string(role),
		Role:       role,
		Department: department,
		IsActive:   true,
	}
	for _, c := range caps {
		u.Capabilities = append(u.Capabilities, domain.Capability{Name: c, Level: 2})
	}
	require.NoError(t, f.tx.Directory().Save(context.Background(), u))
	return domain.Actor{UserID: u.ID, CompanyID: f.company, Role: role}
}

func TestTaskRoundTrip(t *testing.T) {
	f := newPGFixture(t, 5)
	ctx := context.Background()
	worker := f.addUser(t, domain.RoleWorker, "Ops", "plumbing")

	res, err := f.engine.CreateTask(ctx, f.manager, taskengine.CreateTaskInput{
		Details: domain.TaskDetails{
			Title:                "Fix leak",
			Department:           "Ops",
			Priority:             domain.PriorityHigh,
			RequiredCapabilities: []string{" Plumbing "},
		},
		AutoAssign: true,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAssigned, res.Outcome)

	got, err := f.tx.Stores().Tasks.GetByID(ctx, f.company, res.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateAssigned, got.State)
	assert.Equal(t, []string{"plumbing"}, got.RequiredCapabilities)
	require.NotNil(t, got.AssignedWorkerID)
	assert.Equal(t, worker.UserID, *got.AssignedWorkerID)

	_, err = f.tx.Stores().Tasks.GetByID(ctx, uuid.New(), res.Task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "other companies cannot see the task")

	_, err = f.engine.Accept(ctx, worker, res.Task.ID)
	require.NoError(t, err)
	done, err := f.engine.Finalize(ctx, worker, res.Task.ID, taskengine.FinalizeInput{EvidenceText: "sealed"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateFinalized, done.State)

	history, err := f.engine.GetAssignmentHistory(ctx, f.manager, res.Task.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.AssignmentKindAutomatic, history[0].Kind)
	assert.Nil(t, history[0].AssignedByUserID)
}

func TestConcurrentManualAssignmentRespectsCeiling(t *testing.T) {
	f := newPGFixture(t, 1)
	ctx := context.Background()
	worker := f.addUser(t, domain.RoleWorker, "Ops")

	var ids []uuid.UUID
	for i := 0; i < 2; i++ {
		res, err := f.engine.CreateTask(ctx, f.manager, taskengine.CreateTaskInput{
			Details: domain.TaskDetails{Title: "Inspect"},
		})
		require.NoError(t, err)
		ids = append(ids, res.Task.ID)
	}

	var ok, capacity atomic.Int32
	var wg conc.WaitGroup
	for _, id := range ids {
		id := id
		wg.Go(func() {
			_, err := f.engine.AssignManual(ctx, f.manager, id, worker.UserID)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrCapacityExceeded):
				capacity.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(1), capacity.Load())

	counts, err := f.tx.Stores().Tasks.CountActiveByWorkers(ctx, f.company, []uuid.UUID{worker.UserID})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[worker.UserID])
}

func TestConcurrentAcceptSingleWinner(t *testing.T) {
	f := newPGFixture(t, 5)
	ctx := context.Background()
	worker := f.addUser(t, domain.RoleWorker, "Ops")

	res, err := f.engine.CreateTask(ctx, f.manager, taskengine.CreateTaskInput{
		Details:    domain.TaskDetails{Title: "Restock"},
		AssigneeID: &worker.UserID,
	})
	require.NoError(t, err)

	var ok atomic.Int32
	var wg conc.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Go(func() {
			if _, err := f.engine.Accept(ctx, worker, res.Task.ID); err == nil {
				ok.Add(1)
			} else {
				assert.True(t,
					errors.Is(err, domain.ErrIllegalStateTransition) || errors.Is(err, domain.ErrConcurrentModification),
					"unexpected error: %v", err)
			}
		})
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
}
