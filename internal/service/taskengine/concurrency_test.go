package taskengine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/domain/assignment"
	"github.com/phrazzld/taskflow-api/internal/platform/memory"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentManualAssignmentRespectsCeiling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	worker := f.addWorker(t, "Ops")
	for i := 0; i < assignment.DefaultMaxActiveTasks-1; i++ {
		f.assignedTask(t, worker)
	}
	tasks := []*domain.Task{
		f.createTask(t, domain.TaskDetails{}),
		f.createTask(t, domain.TaskDetails{}),
	}

	errs := make([]error, len(tasks))
	var wg conc.WaitGroup
	for i := range tasks {
		i := i
		wg.Go(func() {
			_, errs[i] = f.engine.AssignManual(ctx, f.managerA, tasks[i].ID, worker.UserID)
		})
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrCapacityExceeded) || errors.Is(err, domain.ErrConcurrentModification), err)
	}
	assert.Equal(t, 1, succeeded)

	counts, err := f.db.Stores().Tasks.CountActiveByWorkers(ctx, f.company, []uuid.UUID{worker.UserID})
	require.NoError(t, err)
	assert.Equal(t, assignment.DefaultMaxActiveTasks, counts[worker.UserID])
}

func TestConcurrentAutomaticAssignmentNeverExceedsCeiling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	signal := domain.TaskDetails{Department: "Ops", RequiredCapabilities: []string{"welding"}}
	w1 := f.addWorker(t, "Ops", "welding")
	w2 := f.addWorker(t, "Ops", "welding")

	const total = 14
	tasks := make([]*domain.Task, total)
	for i := range tasks {
		tasks[i] = f.createTask(t, signal)
	}

	var assigned atomic.Int32
	var wg conc.WaitGroup
	for _, task := range tasks {
		task := task
		wg.Go(func() {
			res, err := f.engine.AssignAutomatic(ctx, f.managerA, task.ID, false)
			if assert.NoError(t, err) && res.Outcome == domain.OutcomeAssigned {
				assigned.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(2*assignment.DefaultMaxActiveTasks), assigned.Load())
	counts, err := f.db.Stores().Tasks.CountActiveByWorkers(ctx, f.company, []uuid.UUID{w1.UserID, w2.UserID})
	require.NoError(t, err)
	assert.Equal(t, assignment.DefaultMaxActiveTasks, counts[w1.UserID])
	assert.Equal(t, assignment.DefaultMaxActiveTasks, counts[w2.UserID])
}

// stallingTransactor holds every transaction open until its context ends.
type stallingTransactor struct {
	*memory.DB
}

func (s stallingTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, s store.Stores) error) error {
	return s.DB.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		if err := fn(ctx, st); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	})
}

func TestOperationTimeoutAppliesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	worker := f.addWorker(t, "Ops")
	task := f.createTask(t, domain.TaskDetails{})
	f.emitter.reset()

	slow, err := NewEngine(stallingTransactor{f.db}, assignment.NewDefaultService(), f.emitter,
		Config{OperationTimeout: 20 * time.Millisecond}, discardLogger())
	require.NoError(t, err)

	_, err = slow.AssignManual(ctx, f.managerA, task.ID, worker.UserID)
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	stored := f.stored(t, task.ID)
	assert.Equal(t, domain.TaskStatePending, stored.State)
	assert.Nil(t, stored.AssignedWorkerID)
	assert.Empty(t, f.history(t, task.ID))
	assert.Empty(t, f.emitter.types())
}

func TestCancelledRequestAppliesNothing(t *testing.T) {
	f := newFixture(t)
	worker := f.addWorker(t, "Ops")
	task := f.createTask(t, domain.TaskDetails{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine.AssignManual(ctx, f.managerA, task.ID, worker.UserID)
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.Equal(t, domain.TaskStatePending, f.stored(t, task.ID).State)
}

func TestStorageFailuresAreMapped(t *testing.T) {
	ctx := context.Background()

	t.Run("history append failure rolls back assignment", func(t *testing.T) {
		f := newFixture(t)
		worker := f.addWorker(t, "Ops")
		task := f.createTask(t, domain.TaskDetails{})
		f.db.FailOn("history.append", errors.New("connection reset by peer"))

		_, err := f.engine.AssignManual(ctx, f.managerA, task.ID, worker.UserID)
		assert.ErrorIs(t, err, domain.ErrPersistenceFailure)

		var engineErr *EngineError
		require.ErrorAs(t, err, &engineErr)
		assert.Equal(t, "assign_manual", engineErr.Operation)

		f.db.FailOn("history.append", nil)
		assert.Equal(t, domain.TaskStatePending, f.stored(t, task.ID).State)
		assert.Empty(t, f.history(t, task.ID))
	})

	t.Run("version conflict", func(t *testing.T) {
		f := newFixture(t)
		worker := f.addWorker(t, "Ops")
		task := f.createTask(t, domain.TaskDetails{})
		f.db.FailOn("tasks.update", store.ErrConcurrentModification)

		_, err := f.engine.AssignManual(ctx, f.managerA, task.ID, worker.UserID)
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
		assert.ErrorIs(t, err, store.ErrConcurrentModification)
	})

	t.Run("read failure", func(t *testing.T) {
		f := newFixture(t)
		f.db.FailOn("tasks.list", errors.New("i/o timeout"))
		_, err := f.engine.ListTasks(ctx, f.admin, ListFilter{})
		assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
	})
}
