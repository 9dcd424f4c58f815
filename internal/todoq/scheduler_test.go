package todoq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/todoq/internal/core/todo"
)

func TestSchedulerReactivate(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	sched := NewScheduler(fx.todos, fx.engine)

	daily, err := fx.engine.Create(ctx, &todo.Todo{
		Title: "daily job", Status: todo.StatusCron,
		Recurring: true, RecurringType: todo.RecurringDaily,
	})
	require.NoError(t, err)

	weekly, err := fx.engine.Create(ctx, &todo.Todo{
		Title: "weekly job", Status: todo.StatusCron,
		Recurring: true, RecurringType: todo.RecurringWeekly,
	})
	require.NoError(t, err)

	manual, err := fx.engine.Create(ctx, &todo.Todo{
		Title: "manual job", Status: todo.StatusCron,
		Recurring: true, RecurringType: todo.RecurringManual,
	})
	require.NoError(t, err)

	sched.reactivate(todo.RecurringDaily)

	got, err := fx.todos.Get(ctx, daily.ID)
	require.NoError(t, err)
	assert.Equal(t, todo.StatusPending, got.Status)
	assert.True(t, got.AgentEnabled)

	// Other cadences stay parked.
	got, err = fx.todos.Get(ctx, weekly.ID)
	require.NoError(t, err)
	assert.Equal(t, todo.StatusCron, got.Status)

	got, err = fx.todos.Get(ctx, manual.ID)
	require.NoError(t, err)
	assert.Equal(t, todo.StatusCron, got.Status)
}

func TestSchedulerStartStop(t *testing.T) {
	fx := newFixture(t)
	sched := NewScheduler(fx.todos, fx.engine)

	require.NoError(t, sched.Start())
	sched.Stop()
}
