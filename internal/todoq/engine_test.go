package todoq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/todoq/internal/core/eventbus"
	"github.com/colonyops/todoq/internal/core/eventbus/testbus"
	"github.com/colonyops/todoq/internal/core/todo"
	"github.com/colonyops/todoq/internal/data/db"
	"github.com/colonyops/todoq/internal/data/stores"
)

type fixture struct {
	engine     *Engine
	todos      *stores.TodoStore
	reports    *stores.ReportStore
	bus        *testbus.Bus
	dispatcher *fakeDispatcher
}

type fakeDispatcher struct {
	deliveries []string
	err        error
}

func (f *fakeDispatcher) Deliver(ctx context.Context, payload string) (Delivery, error) {
	if f.err != nil {
		return Delivery{}, f.err
	}
	f.deliveries = append(f.deliveries, payload)
	return Delivery{Success: true, Output: "received"}, nil
}

func (f *fakeDispatcher) LastOutput(ctx context.Context) (string, error) {
	return "pane tail", nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	todos := stores.NewTodoStore(database)
	reports := stores.NewReportStore(database)
	bus := testbus.New(t)
	dispatcher := &fakeDispatcher{}

	engine := NewEngine(todos, bus.EventBus)
	engine.Register(NewReportListener(reports, bus.EventBus))
	engine.Register(NewAgentTriggerListener(todos, dispatcher, "./todo"))

	return &fixture{
		engine:     engine,
		todos:      todos,
		reports:    reports,
		bus:        bus,
		dispatcher: dispatcher,
	}
}

func TestEngineTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("stores report when leaving in_progress", func(t *testing.T) {
		fx := newFixture(t)

		created, err := fx.engine.Create(ctx, &todo.Todo{
			Title:  "Ship feature",
			Status: todo.StatusInProgress,
		})
		require.NoError(t, err)

		res, err := fx.engine.Transition(ctx, created.ID, todo.StatusCompleted, todo.UpdateRequest{Actor: "claude"})
		require.NoError(t, err)
		assert.Equal(t, todo.StatusCompleted, res.Todo.Status)
		assert.Empty(t, res.Warnings)
		require.NotZero(t, res.ReportID)

		r, err := fx.reports.GetStatusReport(ctx, res.ReportID)
		require.NoError(t, err)
		assert.Equal(t, todo.StatusInProgress, r.OldStatus)
		assert.Equal(t, todo.StatusCompleted, r.NewStatus)
		assert.Contains(t, r.Body, "Ship feature")

		_, found := fx.bus.WaitFor(eventbus.EventReportGenerated, time.Second)
		assert.True(t, found)
	})

	t.Run("no report when leaving other states", func(t *testing.T) {
		fx := newFixture(t)

		created, err := fx.engine.Create(ctx, &todo.Todo{Title: "Fresh"})
		require.NoError(t, err)

		res, err := fx.engine.Transition(ctx, created.ID, todo.StatusBlocked, todo.UpdateRequest{})
		require.NoError(t, err)
		assert.Zero(t, res.ReportID)
	})

	t.Run("not found", func(t *testing.T) {
		fx := newFixture(t)

		_, err := fx.engine.Transition(ctx, 404, todo.StatusCompleted, todo.UpdateRequest{})
		require.ErrorIs(t, err, todo.ErrNotFound)
	})

	t.Run("re-completing terminal todo is a no-op", func(t *testing.T) {
		fx := newFixture(t)

		created, err := fx.engine.Create(ctx, &todo.Todo{
			Title:  "Done already",
			Status: todo.StatusCompleted,
		})
		require.NoError(t, err)

		res, err := fx.engine.Transition(ctx, created.ID, todo.StatusCompleted, todo.UpdateRequest{})
		require.NoError(t, err)
		assert.True(t, res.NoOp())

		history, err := fx.todos.History(ctx, created.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("repeated in_progress with notes stores no report", func(t *testing.T) {
		fx := newFixture(t)

		created, err := fx.engine.Create(ctx, &todo.Todo{
			Title:  "Long running",
			Status: todo.StatusInProgress,
		})
		require.NoError(t, err)

		notes := "halfway there"
		res, err := fx.engine.Transition(ctx, created.ID, todo.StatusInProgress, todo.UpdateRequest{
			AgentNotes: &notes,
			Actor:      "claude",
		})
		require.NoError(t, err)

		assert.False(t, res.NoOp(), "the notes change is applied")
		assert.Equal(t, "halfway there", res.Todo.AgentNotes)
		assert.Zero(t, res.ReportID)

		saved, err := fx.reports.ListStatusReports(ctx, created.ID)
		require.NoError(t, err)
		assert.Empty(t, saved)
		assert.Equal(t, 0, fx.bus.Count(eventbus.EventTodoStatusChanged))
	})

	t.Run("repeated pending does not trigger the agent", func(t *testing.T) {
		fx := newFixture(t)

		created, err := fx.engine.Create(ctx, &todo.Todo{
			Title:        "Queued",
			Status:       todo.StatusPending,
			AgentEnabled: true,
		})
		require.NoError(t, err)

		title := "Queued, reworded"
		_, err = fx.engine.Transition(ctx, created.ID, todo.StatusPending, todo.UpdateRequest{Title: &title})
		require.NoError(t, err)

		assert.Empty(t, fx.dispatcher.deliveries)
	})

	t.Run("recurring completion resets to cron", func(t *testing.T) {
		fx := newFixture(t)

		created, err := fx.engine.Create(ctx, &todo.Todo{
			Title:         "Nightly cleanup",
			Status:        todo.StatusInProgress,
			Recurring:     true,
			RecurringType: todo.RecurringDaily,
			AgentEnabled:  true,
			AgentNotes:    "in flight",
		})
		require.NoError(t, err)

		res, err := fx.engine.Transition(ctx, created.ID, todo.StatusCompleted, todo.UpdateRequest{Actor: "claude"})
		require.NoError(t, err)
		assert.Equal(t, todo.StatusCron, res.Todo.Status)
		assert.False(t, res.Todo.AgentEnabled)
		assert.Empty(t, res.Todo.AgentNotes)

		// Report reflects the logical completion, not the reset state.
		require.NotZero(t, res.ReportID)
		r, err := fx.reports.GetStatusReport(ctx, res.ReportID)
		require.NoError(t, err)
		assert.Equal(t, todo.StatusInProgress, r.OldStatus)
		assert.Equal(t, todo.StatusCompleted, r.NewStatus)

		snaps, err := fx.reports.ListCronReports(ctx, created.ID, 0)
		require.NoError(t, err)
		require.Len(t, snaps, 1)

		_, found := fx.bus.WaitFor(eventbus.EventCronReset, time.Second)
		assert.True(t, found)
	})

	t.Run("dispatch failure is a warning, transition commits", func(t *testing.T) {
		fx := newFixture(t)
		fx.dispatcher.err = &DispatchError{Op: "send-keys", Err: errors.New("no tmux session")}

		first, err := fx.engine.Create(ctx, &todo.Todo{Title: "first", AgentEnabled: true})
		require.NoError(t, err)
		_, err = fx.engine.Create(ctx, &todo.Todo{Title: "second", AgentEnabled: true})
		require.NoError(t, err)

		// Leaving pending with ready work remaining triggers the agent nudge.
		res, err := fx.engine.Transition(ctx, first.ID, todo.StatusCancelled, todo.UpdateRequest{})
		require.NoError(t, err)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "no tmux session")

		got, err := fx.todos.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, todo.StatusCancelled, got.Status)

		_, found := fx.bus.WaitFor(eventbus.EventDispatchFailed, time.Second)
		assert.True(t, found)
	})

	t.Run("agent trigger fires when ready work remains", func(t *testing.T) {
		fx := newFixture(t)

		first, err := fx.engine.Create(ctx, &todo.Todo{Title: "first", AgentEnabled: true})
		require.NoError(t, err)
		_, err = fx.engine.Create(ctx, &todo.Todo{Title: "second", AgentEnabled: true})
		require.NoError(t, err)

		_, err = fx.engine.Transition(ctx, first.ID, todo.StatusCancelled, todo.UpdateRequest{})
		require.NoError(t, err)
		assert.Equal(t, []string{"./todo"}, fx.dispatcher.deliveries)
	})

	t.Run("no trigger when queue is empty", func(t *testing.T) {
		fx := newFixture(t)

		only, err := fx.engine.Create(ctx, &todo.Todo{Title: "only", AgentEnabled: true})
		require.NoError(t, err)

		_, err = fx.engine.Transition(ctx, only.ID, todo.StatusCancelled, todo.UpdateRequest{})
		require.NoError(t, err)
		assert.Empty(t, fx.dispatcher.deliveries)
	})
}

func TestEngineUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("plain field update skips transition path", func(t *testing.T) {
		fx := newFixture(t)

		created, err := fx.engine.Create(ctx, &todo.Todo{Title: "title"})
		require.NoError(t, err)

		title := "renamed"
		res, err := fx.engine.Update(ctx, created.ID, todo.UpdateRequest{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "renamed", res.Todo.Title)
		assert.Zero(t, res.ReportID)
	})

	t.Run("status in update routes through transition", func(t *testing.T) {
		fx := newFixture(t)

		created, err := fx.engine.Create(ctx, &todo.Todo{
			Title:  "working",
			Status: todo.StatusInProgress,
		})
		require.NoError(t, err)

		status := todo.StatusCompleted
		res, err := fx.engine.Update(ctx, created.ID, todo.UpdateRequest{Status: &status})
		require.NoError(t, err)
		assert.NotZero(t, res.ReportID)
	})
}

func TestEngineCronOverrides(t *testing.T) {
	ctx := context.Background()

	t.Run("activate parked todo", func(t *testing.T) {
		fx := newFixture(t)

		created, err := fx.engine.Create(ctx, &todo.Todo{
			Title:         "parked",
			Status:        todo.StatusCron,
			Recurring:     true,
			RecurringType: todo.RecurringWeekly,
		})
		require.NoError(t, err)

		activated, err := fx.engine.Activate(ctx, created.ID, "admin")
		require.NoError(t, err)
		assert.Equal(t, todo.StatusPending, activated.Status)
		assert.True(t, activated.AgentEnabled)
	})

	t.Run("reset to cron snapshots a report", func(t *testing.T) {
		fx := newFixture(t)

		created, err := fx.engine.Create(ctx, &todo.Todo{
			Title:     "stuck recurring",
			Status:    todo.StatusInProgress,
			Recurring: true,
		})
		require.NoError(t, err)

		reset, err := fx.engine.ResetToCron(ctx, created.ID, "admin")
		require.NoError(t, err)
		assert.Equal(t, todo.StatusCron, reset.Status)

		snaps, err := fx.reports.ListCronReports(ctx, created.ID, 0)
		require.NoError(t, err)
		assert.Len(t, snaps, 1)
	})

	t.Run("reset rejects non-recurring todo", func(t *testing.T) {
		fx := newFixture(t)

		created, err := fx.engine.Create(ctx, &todo.Todo{Title: "one-shot"})
		require.NoError(t, err)

		_, err = fx.engine.ResetToCron(ctx, created.ID, "admin")
		require.ErrorIs(t, err, todo.ErrValidation)
	})
}

func TestEngineDelete(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	created, err := fx.engine.Create(ctx, &todo.Todo{Title: "with attachment"})
	require.NoError(t, err)
	require.NoError(t, fx.todos.AddAttachment(ctx, &todo.Attachment{
		TodoID:   created.ID,
		FilePath: "/data/uploads/a.png",
	}))

	var removed []string
	err = fx.engine.Delete(ctx, created.ID, func(path string) error {
		removed = append(removed, path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/uploads/a.png"}, removed)

	_, err = fx.engine.Get(ctx, created.ID)
	require.ErrorIs(t, err, todo.ErrNotFound)

	_, found := fx.bus.WaitFor(eventbus.EventTodoDeleted, time.Second)
	assert.True(t, found)
}
