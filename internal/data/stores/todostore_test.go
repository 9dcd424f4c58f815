package stores

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/todoq/internal/core/todo"
	"github.com/colonyops/todoq/internal/data/db"
)

func openTestStore(t *testing.T) *TodoStore {
	t.Helper()
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewTodoStore(database)
}

func strPtr(s string) *string                    { return &s }
func statusPtr(s todo.Status) *todo.Status       { return &s }
func priorityPtr(p todo.Priority) *todo.Priority { return &p }

func TestTodoStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := openTestStore(t)

		item := todo.Todo{
			Title:            "Deploy staging build",
			Description:      "Run the deploy script and verify health checks",
			Scope:            todo.ScopeServer,
			Priority:         todo.PriorityHigh,
			AgentEnabled:     true,
			WorkingDirectory: "/srv/app",
			AssignedTo:       "claude",
			AgentMode:        todo.AgentModeBypass,
		}

		id, err := store.Create(ctx, &item)
		require.NoError(t, err)
		assert.Greater(t, id, int64(0))

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Deploy staging build", got.Title)
		assert.Equal(t, todo.ScopeServer, got.Scope)
		assert.Equal(t, todo.StatusPending, got.Status)
		assert.Equal(t, todo.PriorityHigh, got.Priority)
		assert.True(t, got.AgentEnabled)
		assert.Equal(t, "claude", got.AssignedTo)
		assert.Nil(t, got.StatusChangedAt)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("create applies defaults", func(t *testing.T) {
		store := openTestStore(t)

		item := todo.Todo{Title: "Minimal"}
		_, err := store.Create(ctx, &item)
		require.NoError(t, err)

		got, err := store.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, todo.ScopeOther, got.Scope)
		assert.Equal(t, todo.StatusPending, got.Status)
		assert.Equal(t, todo.PriorityMedium, got.Priority)
		assert.Equal(t, todo.RecurringManual, got.RecurringType)
		assert.Equal(t, todo.AgentModeBypass, got.AgentMode)
	})

	t.Run("create rejects missing title", func(t *testing.T) {
		store := openTestStore(t)

		_, err := store.Create(ctx, &todo.Todo{})
		require.ErrorIs(t, err, todo.ErrValidation)
	})

	t.Run("get not found", func(t *testing.T) {
		store := openTestStore(t)

		_, err := store.Get(ctx, 9999)
		require.ErrorIs(t, err, todo.ErrNotFound)
	})

	t.Run("list with filters", func(t *testing.T) {
		store := openTestStore(t)

		for i, scope := range []todo.Scope{todo.ScopeFrontend, todo.ScopeBackend, todo.ScopeBackend} {
			_, err := store.Create(ctx, &todo.Todo{
				Title: fmt.Sprintf("task %d", i),
				Scope: scope,
			})
			require.NoError(t, err)
		}

		all, err := store.List(ctx, todo.ListFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		backend, err := store.List(ctx, todo.ListFilter{Scope: todo.ScopeBackend})
		require.NoError(t, err)
		assert.Len(t, backend, 2)

		limited, err := store.List(ctx, todo.ListFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("list with search", func(t *testing.T) {
		store := openTestStore(t)

		_, err := store.Create(ctx, &todo.Todo{Title: "Fix login redirect"})
		require.NoError(t, err)
		_, err = store.Create(ctx, &todo.Todo{Title: "Write changelog", Description: "mention the login fix"})
		require.NoError(t, err)
		_, err = store.Create(ctx, &todo.Todo{Title: "Unrelated"})
		require.NoError(t, err)

		found, err := store.List(ctx, todo.ListFilter{Search: "login"})
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("update writes history per changed field", func(t *testing.T) {
		store := openTestStore(t)

		item := todo.Todo{Title: "Original", Priority: todo.PriorityLow}
		_, err := store.Create(ctx, &item)
		require.NoError(t, err)

		updated, changes, err := store.Update(ctx, item.ID, todo.UpdateRequest{
			Title:    strPtr("Renamed"),
			Priority: priorityPtr(todo.PriorityCritical),
			Actor:    "admin",
		})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Title)
		assert.Equal(t, todo.PriorityCritical, updated.Priority)
		assert.Len(t, changes, 2)

		history, err := store.History(ctx, item.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		fields := []string{history[0].Field, history[1].Field}
		assert.Contains(t, fields, "title")
		assert.Contains(t, fields, "priority")
		assert.Equal(t, "admin", history[0].Actor)
	})

	t.Run("update stamps status_changed_at on status change only", func(t *testing.T) {
		store := openTestStore(t)

		item := todo.Todo{Title: "Task"}
		_, err := store.Create(ctx, &item)
		require.NoError(t, err)

		updated, _, err := store.Update(ctx, item.ID, todo.UpdateRequest{
			Title: strPtr("Task renamed"),
		})
		require.NoError(t, err)
		assert.Nil(t, updated.StatusChangedAt)

		updated, _, err = store.Update(ctx, item.ID, todo.UpdateRequest{
			Status: statusPtr(todo.StatusInProgress),
		})
		require.NoError(t, err)
		require.NotNil(t, updated.StatusChangedAt)
		assert.WithinDuration(t, time.Now(), *updated.StatusChangedAt, 5*time.Second)
	})

	t.Run("no-op update writes no history", func(t *testing.T) {
		store := openTestStore(t)

		item := todo.Todo{Title: "Stable"}
		_, err := store.Create(ctx, &item)
		require.NoError(t, err)

		_, changes, err := store.Update(ctx, item.ID, todo.UpdateRequest{
			Title: strPtr("Stable"),
		})
		require.NoError(t, err)
		assert.Empty(t, changes)

		history, err := store.History(ctx, item.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("update not found", func(t *testing.T) {
		store := openTestStore(t)

		_, _, err := store.Update(ctx, 42, todo.UpdateRequest{Title: strPtr("x")})
		require.ErrorIs(t, err, todo.ErrNotFound)
	})

	t.Run("next pending orders by priority then age", func(t *testing.T) {
		store := openTestStore(t)

		old := todo.Todo{
			Title: "old medium", AgentEnabled: true,
			CreatedAt: time.Now().Add(-2 * time.Hour), UpdatedAt: time.Now().Add(-2 * time.Hour),
		}
		_, err := store.Create(ctx, &old)
		require.NoError(t, err)

		critical := todo.Todo{Title: "critical", Priority: todo.PriorityCritical, AgentEnabled: true}
		_, err = store.Create(ctx, &critical)
		require.NoError(t, err)

		disabled := todo.Todo{Title: "critical but disabled", Priority: todo.PriorityCritical}
		_, err = store.Create(ctx, &disabled)
		require.NoError(t, err)

		next, ok, err := store.NextPending(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, critical.ID, next.ID)
	})

	t.Run("next pending ties break oldest first", func(t *testing.T) {
		store := openTestStore(t)

		older := todo.Todo{
			Title: "older", AgentEnabled: true,
			CreatedAt: time.Now().Add(-time.Hour), UpdatedAt: time.Now().Add(-time.Hour),
		}
		_, err := store.Create(ctx, &older)
		require.NoError(t, err)

		newer := todo.Todo{Title: "newer", AgentEnabled: true}
		_, err = store.Create(ctx, &newer)
		require.NoError(t, err)

		next, ok, err := store.NextPending(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, older.ID, next.ID)
	})

	t.Run("next pending empty queue", func(t *testing.T) {
		store := openTestStore(t)

		_, ok, err := store.NextPending(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("claim next moves to in_progress with history", func(t *testing.T) {
		store := openTestStore(t)

		item := todo.Todo{Title: "claimable", AgentEnabled: true}
		_, err := store.Create(ctx, &item)
		require.NoError(t, err)

		claimed, ok, err := store.ClaimNext(ctx, "claude")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, item.ID, claimed.ID)
		assert.Equal(t, todo.StatusInProgress, claimed.Status)
		require.NotNil(t, claimed.StatusChangedAt)

		got, err := store.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, todo.StatusInProgress, got.Status)

		history, err := store.History(ctx, item.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "status", history[0].Field)
		assert.Equal(t, string(todo.StatusPending), history[0].OldValue)
		assert.Equal(t, string(todo.StatusInProgress), history[0].NewValue)
		assert.Equal(t, "claude", history[0].Actor)

		// Queue is now empty.
		_, ok, err = store.ClaimNext(ctx, "claude")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("complete recurring resets in one step", func(t *testing.T) {
		store := openTestStore(t)

		item := todo.Todo{
			Title:         "nightly backup",
			Status:        todo.StatusInProgress,
			AgentEnabled:  true,
			AgentNotes:    "running",
			Recurring:     true,
			RecurringType: todo.RecurringDaily,
			AgentOutput: []todo.OutputEntry{
				{Timestamp: time.Now(), Type: "info", Message: "started"},
			},
		}
		_, err := store.Create(ctx, &item)
		require.NoError(t, err)

		reset, err := store.CompleteRecurring(ctx, item.ID, todo.UpdateRequest{
			AgentNotes: strPtr("backup finished"),
			Actor:      "claude",
		})
		require.NoError(t, err)
		assert.Equal(t, todo.StatusCron, reset.Status)
		assert.False(t, reset.AgentEnabled)
		assert.Empty(t, reset.AgentNotes)
		assert.Empty(t, reset.AgentOutput)
		assert.Nil(t, reset.StatusChangedAt)

		// Never observable as completed.
		got, err := store.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, todo.StatusCron, got.Status)

		history, err := store.History(ctx, item.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, string(todo.StatusCompleted), history[0].NewValue)
		assert.Equal(t, string(todo.StatusCron), history[1].NewValue)
	})

	t.Run("append output trims oldest past byte cap", func(t *testing.T) {
		store := openTestStore(t)

		item := todo.Todo{Title: "chatty"}
		_, err := store.Create(ctx, &item)
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			err := store.AppendOutput(ctx, item.ID, todo.OutputEntry{
				Timestamp: time.Now(),
				Type:      "info",
				Message:   fmt.Sprintf("entry %d", i),
			}, 250)
			require.NoError(t, err)
		}

		got, err := store.Get(ctx, item.ID)
		require.NoError(t, err)
		require.NotEmpty(t, got.AgentOutput)
		assert.Less(t, len(got.AgentOutput), 5)
		// Newest entry always survives the trim.
		assert.Equal(t, "entry 4", got.AgentOutput[len(got.AgentOutput)-1].Message)
	})

	t.Run("delete cascades to history and comments", func(t *testing.T) {
		store := openTestStore(t)

		item := todo.Todo{Title: "doomed"}
		_, err := store.Create(ctx, &item)
		require.NoError(t, err)

		_, _, err = store.Update(ctx, item.ID, todo.UpdateRequest{Title: strPtr("doomed v2")})
		require.NoError(t, err)
		require.NoError(t, store.AddComment(ctx, &todo.Comment{TodoID: item.ID, Body: "goodbye"}))

		require.NoError(t, store.Delete(ctx, item.ID))

		_, err = store.Get(ctx, item.ID)
		require.ErrorIs(t, err, todo.ErrNotFound)

		history, err := store.History(ctx, item.ID)
		require.NoError(t, err)
		assert.Empty(t, history)

		comments, err := store.Comments(ctx, item.ID)
		require.NoError(t, err)
		assert.Empty(t, comments)
	})

	t.Run("delete not found", func(t *testing.T) {
		store := openTestStore(t)
		require.ErrorIs(t, store.Delete(ctx, 123), todo.ErrNotFound)
	})

	t.Run("list cron filters by cadence", func(t *testing.T) {
		store := openTestStore(t)

		daily := todo.Todo{Title: "daily", Status: todo.StatusCron, Recurring: true, RecurringType: todo.RecurringDaily}
		_, err := store.Create(ctx, &daily)
		require.NoError(t, err)

		weekly := todo.Todo{Title: "weekly", Status: todo.StatusCron, Recurring: true, RecurringType: todo.RecurringWeekly}
		_, err = store.Create(ctx, &weekly)
		require.NoError(t, err)

		all, err := store.ListCron(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		got, err := store.ListCron(ctx, todo.RecurringDaily)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, daily.ID, got[0].ID)
	})

	t.Run("comments round trip", func(t *testing.T) {
		store := openTestStore(t)

		item := todo.Todo{Title: "commented"}
		_, err := store.Create(ctx, &item)
		require.NoError(t, err)

		require.NoError(t, store.AddComment(ctx, &todo.Comment{TodoID: item.ID, Body: "first", Author: "admin"}))
		require.NoError(t, store.AddComment(ctx, &todo.Comment{TodoID: item.ID, Body: "picked up", Agent: true}))

		comments, err := store.Comments(ctx, item.ID)
		require.NoError(t, err)
		require.Len(t, comments, 2)
		assert.Equal(t, "first", comments[0].Body)
		assert.False(t, comments[0].Agent)
		assert.True(t, comments[1].Agent)
	})

	t.Run("attachments round trip", func(t *testing.T) {
		store := openTestStore(t)

		item := todo.Todo{Title: "with files"}
		_, err := store.Create(ctx, &item)
		require.NoError(t, err)

		a := todo.Attachment{TodoID: item.ID, FilePath: "/data/uploads/spec.pdf"}
		require.NoError(t, store.AddAttachment(ctx, &a))
		assert.Greater(t, a.ID, int64(0))

		attachments, err := store.Attachments(ctx, item.ID)
		require.NoError(t, err)
		require.Len(t, attachments, 1)
		assert.Equal(t, "/data/uploads/spec.pdf", attachments[0].FilePath)
	})

	t.Run("counts", func(t *testing.T) {
		store := openTestStore(t)

		ready := todo.Todo{Title: "ready", AgentEnabled: true}
		_, err := store.Create(ctx, &ready)
		require.NoError(t, err)

		notReady := todo.Todo{Title: "not ready"}
		_, err = store.Create(ctx, &notReady)
		require.NoError(t, err)

		blocked := todo.Todo{Title: "blocked", Status: todo.StatusBlocked}
		_, err = store.Create(ctx, &blocked)
		require.NoError(t, err)

		n, err := store.CountReady(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = store.CountByStatus(ctx, todo.StatusPending)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = store.CountByStatus(ctx, todo.StatusBlocked)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("stats", func(t *testing.T) {
		store := openTestStore(t)

		pending := todo.Todo{Title: "pending", Scope: todo.ScopeBackend}
		_, err := store.Create(ctx, &pending)
		require.NoError(t, err)

		done := todo.Todo{Title: "done", Scope: todo.ScopeFrontend, AgentEnabled: true}
		_, err = store.Create(ctx, &done)
		require.NoError(t, err)
		_, _, err = store.Update(ctx, done.ID, todo.UpdateRequest{
			Status: statusPtr(todo.StatusCompleted),
		})
		require.NoError(t, err)

		past := time.Now().Add(-24 * time.Hour)
		overdue := todo.Todo{Title: "overdue", DueDate: &past}
		_, err = store.Create(ctx, &overdue)
		require.NoError(t, err)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.Total)
		assert.Equal(t, int64(2), stats.ByStatus[todo.StatusPending])
		assert.Equal(t, int64(1), stats.ByStatus[todo.StatusCompleted])
		assert.Equal(t, int64(1), stats.ByScope[todo.ScopeFrontend])
		assert.Equal(t, int64(1), stats.CompletedThisWeek)
		assert.Equal(t, int64(1), stats.Overdue)
	})
}

func TestTodoStoreConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	item := todo.Todo{Title: "contested", AgentEnabled: true}
	_, err := store.Create(ctx, &item)
	require.NoError(t, err)

	const claimers = 4
	results := make(chan bool, claimers)
	for i := 0; i < claimers; i++ {
		go func() {
			_, ok, err := store.ClaimNext(ctx, "claude")
			assert.NoError(t, err)
			results <- ok
		}()
	}

	won := 0
	for i := 0; i < claimers; i++ {
		if <-results {
			won++
		}
	}
	assert.Equal(t, 1, won)
}
