package stores

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/todoq/internal/core/report"
	"github.com/colonyops/todoq/internal/core/todo"
	"github.com/colonyops/todoq/internal/data/db"
)

func TestReportStore(t *testing.T) {
	ctx := context.Background()

	open := func(t *testing.T) (*TodoStore, *ReportStore) {
		t.Helper()
		database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
		require.NoError(t, err)
		t.Cleanup(func() { _ = database.Close() })
		return NewTodoStore(database), NewReportStore(database)
	}

	t.Run("save and get status report", func(t *testing.T) {
		todos, reports := open(t)

		item := todo.Todo{Title: "reported"}
		_, err := todos.Create(ctx, &item)
		require.NoError(t, err)

		r := report.StatusReport{
			TodoID:    item.ID,
			OldStatus: todo.StatusInProgress,
			NewStatus: todo.StatusCompleted,
			Body:      "Task Report: reported",
		}
		id, err := reports.SaveStatusReport(ctx, &r)
		require.NoError(t, err)
		assert.Greater(t, id, int64(0))

		got, err := reports.GetStatusReport(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, item.ID, got.TodoID)
		assert.Equal(t, todo.StatusInProgress, got.OldStatus)
		assert.Equal(t, todo.StatusCompleted, got.NewStatus)
		assert.Equal(t, "Task Report: reported", got.Body)
	})

	t.Run("get not found", func(t *testing.T) {
		_, reports := open(t)

		_, err := reports.GetStatusReport(ctx, 77)
		require.ErrorIs(t, err, report.ErrNotFound)
	})

	t.Run("latest and list order newest first", func(t *testing.T) {
		todos, reports := open(t)

		item := todo.Todo{Title: "multi"}
		_, err := todos.Create(ctx, &item)
		require.NoError(t, err)

		older := report.StatusReport{
			TodoID: item.ID, OldStatus: todo.StatusInProgress,
			NewStatus: todo.StatusBlocked, Body: "first",
			CreatedAt: time.Now().Add(-time.Hour),
		}
		_, err = reports.SaveStatusReport(ctx, &older)
		require.NoError(t, err)

		newer := report.StatusReport{
			TodoID: item.ID, OldStatus: todo.StatusInProgress,
			NewStatus: todo.StatusCompleted, Body: "second",
		}
		_, err = reports.SaveStatusReport(ctx, &newer)
		require.NoError(t, err)

		latest, err := reports.LatestStatusReport(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "second", latest.Body)

		all, err := reports.ListStatusReports(ctx, item.ID)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "second", all[0].Body)
		assert.Equal(t, "first", all[1].Body)
	})

	t.Run("cron reports written by complete recurring", func(t *testing.T) {
		todos, reports := open(t)

		item := todo.Todo{
			Title:         "hourly sync",
			Status:        todo.StatusInProgress,
			Recurring:     true,
			RecurringType: todo.RecurringHourly,
			AgentNotes:    "syncing",
		}
		_, err := todos.Create(ctx, &item)
		require.NoError(t, err)

		_, err = todos.CompleteRecurring(ctx, item.ID, todo.UpdateRequest{Actor: "claude"})
		require.NoError(t, err)

		snaps, err := reports.ListCronReports(ctx, item.ID, 0)
		require.NoError(t, err)
		require.Len(t, snaps, 1)
		assert.Equal(t, "hourly sync", snaps[0].Title)
		assert.Equal(t, string(todo.StatusCompleted), snaps[0].Status)
		assert.GreaterOrEqual(t, snaps[0].Duration, time.Duration(0))
	})

	t.Run("cron reports across all todos with limit", func(t *testing.T) {
		todos, reports := open(t)

		for _, title := range []string{"a", "b"} {
			item := todo.Todo{Title: title, Status: todo.StatusInProgress, Recurring: true}
			_, err := todos.Create(ctx, &item)
			require.NoError(t, err)
			_, err = todos.CompleteRecurring(ctx, item.ID, todo.UpdateRequest{})
			require.NoError(t, err)
		}

		all, err := reports.ListCronReports(ctx, 0, 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		limited, err := reports.ListCronReports(ctx, 0, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("reports cascade on todo delete", func(t *testing.T) {
		todos, reports := open(t)

		item := todo.Todo{Title: "ephemeral"}
		_, err := todos.Create(ctx, &item)
		require.NoError(t, err)

		_, err = reports.SaveStatusReport(ctx, &report.StatusReport{
			TodoID: item.ID, OldStatus: todo.StatusInProgress,
			NewStatus: todo.StatusCompleted, Body: "bye",
		})
		require.NoError(t, err)

		require.NoError(t, todos.Delete(ctx, item.ID))

		all, err := reports.ListStatusReports(ctx, item.ID)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
