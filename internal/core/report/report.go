// Package report defines status-change reports and cron execution snapshots.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/colonyops/todoq/internal/core/todo"
)

// ErrNotFound is returned when a report does not exist.
var ErrNotFound = errors.New("report not found")

// StatusReport is a durable, human-readable snapshot rendered when a todo
// leaves the in_progress state.
type StatusReport struct {
	ID        int64       `json:"id"`
	TodoID    int64       `json:"todo_id"`
	OldStatus todo.Status `json:"old_status"`
	NewStatus todo.Status `json:"new_status"`
	Body      string      `json:"body"`
	CreatedAt time.Time   `json:"created_at"`
}

// CronReport is the snapshot taken when a recurring todo completes, before
// the todo is reset for its next run. Created once, read-only afterward.
type CronReport struct {
	ID         int64     `json:"id"`
	TodoID     int64     `json:"todo_id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	AgentNotes string    `json:"agent_notes,omitempty"`
	AgentOutput string   `json:"agent_output,omitempty"`
	// Duration is the run time of the completed occurrence, computed as
	// the gap between the todo's last update and its completion.
	Duration   time.Duration `json:"duration"`
	ExecutedAt time.Time     `json:"executed_at"`
}

// Store defines persistence for status and cron reports.
type Store interface {
	// SaveStatusReport persists a rendered report and returns its ID.
	SaveStatusReport(ctx context.Context, r *StatusReport) (int64, error)

	// GetStatusReport returns a report by ID. Returns ErrNotFound if absent.
	GetStatusReport(ctx context.Context, id int64) (StatusReport, error)

	// LatestStatusReport returns the most recent report for a todo.
	LatestStatusReport(ctx context.Context, todoID int64) (StatusReport, error)

	// ListStatusReports returns reports for a todo, newest first.
	ListStatusReports(ctx context.Context, todoID int64) ([]StatusReport, error)

	// ListCronReports returns cron execution snapshots, newest first.
	// A zero todoID returns snapshots across all todos.
	ListCronReports(ctx context.Context, todoID int64, limit int) ([]CronReport, error)
}
