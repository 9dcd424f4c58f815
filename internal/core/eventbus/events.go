package eventbus

import (
	"github.com/colonyops/todoq/internal/core/todo"
)

// TodoCreatedPayload is emitted when a new todo is created.
type TodoCreatedPayload struct {
	Todo *todo.Todo
}

// TodoStatusChangedPayload is emitted after a committed status transition.
type TodoStatusChangedPayload struct {
	Todo      *todo.Todo
	OldStatus todo.Status
	NewStatus todo.Status
}

// TodoDeletedPayload is emitted when a todo is deleted.
type TodoDeletedPayload struct {
	TodoID int64
}

// CronResetPayload is emitted when a recurring todo is reset for its next run.
type CronResetPayload struct {
	Todo *todo.Todo
}

// ReportGeneratedPayload is emitted when a status report is stored.
type ReportGeneratedPayload struct {
	TodoID   int64
	ReportID int64
}

// DispatchFailedPayload is emitted when remote delivery fails. The
// transition the dispatch belonged to has already been committed.
type DispatchFailedPayload struct {
	TodoID int64
	Err    error
}
