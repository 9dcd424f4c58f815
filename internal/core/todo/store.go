package todo

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a todo does not exist.
	ErrNotFound = errors.New("todo not found")
	// ErrValidation is returned for missing required fields or values
	// outside the recognized enumerations.
	ErrValidation = errors.New("validation error")
)

// Change records one field's old/new value pair produced by an update.
// Every change is persisted as a HistoryEntry in the same transaction.
type Change struct {
	Field string
	Old   string
	New   string
}

// UpdateRequest carries the mutable fields of a todo. Nil pointers leave
// the corresponding field untouched.
type UpdateRequest struct {
	Title            *string
	Description      *string
	Scope            *Scope
	Status           *Status
	Priority         *Priority
	Tags             *string
	AgentEnabled     *bool
	WorkingDirectory *string
	AssignedTo       *string
	AgentNotes       *string
	AgentMode        *AgentMode
	Recurring        *bool
	RecurringType    *RecurringType
	DueDate          *time.Time
	EstimatedHours   *float64
	ActualHours      *float64

	// Actor is recorded on every history entry written for this update.
	Actor string
}

// ListFilter controls which todos are returned by List.
type ListFilter struct {
	Status           Status // empty means all statuses
	Scope            Scope
	Priority         Priority
	WorkingDirectory string
	Search           string // matches title, description, notes, tags
	Limit            int    // 0 means unlimited
	Offset           int
}

// Stats is an aggregate snapshot of the todo table.
type Stats struct {
	Total              int64            `json:"total"`
	ByStatus           map[Status]int64 `json:"by_status"`
	ByScope            map[Scope]int64  `json:"by_scope"`
	CompletedThisWeek  int64            `json:"completed_this_week"`
	Overdue            int64            `json:"overdue"`
	AvgCompletionHours float64          `json:"avg_completion_hours"`
}

// Store defines the interface for todo persistence.
//
// Update and CompleteRecurring are atomic: the field update, the history
// rows, and (for CompleteRecurring) the cron snapshot are one transaction.
// A crash leaves either all of them applied or none.
type Store interface {
	// Create persists a new todo and returns its assigned ID.
	Create(ctx context.Context, t *Todo) (int64, error)

	// Get returns a single todo. Returns ErrNotFound if absent.
	Get(ctx context.Context, id int64) (Todo, error)

	// List returns todos matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]Todo, error)

	// Update applies the request, writing one history row per changed
	// field. A status change also stamps StatusChangedAt. Returns the
	// updated todo and the set of changes.
	Update(ctx context.Context, id int64, req UpdateRequest) (Todo, []Change, error)

	// CompleteRecurring marks a recurring todo completed and, in the same
	// transaction, snapshots a cron report and resets the todo to the
	// cron state with AgentEnabled cleared and agent notes/output wiped.
	// The todo is never observable in the completed state.
	CompleteRecurring(ctx context.Context, id int64, req UpdateRequest) (Todo, error)

	// NextPending returns the best ready candidate without claiming it:
	// status pending, agent enabled, highest priority first, oldest first.
	// ok is false when no candidate exists.
	NextPending(ctx context.Context) (t Todo, ok bool, err error)

	// ClaimNext atomically claims the best ready candidate by moving it
	// to in_progress. The claim is a conditional update on the candidate's
	// current status, so two concurrent callers never claim the same todo.
	ClaimNext(ctx context.Context, actor string) (t Todo, ok bool, err error)

	// AppendOutput appends an output entry. When the serialized output
	// exceeds maxBytes, the oldest entries are dropped first.
	AppendOutput(ctx context.Context, id int64, entry OutputEntry, maxBytes int) error

	// Delete removes the todo and cascades to history, comments, and
	// attachments. The caller is responsible for attachment files.
	Delete(ctx context.Context, id int64) error

	// CountReady returns the number of todos eligible for selection.
	CountReady(ctx context.Context) (int64, error)

	// CountByStatus returns the number of todos in the given status.
	CountByStatus(ctx context.Context, status Status) (int64, error)

	// ListCron returns parked recurring todos, optionally filtered by
	// recurrence cadence.
	ListCron(ctx context.Context, rt RecurringType) ([]Todo, error)

	History(ctx context.Context, todoID int64) ([]HistoryEntry, error)

	AddComment(ctx context.Context, c *Comment) error
	Comments(ctx context.Context, todoID int64) ([]Comment, error)

	AddAttachment(ctx context.Context, a *Attachment) error
	Attachments(ctx context.Context, todoID int64) ([]Attachment, error)

	Stats(ctx context.Context) (Stats, error)
}
