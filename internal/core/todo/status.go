package todo

import "fmt"

// Status represents the lifecycle state of a todo.
//
// The canonical vocabulary is the one below. Data imported from earlier
// systems used two incompatible sets ("offen" vs "pending"); legacy
// spellings are accepted at the boundary by ParseStatus and never stored.
type Status string

const (
	// StatusPending means the todo is ready to be picked up.
	StatusPending Status = "pending"
	// StatusInProgress means the agent has claimed the todo.
	StatusInProgress Status = "in_progress"
	// StatusCompleted is terminal for non-recurring todos.
	StatusCompleted Status = "completed"
	// StatusBlocked means the agent could not continue.
	StatusBlocked Status = "blocked"
	// StatusCancelled is terminal; the todo was abandoned.
	StatusCancelled Status = "cancelled"
	// StatusCron is the parked state of a recurring todo between runs.
	// The todo is not eligible for selection until reactivated.
	StatusCron Status = "cron"
)

var validStatuses = map[Status]bool{
	StatusPending: true, StatusInProgress: true, StatusCompleted: true,
	StatusBlocked: true, StatusCancelled: true, StatusCron: true,
}

// legacyStatuses maps the old vocabulary onto the canonical one.
var legacyStatuses = map[string]Status{
	"offen": StatusPending,
	"open":  StatusPending,
}

// ParseStatus resolves a status string, accepting legacy spellings.
func ParseStatus(s string) (Status, error) {
	if canonical, ok := legacyStatuses[s]; ok {
		return canonical, nil
	}
	status := Status(s)
	if !validStatuses[status] {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
	return status, nil
}

// Terminal reports whether the status ends a non-recurring todo's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}
