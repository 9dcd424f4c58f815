// Package todo defines the task domain model: the Todo entity, its status
// lifecycle, and the persistence interface.
package todo

import (
	"fmt"
	"time"
)

// Scope classifies which part of a project a todo belongs to.
type Scope string

const (
	ScopeFrontend  Scope = "frontend"
	ScopeBackend   Scope = "backend"
	ScopeDatabase  Scope = "database"
	ScopeN8N       Scope = "n8n"
	ScopeMT5       Scope = "mt5"
	ScopeServer    Scope = "server"
	ScopeContent   Scope = "content"
	ScopeSEO       Scope = "seo"
	ScopeAnalytics Scope = "analytics"
	ScopeOther     Scope = "other"
)

var validScopes = map[Scope]bool{
	ScopeFrontend: true, ScopeBackend: true, ScopeDatabase: true,
	ScopeN8N: true, ScopeMT5: true, ScopeServer: true,
	ScopeContent: true, ScopeSEO: true, ScopeAnalytics: true,
	ScopeOther: true,
}

// ParseScope validates a scope string, defaulting empty input to "other".
func ParseScope(s string) (Scope, error) {
	if s == "" {
		return ScopeOther, nil
	}
	scope := Scope(s)
	if !validScopes[scope] {
		return "", fmt.Errorf("%w: unknown scope %q", ErrValidation, s)
	}
	return scope, nil
}

// Priority orders todos for next-task selection.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank returns the numeric ordering weight of a priority.
// Higher values are selected first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ParsePriority validates a priority string, defaulting empty input to "medium".
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityMedium, nil
	}
	p := Priority(s)
	if p.Rank() == 0 {
		return "", fmt.Errorf("%w: unknown priority %q", ErrValidation, s)
	}
	return p, nil
}

// RecurringType controls how often a recurring todo is reactivated.
type RecurringType string

const (
	RecurringManual  RecurringType = "manual"
	RecurringHourly  RecurringType = "hourly"
	RecurringDaily   RecurringType = "daily"
	RecurringWeekly  RecurringType = "weekly"
	RecurringMonthly RecurringType = "monthly"
)

var validRecurring = map[RecurringType]bool{
	RecurringManual: true, RecurringHourly: true, RecurringDaily: true,
	RecurringWeekly: true, RecurringMonthly: true,
}

// ParseRecurringType validates a recurrence string, defaulting empty input
// to "manual".
func ParseRecurringType(s string) (RecurringType, error) {
	if s == "" {
		return RecurringManual, nil
	}
	rt := RecurringType(s)
	if !validRecurring[rt] {
		return "", fmt.Errorf("%w: unknown recurring type %q", ErrValidation, s)
	}
	return rt, nil
}

// AgentMode is the execution policy hint passed to the remote agent.
type AgentMode string

const (
	AgentModeBypass AgentMode = "bypass"
	AgentModePlan   AgentMode = "plan"
	AgentModeNormal AgentMode = "normal"
)

// OutputEntry is one append-only log record written by the agent while it
// works on a todo.
type OutputEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
}

// Todo is a unit of work with a status lifecycle, driven by the remote agent.
type Todo struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Scope       Scope    `json:"scope"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	Tags        string   `json:"tags,omitempty"`

	// AgentEnabled gates next-task selection: the agent only picks up
	// todos with this flag set.
	AgentEnabled     bool          `json:"agent_enabled"`
	WorkingDirectory string        `json:"working_directory,omitempty"`
	AssignedTo       string        `json:"assigned_to"`
	AgentNotes       string        `json:"agent_notes,omitempty"`
	AgentOutput      []OutputEntry `json:"agent_output,omitempty"`
	AgentMode        AgentMode     `json:"agent_mode"`

	Recurring     bool          `json:"recurring"`
	RecurringType RecurringType `json:"recurring_type"`

	// StatusChangedAt records the time of the most recent status
	// transition. Nil until the first transition, and nulled again when a
	// recurring todo is reset to cron.
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`

	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
	ActualHours    *float64 `json:"actual_hours,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields required to create a todo.
func (t *Todo) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if t.Scope != "" && !validScopes[t.Scope] {
		return fmt.Errorf("%w: unknown scope %q", ErrValidation, t.Scope)
	}
	if t.Priority != "" && t.Priority.Rank() == 0 {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, t.Priority)
	}
	if t.RecurringType != "" && !validRecurring[t.RecurringType] {
		return fmt.Errorf("%w: unknown recurring type %q", ErrValidation, t.RecurringType)
	}
	return nil
}

// Ready reports whether the todo is eligible for next-task selection.
func (t *Todo) Ready() bool {
	return t.Status == StatusPending && t.AgentEnabled
}

// HistoryEntry is the immutable audit record of one field's value change.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	TodoID    int64     `json:"todo_id"`
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Actor     string    `json:"actor,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// Comment is a free-text annotation on a todo, flagged by author kind.
type Comment struct {
	ID        int64     `json:"id"`
	TodoID    int64     `json:"todo_id"`
	Body      string    `json:"body"`
	Author    string    `json:"author,omitempty"`
	Agent     bool      `json:"agent"`
	CreatedAt time.Time `json:"created_at"`
}

// Attachment is a file on disk associated with a todo. Files are removed
// when the todo is deleted.
type Attachment struct {
	ID       int64  `json:"id"`
	TodoID   int64  `json:"todo_id"`
	FilePath string `json:"file_path"`
}
