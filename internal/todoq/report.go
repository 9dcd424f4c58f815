package todoq

import (
	"fmt"
	"strings"
	"time"

	"github.com/colonyops/todoq/internal/core/todo"
)

// RenderStatusReport produces the plain-text report stored when a todo
// leaves the in_progress state.
func RenderStatusReport(t todo.Todo, old, next todo.Status, at time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Task Report: %s (#%d)\n", t.Title, t.ID)
	b.WriteString("═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(&b, "Status change: %s → %s\n", old, next)
	fmt.Fprintf(&b, "Scope:         %s\n", t.Scope)
	fmt.Fprintf(&b, "Priority:      %s\n", t.Priority)
	if t.AssignedTo != "" {
		fmt.Fprintf(&b, "Assigned to:   %s\n", t.AssignedTo)
	}
	if t.WorkingDirectory != "" {
		fmt.Fprintf(&b, "Directory:     %s\n", t.WorkingDirectory)
	}
	fmt.Fprintf(&b, "Generated:     %s\n", at.Format(time.RFC3339))

	if t.Description != "" {
		b.WriteString("\nDescription:\n")
		b.WriteString(indent(t.Description))
	}

	switch next {
	case todo.StatusCompleted, todo.StatusCron:
		if t.AgentNotes != "" {
			b.WriteString("\nCompletion notes:\n")
			b.WriteString(indent(t.AgentNotes))
		}
		if t.ActualHours != nil {
			fmt.Fprintf(&b, "\nActual time: %.1f hours\n", *t.ActualHours)
		}
	case todo.StatusBlocked:
		b.WriteString("\nThe task is blocked.\n")
		if t.AgentNotes != "" {
			b.WriteString("Reason:\n")
			b.WriteString(indent(t.AgentNotes))
		}
	case todo.StatusCancelled:
		b.WriteString("\nThe task was cancelled before completion.\n")
	}

	if n := len(t.AgentOutput); n > 0 {
		fmt.Fprintf(&b, "\nAgent output (%d entries, most recent last):\n", n)
		tail := t.AgentOutput
		if len(tail) > 10 {
			tail = tail[len(tail)-10:]
		}
		for _, entry := range tail {
			fmt.Fprintf(&b, "  [%s] %s: %s\n",
				entry.Timestamp.Format("15:04:05"), entry.Type, entry.Message)
		}
	}

	return b.String()
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n") + "\n"
}
