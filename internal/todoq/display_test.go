package todoq

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/colonyops/todoq/internal/core/todo"
)

func TestFormatTask(t *testing.T) {
	hours := 2.5
	out := FormatTask(todo.Todo{
		ID:               7,
		Title:            "Fix the login flow",
		Description:      "Users get bounced back to the login page after a successful sign-in.",
		Scope:            todo.ScopeBackend,
		Priority:         todo.PriorityHigh,
		WorkingDirectory: "/srv/app",
		EstimatedHours:   &hours,
		Tags:             "auth, regression",
	})

	assert.Contains(t, out, "TASK LOADED")
	assert.Contains(t, out, "ID: #7")
	assert.Contains(t, out, "Title: Fix the login flow")
	assert.Contains(t, out, "backend | high")
	assert.Contains(t, out, "/srv/app")
	assert.Contains(t, out, "2.5 hours")
	assert.Contains(t, out, "auth, regression")
	assert.Contains(t, out, "STATUS: IN PROGRESS")

	// Every box line has the same width.
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "║") {
			assert.Equal(t, len([]rune(boxTop)), len([]rune(line)), "line: %q", line)
		}
	}
}

func TestFormatTaskTruncatesLongValues(t *testing.T) {
	out := FormatTask(todo.Todo{
		ID:    1,
		Title: strings.Repeat("very long title ", 10),
	})
	assert.Contains(t, out, "...")
}

func TestFormatTaskMultibyteAlignment(t *testing.T) {
	out := FormatTask(todo.Todo{
		ID:          3,
		Title:       "Überprüfe die Anmeldung für größere Änderungen",
		Description: strings.Repeat("Größenänderung der Oberfläche ", 8),
		Tags:        "Qualität, Prüfung",
	})

	assert.True(t, utf8.ValidString(out))
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "║") {
			assert.Equal(t, len([]rune(boxTop)), len([]rune(line)), "line: %q", line)
		}
	}

	// Umlaut-heavy values truncate on rune boundaries.
	long := FormatTask(todo.Todo{
		ID:    4,
		Title: strings.Repeat("Ää", 60),
	})
	assert.True(t, utf8.ValidString(long))
	assert.Contains(t, long, "...")
}

func TestFormatEmptyQueue(t *testing.T) {
	out := FormatEmptyQueue(2, 1)
	assert.Contains(t, out, "NO MORE TODOS")
	assert.Contains(t, out, "2 task(s) are blocked")
	assert.Contains(t, out, "1 task(s) are still in progress")
	assert.Contains(t, out, "AUTO MODE STOPPED")

	bare := FormatEmptyQueue(0, 0)
	assert.NotContains(t, bare, "blocked")
	assert.NotContains(t, bare, "in progress")
}

func TestRenderStatusReport(t *testing.T) {
	notes := "Implemented and verified"
	hours := 1.25
	base := todo.Todo{
		ID:         3,
		Title:      "Ship it",
		Scope:      todo.ScopeBackend,
		Priority:   todo.PriorityMedium,
		AssignedTo: "claude",
		AgentNotes: notes,
		AgentOutput: []todo.OutputEntry{
			{Timestamp: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC), Type: "info", Message: "started"},
		},
		ActualHours: &hours,
	}

	t.Run("completion", func(t *testing.T) {
		body := RenderStatusReport(base, todo.StatusInProgress, todo.StatusCompleted, time.Now())
		assert.Contains(t, body, "Task Report: Ship it (#3)")
		assert.Contains(t, body, "in_progress → completed")
		assert.Contains(t, body, "Completion notes:")
		assert.Contains(t, body, "Implemented and verified")
		assert.Contains(t, body, "Actual time: 1.2 hours")
		assert.Contains(t, body, "09:30:00")
	})

	t.Run("blocked", func(t *testing.T) {
		blocked := base
		blocked.AgentNotes = "missing API key"
		body := RenderStatusReport(blocked, todo.StatusInProgress, todo.StatusBlocked, time.Now())
		assert.Contains(t, body, "The task is blocked.")
		assert.Contains(t, body, "missing API key")
	})

	t.Run("cancelled", func(t *testing.T) {
		body := RenderStatusReport(base, todo.StatusInProgress, todo.StatusCancelled, time.Now())
		assert.Contains(t, body, "cancelled before completion")
	})
}
