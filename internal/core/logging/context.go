package logging

import "context"

type contextKey string

const (
	todoIDKey contextKey = "todo_id"
	actorKey  contextKey = "actor"
)

// WithTodoID adds a todo ID to the context.
func WithTodoID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, todoIDKey, id)
}

// WithActor adds the acting identity (agent name, "cli", "scheduler") to the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetTodoID retrieves the todo ID from the context.
// Returns zero if not present.
func GetTodoID(ctx context.Context) int64 {
	if id, ok := ctx.Value(todoIDKey).(int64); ok {
		return id
	}
	return 0
}

// GetActor retrieves the actor from the context.
// Returns empty string if not present.
func GetActor(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey).(string); ok {
		return actor
	}
	return ""
}
