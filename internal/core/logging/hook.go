package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook extracts todo_id and actor from context and adds them to log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if id := GetTodoID(ctx); id != 0 {
		e.Int64("todo_id", id)
	}

	if actor := GetActor(ctx); actor != "" {
		e.Str("actor", actor)
	}
}
