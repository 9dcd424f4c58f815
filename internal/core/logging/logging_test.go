package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()

	if got := GetTodoID(ctx); got != 0 {
		t.Errorf("GetTodoID() = %d, want 0", got)
	}
	if got := GetActor(ctx); got != "" {
		t.Errorf("GetActor() = %q, want empty string", got)
	}

	ctx = WithTodoID(ctx, 42)
	ctx = WithActor(ctx, "claude")

	if got := GetTodoID(ctx); got != 42 {
		t.Errorf("GetTodoID() = %d, want 42", got)
	}
	if got := GetActor(ctx); got != "claude" {
		t.Errorf("GetActor() = %q, want %q", got, "claude")
	}
}

func TestContextHook(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Hook(ContextHook{})

	ctx := WithActor(WithTodoID(context.Background(), 7), "scheduler")
	logger.Info().Ctx(ctx).Msg("reactivated")

	out := buf.String()
	if !strings.Contains(out, `"todo_id":7`) {
		t.Errorf("log output missing todo_id: %s", out)
	}
	if !strings.Contains(out, `"actor":"scheduler"`) {
		t.Errorf("log output missing actor: %s", out)
	}
}

func TestContextHookNoContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Hook(ContextHook{})

	logger.Info().Msg("plain")

	out := buf.String()
	if strings.Contains(out, "todo_id") || strings.Contains(out, "actor") {
		t.Errorf("log output has unexpected context fields: %s", out)
	}
}
