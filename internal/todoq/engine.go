// Package todoq is the service layer driving the todo lifecycle: validated
// status transitions, recurring resets, atomic next-task claims, report
// generation, and dispatch to the remote agent session.
package todoq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/todoq/internal/core/eventbus"
	"github.com/colonyops/todoq/internal/core/logging"
	"github.com/colonyops/todoq/internal/core/todo"
)

// Result is the outcome of a transition. A zero Changes slice means the
// transition was a no-op (already in a terminal state).
type Result struct {
	Todo      todo.Todo
	OldStatus todo.Status
	// NewStatus is the logical target of the transition. For a recurring
	// completion the stored todo already reads cron while NewStatus is
	// completed.
	NewStatus todo.Status
	Changes   []todo.Change
	ReportID  int64

	// Warnings carries listener failures that did not affect persistence,
	// such as a failed dispatch to the agent session.
	Warnings []string
}

// NoOp reports whether the transition changed nothing.
func (r *Result) NoOp() bool {
	return len(r.Changes) == 0
}

// TransitionListener runs after a committed transition, in registration
// order. Returning a *DispatchError downgrades to a warning on the result;
// any other error stops the remaining listeners and is returned to the
// caller with the transition already committed.
type TransitionListener interface {
	Name() string
	AfterTransition(ctx context.Context, res *Result) error
}

// Engine orchestrates todo lifecycle operations on top of the store.
type Engine struct {
	store     todo.Store
	bus       *eventbus.EventBus
	listeners []TransitionListener
	log       zerolog.Logger
}

// NewEngine creates a transition engine. Listeners are registered separately
// during startup, before the first transition runs.
func NewEngine(store todo.Store, bus *eventbus.EventBus) *Engine {
	return &Engine{
		store: store,
		bus:   bus,
		log:   logging.Component("engine"),
	}
}

// Register appends a transition listener. Listeners run in registration
// order after every committed transition.
func (e *Engine) Register(l TransitionListener) {
	e.listeners = append(e.listeners, l)
}

// Create validates and persists a new todo.
func (e *Engine) Create(ctx context.Context, t *todo.Todo) (todo.Todo, error) {
	id, err := e.store.Create(ctx, t)
	if err != nil {
		return todo.Todo{}, err
	}

	created, err := e.store.Get(ctx, id)
	if err != nil {
		return todo.Todo{}, err
	}

	e.bus.PublishTodoCreated(eventbus.TodoCreatedPayload{Todo: &created})
	e.log.Info().Int64("id", id).Str("title", created.Title).Msg("todo created")

	return created, nil
}

// Get returns a todo by ID.
func (e *Engine) Get(ctx context.Context, id int64) (todo.Todo, error) {
	return e.store.Get(ctx, id)
}

// List returns todos matching the filter.
func (e *Engine) List(ctx context.Context, filter todo.ListFilter) ([]todo.Todo, error) {
	return e.store.List(ctx, filter)
}

// Update applies a general field update. A status change in the request goes
// through the full transition path, including the recurring reset and the
// listeners.
func (e *Engine) Update(ctx context.Context, id int64, req todo.UpdateRequest) (Result, error) {
	if req.Status != nil {
		return e.Transition(ctx, id, *req.Status, req)
	}

	updated, changes, err := e.store.Update(ctx, id, req)
	if err != nil {
		return Result{}, err
	}
	return Result{Todo: updated, OldStatus: updated.Status, NewStatus: updated.Status, Changes: changes}, nil
}

// Transition moves a todo to newStatus. The status change, the per-field
// history rows, and (for a completed recurring todo) the cron snapshot and
// reset commit in one transaction. Listeners run afterwards; their failures
// never roll the transition back.
func (e *Engine) Transition(ctx context.Context, id int64, newStatus todo.Status, req todo.UpdateRequest) (Result, error) {
	current, err := e.store.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}

	// Re-completing an already terminal todo is a no-op: no history rows,
	// no report, no events.
	if current.Status == newStatus && newStatus.Terminal() {
		return Result{Todo: current, OldStatus: current.Status, NewStatus: newStatus}, nil
	}

	// A repeated non-terminal status is not a transition edge: apply the
	// other field changes, but skip the status event, the report, and the
	// agent trigger.
	if current.Status == newStatus {
		updated, changes, err := e.store.Update(ctx, id, req)
		if err != nil {
			return Result{}, err
		}
		return Result{Todo: updated, OldStatus: current.Status, NewStatus: newStatus, Changes: changes}, nil
	}

	ctx = logging.WithTodoID(ctx, id)
	if req.Actor != "" {
		ctx = logging.WithActor(ctx, req.Actor)
	}

	res := Result{OldStatus: current.Status, NewStatus: newStatus}
	status := newStatus
	req.Status = &status

	if current.Recurring && newStatus == todo.StatusCompleted {
		reset, err := e.store.CompleteRecurring(ctx, id, req)
		if err != nil {
			return Result{}, err
		}
		res.Todo = reset
		res.Changes = []todo.Change{
			{Field: "status", Old: string(current.Status), New: string(todo.StatusCompleted)},
			{Field: "status", Old: string(todo.StatusCompleted), New: string(todo.StatusCron)},
		}
		e.bus.PublishCronReset(eventbus.CronResetPayload{Todo: &reset})
	} else {
		updated, changes, err := e.store.Update(ctx, id, req)
		if err != nil {
			return Result{}, err
		}
		res.Todo = updated
		res.Changes = changes
	}

	e.bus.PublishTodoStatusChanged(eventbus.TodoStatusChangedPayload{
		Todo:      &res.Todo,
		OldStatus: current.Status,
		NewStatus: newStatus,
	})
	e.log.Info().
		Ctx(ctx).
		Str("from", string(current.Status)).
		Str("to", string(newStatus)).
		Msg("status transition")

	if err := e.runListeners(ctx, &res); err != nil {
		return res, err
	}

	return res, nil
}

func (e *Engine) runListeners(ctx context.Context, res *Result) error {
	for _, l := range e.listeners {
		err := l.AfterTransition(ctx, res)
		if err == nil {
			continue
		}

		var dispatchErr *DispatchError
		if errors.As(err, &dispatchErr) {
			e.log.Warn().Err(err).Str("listener", l.Name()).Msg("dispatch failed")
			e.bus.PublishDispatchFailed(eventbus.DispatchFailedPayload{
				TodoID: res.Todo.ID,
				Err:    err,
			})
			res.Warnings = append(res.Warnings, err.Error())
			continue
		}

		return fmt.Errorf("listener %s: %w", l.Name(), err)
	}
	return nil
}

// Delete removes a todo and its attachment files.
func (e *Engine) Delete(ctx context.Context, id int64, removeFile func(path string) error) error {
	attachments, err := e.store.Attachments(ctx, id)
	if err != nil {
		return err
	}

	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}

	for _, a := range attachments {
		if removeFile == nil {
			continue
		}
		if err := removeFile(a.FilePath); err != nil {
			e.log.Warn().Err(err).Str("path", a.FilePath).Msg("attachment file not removed")
		}
	}

	e.bus.PublishTodoDeleted(eventbus.TodoDeletedPayload{TodoID: id})
	return nil
}

// Activate moves a parked cron todo back into the queue: status pending with
// the agent flag set.
func (e *Engine) Activate(ctx context.Context, id int64, actor string) (todo.Todo, error) {
	status := todo.StatusPending
	enabled := true
	updated, _, err := e.store.Update(ctx, id, todo.UpdateRequest{
		Status:       &status,
		AgentEnabled: &enabled,
		Actor:        actor,
	})
	if err != nil {
		return todo.Todo{}, err
	}
	return updated, nil
}

// ResetToCron snapshots a cron report and parks a recurring todo, independent
// of the completion path.
func (e *Engine) ResetToCron(ctx context.Context, id int64, actor string) (todo.Todo, error) {
	current, err := e.store.Get(ctx, id)
	if err != nil {
		return todo.Todo{}, err
	}
	if !current.Recurring {
		return todo.Todo{}, fmt.Errorf("%w: todo %d is not recurring", todo.ErrValidation, id)
	}

	reset, err := e.store.CompleteRecurring(ctx, id, todo.UpdateRequest{Actor: actor})
	if err != nil {
		return todo.Todo{}, err
	}

	e.bus.PublishCronReset(eventbus.CronResetPayload{Todo: &reset})
	return reset, nil
}

// Stats returns the aggregate snapshot of the queue.
func (e *Engine) Stats(ctx context.Context) (todo.Stats, error) {
	return e.store.Stats(ctx)
}

// AppendOutput records one agent output entry on a todo.
func (e *Engine) AppendOutput(ctx context.Context, id int64, entry todo.OutputEntry, maxBytes int) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return e.store.AppendOutput(ctx, id, entry, maxBytes)
}
