package todoq

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/todoq/internal/core/logging"
	"github.com/colonyops/todoq/internal/core/todo"
)

// DefaultOutputMaxBytes caps the serialized agent output log per todo.
const DefaultOutputMaxBytes = 1048576

// Service is the agent-facing surface: claim the next task, stream output,
// change status, complete with auto-advance.
type Service struct {
	engine   *Engine
	store    todo.Store
	actor    string
	maxBytes int
	log      zerolog.Logger
}

// ServiceOptions configures the agent service.
type ServiceOptions struct {
	// Actor is recorded on history rows and comments, default "claude".
	Actor string
	// OutputMaxBytes caps the per-todo output log.
	OutputMaxBytes int
}

// NewService creates the agent service on top of the engine.
func NewService(engine *Engine, store todo.Store, opts ServiceOptions) *Service {
	if opts.Actor == "" {
		opts.Actor = "claude"
	}
	if opts.OutputMaxBytes == 0 {
		opts.OutputMaxBytes = DefaultOutputMaxBytes
	}
	return &Service{
		engine:   engine,
		store:    store,
		actor:    opts.Actor,
		maxBytes: opts.OutputMaxBytes,
		log:      logging.Component("service"),
	}
}

// NextTask is the claim result handed to the agent. When no candidate
// exists, Payload still carries the empty-queue message.
type NextTask struct {
	Todo    todo.Todo
	Payload string
	Claimed bool
}

// Next atomically claims the best ready todo, marks the pickup with an
// agent comment, and returns the boxed task payload.
func (s *Service) Next(ctx context.Context) (NextTask, error) {
	claimed, ok, err := s.store.ClaimNext(ctx, s.actor)
	if err != nil {
		return NextTask{}, err
	}
	if !ok {
		blocked, err := s.store.CountByStatus(ctx, todo.StatusBlocked)
		if err != nil {
			return NextTask{}, err
		}
		inProgress, err := s.store.CountByStatus(ctx, todo.StatusInProgress)
		if err != nil {
			return NextTask{}, err
		}
		return NextTask{Payload: FormatEmptyQueue(blocked, inProgress)}, nil
	}

	comment := todo.Comment{
		TodoID: claimed.ID,
		Body:   "Agent started working on this task",
		Author: s.actor,
		Agent:  true,
	}
	if err := s.store.AddComment(ctx, &comment); err != nil {
		s.log.Warn().Err(err).Int64("id", claimed.ID).Msg("pickup comment not recorded")
	}

	s.log.Info().Int64("id", claimed.ID).Str("title", claimed.Title).Msg("task claimed")

	return NextTask{
		Todo:    claimed,
		Payload: FormatTask(claimed),
		Claimed: true,
	}, nil
}

// AppendOutput records one output entry from the agent.
func (s *Service) AppendOutput(ctx context.Context, id int64, entryType, message string) error {
	if entryType == "" {
		entryType = "info"
	}
	return s.engine.AppendOutput(ctx, id, todo.OutputEntry{
		Timestamp: time.Now(),
		Type:      entryType,
		Message:   message,
	}, s.maxBytes)
}

// SetStatus transitions a todo on behalf of the agent: block, cancel, or a
// skip back to pending.
func (s *Service) SetStatus(ctx context.Context, id int64, status todo.Status, notes string) (Result, error) {
	req := todo.UpdateRequest{Actor: s.actor}
	if notes != "" {
		req.AgentNotes = &notes
	}
	return s.engine.Transition(ctx, id, status, req)
}

// Complete finishes a todo and claims the next one, mirroring the agent's
// auto-advance loop. The next task is empty when the queue has drained.
func (s *Service) Complete(ctx context.Context, id int64, notes string, actualHours *float64) (Result, NextTask, error) {
	req := todo.UpdateRequest{Actor: s.actor}
	if notes != "" {
		req.AgentNotes = &notes
	}
	if actualHours != nil {
		req.ActualHours = actualHours
	}

	res, err := s.engine.Transition(ctx, id, todo.StatusCompleted, req)
	if err != nil {
		return Result{}, NextTask{}, err
	}

	next, err := s.Next(ctx)
	if err != nil {
		// Completion committed; a failed follow-up claim is a warning.
		s.log.Warn().Err(err).Msg("next-task claim failed after completion")
		res.Warnings = append(res.Warnings, err.Error())
		return res, NextTask{}, nil
	}

	return res, next, nil
}
