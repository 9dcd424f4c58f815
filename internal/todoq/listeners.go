package todoq

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/todoq/internal/core/eventbus"
	"github.com/colonyops/todoq/internal/core/logging"
	"github.com/colonyops/todoq/internal/core/report"
	"github.com/colonyops/todoq/internal/core/todo"
)

// ReportListener stores a status report whenever a todo leaves the
// in_progress state.
type ReportListener struct {
	reports report.Store
	bus     *eventbus.EventBus
	log     zerolog.Logger
}

// NewReportListener creates the report-generating transition listener.
func NewReportListener(reports report.Store, bus *eventbus.EventBus) *ReportListener {
	return &ReportListener{
		reports: reports,
		bus:     bus,
		log:     logging.Component("reports"),
	}
}

var _ TransitionListener = (*ReportListener)(nil)

func (l *ReportListener) Name() string { return "status-report" }

// AfterTransition renders and stores a report when the old status was
// in_progress and the status actually changed. For a recurring todo the
// stored todo is already reset, so the report uses the transition's logical
// target status.
func (l *ReportListener) AfterTransition(ctx context.Context, res *Result) error {
	if res.OldStatus != todo.StatusInProgress || res.OldStatus == res.NewStatus || res.NoOp() {
		return nil
	}

	newStatus := res.NewStatus
	now := time.Now()

	r := report.StatusReport{
		TodoID:    res.Todo.ID,
		OldStatus: res.OldStatus,
		NewStatus: newStatus,
		Body:      RenderStatusReport(res.Todo, res.OldStatus, newStatus, now),
		CreatedAt: now,
	}
	id, err := l.reports.SaveStatusReport(ctx, &r)
	if err != nil {
		return err
	}

	res.ReportID = id
	l.bus.PublishReportGenerated(eventbus.ReportGeneratedPayload{
		TodoID:   res.Todo.ID,
		ReportID: id,
	})
	l.log.Debug().Int64("todo", res.Todo.ID).Int64("report", id).Msg("status report stored")

	return nil
}

// AgentTriggerListener nudges the remote agent session when a todo leaves
// the pending state and ready work remains in the queue, so the agent keeps
// draining the queue without a human in the loop.
type AgentTriggerListener struct {
	store      todo.Store
	dispatcher Dispatcher
	command    string
	log        zerolog.Logger
}

// NewAgentTriggerListener creates the auto-advance listener. The command is
// what gets typed into the agent session, typically "./todo".
func NewAgentTriggerListener(store todo.Store, dispatcher Dispatcher, command string) *AgentTriggerListener {
	if command == "" {
		command = "./todo"
	}
	return &AgentTriggerListener{
		store:      store,
		dispatcher: dispatcher,
		command:    command,
		log:        logging.Component("auto-advance"),
	}
}

var _ TransitionListener = (*AgentTriggerListener)(nil)

func (l *AgentTriggerListener) Name() string { return "agent-trigger" }

func (l *AgentTriggerListener) AfterTransition(ctx context.Context, res *Result) error {
	if res.OldStatus != todo.StatusPending || res.OldStatus == res.NewStatus || res.NoOp() {
		return nil
	}

	ready, err := l.store.CountReady(ctx)
	if err != nil {
		return err
	}
	if ready == 0 {
		return nil
	}

	delivery, err := l.dispatcher.Deliver(ctx, l.command)
	if err != nil {
		return err
	}

	l.log.Debug().
		Int64("ready", ready).
		Bool("delivered", delivery.Success).
		Msg("agent trigger sent")
	return nil
}
