package todoq

import (
	"context"

	"github.com/colonyops/todoq/internal/core/config"
	"github.com/colonyops/todoq/internal/core/eventbus"
	"github.com/colonyops/todoq/internal/core/report"
	"github.com/colonyops/todoq/internal/core/todo"
	"github.com/colonyops/todoq/internal/data/db"
	"github.com/colonyops/todoq/pkg/executil"
)

// App is the central entry point for all todoq operations.
// Commands and the HTTP server consume App instead of cherry-picking raw
// dependencies.
type App struct {
	Engine    *Engine
	Service   *Service
	Scheduler *Scheduler

	Todos      todo.Store
	Reports    report.Store
	Dispatcher Dispatcher
	Bus        *eventbus.EventBus
	Config     *config.Config
	DB         *db.DB

	busCancel context.CancelFunc
}

// NewApp constructs an App from explicit dependencies and registers the
// transition listeners in their fixed order: reports first, then the agent
// trigger.
func NewApp(
	cfg *config.Config,
	database *db.DB,
	todos todo.Store,
	reports report.Store,
	bus *eventbus.EventBus,
) *App {
	dispatcher := NewTmuxDispatcher(&executil.RealExecutor{}, TmuxOptions{
		Session:        cfg.Dispatch.Session,
		SSHHost:        cfg.Dispatch.SSHHost,
		ConnectTimeout: cfg.Dispatch.ConnectTimeout,
		CaptureLines:   cfg.Dispatch.CaptureLines,
	})

	engine := NewEngine(todos, bus)
	engine.Register(NewReportListener(reports, bus))
	engine.Register(NewAgentTriggerListener(todos, dispatcher, cfg.Dispatch.Command))

	service := NewService(engine, todos, ServiceOptions{
		Actor:          cfg.Defaults.AssignedTo,
		OutputMaxBytes: cfg.Output.MaxBytes,
	})

	app := &App{
		Engine:     engine,
		Service:    service,
		Todos:      todos,
		Reports:    reports,
		Dispatcher: dispatcher,
		Bus:        bus,
		Config:     cfg,
		DB:         database,
	}
	if cfg.Scheduler.Enabled {
		app.Scheduler = NewScheduler(todos, engine)
	}
	return app
}

// Start launches the event bus and, when enabled, the recurrence scheduler.
func (a *App) Start(ctx context.Context) error {
	busCtx, cancel := context.WithCancel(ctx)
	a.busCancel = cancel
	go a.Bus.Start(busCtx)

	if a.Scheduler != nil {
		return a.Scheduler.Start()
	}
	return nil
}

// Stop shuts down background work. The database is closed by the caller.
func (a *App) Stop() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.busCancel != nil {
		a.busCancel()
	}
}
