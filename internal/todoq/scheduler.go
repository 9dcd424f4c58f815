package todoq

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/colonyops/todoq/internal/core/logging"
	"github.com/colonyops/todoq/internal/core/todo"
)

// Scheduler reactivates parked recurring todos on their cadence. Manual
// recurrence is never auto-activated.
type Scheduler struct {
	cron   *cron.Cron
	store  todo.Store
	engine *Engine
	log    zerolog.Logger
}

// NewScheduler creates the recurrence scheduler.
func NewScheduler(store todo.Store, engine *Engine) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		store:  store,
		engine: engine,
		log:    logging.Component("scheduler"),
	}
}

// Start registers the cadence jobs and begins scheduling.
func (s *Scheduler) Start() error {
	cadences := map[string]todo.RecurringType{
		"@hourly":  todo.RecurringHourly,
		"@daily":   todo.RecurringDaily,
		"@weekly":  todo.RecurringWeekly,
		"@monthly": todo.RecurringMonthly,
	}

	for spec, rt := range cadences {
		rt := rt
		if _, err := s.cron.AddFunc(spec, func() { s.reactivate(rt) }); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.log.Info().Msg("recurrence scheduler started")
	return nil
}

// Stop stops scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("recurrence scheduler stopped")
}

// reactivate moves every parked todo of the given cadence back to pending.
func (s *Scheduler) reactivate(rt todo.RecurringType) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	parked, err := s.store.ListCron(ctx, rt)
	if err != nil {
		s.log.Error().Err(err).Str("cadence", string(rt)).Msg("cron listing failed")
		return
	}

	for _, t := range parked {
		if _, err := s.engine.Activate(ctx, t.ID, "scheduler"); err != nil {
			s.log.Error().Err(err).Int64("id", t.ID).Msg("reactivation failed")
			continue
		}
		s.log.Info().Int64("id", t.ID).Str("cadence", string(rt)).Msg("recurring todo reactivated")
	}
}
