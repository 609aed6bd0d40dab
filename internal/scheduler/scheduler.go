// Package scheduler drives periodic universe re-evaluation and watchlist
// maintenance on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"TargetSentinel/internal/engine"
	"TargetSentinel/internal/notifier"
)

// Scheduler manages all cron tasks.
type Scheduler struct {
	cron   *cron.Cron
	engine *engine.Engine
	sink   notifier.Sink
	log    zerolog.Logger
	ctx    context.Context
}

// New creates a Scheduler.
func New(ctx context.Context, eng *engine.Engine, sink notifier.Sink, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		engine: eng,
		sink:   sink,
		log:    log,
		ctx:    ctx,
	}
}

// RegisterAll registers the universe and maintenance tasks.
func (s *Scheduler) RegisterAll(universeCron, maintenanceCron string) error {
	if _, err := s.cron.AddFunc(universeCron, s.universeTask); err != nil {
		return fmt.Errorf("register universe task: %w", err)
	}
	if _, err := s.cron.AddFunc(maintenanceCron, s.maintenanceTask); err != nil {
		return fmt.Errorf("register maintenance task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info().Msg("scheduler stopped")
}

// RunUniverseNow executes the universe task immediately (manual trigger).
func (s *Scheduler) RunUniverseNow() {
	s.universeTask()
}

// universeTask re-evaluates every company with stored signals.
func (s *Scheduler) universeTask() {
	asOf := time.Now().UTC()
	companies, err := s.engine.Companies(s.ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("universe task: list companies")
		return
	}
	s.log.Info().Int("companies", len(companies)).Msg("running universe evaluation")

	for _, companyID := range companies {
		_, alerts, _, err := s.engine.Evaluate(s.ctx, companyID, asOf)
		if err != nil {
			s.log.Error().Err(err).Str("company", companyID).Msg("universe task: evaluate")
			continue
		}
		if len(alerts) > 0 {
			if err := s.sink.Deliver(s.ctx, alerts...); err != nil {
				s.log.Error().Err(err).Str("company", companyID).Msg("universe task: deliver alerts")
			}
		}
	}
}

// maintenanceTask ages out companies whose score has stayed low.
func (s *Scheduler) maintenanceTask() {
	demoted, err := s.engine.Tracker().SweepInactive(s.ctx, time.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("maintenance task: inactive sweep")
		return
	}
	if demoted > 0 {
		s.log.Info().Int("demoted", demoted).Msg("inactive sweep complete")
	}
}
