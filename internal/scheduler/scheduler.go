// Package scheduler drives the two periodic jobs, each guarded by its own
// cluster-wide lease lock so at most one instance runs a job per tick.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-alert-service/internal/alert"
	"github.com/i474232898/weather-alert-service/internal/ingest"
	"github.com/i474232898/weather-alert-service/internal/lock"
)

// Lock names. Ingestion and dispatch never contend with each other.
const (
	ingestLockName   = "weather_ingest"
	dispatchLockName = "alert_dispatch"
)

// JobConfig holds the cadence and lock-hold bounds of one job.
type JobConfig struct {
	Interval time.Duration
	MinHold  time.Duration
	MaxHold  time.Duration
}

// Scheduler owns the two timer-driven jobs.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	locker     *lock.Locker
	ingestor   *ingest.Service
	dispatcher *alert.Dispatcher
	ingestCfg  JobConfig
	dispatch   JobConfig
}

// New creates a Scheduler; Start schedules the jobs.
func New(locker *lock.Locker, ingestor *ingest.Service, dispatcher *alert.Dispatcher, ingestCfg, dispatchCfg JobConfig) *Scheduler {
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		locker:     locker,
		ingestor:   ingestor,
		dispatcher: dispatcher,
		ingestCfg:  ingestCfg,
		dispatch:   dispatchCfg,
	}
}

// Start registers both jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.ingestCfg.Interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.ingestCfg.MaxHold)
		defer cancel()
		s.TriggerIngest(ctx)
	})
	if err != nil {
		return err
	}

	_, err = s.scheduler.Every(s.dispatch.Interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.dispatch.MaxHold)
		defer cancel()
		s.triggerDispatch(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// TriggerIngest runs one ingestion pass under the ingestion lock. The
// manual operational endpoint shares this path, so it gets the same
// re-entrancy protection as the scheduled run. Returns whether this
// instance actually ran.
func (s *Scheduler) TriggerIngest(ctx context.Context) bool {
	ran, err := s.locker.TryRun(ctx, ingestLockName, s.ingestCfg.MinHold, s.ingestCfg.MaxHold, func(ctx context.Context) {
		if err := s.ingestor.IngestAll(ctx); err != nil {
			log.Error().Err(err).Msg("ingestion run failed")
		}
	})
	if err != nil {
		log.Error().Err(err).Str("lock", ingestLockName).Msg("lock acquisition failed")
		return false
	}
	return ran
}

func (s *Scheduler) triggerDispatch(ctx context.Context) {
	_, err := s.locker.TryRun(ctx, dispatchLockName, s.dispatch.MinHold, s.dispatch.MaxHold, func(ctx context.Context) {
		if _, err := s.dispatcher.DispatchPending(ctx); err != nil {
			log.Error().Err(err).Msg("dispatch run failed")
		}
	})
	if err != nil {
		log.Error().Err(err).Str("lock", dispatchLockName).Msg("lock acquisition failed")
	}
}
