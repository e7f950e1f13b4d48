package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	taskDB "document-generator-service/internal/document-manager/db"
	"document-generator-service/internal/document-manager/events"
	"document-generator-service/internal/document-manager/schedules"
)

const (
	periodicScheduleTag = "periodic_schedule"
	refreshJobName      = "refresh_periodic_schedules"
)

// ScheduleSource is the part of the schedule store the engine reads.
type ScheduleSource interface {
	ListEnabled(ctx context.Context) ([]taskDB.PeriodicSchedule, error)
	MarkRun(ctx context.Context, name string, at time.Time) error
}

type registeredJob struct {
	id       uuid.UUID
	interval time.Duration
}

// SchedulerService mirrors the enabled periodic schedules into gocron
// duration jobs and dispatches a generation whenever one fires.
type SchedulerService struct {
	Store           ScheduleSource
	Scheduler       gocron.Scheduler
	Dispatcher      Dispatcher
	RefreshInterval time.Duration
	appContext      context.Context
	log             zerolog.Logger

	mu   sync.Mutex
	jobs map[string]registeredJob

	syncRequests chan struct{}
	done         chan struct{}
	stopOnce     sync.Once
}

func NewSchedulerService(ctx context.Context, store ScheduleSource, dispatcher Dispatcher, refresh time.Duration, logger zerolog.Logger) (*SchedulerService, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &SchedulerService{
		Store:           store,
		Scheduler:       s,
		Dispatcher:      dispatcher,
		RefreshInterval: refresh,
		appContext:      ctx,
		log:             logger.With().Str("component", "scheduler_service").Logger(),
		jobs:            make(map[string]registeredJob),
		syncRequests:    make(chan struct{}, 1),
		done:            make(chan struct{}),
	}, nil
}

// Start loads the enabled schedules, starts gocron and keeps the job set in
// step with the store from then on.
func (s *SchedulerService) Start() error {
	s.log.Info().Msg("SchedulerService starting...")
	if err := s.Sync(s.appContext); err != nil {
		return err
	}
	if s.RefreshInterval > 0 {
		_, err := s.Scheduler.NewJob(
			gocron.DurationJob(s.RefreshInterval),
			gocron.NewTask(s.RequestSync),
			gocron.WithName(refreshJobName),
			gocron.WithTags("scheduler_refresh"),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule refresh job: %w", err)
		}
	}
	go s.syncLoop()
	s.Scheduler.Start()
	s.log.Info().Int("jobs", len(s.Scheduler.Jobs())).Msg("SchedulerService started")
	return nil
}

func (s *SchedulerService) Stop() {
	s.log.Info().Msg("SchedulerService stopping...")
	s.stopOnce.Do(func() { close(s.done) })
	if err := s.Scheduler.Shutdown(); err != nil {
		s.log.Error().Err(err).Msg("Error shutting down gocron scheduler")
		return
	}
	s.log.Info().Msg("Gocron scheduler shut down successfully")
}

// RequestSync asks the background loop for a Sync without waiting for it.
// Requests made while one is pending are merged.
func (s *SchedulerService) RequestSync() {
	select {
	case s.syncRequests <- struct{}{}:
	default:
	}
}

func (s *SchedulerService) syncLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.appContext.Done():
			return
		case <-s.syncRequests:
			if err := s.Sync(s.appContext); err != nil {
				s.log.Error().Err(err).Msg("Periodic schedule sync failed")
			}
		}
	}
}

// RefreshScheduledJobs syncs immediately.
func (s *SchedulerService) RefreshScheduledJobs() error { return s.Sync(s.appContext) }

// Sync creates, updates and removes gocron jobs so that there is exactly one
// job per enabled schedule, running at that schedule's interval. Rows that
// cannot be turned into a job are logged and skipped.
func (s *SchedulerService) Sync(ctx context.Context) error {
	rows, err := s.Store.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to load periodic schedules: %w", err)
	}

	type wanted struct {
		interval   time.Duration
		documentID uint
	}
	desired := make(map[string]wanted, len(rows))
	for _, row := range rows {
		d, err := schedules.Descriptor(row)
		if err != nil {
			s.log.Error().Err(err).Str("schedule", row.Name).Msg("Skipping unreadable schedule")
			continue
		}
		interval, err := d.Interval()
		if err != nil {
			s.log.Error().Err(err).Str("schedule", row.Name).Msg("Skipping schedule with invalid interval")
			continue
		}
		documentID, err := schedules.DocumentID(d)
		if err != nil {
			s.log.Error().Err(err).Str("schedule", row.Name).Msg("Skipping schedule without document")
			continue
		}
		desired[row.Name] = wanted{interval: interval, documentID: documentID}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, reg := range s.jobs {
		if _, ok := desired[name]; ok {
			continue
		}
		if err := s.Scheduler.RemoveJob(reg.id); err != nil {
			s.log.Warn().Err(err).Str("schedule", name).Msg("Error removing gocron job")
		}
		delete(s.jobs, name)
		s.log.Info().Str("schedule", name).Msg("Unscheduled periodic schedule")
	}

	for name, w := range desired {
		reg, exists := s.jobs[name]
		if exists && reg.interval == w.interval {
			continue
		}
		definition := gocron.DurationJob(w.interval)
		task := gocron.NewTask(s.fireTask(name, w.documentID))
		options := []gocron.JobOption{
			gocron.WithName(name),
			gocron.WithTags(periodicScheduleTag, "schedule:"+name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		}

		var job gocron.Job
		if exists {
			job, err = s.Scheduler.Update(reg.id, definition, task, options...)
		} else {
			job, err = s.Scheduler.NewJob(definition, task, options...)
		}
		if err != nil {
			s.log.Error().Err(err).Str("schedule", name).Dur("interval", w.interval).Msg("Error scheduling periodic schedule")
			continue
		}
		s.jobs[name] = registeredJob{id: job.ID(), interval: w.interval}

		event := s.log.Info().Str("schedule", name).Uint("document_id", w.documentID).
			Dur("interval", w.interval).Str("job_id", job.ID().String())
		if next, err := job.NextRun(); err == nil {
			event = event.Time("next_run", next)
		}
		if exists {
			event.Msg("Rescheduled periodic schedule")
		} else {
			event.Msg("Scheduled periodic schedule")
		}
	}
	return nil
}

func (s *SchedulerService) fireTask(name string, documentID uint) func() {
	return func() {
		if err := s.Fire(s.appContext, name, documentID); err != nil {
			s.log.Error().Err(err).Str("schedule", name).Uint("document_id", documentID).Msg("Firing failed")
		}
	}
}

// Fire records one run of the named schedule and dispatches the generation.
// It is what gocron calls when a job is due.
func (s *SchedulerService) Fire(ctx context.Context, name string, documentID uint) error {
	now := time.Now().UTC()
	if err := s.Store.MarkRun(ctx, name, now); err != nil {
		s.log.Warn().Err(err).Str("schedule", name).Msg("Could not record schedule run")
	}
	payload := events.GenerationDispatchPayload{
		DispatchID:   uuid.NewString(),
		DocumentID:   documentID,
		ScheduleName: name,
		DispatchedAt: now,
	}
	if err := s.Dispatcher.Dispatch(ctx, payload); err != nil {
		return fmt.Errorf("dispatch %s: %w", payload.DispatchID, err)
	}
	return nil
}

// ScheduledJob is a snapshot of one live job.
type ScheduledJob struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	NextRun  *time.Time    `json:"next_run,omitempty"`
}

// ScheduledJobs returns the live periodic schedule jobs keyed by name.
func (s *SchedulerService) ScheduledJobs() map[string]ScheduledJob {
	s.mu.Lock()
	byID := make(map[uuid.UUID]string, len(s.jobs))
	out := make(map[string]ScheduledJob, len(s.jobs))
	for name, reg := range s.jobs {
		byID[reg.id] = name
		out[name] = ScheduledJob{Name: name, Interval: reg.interval}
	}
	s.mu.Unlock()

	for _, job := range s.Scheduler.Jobs() {
		name, ok := byID[job.ID()]
		if !ok {
			continue
		}
		if next, err := job.NextRun(); err == nil && !next.IsZero() {
			snapshot := out[name]
			snapshot.NextRun = &next
			out[name] = snapshot
		}
	}
	return out
}
