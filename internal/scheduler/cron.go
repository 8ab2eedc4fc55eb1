package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/amaumene/podcastarr/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"
)

// DefaultStaleTimeoutMinutes is how long a job may sit in processing before
// the recovery pass presumes its worker crashed
const DefaultStaleTimeoutMinutes = 30

// Store is the slice of the entity store the scheduler drives the queue
// through
type Store interface {
	GetOldestPendingJob() (*models.Job, error)
	FailStaleJobs(timeout time.Duration) (int, error)
	CreateJob(job *models.Job) error
}

// JobRunner processes a single claimed job to a terminal status
type JobRunner interface {
	Process(ctx context.Context, job *models.Job) error
}

// Scheduler turns periodic ticks into queue drains and source polls
type Scheduler struct {
	cron      *cron.Cron
	db        Store
	processor JobRunner
	logger    *logrus.Logger

	pollIntervalMinutes int
	staleTimeout        time.Duration

	// Single-flight guard: a tick that fires while a drain is running is
	// skipped entirely, not queued. Owned and reset only by the scheduler.
	draining atomic.Bool
}

// NewScheduler creates a new scheduler
func NewScheduler(db Store, processor JobRunner, pollIntervalMinutes, jobTimeoutMinutes int, logger *logrus.Logger) *Scheduler {
	if jobTimeoutMinutes <= 0 {
		jobTimeoutMinutes = DefaultStaleTimeoutMinutes
	}
	return &Scheduler{
		cron:                cron.New(),
		db:                  db,
		processor:           processor,
		logger:              logger,
		pollIntervalMinutes: pollIntervalMinutes,
		staleTimeout:        time.Duration(jobTimeoutMinutes) * time.Minute,
	}
}

// Start registers the periodic jobs and starts the cron loop
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	// Every 30 seconds: drain the pending job queue
	_, err := s.cron.AddFunc("@every 30s", func() {
		s.Drain()
	})
	if err != nil {
		return fmt.Errorf("failed to add drain job: %w", err)
	}

	// Periodically: queue a poll_sources job to pick up new playlist content
	_, err = s.cron.AddFunc(fmt.Sprintf("@every %dm", s.pollIntervalMinutes), func() {
		s.enqueueSourcePoll()
	})
	if err != nil {
		return fmt.Errorf("failed to add poll job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	// Drain whatever survived the last shutdown right away
	go s.Drain()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cron.Stop()
}

// Drain recovers stale jobs, then claims and processes pending jobs oldest
// first until none remain. Jobs created while draining (scan_playlist
// spawning download_video) are picked up because the queue is re-queried
// each iteration. A drain that overlaps a running one is a no-op.
func (s *Scheduler) Drain() {
	if !s.draining.CompareAndSwap(false, true) {
		s.logger.Debug("Drain already in progress, skipping tick")
		return
	}
	defer s.draining.Store(false)

	ctx := context.Background()

	s.recoverStaleJobs()

	processed := 0
	lastJobID := ""
	for {
		job, err := s.db.GetOldestPendingJob()
		if err != nil {
			if !errors.Is(err, bolthold.ErrNotFound) {
				s.logger.WithError(err).Error("Failed to query pending jobs")
			}
			break
		}

		// A processed job must have left pending. Seeing it again means its
		// status writes are failing; stop and let the next tick retry.
		if job.ID == lastJobID {
			s.logger.WithField("job_id", job.ID).Error("Job still pending after processing, stopping drain")
			break
		}
		lastJobID = job.ID

		if processed == 0 {
			s.logger.Info("Processing pending jobs")
		}
		processed++

		// Per-job isolation: a failing job is already recorded as failed by
		// the processor; it must never halt the queue
		if err := s.processor.Process(ctx, job); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"job_id":   job.ID,
				"job_type": job.Type,
			}).Error("Job processing failed")
		}
	}

	if processed > 0 {
		s.logger.WithField("count", processed).Info("Finished processing jobs")
	}
}

// recoverStaleJobs fails jobs stuck in processing past the timeout, the
// backstop for workers that crashed mid-execution
func (s *Scheduler) recoverStaleJobs() {
	recovered, err := s.db.FailStaleJobs(s.staleTimeout)
	if err != nil {
		s.logger.WithError(err).Error("Stale job recovery failed")
		return
	}
	if recovered > 0 {
		s.logger.WithField("count", recovered).Warn("Recovered stale jobs")
	}
}

func (s *Scheduler) enqueueSourcePoll() {
	job, err := models.NewJob(models.JobTypePollSources, models.PollSourcesMetadata{})
	if err != nil {
		s.logger.WithError(err).Error("Failed to build poll_sources job")
		return
	}
	if err := s.db.CreateJob(job); err != nil {
		s.logger.WithError(err).Error("Failed to queue poll_sources job")
		return
	}
	s.logger.WithField("job_id", job.ID).Debug("Queued poll_sources job")
}
