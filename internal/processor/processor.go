package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/podcastarr/internal/models"
	"github.com/sirupsen/logrus"
)

// Processor executes one job at a time, end to end. It claims the job,
// dispatches to the type-specific pipeline, and translates any pipeline
// error into a failed terminal status before rethrowing it to the caller.
type Processor struct {
	db         Store
	source     MediaSource
	media      MediaProcessor
	downloader URLDownloader
	storage    ArtifactStore
	feed       FeedPublisher
	logger     *logrus.Logger

	progressInterval time.Duration
}

// NewProcessor creates a new job processor
func NewProcessor(
	db Store,
	source MediaSource,
	media MediaProcessor,
	downloader URLDownloader,
	storage ArtifactStore,
	feed FeedPublisher,
	logger *logrus.Logger,
) *Processor {
	return &Processor{
		db:               db,
		source:           source,
		media:            media,
		downloader:       downloader,
		storage:          storage,
		feed:             feed,
		logger:           logger,
		progressInterval: DefaultProgressInterval,
	}
}

// pipelineResult carries what a successful pipeline wants recorded on
// completion
type pipelineResult struct {
	message   string // terminal message
	podcastID string // feed to republish, empty skips republish
}

// Process runs a pending job to a terminal status. Any pipeline error is
// recorded on the job and returned; the caller (the drain loop) decides what
// to do with it.
func (p *Processor) Process(ctx context.Context, job *models.Job) error {
	log := p.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"job_type": job.Type,
	})
	log.Info("Starting job")

	if err := p.claimJob(job); err != nil {
		return fmt.Errorf("failed to claim job %s: %w", job.ID, err)
	}

	reporter := NewReporter(p.persistProgress(job.ID), p.progressInterval)

	var result *pipelineResult
	var err error

	switch job.Type {
	case models.JobTypeDownloadVideo:
		result, err = p.processVideoDownload(ctx, job, reporter)
	case models.JobTypeScanPlaylist:
		result, err = p.processPlaylistScan(ctx, job, reporter)
	case models.JobTypeDownloadURL:
		result, err = p.processURLDownload(ctx, job, reporter)
	case models.JobTypeProcessUpload:
		result, err = p.processUpload(ctx, job, reporter)
	case models.JobTypePollSources:
		result, err = p.processPollSources(ctx, job)
	default:
		err = fmt.Errorf("unknown job type: %s", job.Type)
	}

	// The last observed progress must be durable before the terminal write
	reporter.Flush()

	if err != nil {
		log.WithError(err).Error("Job failed")
		if failErr := p.failJob(job, err); failErr != nil {
			return failErr
		}
		return err
	}

	if err := p.completeJob(job, result.message); err != nil {
		return err
	}
	log.Info("Job completed")

	if result.podcastID != "" {
		p.republishFeed(ctx, job.ID, result.podcastID)
	}

	return nil
}

// claimJob atomically moves a job from pending to processing. This is the
// mutual-exclusion point; the scheduler's single-flight guarantee means no
// two claimants race here.
func (p *Processor) claimJob(job *models.Job) error {
	now := time.Now()
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	job.Progress = 0
	job.Message = "Starting…"
	return p.db.UpdateJob(job)
}

func (p *Processor) completeJob(job *models.Job, message string) error {
	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	job.Message = message
	job.EndedAt = &now
	if err := p.db.UpdateJob(job); err != nil {
		return fmt.Errorf("failed to record completion of job %s: %w", job.ID, err)
	}
	return nil
}

func (p *Processor) failJob(job *models.Job, cause error) error {
	now := time.Now()
	job.Status = models.JobStatusFailed
	job.Error = cause.Error()
	job.EndedAt = &now
	if err := p.db.UpdateJob(job); err != nil {
		return fmt.Errorf("failed to record failure of job %s: %w", job.ID, err)
	}
	return nil
}

// persistProgress builds the reporter's write-through. Progress writes are
// advisory; failures are logged and swallowed so they can never fail a
// pipeline.
func (p *Processor) persistProgress(jobID string) func(progress int, message string) {
	return func(progress int, message string) {
		job, err := p.db.GetJobByID(jobID)
		if err != nil {
			p.logger.WithError(err).WithField("job_id", jobID).Debug("Progress write skipped")
			return
		}
		job.Progress = progress
		job.Message = message
		if err := p.db.UpdateJob(job); err != nil {
			p.logger.WithError(err).WithField("job_id", jobID).Debug("Progress write failed")
		}
	}
}

// republishFeed is a best-effort side effect: the feed is a derived,
// idempotent artifact, so a failed republish is logged and discarded rather
// than failing the job that triggered it.
func (p *Processor) republishFeed(ctx context.Context, jobID, podcastID string) {
	if _, err := p.feed.PublishFeed(ctx, podcastID); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"job_id":     jobID,
			"podcast_id": podcastID,
		}).Warn("Feed republish failed (non-fatal)")
	}
}

// phasePercent rescales an adapter's 0-100 progress into a job phase range
func phasePercent(pct float64, start, span int) int {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return start + int(pct*float64(span)/100+0.5)
}
