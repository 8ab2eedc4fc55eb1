package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/podcastarr/internal/models"
	"github.com/sirupsen/logrus"
)

// processPollSources enumerates playlist sources (optionally scoped to one
// podcast) and queues a scan_playlist job per source.
func (p *Processor) processPollSources(ctx context.Context, job *models.Job) (*pipelineResult, error) {
	meta, err := job.PollSourcesMetadata()
	if err != nil {
		return nil, err
	}

	sources, err := p.db.GetPlaylistSources(meta.PodcastID)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist sources: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"count":  len(sources),
	}).Info("Polling playlist sources")

	created := 0
	for _, source := range sources {
		scanJob, err := models.NewJob(models.JobTypeScanPlaylist, models.PlaylistScanMetadata{
			PlaylistID: source.ExternalID,
			PodcastID:  source.PodcastID,
		})
		if err != nil {
			return nil, err
		}
		if err := p.db.CreateJob(scanJob); err != nil {
			return nil, fmt.Errorf("failed to queue scan for source %s: %w", source.ID, err)
		}
		created++

		now := time.Now()
		source.LastChecked = &now
		if err := p.db.UpdateSource(source); err != nil {
			return nil, fmt.Errorf("failed to update source %s: %w", source.ID, err)
		}
	}

	return &pipelineResult{message: fmt.Sprintf("Created %d scan job(s)", created)}, nil
}
