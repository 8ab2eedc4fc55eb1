package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/amaumene/podcastarr/internal/models"
	"github.com/amaumene/podcastarr/internal/services/media"
	"github.com/amaumene/podcastarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// processUpload runs the process_upload pipeline for a previously staged
// file: validate, normalize audio (0-50%), upload (50-95%), persist
// (95-100%). The staging directory is removed on every exit path.
func (p *Processor) processUpload(ctx context.Context, job *models.Job, reporter *Reporter) (*pipelineResult, error) {
	meta, err := job.UploadMetadata()
	if err != nil {
		return nil, err
	}

	log := p.logger.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"filename":   meta.OriginalFilename,
		"episode_id": meta.EpisodeID,
	})

	uploadDir := filepath.Dir(meta.FilePath)
	var convertTmpDir string
	defer func() {
		removeDir(uploadDir)
		removeDir(convertTmpDir)
	}()

	// Validate before incurring transcoding cost; an invalid staged file is
	// deleted immediately
	if !media.IsValidMediaFile(meta.OriginalFilename) {
		_ = os.Remove(meta.FilePath)
		return nil, fmt.Errorf("invalid media file type: %s", meta.OriginalFilename)
	}

	if !fileExists(meta.FilePath) {
		return nil, fmt.Errorf("uploaded file not found — it may have been cleaned up")
	}

	// Phase 1: normalize audio (0-50%)
	reporter.Update(10, "Processing audio…")

	processed, err := p.media.ProcessMediaFile(ctx, meta.FilePath)
	if err != nil {
		return nil, err
	}
	if processed.AudioPath != meta.FilePath {
		convertTmpDir = filepath.Dir(processed.AudioPath)
	}
	log.WithFields(logrus.Fields{
		"size":     utils.FormatBytes(processed.FileSize),
		"duration": processed.Duration,
	}).Info("Audio processed")

	reporter.Update(50, fmt.Sprintf("Audio ready — %s", utils.FormatBytes(processed.FileSize)))

	episode, err := p.db.GetEpisodeByID(meta.EpisodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load episode %s: %w", meta.EpisodeID, err)
	}
	episode.Title = media.TitleFromFilename(meta.OriginalFilename)
	episode.Duration = processed.Duration
	if err := p.db.UpdateEpisode(episode); err != nil {
		return nil, fmt.Errorf("failed to update episode metadata: %w", err)
	}

	// Phase 2: upload (50-95%)
	reporter.Update(52, "Uploading audio…")

	audioURL, err := p.storage.UploadAudio(ctx, processed.AudioPath, meta.PodcastID, meta.EpisodeID,
		func(pct int, loaded, total int64) {
			reporter.Update(phasePercent(float64(pct), 52, 43),
				fmt.Sprintf("Uploading audio… %d%% (%s / %s)", pct, utils.FormatBytes(loaded), utils.FormatBytes(total)))
		})
	if err != nil {
		return nil, err
	}
	log.WithField("url", audioURL).Info("Audio uploaded")

	// Phase 3: persist (95-100%)
	reporter.Update(96, "Saving episode data…")

	episode.AudioURL = audioURL
	episode.FileSize = processed.FileSize
	if err := p.db.UpdateEpisode(episode); err != nil {
		return nil, fmt.Errorf("failed to save episode: %w", err)
	}

	return &pipelineResult{message: "Complete", podcastID: meta.PodcastID}, nil
}
