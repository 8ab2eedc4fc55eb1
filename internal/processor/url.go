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

// processURLDownload runs the download_url pipeline: download (0-40%),
// validate and normalize audio (40-70%), upload (70-95%), persist (95-100%).
func (p *Processor) processURLDownload(ctx context.Context, job *models.Job, reporter *Reporter) (*pipelineResult, error) {
	meta, err := job.URLDownloadMetadata()
	if err != nil {
		return nil, err
	}

	log := p.logger.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"url":        meta.URL,
		"episode_id": meta.EpisodeID,
	})

	var downloadTmpDir, convertTmpDir string
	defer func() {
		removeDir(downloadTmpDir)
		removeDir(convertTmpDir)
	}()

	// Phase 1: download (0-40%)
	reporter.Update(5, "Downloading file…")

	downloaded, err := p.downloader.DownloadFromURL(meta.URL)
	if err != nil {
		return nil, err
	}
	downloadTmpDir = filepath.Dir(downloaded.FilePath)
	log.WithField("filename", downloaded.Filename).Info("File downloaded")

	reporter.Update(40, "File downloaded")

	// Validate before incurring transcoding cost; an invalid file is
	// deleted immediately
	if !media.IsValidMediaFile(downloaded.Filename) {
		removeDir(downloadTmpDir)
		downloadTmpDir = ""
		return nil, fmt.Errorf("invalid media file type: %s", downloaded.Filename)
	}

	// Phase 2: normalize audio (40-70%)
	reporter.Update(45, "Processing audio…")

	processed, err := p.media.ProcessMediaFile(ctx, downloaded.FilePath)
	if err != nil {
		return nil, err
	}
	if processed.AudioPath != downloaded.FilePath {
		convertTmpDir = filepath.Dir(processed.AudioPath)
	}
	log.WithFields(logrus.Fields{
		"size":     utils.FormatBytes(processed.FileSize),
		"duration": processed.Duration,
	}).Info("Audio processed")

	reporter.Update(70, fmt.Sprintf("Audio ready — %s", utils.FormatBytes(processed.FileSize)))

	episode, err := p.db.GetEpisodeByID(meta.EpisodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load episode %s: %w", meta.EpisodeID, err)
	}
	episode.Title = media.TitleFromURL(meta.URL)
	episode.SourceURL = meta.URL
	episode.Duration = processed.Duration
	if err := p.db.UpdateEpisode(episode); err != nil {
		return nil, fmt.Errorf("failed to update episode metadata: %w", err)
	}

	// Phase 3: upload (70-95%)
	reporter.Update(72, "Uploading audio…")

	audioURL, err := p.storage.UploadAudio(ctx, processed.AudioPath, meta.PodcastID, meta.EpisodeID,
		func(pct int, loaded, total int64) {
			reporter.Update(phasePercent(float64(pct), 72, 23),
				fmt.Sprintf("Uploading audio… %d%% (%s / %s)", pct, utils.FormatBytes(loaded), utils.FormatBytes(total)))
		})
	if err != nil {
		return nil, err
	}
	log.WithField("url", audioURL).Info("Audio uploaded")

	// Phase 4: persist (95-100%)
	reporter.Update(96, "Saving episode data…")

	episode.AudioURL = audioURL
	episode.FileSize = processed.FileSize
	if err := p.db.UpdateEpisode(episode); err != nil {
		return nil, fmt.Errorf("failed to save episode: %w", err)
	}

	return &pipelineResult{message: "Complete", podcastID: meta.PodcastID}, nil
}

// fileExists reports whether a staged file is still present
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
