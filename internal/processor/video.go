package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/amaumene/podcastarr/internal/models"
	"github.com/amaumene/podcastarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// processVideoDownload runs the download_video pipeline: fetch metadata
// (0-5%), download and extract audio (5-60%), upload audio (60-90%),
// thumbnail best-effort (90-95%), persist (95-100%).
func (p *Processor) processVideoDownload(ctx context.Context, job *models.Job, reporter *Reporter) (*pipelineResult, error) {
	meta, err := job.VideoDownloadMetadata()
	if err != nil {
		return nil, err
	}

	log := p.logger.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"video_id":   meta.VideoID,
		"episode_id": meta.EpisodeID,
	})

	// Temp directories are owned by this job instance and removed on every
	// exit path
	var audioTmpDir, thumbTmpDir string
	defer func() {
		removeDir(audioTmpDir)
		removeDir(thumbTmpDir)
	}()

	// Phase 1: metadata (0-5%)
	reporter.Update(2, "Fetching video metadata…")

	videoMeta, err := p.source.FetchVideoMetadata(ctx, meta.VideoID)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"title":    videoMeta.Title,
		"duration": videoMeta.Duration,
	}).Info("Video metadata retrieved")

	reporter.Update(5, "Metadata retrieved")

	episode, err := p.db.GetEpisodeByID(meta.EpisodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load episode %s: %w", meta.EpisodeID, err)
	}
	episode.Title = videoMeta.Title
	episode.Description = videoMeta.Description
	episode.Duration = videoMeta.Duration
	if err := p.db.UpdateEpisode(episode); err != nil {
		return nil, fmt.Errorf("failed to update episode metadata: %w", err)
	}

	// Phase 2: download and extract audio (5-60%)
	reporter.Update(6, "Starting download…")

	download, err := p.source.DownloadAudio(ctx, meta.VideoID, func(pct float64, message string) {
		// yt-dlp's own 0-100% maps to 6-55; the extraction phase sits at 55-60
		if strings.Contains(message, "Extracting") {
			reporter.Update(57, "Extracting audio from video…")
			return
		}
		reporter.Update(phasePercent(pct, 6, 49), message)
	})
	if err != nil {
		return nil, err
	}
	audioTmpDir = filepath.Dir(download.FilePath)
	log.WithField("size", utils.FormatBytes(download.FileSize)).Info("Audio downloaded")

	reporter.Flush()
	reporter.Update(60, fmt.Sprintf("Audio ready — %s", utils.FormatBytes(download.FileSize)))

	// Phase 3: upload audio (60-90%)
	audioURL, err := p.storage.UploadAudio(ctx, download.FilePath, meta.PodcastID, meta.EpisodeID,
		func(pct int, loaded, total int64) {
			reporter.Update(phasePercent(float64(pct), 60, 30),
				fmt.Sprintf("Uploading audio… %d%% (%s / %s)", pct, utils.FormatBytes(loaded), utils.FormatBytes(total)))
		})
	if err != nil {
		return nil, err
	}
	log.WithField("url", audioURL).Info("Audio uploaded")

	reporter.Flush()

	// Phase 4: thumbnail, best-effort (90-95%). The audio artifact is the
	// only mandatory deliverable.
	reporter.Update(91, "Downloading thumbnail…")

	imageURL := ""
	if thumbPath, err := p.source.DownloadThumbnail(ctx, meta.VideoID); err != nil {
		log.WithError(err).Warn("Thumbnail download failed (non-fatal)")
	} else {
		thumbTmpDir = filepath.Dir(thumbPath)
		reporter.Update(93, "Uploading thumbnail…")
		if url, err := p.storage.UploadArtwork(ctx, thumbPath, meta.PodcastID, meta.EpisodeID); err != nil {
			log.WithError(err).Warn("Thumbnail upload failed (non-fatal)")
		} else {
			imageURL = url
		}
	}

	// Phase 5: persist and finalize (95-100%)
	reporter.Update(96, "Saving episode data…")

	duration := download.Duration
	if duration == 0 {
		duration = videoMeta.Duration
	}

	episode.AudioURL = audioURL
	episode.ImageURL = imageURL
	episode.Duration = duration
	episode.FileSize = download.FileSize
	if err := p.db.UpdateEpisode(episode); err != nil {
		return nil, fmt.Errorf("failed to save episode: %w", err)
	}

	return &pipelineResult{message: "Complete", podcastID: meta.PodcastID}, nil
}

// removeDir clears a job-owned temp directory, tolerating an unset path
func removeDir(dir string) {
	if dir == "" {
		return
	}
	_ = os.RemoveAll(dir)
}
