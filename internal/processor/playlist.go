package processor

import (
	"context"
	"fmt"

	"github.com/amaumene/podcastarr/internal/models"
	"github.com/amaumene/podcastarr/internal/services/youtube"
	"github.com/sirupsen/logrus"
)

// processPlaylistScan diffs a playlist against the podcast's existing
// episodes and queues a download_video job per new entry. The diff is a
// set-membership filter on external id; playlist ordering is untrusted and
// may change between scans.
func (p *Processor) processPlaylistScan(ctx context.Context, job *models.Job, reporter *Reporter) (*pipelineResult, error) {
	meta, err := job.PlaylistScanMetadata()
	if err != nil {
		return nil, err
	}

	log := p.logger.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"playlist_id": meta.PlaylistID,
		"podcast_id":  meta.PodcastID,
	})

	reporter.Update(10, "Scanning playlist…")

	entries, err := p.source.FetchPlaylistEntries(ctx, meta.PlaylistID)
	if err != nil {
		return nil, err
	}
	log.WithField("total", len(entries)).Info("Playlist fetched")

	existing, err := p.db.GetEpisodesByPodcast(meta.PodcastID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing episodes: %w", err)
	}

	existingIDs := make(map[string]bool, len(existing))
	for _, episode := range existing {
		if episode.YouTubeID != "" {
			existingIDs[episode.YouTubeID] = true
		}
	}

	var newVideos []youtube.VideoMetadata
	for _, entry := range entries {
		if existingIDs[entry.ID] {
			continue
		}
		newVideos = append(newVideos, entry)
	}

	if meta.Skip > 0 {
		if meta.Skip >= len(newVideos) {
			newVideos = nil
		} else {
			newVideos = newVideos[meta.Skip:]
		}
	}
	if meta.Limit > 0 && len(newVideos) > meta.Limit {
		newVideos = newVideos[:meta.Limit]
	}

	log.WithFields(logrus.Fields{
		"new":      len(newVideos),
		"existing": len(existingIDs),
	}).Info("Playlist diffed")

	for _, video := range newVideos {
		episode := &models.Episode{
			PodcastID:   meta.PodcastID,
			Title:       video.Title,
			Description: video.Description,
			YouTubeID:   video.ID,
			Duration:    video.Duration,
		}
		if err := p.db.CreateEpisode(episode); err != nil {
			return nil, fmt.Errorf("failed to create episode for video %s: %w", video.ID, err)
		}

		downloadJob, err := models.NewJob(models.JobTypeDownloadVideo, models.VideoDownloadMetadata{
			VideoID:   video.ID,
			PodcastID: meta.PodcastID,
			EpisodeID: episode.ID,
		})
		if err != nil {
			return nil, err
		}
		if err := p.db.CreateJob(downloadJob); err != nil {
			return nil, fmt.Errorf("failed to queue download for video %s: %w", video.ID, err)
		}

		log.WithFields(logrus.Fields{
			"video_id": video.ID,
			"title":    video.Title,
		}).Info("Queued download")
	}

	return &pipelineResult{
		message:   fmt.Sprintf("Found %d new video(s)", len(newVideos)),
		podcastID: meta.PodcastID,
	}, nil
}
