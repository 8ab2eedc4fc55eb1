package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is a unit of asynchronous work tracked with status, progress and error
type Job struct {
	ID   string  `boltholdKey:"ID"`
	Type JobType `boltholdIndex:"Type"`

	Status   JobStatus `boltholdIndex:"Status"`
	Progress int       // 0-100, non-decreasing while processing
	Message  string    // human-readable phase description
	Error    string    // failure description, empty unless failed

	// Type-specific payload, JSON-encoded. Decoded through the typed
	// accessors below when the job is claimed.
	Metadata json.RawMessage

	CreatedAt time.Time
	StartedAt *time.Time // set when the job leaves pending
	EndedAt   *time.Time // set when the job reaches a terminal status
}

// VideoDownloadMetadata is the payload for download_video jobs
type VideoDownloadMetadata struct {
	VideoID   string `json:"videoId"`
	PodcastID string `json:"podcastId"`
	EpisodeID string `json:"episodeId"`
}

// PlaylistScanMetadata is the payload for scan_playlist jobs
type PlaylistScanMetadata struct {
	PlaylistID string `json:"playlistId"`
	PodcastID  string `json:"podcastId"`
	Limit      int    `json:"limit,omitempty"`
	Skip       int    `json:"skip,omitempty"`
}

// URLDownloadMetadata is the payload for download_url jobs
type URLDownloadMetadata struct {
	URL       string `json:"url"`
	PodcastID string `json:"podcastId"`
	EpisodeID string `json:"episodeId"`
}

// UploadMetadata is the payload for process_upload jobs
type UploadMetadata struct {
	FilePath         string `json:"filePath"`
	OriginalFilename string `json:"originalFilename"`
	PodcastID        string `json:"podcastId"`
	EpisodeID        string `json:"episodeId"`
}

// PollSourcesMetadata is the payload for poll_sources jobs
type PollSourcesMetadata struct {
	PodcastID string `json:"podcastId,omitempty"` // empty means all podcasts
}

// NewJob creates a pending job with its typed payload encoded
func NewJob(jobType JobType, metadata any) (*Job, error) {
	payload, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job metadata: %w", err)
	}

	return &Job{
		ID:       uuid.NewString(),
		Type:     jobType,
		Status:   JobStatusPending,
		Metadata: payload,
	}, nil
}

func (j *Job) decodeMetadata(want JobType, v any) error {
	if j.Type != want {
		return fmt.Errorf("job %s has type %s, not %s", j.ID, j.Type, want)
	}
	if len(j.Metadata) == 0 {
		return fmt.Errorf("job %s has no metadata", j.ID)
	}
	if err := json.Unmarshal(j.Metadata, v); err != nil {
		return fmt.Errorf("invalid metadata for %s job %s: %w", j.Type, j.ID, err)
	}
	return nil
}

// VideoDownloadMetadata decodes and validates a download_video payload
func (j *Job) VideoDownloadMetadata() (*VideoDownloadMetadata, error) {
	var meta VideoDownloadMetadata
	if err := j.decodeMetadata(JobTypeDownloadVideo, &meta); err != nil {
		return nil, err
	}
	if meta.VideoID == "" || meta.PodcastID == "" || meta.EpisodeID == "" {
		return nil, fmt.Errorf("download_video job %s is missing videoId, podcastId or episodeId", j.ID)
	}
	return &meta, nil
}

// PlaylistScanMetadata decodes and validates a scan_playlist payload
func (j *Job) PlaylistScanMetadata() (*PlaylistScanMetadata, error) {
	var meta PlaylistScanMetadata
	if err := j.decodeMetadata(JobTypeScanPlaylist, &meta); err != nil {
		return nil, err
	}
	if meta.PlaylistID == "" || meta.PodcastID == "" {
		return nil, fmt.Errorf("scan_playlist job %s is missing playlistId or podcastId", j.ID)
	}
	return &meta, nil
}

// URLDownloadMetadata decodes and validates a download_url payload
func (j *Job) URLDownloadMetadata() (*URLDownloadMetadata, error) {
	var meta URLDownloadMetadata
	if err := j.decodeMetadata(JobTypeDownloadURL, &meta); err != nil {
		return nil, err
	}
	if meta.URL == "" || meta.PodcastID == "" || meta.EpisodeID == "" {
		return nil, fmt.Errorf("download_url job %s is missing url, podcastId or episodeId", j.ID)
	}
	return &meta, nil
}

// UploadMetadata decodes and validates a process_upload payload
func (j *Job) UploadMetadata() (*UploadMetadata, error) {
	var meta UploadMetadata
	if err := j.decodeMetadata(JobTypeProcessUpload, &meta); err != nil {
		return nil, err
	}
	if meta.FilePath == "" || meta.OriginalFilename == "" || meta.PodcastID == "" || meta.EpisodeID == "" {
		return nil, fmt.Errorf("process_upload job %s is missing filePath, originalFilename, podcastId or episodeId", j.ID)
	}
	return &meta, nil
}

// PollSourcesMetadata decodes a poll_sources payload. The payload is
// optional; an absent one means poll every podcast.
func (j *Job) PollSourcesMetadata() (*PollSourcesMetadata, error) {
	if j.Type != JobTypePollSources {
		return nil, fmt.Errorf("job %s has type %s, not %s", j.ID, j.Type, JobTypePollSources)
	}
	var meta PollSourcesMetadata
	if len(j.Metadata) == 0 {
		return &meta, nil
	}
	if err := json.Unmarshal(j.Metadata, &meta); err != nil {
		return nil, fmt.Errorf("invalid metadata for %s job %s: %w", j.Type, j.ID, err)
	}
	return &meta, nil
}
