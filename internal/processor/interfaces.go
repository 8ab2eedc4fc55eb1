package processor

import (
	"context"

	"github.com/amaumene/podcastarr/internal/models"
	"github.com/amaumene/podcastarr/internal/services/media"
	"github.com/amaumene/podcastarr/internal/services/storage"
	"github.com/amaumene/podcastarr/internal/services/youtube"
)

// Store is the slice of the entity store the processor mutates. The
// processor exclusively owns job status/progress transitions while a job is
// claimed; everything else goes through single-record updates.
type Store interface {
	CreateJob(job *models.Job) error
	UpdateJob(job *models.Job) error
	GetJobByID(id string) (*models.Job, error)

	CreateEpisode(episode *models.Episode) error
	UpdateEpisode(episode *models.Episode) error
	GetEpisodeByID(id string) (*models.Episode, error)
	GetEpisodesByPodcast(podcastID string) ([]*models.Episode, error)

	UpdateSource(source *models.Source) error
	GetPlaylistSources(podcastID string) ([]*models.Source, error)
}

// MediaSource acquires video/playlist content and metadata
type MediaSource interface {
	FetchVideoMetadata(ctx context.Context, videoID string) (*youtube.VideoMetadata, error)
	FetchPlaylistEntries(ctx context.Context, playlistID string) ([]youtube.VideoMetadata, error)
	DownloadAudio(ctx context.Context, videoID string, onProgress youtube.ProgressFunc) (*youtube.DownloadResult, error)
	DownloadThumbnail(ctx context.Context, videoID string) (string, error)
}

// MediaProcessor normalizes acquired files to the target audio format
type MediaProcessor interface {
	ProcessMediaFile(ctx context.Context, inputPath string) (*media.ProcessResult, error)
}

// URLDownloader fetches arbitrary files over HTTP
type URLDownloader interface {
	DownloadFromURL(url string) (*media.DownloadedFile, error)
}

// ArtifactStore uploads job deliverables to object storage
type ArtifactStore interface {
	UploadAudio(ctx context.Context, filePath, podcastID, episodeID string, onProgress storage.ProgressCallback) (string, error)
	UploadArtwork(ctx context.Context, filePath, podcastID, episodeID string) (string, error)
}

// FeedPublisher regenerates the derived RSS artifact
type FeedPublisher interface {
	PublishFeed(ctx context.Context, podcastID string) (string, error)
}
