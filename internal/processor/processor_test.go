package processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/podcastarr/internal/models"
	"github.com/amaumene/podcastarr/internal/services/media"
	"github.com/amaumene/podcastarr/internal/services/storage"
	"github.com/amaumene/podcastarr/internal/services/youtube"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store. Progress writes arrive from the
// reporter's timer goroutine, so it is mutex-guarded.
type fakeStore struct {
	mu       sync.Mutex
	jobs     map[string]*models.Job
	episodes map[string]*models.Episode
	sources  map[string]*models.Source

	createdJobs []*models.Job
	nextID      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:     make(map[string]*models.Job),
		episodes: make(map[string]*models.Episode),
		sources:  make(map[string]*models.Source),
	}
}

func (s *fakeStore) CreateJob(job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	s.createdJobs = append(s.createdJobs, &copied)
	return nil
}

func (s *fakeStore) UpdateJob(job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeStore) GetJobByID(id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	copied := *job
	return &copied, nil
}

func (s *fakeStore) CreateEpisode(episode *models.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	episode.ID = fmt.Sprintf("ep-%d", s.nextID)
	copied := *episode
	s.episodes[episode.ID] = &copied
	return nil
}

func (s *fakeStore) UpdateEpisode(episode *models.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *episode
	s.episodes[episode.ID] = &copied
	return nil
}

func (s *fakeStore) GetEpisodeByID(id string) (*models.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	episode, ok := s.episodes[id]
	if !ok {
		return nil, fmt.Errorf("episode %s not found", id)
	}
	copied := *episode
	return &copied, nil
}

func (s *fakeStore) GetEpisodesByPodcast(podcastID string) ([]*models.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Episode
	for _, episode := range s.episodes {
		if episode.PodcastID == podcastID {
			copied := *episode
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *fakeStore) UpdateSource(source *models.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *source
	s.sources[source.ID] = &copied
	return nil
}

func (s *fakeStore) GetPlaylistSources(podcastID string) ([]*models.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Source
	for _, source := range s.sources {
		if source.Type != models.SourceTypePlaylist {
			continue
		}
		if podcastID != "" && source.PodcastID != podcastID {
			continue
		}
		copied := *source
		result = append(result, &copied)
	}
	return result, nil
}

func (s *fakeStore) jobByID(t *testing.T, id string) *models.Job {
	t.Helper()
	job, err := s.GetJobByID(id)
	require.NoError(t, err)
	return job
}

func (s *fakeStore) createdJobsOfType(jobType models.JobType) []*models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Job
	for _, job := range s.createdJobs {
		if job.Type == jobType {
			result = append(result, job)
		}
	}
	return result
}

type fakeSource struct {
	metadata        *youtube.VideoMetadata
	playlistEntries []youtube.VideoMetadata
	audioDir        string
	thumbErr        error

	metadataCalls int
	downloadCalls int
}

func (f *fakeSource) FetchVideoMetadata(ctx context.Context, videoID string) (*youtube.VideoMetadata, error) {
	f.metadataCalls++
	if f.metadata == nil {
		return nil, fmt.Errorf("no metadata for %s", videoID)
	}
	return f.metadata, nil
}

func (f *fakeSource) FetchPlaylistEntries(ctx context.Context, playlistID string) ([]youtube.VideoMetadata, error) {
	return f.playlistEntries, nil
}

func (f *fakeSource) DownloadAudio(ctx context.Context, videoID string, onProgress youtube.ProgressFunc) (*youtube.DownloadResult, error) {
	f.downloadCalls++
	if onProgress != nil {
		onProgress(50, "[download]  50.0% of 4MiB")
		onProgress(100, "[ExtractAudio] Extracting audio")
	}
	path := filepath.Join(f.audioDir, videoID+".mp3")
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		return nil, err
	}
	return &youtube.DownloadResult{FilePath: path, Duration: 120, FileSize: 5}, nil
}

func (f *fakeSource) DownloadThumbnail(ctx context.Context, videoID string) (string, error) {
	if f.thumbErr != nil {
		return "", f.thumbErr
	}
	path := filepath.Join(f.audioDir, videoID+".jpg")
	if err := os.WriteFile(path, []byte("jpg"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeMedia struct {
	result *media.ProcessResult
	calls  int
}

func (f *fakeMedia) ProcessMediaFile(ctx context.Context, inputPath string) (*media.ProcessResult, error) {
	f.calls++
	if f.result != nil {
		return f.result, nil
	}
	return &media.ProcessResult{AudioPath: inputPath, Duration: 60, FileSize: 10}, nil
}

type fakeDownloader struct {
	file *media.DownloadedFile
	err  error
}

func (f *fakeDownloader) DownloadFromURL(url string) (*media.DownloadedFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.file, nil
}

type fakeStorage struct {
	audioUploads   int
	artworkUploads int
}

func (f *fakeStorage) UploadAudio(ctx context.Context, filePath, podcastID, episodeID string, onProgress storage.ProgressCallback) (string, error) {
	f.audioUploads++
	if onProgress != nil {
		onProgress(100, 5, 5)
	}
	return fmt.Sprintf("https://cdn.example.com/%s/episodes/%s/audio.mp3", podcastID, episodeID), nil
}

func (f *fakeStorage) UploadArtwork(ctx context.Context, filePath, podcastID, episodeID string) (string, error) {
	f.artworkUploads++
	return fmt.Sprintf("https://cdn.example.com/%s/episodes/%s/artwork.jpg", podcastID, episodeID), nil
}

type fakeFeed struct {
	published []string
	err       error
}

func (f *fakeFeed) PublishFeed(ctx context.Context, podcastID string) (string, error) {
	f.published = append(f.published, podcastID)
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example.com/" + podcastID + "/feed.xml", nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestProcessor(db Store, source MediaSource, mediaProc MediaProcessor, downloader URLDownloader, store ArtifactStore, publisher FeedPublisher) *Processor {
	p := NewProcessor(db, source, mediaProc, downloader, store, publisher, testLogger())
	p.progressInterval = time.Millisecond
	return p
}

func mustJob(t *testing.T, jobType models.JobType, metadata any) *models.Job {
	t.Helper()
	job, err := models.NewJob(jobType, metadata)
	require.NoError(t, err)
	return job
}

func TestProcessVideoDownloadCompletes(t *testing.T) {
	db := newFakeStore()
	episode := &models.Episode{PodcastID: "pod-1", YouTubeID: "abc123dEF45"}
	require.NoError(t, db.CreateEpisode(episode))

	source := &fakeSource{
		metadata: &youtube.VideoMetadata{ID: "abc123dEF45", Title: "My Video", Description: "desc", Duration: 300},
		audioDir: t.TempDir(),
	}
	store := &fakeStorage{}
	publisher := &fakeFeed{}
	proc := newTestProcessor(db, source, &fakeMedia{}, &fakeDownloader{}, store, publisher)

	job := mustJob(t, models.JobTypeDownloadVideo, models.VideoDownloadMetadata{
		VideoID:   "abc123dEF45",
		PodcastID: "pod-1",
		EpisodeID: episode.ID,
	})
	require.NoError(t, db.CreateJob(job))

	require.NoError(t, proc.Process(context.Background(), job))

	stored := db.jobByID(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	assert.Equal(t, "Complete", stored.Message)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.EndedAt)

	saved, err := db.GetEpisodeByID(episode.ID)
	require.NoError(t, err)
	assert.Equal(t, "My Video", saved.Title)
	assert.NotEmpty(t, saved.AudioURL)
	assert.NotEmpty(t, saved.ImageURL)
	assert.Equal(t, 120, saved.Duration)
	assert.Equal(t, int64(5), saved.FileSize)

	assert.Equal(t, 1, store.audioUploads)
	assert.Equal(t, 1, store.artworkUploads)
	assert.Equal(t, []string{"pod-1"}, publisher.published)
}

func TestProcessThumbnailFailureIsNonFatal(t *testing.T) {
	db := newFakeStore()
	episode := &models.Episode{PodcastID: "pod-1"}
	require.NoError(t, db.CreateEpisode(episode))

	source := &fakeSource{
		metadata: &youtube.VideoMetadata{Title: "No Thumb", Duration: 300},
		audioDir: t.TempDir(),
		thumbErr: fmt.Errorf("no thumbnail available"),
	}
	proc := newTestProcessor(db, source, &fakeMedia{}, &fakeDownloader{}, &fakeStorage{}, &fakeFeed{})

	job := mustJob(t, models.JobTypeDownloadVideo, models.VideoDownloadMetadata{
		VideoID:   "abc123dEF45",
		PodcastID: "pod-1",
		EpisodeID: episode.ID,
	})
	require.NoError(t, db.CreateJob(job))

	require.NoError(t, proc.Process(context.Background(), job))

	stored := db.jobByID(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)

	saved, err := db.GetEpisodeByID(episode.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.AudioURL)
	assert.Empty(t, saved.ImageURL)
}

func TestProcessFailsOnMetadataShapeMismatch(t *testing.T) {
	db := newFakeStore()
	source := &fakeSource{audioDir: t.TempDir()}
	proc := newTestProcessor(db, source, &fakeMedia{}, &fakeDownloader{}, &fakeStorage{}, &fakeFeed{})

	// A download_video job carrying a playlist payload has no video_id and
	// must fail before touching any adapter
	job := mustJob(t, models.JobTypeDownloadVideo, models.PlaylistScanMetadata{
		PlaylistID: "PLxyz",
		PodcastID:  "pod-1",
	})
	require.NoError(t, db.CreateJob(job))

	err := proc.Process(context.Background(), job)
	require.Error(t, err)

	stored := db.jobByID(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
	assert.NotNil(t, stored.EndedAt)
	assert.Equal(t, 0, source.metadataCalls)
	assert.Equal(t, 0, source.downloadCalls)
}

func TestProcessUnknownJobTypeFails(t *testing.T) {
	db := newFakeStore()
	proc := newTestProcessor(db, &fakeSource{}, &fakeMedia{}, &fakeDownloader{}, &fakeStorage{}, &fakeFeed{})

	job := mustJob(t, models.JobType("defragment_disk"), models.PollSourcesMetadata{})
	require.NoError(t, db.CreateJob(job))

	err := proc.Process(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job type")
	assert.Equal(t, models.JobStatusFailed, db.jobByID(t, job.ID).Status)
}

func TestProcessPlaylistScanQueuesOnlyNewVideos(t *testing.T) {
	db := newFakeStore()
	existing := &models.Episode{PodcastID: "pod-1", YouTubeID: "videoB00000"}
	require.NoError(t, db.CreateEpisode(existing))

	source := &fakeSource{
		playlistEntries: []youtube.VideoMetadata{
			{ID: "videoA00000", Title: "A"},
			{ID: "videoB00000", Title: "B"},
			{ID: "videoC00000", Title: "C"},
		},
	}
	publisher := &fakeFeed{}
	proc := newTestProcessor(db, source, &fakeMedia{}, &fakeDownloader{}, &fakeStorage{}, publisher)

	job := mustJob(t, models.JobTypeScanPlaylist, models.PlaylistScanMetadata{
		PlaylistID: "PLxyz",
		PodcastID:  "pod-1",
	})
	require.NoError(t, db.CreateJob(job))

	require.NoError(t, proc.Process(context.Background(), job))

	stored := db.jobByID(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Equal(t, "Found 2 new video(s)", stored.Message)

	downloads := db.createdJobsOfType(models.JobTypeDownloadVideo)
	require.Len(t, downloads, 2)
	queuedIDs := make(map[string]bool)
	for _, dl := range downloads {
		meta, err := dl.VideoDownloadMetadata()
		require.NoError(t, err)
		queuedIDs[meta.VideoID] = true
		assert.NotEmpty(t, meta.EpisodeID)
	}
	assert.True(t, queuedIDs["videoA00000"])
	assert.True(t, queuedIDs["videoC00000"])
	assert.False(t, queuedIDs["videoB00000"])

	assert.Equal(t, []string{"pod-1"}, publisher.published)
}

func TestProcessPlaylistScanAppliesSkipAndLimit(t *testing.T) {
	db := newFakeStore()
	source := &fakeSource{
		playlistEntries: []youtube.VideoMetadata{
			{ID: "video100000"}, {ID: "video200000"}, {ID: "video300000"}, {ID: "video400000"},
		},
	}
	proc := newTestProcessor(db, source, &fakeMedia{}, &fakeDownloader{}, &fakeStorage{}, &fakeFeed{})

	job := mustJob(t, models.JobTypeScanPlaylist, models.PlaylistScanMetadata{
		PlaylistID: "PLxyz",
		PodcastID:  "pod-1",
		Skip:       1,
		Limit:      2,
	})
	require.NoError(t, db.CreateJob(job))

	require.NoError(t, proc.Process(context.Background(), job))

	downloads := db.createdJobsOfType(models.JobTypeDownloadVideo)
	require.Len(t, downloads, 2)
	first, err := downloads[0].VideoDownloadMetadata()
	require.NoError(t, err)
	assert.Equal(t, "video200000", first.VideoID)
}

func TestProcessUploadRejectsInvalidFileType(t *testing.T) {
	db := newFakeStore()
	episode := &models.Episode{PodcastID: "pod-1"}
	require.NoError(t, db.CreateEpisode(episode))

	stagingDir := t.TempDir()
	staged := filepath.Join(stagingDir, "notes.txt")
	require.NoError(t, os.WriteFile(staged, []byte("not audio"), 0644))

	mediaProc := &fakeMedia{}
	store := &fakeStorage{}
	proc := newTestProcessor(db, &fakeSource{}, mediaProc, &fakeDownloader{}, store, &fakeFeed{})

	job := mustJob(t, models.JobTypeProcessUpload, models.UploadMetadata{
		FilePath:         staged,
		OriginalFilename: "notes.txt",
		PodcastID:        "pod-1",
		EpisodeID:        episode.ID,
	})
	require.NoError(t, db.CreateJob(job))

	err := proc.Process(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid media file type")

	stored := db.jobByID(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, stored.Status)

	// The staged file is deleted and no processing or upload happens
	_, statErr := os.Stat(staged)
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, 0, mediaProc.calls)
	assert.Equal(t, 0, store.audioUploads)
}

func TestProcessUploadCompletes(t *testing.T) {
	db := newFakeStore()
	episode := &models.Episode{PodcastID: "pod-1"}
	require.NoError(t, db.CreateEpisode(episode))

	stagingDir, err := os.MkdirTemp(t.TempDir(), "upload-")
	require.NoError(t, err)
	staged := filepath.Join(stagingDir, "my_great-show.mp3")
	require.NoError(t, os.WriteFile(staged, []byte("audio"), 0644))

	proc := newTestProcessor(db, &fakeSource{}, &fakeMedia{}, &fakeDownloader{}, &fakeStorage{}, &fakeFeed{})

	job := mustJob(t, models.JobTypeProcessUpload, models.UploadMetadata{
		FilePath:         staged,
		OriginalFilename: "my_great-show.mp3",
		PodcastID:        "pod-1",
		EpisodeID:        episode.ID,
	})
	require.NoError(t, db.CreateJob(job))

	require.NoError(t, proc.Process(context.Background(), job))

	saved, err := db.GetEpisodeByID(episode.ID)
	require.NoError(t, err)
	assert.Equal(t, "my great show", saved.Title)
	assert.NotEmpty(t, saved.AudioURL)

	// Staging directory is cleaned up on success too
	_, statErr := os.Stat(stagingDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessPollSourcesQueuesScans(t *testing.T) {
	db := newFakeStore()
	db.sources["src-1"] = &models.Source{ID: "src-1", PodcastID: "pod-1", Type: models.SourceTypePlaylist, ExternalID: "PLone"}
	db.sources["src-2"] = &models.Source{ID: "src-2", PodcastID: "pod-2", Type: models.SourceTypePlaylist, ExternalID: "PLtwo"}
	db.sources["src-3"] = &models.Source{ID: "src-3", PodcastID: "pod-1", Type: models.SourceTypeVideo, ExternalID: "abc"}

	proc := newTestProcessor(db, &fakeSource{}, &fakeMedia{}, &fakeDownloader{}, &fakeStorage{}, &fakeFeed{})

	job := mustJob(t, models.JobTypePollSources, models.PollSourcesMetadata{})
	require.NoError(t, db.CreateJob(job))

	require.NoError(t, proc.Process(context.Background(), job))

	stored := db.jobByID(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Equal(t, "Created 2 scan job(s)", stored.Message)

	scans := db.createdJobsOfType(models.JobTypeScanPlaylist)
	assert.Len(t, scans, 2)

	for _, id := range []string{"src-1", "src-2"} {
		assert.NotNil(t, db.sources[id].LastChecked, "source %s should have LastChecked set", id)
	}
	assert.Nil(t, db.sources["src-3"].LastChecked)
}

func TestProcessFeedRepublishFailureIsNonFatal(t *testing.T) {
	db := newFakeStore()
	episode := &models.Episode{PodcastID: "pod-1"}
	require.NoError(t, db.CreateEpisode(episode))

	source := &fakeSource{
		metadata: &youtube.VideoMetadata{Title: "T", Duration: 10},
		audioDir: t.TempDir(),
	}
	publisher := &fakeFeed{err: fmt.Errorf("s3 unavailable")}
	proc := newTestProcessor(db, source, &fakeMedia{}, &fakeDownloader{}, &fakeStorage{}, publisher)

	job := mustJob(t, models.JobTypeDownloadVideo, models.VideoDownloadMetadata{
		VideoID:   "abc123dEF45",
		PodcastID: "pod-1",
		EpisodeID: episode.ID,
	})
	require.NoError(t, db.CreateJob(job))

	require.NoError(t, proc.Process(context.Background(), job))
	assert.Equal(t, models.JobStatusCompleted, db.jobByID(t, job.ID).Status)
}

func TestPhasePercent(t *testing.T) {
	assert.Equal(t, 6, phasePercent(0, 6, 49))
	assert.Equal(t, 55, phasePercent(100, 6, 49))
	assert.Equal(t, 31, phasePercent(50, 6, 49))
	assert.Equal(t, 60, phasePercent(-10, 60, 30))
	assert.Equal(t, 90, phasePercent(400, 60, 30))
}
