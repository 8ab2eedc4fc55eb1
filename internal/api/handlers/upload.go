package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/amaumene/podcastarr/internal/models"
	"github.com/amaumene/podcastarr/internal/services/media"
	"github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"
)

// maxUploadBytes caps a single uploaded media file at 2 GB
const maxUploadBytes = 2 << 30

// UploadHandler stages uploaded media files and queues process_upload jobs
type UploadHandler struct {
	db        *models.Database
	uploadDir string
	logger    *logrus.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(db *models.Database, uploadDir string, logger *logrus.Logger) *UploadHandler {
	return &UploadHandler{
		db:        db,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// ServeHTTP handles POST /api/uploads with a multipart form carrying the
// media file and its target podcast
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	podcastID := r.FormValue("podcast_id")
	if podcastID == "" {
		http.Error(w, "podcast_id is required", http.StatusBadRequest)
		return
	}
	if _, err := h.db.GetPodcastByID(podcastID); err != nil {
		if errors.Is(err, bolthold.ErrNotFound) {
			http.Error(w, "Podcast not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("Failed to load podcast")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// Cheap rejection before staging anything on disk
	if !media.IsValidMediaFile(header.Filename) {
		http.Error(w, fmt.Sprintf("invalid media file type: %s", header.Filename), http.StatusBadRequest)
		return
	}

	stagedPath, err := h.stageFile(file, header.Filename)
	if err != nil {
		h.logger.WithError(err).Error("Failed to stage uploaded file")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	episode := &models.Episode{
		PodcastID: podcastID,
		Title:     media.TitleFromFilename(header.Filename),
	}
	if err := h.db.CreateEpisode(episode); err != nil {
		removeStaging(stagedPath)
		h.logger.WithError(err).Error("Failed to create episode")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	job, err := models.NewJob(models.JobTypeProcessUpload, models.UploadMetadata{
		FilePath:         stagedPath,
		OriginalFilename: header.Filename,
		PodcastID:        podcastID,
		EpisodeID:        episode.ID,
	})
	if err == nil {
		err = h.db.CreateJob(job)
	}
	if err != nil {
		removeStaging(stagedPath)
		h.logger.WithError(err).Error("Failed to queue upload job")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"filename": header.Filename,
	}).Info("Upload staged")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(SubmitResponse{
		JobID:     job.ID,
		JobType:   string(job.Type),
		EpisodeID: episode.ID,
	})
}

// stageFile copies the upload into a fresh directory under the upload root.
// The directory is owned by the process_upload job from here on.
func (h *UploadHandler) stageFile(file io.Reader, filename string) (string, error) {
	stagingDir, err := os.MkdirTemp(h.uploadDir, "upload-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	stagedPath := filepath.Join(stagingDir, filepath.Base(filename))
	out, err := os.Create(stagedPath)
	if err != nil {
		os.RemoveAll(stagingDir)
		return "", fmt.Errorf("failed to create staged file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.RemoveAll(stagingDir)
		return "", fmt.Errorf("failed to write staged file: %w", err)
	}
	return stagedPath, nil
}

func removeStaging(stagedPath string) {
	_ = os.RemoveAll(filepath.Dir(stagedPath))
}
