package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/amaumene/podcastarr/internal/models"
	"github.com/amaumene/podcastarr/internal/services/youtube"
	"github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"
)

// JobsHandler accepts new download jobs and answers polling requests
type JobsHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(db *models.Database, logger *logrus.Logger) *JobsHandler {
	return &JobsHandler{
		db:     db,
		logger: logger,
	}
}

// SubmitRequest represents a job submission. The URL may be a YouTube video,
// a YouTube playlist, or a direct media URL.
type SubmitRequest struct {
	URL       string `json:"url"`
	PodcastID string `json:"podcast_id"`
	Limit     int    `json:"limit,omitempty"`
	Skip      int    `json:"skip,omitempty"`
}

// SubmitResponse represents a job submission response
type SubmitResponse struct {
	JobID     string `json:"job_id"`
	JobType   string `json:"job_type"`
	EpisodeID string `json:"episode_id,omitempty"`
}

// JobResponse represents a job in polling responses
type JobResponse struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ServeHTTP dispatches on method: POST submits a job, GET polls one or lists
// all
func (h *JobsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleSubmit(w, r)
	case http.MethodGet:
		h.handlePoll(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *JobsHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if req.URL == "" || req.PodcastID == "" {
		http.Error(w, "url and podcast_id are required", http.StatusBadRequest)
		return
	}

	if _, err := h.db.GetPodcastByID(req.PodcastID); err != nil {
		if errors.Is(err, bolthold.ErrNotFound) {
			http.Error(w, "Podcast not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("Failed to load podcast")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var response *SubmitResponse
	var err error
	if youtube.IsYouTubeURL(req.URL) {
		response, err = h.submitYouTube(req)
	} else {
		response, err = h.submitDirectURL(req)
	}
	if err != nil {
		h.logger.WithError(err).WithField("url", req.URL).Error("Failed to submit job")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"job_id":   response.JobID,
		"job_type": response.JobType,
	}).Info("Job submitted")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(response)
}

// submitYouTube creates the job for a YouTube URL. A video gets a placeholder
// episode and a download_video job; a playlist gets a tracked source and a
// scan_playlist job.
func (h *JobsHandler) submitYouTube(req SubmitRequest) (*SubmitResponse, error) {
	kind, externalID, err := youtube.ParseURL(req.URL)
	if err != nil {
		return nil, err
	}

	switch kind {
	case youtube.KindVideo:
		episode := &models.Episode{
			PodcastID: req.PodcastID,
			Title:     "Processing…",
			YouTubeID: externalID,
			SourceURL: req.URL,
		}
		if err := h.db.CreateEpisode(episode); err != nil {
			return nil, err
		}

		job, err := models.NewJob(models.JobTypeDownloadVideo, models.VideoDownloadMetadata{
			VideoID:   externalID,
			PodcastID: req.PodcastID,
			EpisodeID: episode.ID,
		})
		if err != nil {
			return nil, err
		}
		if err := h.db.CreateJob(job); err != nil {
			return nil, err
		}
		return &SubmitResponse{JobID: job.ID, JobType: string(job.Type), EpisodeID: episode.ID}, nil

	case youtube.KindPlaylist:
		source := &models.Source{
			PodcastID:  req.PodcastID,
			Type:       models.SourceTypePlaylist,
			ExternalID: externalID,
		}
		if err := h.db.CreateSource(source); err != nil {
			return nil, err
		}

		job, err := models.NewJob(models.JobTypeScanPlaylist, models.PlaylistScanMetadata{
			PlaylistID: externalID,
			PodcastID:  req.PodcastID,
			Limit:      req.Limit,
			Skip:       req.Skip,
		})
		if err != nil {
			return nil, err
		}
		if err := h.db.CreateJob(job); err != nil {
			return nil, err
		}
		return &SubmitResponse{JobID: job.ID, JobType: string(job.Type)}, nil

	default:
		return nil, errors.New("unsupported YouTube URL")
	}
}

func (h *JobsHandler) submitDirectURL(req SubmitRequest) (*SubmitResponse, error) {
	episode := &models.Episode{
		PodcastID: req.PodcastID,
		Title:     "Processing…",
		SourceURL: req.URL,
	}
	if err := h.db.CreateEpisode(episode); err != nil {
		return nil, err
	}

	job, err := models.NewJob(models.JobTypeDownloadURL, models.URLDownloadMetadata{
		URL:       req.URL,
		PodcastID: req.PodcastID,
		EpisodeID: episode.ID,
	})
	if err != nil {
		return nil, err
	}
	if err := h.db.CreateJob(job); err != nil {
		return nil, err
	}
	return &SubmitResponse{JobID: job.ID, JobType: string(job.Type), EpisodeID: episode.ID}, nil
}

func (h *JobsHandler) handlePoll(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	w.Header().Set("Content-Type", "application/json")

	if id != "" {
		job, err := h.db.GetJobByID(id)
		if err != nil {
			if errors.Is(err, bolthold.ErrNotFound) {
				http.Error(w, "Job not found", http.StatusNotFound)
				return
			}
			h.logger.WithError(err).Error("Failed to get job")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(toJobResponse(job))
		return
	}

	jobs, err := h.db.GetAllJobs()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get jobs")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	responses := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, toJobResponse(job))
	}
	json.NewEncoder(w).Encode(responses)
}

func toJobResponse(job *models.Job) JobResponse {
	return JobResponse{
		ID:       job.ID,
		Type:     string(job.Type),
		Status:   string(job.Status),
		Progress: job.Progress,
		Message:  job.Message,
		Error:    job.Error,
	}
}
