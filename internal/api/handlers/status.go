package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/amaumene/podcastarr/internal/models"
	"github.com/sirupsen/logrus"
)

// StatusHandler handles status requests
type StatusHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db *models.Database, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:     db,
		logger: logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	TotalJobs  int            `json:"total_jobs"`
	Pending    int            `json:"pending"`
	Processing int            `json:"processing"`
	Completed  int            `json:"completed"`
	Failed     int            `json:"failed"`
	JobsByType map[string]int `json:"jobs_by_type"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobs, err := h.db.GetAllJobs()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get jobs")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := StatusResponse{
		TotalJobs:  len(jobs),
		JobsByType: make(map[string]int),
	}

	for _, job := range jobs {
		switch job.Status {
		case models.JobStatusPending:
			response.Pending++
		case models.JobStatusProcessing:
			response.Processing++
		case models.JobStatusCompleted:
			response.Completed++
		case models.JobStatusFailed:
			response.Failed++
		}

		response.JobsByType[string(job.Type)]++
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
