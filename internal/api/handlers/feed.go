package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/amaumene/podcastarr/internal/models"
	"github.com/amaumene/podcastarr/internal/services/feed"
	"github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"
)

// FeedHandler serves podcast RSS feeds directly, mirroring the copy
// published to object storage
type FeedHandler struct {
	db      *models.Database
	siteURL string
	logger  *logrus.Logger
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(db *models.Database, siteURL string, logger *logrus.Logger) *FeedHandler {
	return &FeedHandler{
		db:      db,
		siteURL: siteURL,
		logger:  logger,
	}
}

// ServeHTTP handles GET /api/podcasts/{id}/rss
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	podcastID := podcastIDFromPath(r.URL.Path)
	if podcastID == "" {
		http.Error(w, "Podcast ID required", http.StatusBadRequest)
		return
	}

	podcast, err := h.db.GetPodcastByID(podcastID)
	if err != nil {
		if errors.Is(err, bolthold.ErrNotFound) {
			http.Error(w, "Podcast not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("Failed to load podcast")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	episodes, err := h.db.GetEpisodesByPodcast(podcastID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load episodes")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	xml, err := feed.GenerateFeed(podcast, episodes, h.siteURL, time.Now())
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate feed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(xml))
}

// podcastIDFromPath extracts the podcast ID from /api/podcasts/{id}/rss
func podcastIDFromPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/podcasts/")
	trimmed = strings.TrimSuffix(trimmed, "/rss")
	if trimmed == path || strings.Contains(trimmed, "/") {
		return ""
	}
	return trimmed
}
