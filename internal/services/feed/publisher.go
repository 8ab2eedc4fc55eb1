package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/podcastarr/internal/models"
	"github.com/sirupsen/logrus"
)

// Store is the slice of the entity store the publisher reads from
type Store interface {
	GetPodcastByID(id string) (*models.Podcast, error)
	GetEpisodesByPodcast(podcastID string) ([]*models.Episode, error)
}

// Uploader is the slice of the artifact store the publisher writes to
type Uploader interface {
	UploadContent(ctx context.Context, content, key, contentType string) (string, error)
	DeleteFile(ctx context.Context, key string) error
	InvalidateCache(ctx context.Context, paths []string) error
}

// Publisher regenerates a podcast's RSS document and uploads it
type Publisher struct {
	db      Store
	storage Uploader
	siteURL string
	logger  *logrus.Logger
}

// NewPublisher creates a new feed publisher
func NewPublisher(db Store, storage Uploader, siteURL string, logger *logrus.Logger) *Publisher {
	return &Publisher{
		db:      db,
		storage: storage,
		siteURL: siteURL,
		logger:  logger,
	}
}

func feedKey(podcastID string) string {
	return podcastID + "/feed.xml"
}

// PublishFeed regenerates and uploads a podcast's feed, returning its public
// URL. Cache invalidation is best-effort.
func (p *Publisher) PublishFeed(ctx context.Context, podcastID string) (string, error) {
	podcast, err := p.db.GetPodcastByID(podcastID)
	if err != nil {
		return "", fmt.Errorf("failed to load podcast %s: %w", podcastID, err)
	}

	episodes, err := p.db.GetEpisodesByPodcast(podcastID)
	if err != nil {
		return "", fmt.Errorf("failed to load episodes for podcast %s: %w", podcastID, err)
	}

	document, err := GenerateFeed(podcast, episodes, p.siteURL, time.Now())
	if err != nil {
		return "", err
	}

	key := feedKey(podcastID)
	url, err := p.storage.UploadContent(ctx, document, key, "application/rss+xml")
	if err != nil {
		return "", fmt.Errorf("failed to upload feed: %w", err)
	}

	// Best effort: a stale cached feed corrects itself on TTL expiry
	if err := p.storage.InvalidateCache(ctx, []string{key}); err != nil {
		p.logger.WithError(err).WithField("podcast_id", podcastID).Warn("Feed cache invalidation failed")
	}

	p.logger.WithFields(logrus.Fields{
		"podcast_id": podcastID,
		"url":        url,
	}).Info("Feed published")

	return url, nil
}

// DeleteFeed removes a podcast's published feed document
func (p *Publisher) DeleteFeed(ctx context.Context, podcastID string) error {
	return p.storage.DeleteFile(ctx, feedKey(podcastID))
}
