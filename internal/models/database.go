package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// Podcast operations

// CreatePodcast creates a new podcast
func (db *Database) CreatePodcast(podcast *Podcast) error {
	if podcast.ID == "" {
		podcast.ID = uuid.NewString()
	}
	podcast.CreatedAt = time.Now()
	podcast.UpdatedAt = time.Now()
	return db.store.Insert(podcast.ID, podcast)
}

// UpdatePodcast updates an existing podcast
func (db *Database) UpdatePodcast(podcast *Podcast) error {
	podcast.UpdatedAt = time.Now()
	return db.store.Update(podcast.ID, podcast)
}

// GetPodcastByID retrieves a podcast by ID
func (db *Database) GetPodcastByID(id string) (*Podcast, error) {
	var podcast Podcast
	if err := db.store.Get(id, &podcast); err != nil {
		return nil, err
	}
	return &podcast, nil
}

// GetAllPodcasts retrieves all podcasts
func (db *Database) GetAllPodcasts() ([]*Podcast, error) {
	var podcasts []*Podcast
	err := db.store.Find(&podcasts, nil)
	return podcasts, err
}

// Episode operations

// CreateEpisode creates a new episode, assigning the next feed position
func (db *Database) CreateEpisode(episode *Episode) error {
	if episode.ID == "" {
		episode.ID = uuid.NewString()
	}

	order, err := db.NextEpisodeOrder(episode.PodcastID)
	if err != nil {
		return fmt.Errorf("failed to determine episode order: %w", err)
	}
	episode.Order = order

	episode.CreatedAt = time.Now()
	episode.UpdatedAt = time.Now()
	return db.store.Insert(episode.ID, episode)
}

// UpdateEpisode updates an existing episode
func (db *Database) UpdateEpisode(episode *Episode) error {
	episode.UpdatedAt = time.Now()
	return db.store.Update(episode.ID, episode)
}

// GetEpisodeByID retrieves an episode by ID
func (db *Database) GetEpisodeByID(id string) (*Episode, error) {
	var episode Episode
	if err := db.store.Get(id, &episode); err != nil {
		return nil, err
	}
	return &episode, nil
}

// GetEpisodesByPodcast retrieves all episodes of a podcast sorted by feed
// position
func (db *Database) GetEpisodesByPodcast(podcastID string) ([]*Episode, error) {
	var episodes []*Episode
	err := db.store.Find(&episodes,
		bolthold.Where("PodcastID").Eq(podcastID).Index("PodcastID").SortBy("Order"))
	return episodes, err
}

// NextEpisodeOrder returns the feed position for a new episode of a podcast
func (db *Database) NextEpisodeOrder(podcastID string) (int, error) {
	episodes, err := db.GetEpisodesByPodcast(podcastID)
	if err != nil {
		return 0, err
	}

	next := 0
	for _, episode := range episodes {
		if episode.Order >= next {
			next = episode.Order + 1
		}
	}
	return next, nil
}

// DeleteEpisode deletes an episode by ID
func (db *Database) DeleteEpisode(id string) error {
	return db.store.Delete(id, &Episode{})
}

// Source operations

// CreateSource creates a new source
func (db *Database) CreateSource(source *Source) error {
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	source.CreatedAt = time.Now()
	source.UpdatedAt = time.Now()
	return db.store.Insert(source.ID, source)
}

// UpdateSource updates an existing source
func (db *Database) UpdateSource(source *Source) error {
	source.UpdatedAt = time.Now()
	return db.store.Update(source.ID, source)
}

// GetPlaylistSources retrieves playlist-type sources, optionally scoped to a
// single podcast
func (db *Database) GetPlaylistSources(podcastID string) ([]*Source, error) {
	query := bolthold.Where("Type").Eq(SourceTypePlaylist).Index("Type")
	if podcastID != "" {
		query = query.And("PodcastID").Eq(podcastID)
	}

	var sources []*Source
	err := db.store.Find(&sources, query)
	return sources, err
}

// GetSourcesByPodcast retrieves all sources of a podcast
func (db *Database) GetSourcesByPodcast(podcastID string) ([]*Source, error) {
	var sources []*Source
	err := db.store.Find(&sources,
		bolthold.Where("PodcastID").Eq(podcastID).Index("PodcastID"))
	return sources, err
}
