package models

import "time"

// Podcast owns episodes and sources and is what the RSS feed is derived from
type Podcast struct {
	ID          string `boltholdKey:"ID"`
	Title       string
	Description string
	Author      string
	Language    string
	Category    string
	Artwork     string // public URL of the cover image, empty if none
	Explicit    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Episode is a single podcast entry. An episode with an empty AudioURL is
// still being processed; the feed publisher skips it.
type Episode struct {
	ID        string `boltholdKey:"ID"`
	PodcastID string `boltholdIndex:"PodcastID"`

	Title       string
	Description string

	// Where the content came from. YouTubeID is set for video/playlist
	// episodes, SourceURL for direct URL downloads.
	YouTubeID string `boltholdIndex:"YouTubeID"`
	SourceURL string

	AudioURL string
	ImageURL string
	Duration int   // seconds
	FileSize int64 // bytes

	// Explicit feed position, assigned append-at-end on creation
	Order int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Source is a subscription (playlist, URL or uploaded file) checked for new
// content on re-scan
type Source struct {
	ID        string `boltholdKey:"ID"`
	PodcastID string `boltholdIndex:"PodcastID"`

	Type       SourceType `boltholdIndex:"Type"`
	ExternalID string     // YouTube id or source URL

	LastChecked *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
