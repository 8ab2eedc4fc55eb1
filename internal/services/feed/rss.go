package feed

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/amaumene/podcastarr/internal/models"
)

const itunesNamespace = "http://www.itunes.com/dtds/podcast-1.0.dtd"

// rssDocument is an RSS 2.0 feed with the itunes podcast namespace
type rssDocument struct {
	XMLName  xml.Name   `xml:"rss"`
	Version  string     `xml:"version,attr"`
	ITunesNS string     `xml:"xmlns:itunes,attr"`
	Channel  rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title          string `xml:"title"`
	Link           string `xml:"link"`
	Description    string `xml:"description"`
	Language       string `xml:"language,omitempty"`
	Category       string `xml:"category,omitempty"`
	PubDate        string `xml:"pubDate"`
	LastBuildDate  string `xml:"lastBuildDate"`
	ITunesAuthor   string `xml:"itunes:author"`
	ITunesSummary  string `xml:"itunes:summary"`
	ITunesExplicit string `xml:"itunes:explicit"`

	ITunesImage    *itunesImage    `xml:"itunes:image,omitempty"`
	ITunesCategory *itunesCategory `xml:"itunes:category,omitempty"`

	Items []rssItem `xml:"item"`
}

type itunesImage struct {
	Href string `xml:"href,attr"`
}

type itunesCategory struct {
	Text string `xml:"text,attr"`
}

type rssItem struct {
	Title          string       `xml:"title"`
	Description    string       `xml:"description"`
	Link           string       `xml:"link"`
	GUID           rssGUID      `xml:"guid"`
	PubDate        string       `xml:"pubDate"`
	Enclosure      rssEnclosure `xml:"enclosure"`
	ITunesDuration string       `xml:"itunes:duration"`
	ITunesSummary  string       `xml:"itunes:summary"`
	ITunesImage    *itunesImage `xml:"itunes:image,omitempty"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// GenerateFeed renders the RSS document for a podcast. Episodes whose audio
// has not finished uploading (empty AudioURL) are skipped. Episodes must be
// sorted by feed position; the store query guarantees that.
func GenerateFeed(podcast *models.Podcast, episodes []*models.Episode, siteURL string, now time.Time) (string, error) {
	feedLink := fmt.Sprintf("%s/api/podcasts/%s/rss", siteURL, podcast.ID)

	explicit := "no"
	if podcast.Explicit {
		explicit = "yes"
	}

	channel := rssChannel{
		Title:          podcast.Title,
		Link:           feedLink,
		Description:    podcast.Description,
		Language:       podcast.Language,
		Category:       podcast.Category,
		PubDate:        podcast.UpdatedAt.UTC().Format(time.RFC1123Z),
		LastBuildDate:  now.UTC().Format(time.RFC1123Z),
		ITunesAuthor:   podcast.Author,
		ITunesSummary:  podcast.Description,
		ITunesExplicit: explicit,
	}

	if podcast.Artwork != "" {
		channel.ITunesImage = &itunesImage{Href: podcast.Artwork}
	}
	if podcast.Category != "" {
		channel.ITunesCategory = &itunesCategory{Text: podcast.Category}
	}

	for _, episode := range episodes {
		if episode.AudioURL == "" {
			continue
		}

		item := rssItem{
			Title:       episode.Title,
			Description: episode.Description,
			Link:        feedLink,
			GUID:        rssGUID{IsPermaLink: false, Value: episode.ID},
			PubDate:     episode.CreatedAt.UTC().Format(time.RFC1123Z),
			Enclosure: rssEnclosure{
				URL:    episode.AudioURL,
				Length: episode.FileSize,
				Type:   "audio/mpeg",
			},
			ITunesDuration: FormatDuration(episode.Duration),
			ITunesSummary:  episode.Description,
		}
		if episode.ImageURL != "" {
			item.ITunesImage = &itunesImage{Href: episode.ImageURL}
		}

		channel.Items = append(channel.Items, item)
	}

	doc := rssDocument{
		Version:  "2.0",
		ITunesNS: itunesNamespace,
		Channel:  channel,
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render feed: %w", err)
	}

	return xml.Header + string(output) + "\n", nil
}

// FormatDuration renders seconds the way podcast clients expect
// (H:MM:SS, or M:SS under an hour)
func FormatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
