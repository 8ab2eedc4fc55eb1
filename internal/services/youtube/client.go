package youtube

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/podcastarr/internal/config"
	"github.com/sirupsen/logrus"
)

// Wall-clock limits for yt-dlp invocations. A run that exceeds its limit is
// killed and the step fails.
const (
	metadataTimeout = 60 * time.Second
	playlistTimeout = 2 * time.Minute
	downloadTimeout = 10 * time.Minute
)

// VideoMetadata describes a single video as reported by yt-dlp
type VideoMetadata struct {
	ID          string
	Title       string
	Description string
	Thumbnail   string
	Duration    int // seconds
	Uploader    string
}

// DownloadResult is the outcome of an audio download
type DownloadResult struct {
	FilePath string
	Duration int
	FileSize int64
}

// ProgressFunc receives download progress in yt-dlp's own 0-100 scale
type ProgressFunc func(percent float64, message string)

// Client wraps yt-dlp invocations
type Client struct {
	ytDlpPath   string
	ffprobePath string
	logger      *logrus.Logger
}

// NewClient creates a new YouTube client
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	return &Client{
		ytDlpPath:   cfg.YtDlpPath,
		ffprobePath: cfg.FFprobePath,
		logger:      logger,
	}
}

// ParseURL extracts a video or playlist id from a YouTube URL
func ParseURL(rawURL string) (SourceKind, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid URL: %w", err)
	}

	if listID := u.Query().Get("list"); listID != "" {
		return KindPlaylist, listID, nil
	}

	videoID := u.Query().Get("v")
	if videoID == "" && u.Hostname() == "youtu.be" {
		videoID = strings.TrimPrefix(u.Path, "/")
	}
	if videoID != "" {
		return KindVideo, videoID, nil
	}

	return "", "", fmt.Errorf("could not parse YouTube URL %q", rawURL)
}

// SourceKind distinguishes a single video from a playlist URL
type SourceKind string

const (
	KindVideo    SourceKind = "video"
	KindPlaylist SourceKind = "playlist"
)

// IsYouTubeURL reports whether a URL points at YouTube
func IsYouTubeURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtube.com", "youtu.be", "m.youtube.com", "music.youtube.com":
		return true
	}
	return false
}

type ytDlpVideo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Thumbnail   string  `json:"thumbnail"`
	Duration    float64 `json:"duration"`
	Uploader    string  `json:"uploader"`
	Thumbnails  []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

func (v ytDlpVideo) toMetadata() VideoMetadata {
	meta := VideoMetadata{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		Thumbnail:   v.Thumbnail,
		Duration:    int(v.Duration + 0.5),
		Uploader:    v.Uploader,
	}
	if meta.Title == "" {
		meta.Title = "Untitled"
	}
	if meta.Thumbnail == "" && len(v.Thumbnails) > 0 {
		meta.Thumbnail = v.Thumbnails[0].URL
	}
	return meta
}

// FetchVideoMetadata retrieves title, description and duration for a video
func (c *Client) FetchVideoMetadata(ctx context.Context, videoID string) (*VideoMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	c.logger.WithField("video_id", videoID).Debug("Fetching video metadata")

	cmd := exec.CommandContext(ctx, c.ytDlpPath,
		"--dump-json",
		"--no-download",
		"--no-playlist",
		watchURL(videoID),
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata fetch failed: %w: %s", err, exitStderr(err))
	}

	var video ytDlpVideo
	if err := json.Unmarshal(output, &video); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}

	meta := video.toMetadata()
	return &meta, nil
}

// FetchPlaylistEntries retrieves the flat listing of a playlist. yt-dlp
// emits one JSON object per line in flat-playlist mode.
func (c *Client) FetchPlaylistEntries(ctx context.Context, playlistID string) ([]VideoMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, playlistTimeout)
	defer cancel()

	c.logger.WithField("playlist_id", playlistID).Debug("Fetching playlist entries")

	cmd := exec.CommandContext(ctx, c.ytDlpPath,
		"--dump-json",
		"--flat-playlist",
		fmt.Sprintf("https://www.youtube.com/playlist?list=%s", playlistID),
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp playlist fetch failed: %w: %s", err, exitStderr(err))
	}

	return parsePlaylistOutput(output)
}

func parsePlaylistOutput(output []byte) ([]VideoMetadata, error) {
	var entries []VideoMetadata
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var video ytDlpVideo
		if err := json.Unmarshal([]byte(line), &video); err != nil {
			return nil, fmt.Errorf("failed to parse playlist entry: %w", err)
		}
		entries = append(entries, video.toMetadata())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist output: %w", err)
	}
	return entries, nil
}

// DownloadAudio downloads a video's audio track as mp3 into a fresh temp
// directory. The caller owns the directory and must remove it.
func (c *Client) DownloadAudio(ctx context.Context, videoID string, onProgress ProgressFunc) (*DownloadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "podcast-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	outputPath := filepath.Join(tmpDir, videoID+".mp3")

	cmd := exec.CommandContext(ctx, c.ytDlpPath,
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--no-playlist",
		"--newline",
		"-o", outputPath,
		watchURL(videoID),
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to attach to yt-dlp output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if onProgress == nil {
			continue
		}
		if percent, message, ok := ParseProgressLine(scanner.Text()); ok {
			onProgress(percent, message)
		}
	}

	if err := cmd.Wait(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("yt-dlp download failed: %w", err)
	}

	stat, err := os.Stat(outputPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("yt-dlp produced no output file: %w", err)
	}

	// Duration is advisory; a failed probe leaves it at 0
	duration := c.probeDuration(ctx, outputPath)

	return &DownloadResult{
		FilePath: outputPath,
		Duration: duration,
		FileSize: stat.Size(),
	}, nil
}

// ParseProgressLine extracts a percentage from a yt-dlp --newline progress
// line. Extraction phases report 100 with an "Extracting" message.
func ParseProgressLine(line string) (float64, string, bool) {
	line = strings.TrimSpace(line)

	if strings.HasPrefix(line, "[ExtractAudio]") {
		return 100, "Extracting audio from video…", true
	}

	if !strings.HasPrefix(line, "[download]") {
		return 0, "", false
	}

	fields := strings.Fields(line)
	for _, field := range fields {
		if !strings.HasSuffix(field, "%") {
			continue
		}
		percent, err := strconv.ParseFloat(strings.TrimSuffix(field, "%"), 64)
		if err != nil {
			return 0, "", false
		}
		return percent, fmt.Sprintf("Downloading… %.1f%%", percent), true
	}
	return 0, "", false
}

// DownloadThumbnail fetches a video's thumbnail into a fresh temp directory.
// The caller owns the directory and must remove it.
func (c *Client) DownloadThumbnail(ctx context.Context, videoID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "podcast-thumb-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.ytDlpPath,
		"--write-thumbnail",
		"--skip-download",
		"--convert-thumbnails", "jpg",
		"-o", filepath.Join(tmpDir, videoID),
		watchURL(videoID),
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(tmpDir)
		return "", fmt.Errorf("yt-dlp thumbnail fetch failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	// yt-dlp may produce the file with different extensions
	files, err := os.ReadDir(tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		return "", fmt.Errorf("failed to read thumbnail directory: %w", err)
	}
	for _, f := range files {
		switch strings.ToLower(filepath.Ext(f.Name())) {
		case ".jpg", ".webp", ".png":
			return filepath.Join(tmpDir, f.Name()), nil
		}
	}

	os.RemoveAll(tmpDir)
	return "", fmt.Errorf("yt-dlp produced no thumbnail for video %s", videoID)
}

func (c *Client) probeDuration(ctx context.Context, filePath string) int {
	cmd := exec.CommandContext(ctx, c.ffprobePath,
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		filePath,
	)
	output, err := cmd.Output()
	if err != nil {
		c.logger.WithError(err).WithField("file", filePath).Debug("ffprobe failed")
		return 0
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0
	}
	return int(seconds + 0.5)
}

func watchURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}

func exitStderr(err error) string {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return strings.TrimSpace(string(exitErr.Stderr))
	}
	return ""
}
