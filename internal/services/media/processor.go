package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/podcastarr/internal/config"
	"github.com/sirupsen/logrus"
)

// Transcoding a long video can legitimately take a while, but not forever
const transcodeTimeout = 10 * time.Minute

// MediaInfo holds the probed properties of a media file
type MediaInfo struct {
	Duration int // seconds, 0 if the probe failed
	FileSize int64
}

// ProcessResult is the outcome of normalizing a media file to mp3
type ProcessResult struct {
	AudioPath string // equals the input path when no transcode was needed
	Duration  int
	FileSize  int64
}

// Client wraps ffmpeg/ffprobe invocations
type Client struct {
	ffmpegPath  string
	ffprobePath string
	logger      *logrus.Logger
}

// NewClient creates a new media processing client
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	return &Client{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: cfg.FFprobePath,
		logger:      logger,
	}
}

// ProbeMediaInfo returns duration and size of a media file. A failed ffprobe
// leaves duration at 0 rather than failing the caller.
func (c *Client) ProbeMediaInfo(ctx context.Context, filePath string) (*MediaInfo, error) {
	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat media file: %w", err)
	}

	info := &MediaInfo{FileSize: stat.Size()}

	cmd := exec.CommandContext(ctx, c.ffprobePath,
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		filePath,
	)
	output, err := cmd.Output()
	if err != nil {
		c.logger.WithError(err).WithField("file", filePath).Debug("ffprobe failed")
		return info, nil
	}

	if seconds, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64); err == nil {
		info.Duration = int(seconds + 0.5)
	}
	return info, nil
}

// TranscodeToAudio converts a video or non-mp3 audio file to mp3 in a fresh
// temp directory. The caller owns the directory and must remove it.
func (c *Client) TranscodeToAudio(ctx context.Context, inputPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transcodeTimeout)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "podcast-convert-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	outputPath := filepath.Join(tmpDir, "audio.mp3")

	c.logger.WithField("input", inputPath).Debug("Transcoding to mp3")

	cmd := exec.CommandContext(ctx, c.ffmpegPath,
		"-i", inputPath,
		"-vn", // strip video
		"-acodec", "libmp3lame",
		"-ab", "192k",
		"-ar", "44100",
		"-y", // overwrite
		outputPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(tmpDir)
		return "", fmt.Errorf("ffmpeg transcode failed: %w: %s", err, lastLine(output))
	}

	return outputPath, nil
}

// ProcessMediaFile normalizes a media file to mp3. Files already in mp3 are
// probed only; the decision is made on extension, not content.
func (c *Client) ProcessMediaFile(ctx context.Context, inputPath string) (*ProcessResult, error) {
	audioPath := inputPath
	if strings.ToLower(filepath.Ext(inputPath)) != ".mp3" {
		transcoded, err := c.TranscodeToAudio(ctx, inputPath)
		if err != nil {
			return nil, err
		}
		audioPath = transcoded
	}

	info, err := c.ProbeMediaInfo(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	return &ProcessResult{
		AudioPath: audioPath,
		Duration:  info.Duration,
		FileSize:  info.FileSize,
	}, nil
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
