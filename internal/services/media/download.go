package media

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const maxDownloadAttempts = 3

// DownloadedFile is a file fetched from a URL into a temp directory
type DownloadedFile struct {
	FilePath string
	Filename string
}

// Content-Type fallbacks for URLs whose path carries no extension
var contentTypeExtensions = map[string]string{
	"audio/mpeg":       ".mp3",
	"audio/mp4":        ".m4a",
	"audio/aac":        ".aac",
	"audio/ogg":        ".ogg",
	"audio/opus":       ".opus",
	"audio/wav":        ".wav",
	"audio/x-wav":      ".wav",
	"audio/flac":       ".flac",
	"video/mp4":        ".mp4",
	"video/webm":       ".webm",
	"video/x-matroska": ".mkv",
	"video/quicktime":  ".mov",
	"video/x-msvideo":  ".avi",
}

// Downloader fetches arbitrary files over HTTP with transient-error retry
type Downloader struct {
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewDownloader creates a new downloader
func NewDownloader(logger *logrus.Logger) *Downloader {
	return &Downloader{
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		logger: logger,
	}
}

// DownloadFromURL downloads a file into a fresh temp directory. The caller
// owns the directory and must remove it.
func (d *Downloader) DownloadFromURL(rawURL string) (*DownloadedFile, error) {
	tmpDir, err := os.MkdirTemp("", "podcast-dl-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	result, err := d.downloadInto(tmpDir, rawURL)
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, err
	}
	return result, nil
}

func (d *Downloader) downloadInto(tmpDir, rawURL string) (*DownloadedFile, error) {
	var result *DownloadedFile

	operation := func() error {
		d.logger.WithField("url", rawURL).Debug("Downloading file")

		req, err := http.NewRequest(http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("invalid download URL: %w", err))
		}
		req.Header.Set("User-Agent", "podcastarr/1.0")

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("download request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return err
			}
			return backoff.Permanent(err)
		}

		filename := filenameFromResponse(resp, rawURL)
		filePath := filepath.Join(tmpDir, filename)

		out, err := os.Create(filePath)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create file: %w", err))
		}
		defer out.Close()

		if _, err := io.Copy(out, resp.Body); err != nil {
			os.Remove(filePath)
			return fmt.Errorf("failed to read download body: %w", err)
		}

		result = &DownloadedFile{FilePath: filePath, Filename: filename}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxDownloadAttempts-1)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

func filenameFromResponse(resp *http.Response, rawURL string) string {
	filename := ""

	// Prefer the Content-Disposition header
	if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			filename = params["filename"]
		}
	}

	// Fall back to the URL path
	if filename == "" {
		if u, err := url.Parse(rawURL); err == nil {
			base := path.Base(u.Path)
			if base != "" && base != "/" && base != "." {
				if decoded, err := url.PathUnescape(base); err == nil {
					base = decoded
				}
				filename = base
			}
		}
	}
	if filename == "" {
		filename = "download"
	}

	// Ensure it has an extension; try Content-Type if missing
	if filepath.Ext(filename) == "" {
		contentType := strings.TrimSpace(strings.SplitN(resp.Header.Get("Content-Type"), ";", 2)[0])
		filename += contentTypeExtensions[contentType]
	}

	// Keep the name filesystem-safe
	return filepath.Base(filename)
}
