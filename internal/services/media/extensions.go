package media

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Audio and video extensions we accept. Anything else is rejected before
// transcoding cost is incurred.
var audioExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".aac": true, ".ogg": true, ".oga": true,
	".opus": true, ".wav": true, ".flac": true, ".wma": true, ".aiff": true,
	".aif": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".webm": true, ".avi": true, ".mov": true,
	".wmv": true, ".flv": true, ".m4v": true, ".mpg": true, ".mpeg": true,
	".3gp": true, ".ogv": true,
}

// IsValidMediaFile checks whether a filename has an accepted audio/video
// extension
func IsValidMediaFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return audioExtensions[ext] || videoExtensions[ext]
}

// IsAudioExtension reports whether an extension is audio (no video stream to
// strip) as opposed to video
func IsAudioExtension(ext string) bool {
	return audioExtensions[strings.ToLower(ext)]
}

var separatorPattern = regexp.MustCompile(`[_-]+`)
var whitespacePattern = regexp.MustCompile(`\s+`)

// TitleFromFilename extracts a human-readable title from a filename
func TitleFromFilename(filename string) string {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name = separatorPattern.ReplaceAllString(name, " ")
	name = whitespacePattern.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// TitleFromURL extracts a title from a URL, falling back to the hostname
func TitleFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "Untitled"
	}

	filename := path.Base(u.Path)
	if filename != "" && filename != "/" && filename != "." {
		if decoded, err := url.PathUnescape(filename); err == nil {
			filename = decoded
		}
		if title := TitleFromFilename(filename); title != "" {
			return title
		}
	}

	if u.Hostname() != "" {
		return u.Hostname()
	}
	return "Untitled"
}
