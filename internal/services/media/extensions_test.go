package media

import "testing"

func TestIsValidMediaFile(t *testing.T) {
	valid := []string{
		"episode.mp3", "episode.M4A", "show.flac", "video.mp4",
		"clip.webm", "recording.MOV", "archive.mkv",
	}
	for _, name := range valid {
		if !IsValidMediaFile(name) {
			t.Errorf("Expected %s to be valid", name)
		}
	}

	invalid := []string{
		"notes.txt", "image.jpg", "archive.zip", "episode", "script.sh",
	}
	for _, name := range invalid {
		if IsValidMediaFile(name) {
			t.Errorf("Expected %s to be invalid", name)
		}
	}
}

func TestIsAudioExtension(t *testing.T) {
	if !IsAudioExtension(".mp3") || !IsAudioExtension(".OGG") {
		t.Error("Expected audio extensions to be recognized")
	}
	if IsAudioExtension(".mp4") || IsAudioExtension(".txt") {
		t.Error("Expected non-audio extensions to be rejected")
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"my_podcast-episode.mp3", "my podcast episode"},
		{"Interview__Part--2.m4a", "Interview Part 2"},
		{"simple.mp3", "simple"},
		{"/tmp/uploads/deep_file.wav", "deep file"},
	}
	for _, tt := range tests {
		if got := TitleFromFilename(tt.filename); got != tt.want {
			t.Errorf("TitleFromFilename(%s) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestTitleFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/shows/weekly_update.mp3", "weekly update"},
		{"https://example.com/shows/my%20episode.mp3", "my episode"},
		{"https://example.com/", "example.com"},
		{"://bad", "Untitled"},
	}
	for _, tt := range tests {
		if got := TitleFromURL(tt.url); got != tt.want {
			t.Errorf("TitleFromURL(%s) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
