package models

import (
	"encoding/json"
	"testing"
)

func TestNewJobEncodesMetadata(t *testing.T) {
	job, err := NewJob(JobTypeDownloadVideo, VideoDownloadMetadata{
		VideoID:   "abc123dEF45",
		PodcastID: "pod-1",
		EpisodeID: "ep-1",
	})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}

	if job.ID == "" {
		t.Error("Expected a generated job ID")
	}
	if job.Status != JobStatusPending {
		t.Errorf("Expected pending status, got %s", job.Status)
	}

	meta, err := job.VideoDownloadMetadata()
	if err != nil {
		t.Fatalf("Failed to decode metadata: %v", err)
	}
	if meta.VideoID != "abc123dEF45" || meta.PodcastID != "pod-1" || meta.EpisodeID != "ep-1" {
		t.Errorf("Metadata round-trip mismatch: %+v", meta)
	}
}

func TestMetadataAccessorRejectsWrongType(t *testing.T) {
	job, err := NewJob(JobTypeScanPlaylist, PlaylistScanMetadata{
		PlaylistID: "PLxyz",
		PodcastID:  "pod-1",
	})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}

	if _, err := job.VideoDownloadMetadata(); err == nil {
		t.Error("Expected error decoding playlist payload as video metadata")
	}
}

func TestMetadataAccessorRejectsMissingFields(t *testing.T) {
	job, err := NewJob(JobTypeDownloadVideo, VideoDownloadMetadata{
		VideoID: "abc123dEF45",
		// podcastId and episodeId missing
	})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}

	if _, err := job.VideoDownloadMetadata(); err == nil {
		t.Error("Expected error for incomplete video metadata")
	}
}

func TestMetadataAccessorRejectsMalformedPayload(t *testing.T) {
	job := &Job{
		ID:       "job-1",
		Type:     JobTypeDownloadURL,
		Metadata: json.RawMessage(`{"url": 42}`),
	}

	if _, err := job.URLDownloadMetadata(); err == nil {
		t.Error("Expected error for malformed payload")
	}
}

func TestUploadMetadataRequiresAllFields(t *testing.T) {
	job, err := NewJob(JobTypeProcessUpload, UploadMetadata{
		FilePath:         "/tmp/uploads/x.mp3",
		OriginalFilename: "x.mp3",
		PodcastID:        "pod-1",
		EpisodeID:        "ep-1",
	})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if _, err := job.UploadMetadata(); err != nil {
		t.Errorf("Expected valid upload metadata, got %v", err)
	}

	incomplete, _ := NewJob(JobTypeProcessUpload, UploadMetadata{FilePath: "/tmp/x.mp3"})
	if _, err := incomplete.UploadMetadata(); err == nil {
		t.Error("Expected error for incomplete upload metadata")
	}
}

func TestPollSourcesMetadataToleratesEmptyPayload(t *testing.T) {
	job := &Job{ID: "job-1", Type: JobTypePollSources}

	meta, err := job.PollSourcesMetadata()
	if err != nil {
		t.Fatalf("Expected empty payload to decode, got %v", err)
	}
	if meta.PodcastID != "" {
		t.Errorf("Expected empty podcast scope, got %s", meta.PodcastID)
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	terminal := map[JobStatus]bool{
		JobStatusPending:    false,
		JobStatusProcessing: false,
		JobStatusCompleted:  true,
		JobStatusFailed:     true,
	}
	for status, want := range terminal {
		if status.IsTerminal() != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", status, !want, want)
		}
	}
}
