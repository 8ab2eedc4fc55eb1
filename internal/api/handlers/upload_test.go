package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/amaumene/podcastarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartUpload(t *testing.T, podcastID, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("podcast_id", podcastID))
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadStagesFileAndQueuesJob(t *testing.T) {
	db := testDatabase(t)
	podcast := testPodcast(t, db)
	handler := NewUploadHandler(db, t.TempDir(), testLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartUpload(t, podcast.ID, "live_session.mp3", "audio"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(models.JobTypeProcessUpload), resp.JobType)

	job, err := db.GetJobByID(resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)

	meta, err := job.UploadMetadata()
	require.NoError(t, err)
	assert.Equal(t, "live_session.mp3", meta.OriginalFilename)
	assert.Equal(t, resp.EpisodeID, meta.EpisodeID)

	content, err := os.ReadFile(meta.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(content))

	episode, err := db.GetEpisodeByID(resp.EpisodeID)
	require.NoError(t, err)
	assert.Equal(t, "live session", episode.Title)
}

func TestUploadRejectsInvalidFileType(t *testing.T) {
	db := testDatabase(t)
	podcast := testPodcast(t, db)
	uploadDir := t.TempDir()
	handler := NewUploadHandler(db, uploadDir, testLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartUpload(t, podcast.ID, "malware.exe", "x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing staged, nothing queued
	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	jobs, err := db.GetAllJobs()
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestUploadUnknownPodcast(t *testing.T) {
	db := testDatabase(t)
	handler := NewUploadHandler(db, t.TempDir(), testLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartUpload(t, "missing", "show.mp3", "x"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
