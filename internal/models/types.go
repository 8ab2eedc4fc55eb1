package models

// JobType identifies which pipeline a job runs through
type JobType string

const (
	JobTypeDownloadVideo JobType = "download_video"
	JobTypeScanPlaylist  JobType = "scan_playlist"
	JobTypeDownloadURL   JobType = "download_url"
	JobTypeProcessUpload JobType = "process_upload"
	JobTypePollSources   JobType = "poll_sources"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether a job in this status will never run again
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// SourceType represents where subscribed content comes from
type SourceType string

const (
	SourceTypeVideo    SourceType = "video"
	SourceTypePlaylist SourceType = "playlist"
	SourceTypeURL      SourceType = "url"
	SourceTypeFile     SourceType = "file"
)
