package models

import (
	"fmt"
	"time"

	"github.com/timshannon/bolthold"
)

// Job operations

// CreateJob persists a new pending job
func (db *Database) CreateJob(job *Job) error {
	job.CreatedAt = time.Now()
	return db.store.Insert(job.ID, job)
}

// UpdateJob updates an existing job
func (db *Database) UpdateJob(job *Job) error {
	return db.store.Update(job.ID, job)
}

// GetJobByID retrieves a job by ID
func (db *Database) GetJobByID(id string) (*Job, error) {
	var job Job
	if err := db.store.Get(id, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetOldestPendingJob returns the pending job that was created first, or
// bolthold.ErrNotFound when the queue is empty
func (db *Database) GetOldestPendingJob() (*Job, error) {
	var jobs []*Job
	err := db.store.Find(&jobs,
		bolthold.Where("Status").Eq(JobStatusPending).Index("Status").
			SortBy("CreatedAt").Limit(1))
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, bolthold.ErrNotFound
	}
	return jobs[0], nil
}

// GetJobsByStatus retrieves all jobs with a specific status
func (db *Database) GetJobsByStatus(status JobStatus) ([]*Job, error) {
	var jobs []*Job
	err := db.store.Find(&jobs, bolthold.Where("Status").Eq(status).Index("Status"))
	return jobs, err
}

// GetAllJobs retrieves all jobs
func (db *Database) GetAllJobs() ([]*Job, error) {
	var jobs []*Job
	err := db.store.Find(&jobs, nil)
	return jobs, err
}

// FailStaleJobs transitions jobs stuck in processing for longer than the
// timeout to failed. Returns how many jobs were recovered. StartedAt is a
// pointer so the cutoff comparison happens Go-side rather than in the query.
func (db *Database) FailStaleJobs(timeout time.Duration) (int, error) {
	jobs, err := db.GetJobsByStatus(JobStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to get processing jobs: %w", err)
	}

	cutoff := time.Now().Add(-timeout)
	recovered := 0

	for _, job := range jobs {
		if job.StartedAt == nil || job.StartedAt.After(cutoff) {
			continue
		}

		now := time.Now()
		job.Status = JobStatusFailed
		job.Error = fmt.Sprintf("Job timed out after %d minutes", int(timeout.Minutes()))
		job.EndedAt = &now
		if err := db.UpdateJob(job); err != nil {
			return recovered, fmt.Errorf("failed to fail stale job %s: %w", job.ID, err)
		}
		recovered++
	}

	return recovered, nil
}
