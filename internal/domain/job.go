package domain

import (
	"time"
)

// JobID is a unique identifier for a job.
type JobID string

// String returns the string representation of the JobID.
func (id JobID) String() string {
	return string(id)
}

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is a queued VOD download submitted through the HTTP API.
// Jobs run once; a failure is final.
type Job struct {
	ID         JobID
	Input      string
	VideoID    VideoID
	OutputPath string
	InputArgs  []string
	OutputArgs []string
	// AuthToken is the per-job bearer override. It is never exposed over the API.
	AuthToken   string
	Status      JobStatus
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// NewJob creates a new queued job for a resolved VOD.
func NewJob(id JobID, videoID VideoID, outputPath string) *Job {
	now := time.Now()
	return &Job{
		ID:         id,
		VideoID:    videoID,
		OutputPath: outputPath,
		Status:     JobStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsTerminal returns true once the job can no longer change state.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// MarkProcessing updates the job status to processing.
func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now()
}

// MarkCompleted updates the job status to completed.
func (j *Job) MarkCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// MarkFailed updates the job status to failed with an error message.
func (j *Job) MarkFailed(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.LastError = err
	j.UpdatedAt = now
	j.CompletedAt = &now
}
