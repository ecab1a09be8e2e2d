package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeSnapshot builds and stores a dashboard snapshot.
	JobTypeSnapshot JobType = "snapshot"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// DefaultMaxRetries applies when a job is published without MaxRetries.
const DefaultMaxRetries = 3

// NoRetries as MaxRetries runs a job exactly once.
const NoRetries = -1

// SnapshotJob is a request to build a snapshot of the dashboard and write
// it to the configured sinks.
type SnapshotJob struct {
	JobID string `json:"job_id"`

	// DatabaseID is the Notion database name or id, resolved like the
	// databaseId query parameter. Empty selects the default database.
	DatabaseID string `json:"database_id,omitempty"`

	// ExcludedTags and the date window are applied to the ledger.
	ExcludedTags []string   `json:"excluded_tags,omitempty"`
	Start        *time.Time `json:"start,omitempty"`
	End          *time.Time `json:"end,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the last attempt failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// Result is set once the snapshot has been written.
	Result *SnapshotResult `json:"result,omitempty"`
}

// SnapshotResult describes a written snapshot.
type SnapshotResult struct {
	SnapshotID string    `json:"snapshot_id"`
	TakenAt    time.Time `json:"taken_at"`
	Sinks      []string  `json:"sinks"`
	Summary    string    `json:"summary,omitempty"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *SnapshotJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *SnapshotJob) GetType() JobType {
	return JobTypeSnapshot
}

// GetStatus implements the Job interface.
func (j *SnapshotJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishSnapshot enqueues a snapshot job.
	PublishSnapshot(ctx context.Context, job *SnapshotJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the attempt as failed
// and the job is retried while retries remain. Handlers may set job.Result.
type JobHandler func(ctx context.Context, job *SnapshotJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *SnapshotJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*SnapshotJob, error)

	// ListJobs retrieves jobs, newest first, with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*SnapshotJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	DatabaseID string
	Status     JobStatus
	Limit      int
	Offset     int
}
