package jobs

import (
	"context"
	"time"
)

// Store is the durable source of truth for job records. Writes to a single
// record are atomic with respect to concurrent reads, and the guarded
// transitions reject attempts to move a job that is not in the expected
// prior state.
type Store interface {
	// CreateJob persists a newly submitted job in pending state.
	CreateJob(ctx context.Context, job *Job) error

	// GetJob returns the last persisted state of a job. ok is false when
	// the id is unknown.
	GetJob(ctx context.Context, jobID string) (job *Job, ok bool, err error)

	// MarkRunning transitions pending -> running and records startedAt.
	// ok is false when the job is missing or not pending.
	MarkRunning(ctx context.Context, jobID string, startedAt time.Time) (ok bool, err error)

	// UpdateTerminal transitions running -> completed/failed, recording
	// exactly one of result or jobErr together with completedAt in a single
	// atomic write. ok is false when the job is missing or already
	// terminal, which is how late or duplicate completion reports are
	// discarded.
	UpdateTerminal(ctx context.Context, jobID string, status Status, result *AnalysisResult, jobErr *JobError, completedAt time.Time) (ok bool, err error)

	// ResetToPending transitions running -> pending, used by the requeue
	// recovery policy on restart.
	ResetToPending(ctx context.Context, jobID string) (ok bool, err error)

	// DeleteJob removes a record; used to roll back a submission that
	// could not be enqueued.
	DeleteJob(ctx context.Context, jobID string) error

	// LoadJobs returns every persisted job for restart recovery.
	LoadJobs(ctx context.Context) ([]*Job, error)
}
