package jobs

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Suriyanand/financial-document-analyzer/internal/service"
	"github.com/Suriyanand/financial-document-analyzer/pkg/log"
)

// Manager exposes the submit/status/result operations to callers. Submit is
// the only operation that creates state; the reads go straight to the store
// and never block on worker execution.
type Manager struct {
	store Store
	queue *Queue
	group singleflight.Group
}

func NewManager(store Store, queue *Queue) *Manager {
	return &Manager{
		store: store,
		queue: queue,
	}
}

// Submit validates the document reference, persists a pending job and hands
// it to the worker pool. It returns without performing or waiting on any
// analysis. A storage or backpressure failure leaves no record behind.
func (m *Manager) Submit(ctx context.Context, inputRef string, query string) (string, error) {
	inputRef = strings.TrimSpace(inputRef)
	if inputRef == "" {
		return "", service.NewError(service.ErrValidation, "document reference is required")
	}

	job := &Job{
		ID:          uuid.NewString(),
		InputRef:    inputRef,
		Query:       strings.TrimSpace(query),
		Status:      StatusPending,
		SubmittedAt: time.Now().UTC(),
	}

	if err := m.store.CreateJob(ctx, job); err != nil {
		return "", service.WrapError(err, service.ErrStorage, "persist new job")
	}

	if err := m.queue.Enqueue(job.ID); err != nil {
		if delErr := m.store.DeleteJob(ctx, job.ID); delErr != nil {
			log.Error("Failed to roll back unenqueued job %s: %v", job.ID, delErr)
		}
		return "", err
	}

	log.Info("Job %s submitted for %s", job.ID, job.InputRef)
	return job.ID, nil
}

// GetStatus returns the last persisted status of a job.
func (m *Manager) GetStatus(ctx context.Context, jobID string) (Status, error) {
	job, err := m.lookup(ctx, jobID)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// GetResult returns the stored result or error detail once the job is
// terminal, and a not-ready outcome while it is still pending or running.
func (m *Manager) GetResult(ctx context.Context, jobID string) (*JobOutcome, error) {
	job, err := m.lookup(ctx, jobID)
	if err != nil {
		return nil, err
	}

	outcome := &JobOutcome{
		JobID:  job.ID,
		Status: job.Status,
		Ready:  job.Status.Terminal(),
	}
	switch job.Status {
	case StatusCompleted:
		outcome.Result = job.Result
	case StatusFailed:
		outcome.Error = job.Error
	}
	return outcome, nil
}

// Get returns a snapshot of the full job record.
func (m *Manager) Get(ctx context.Context, jobID string) (*Job, error) {
	return m.lookup(ctx, jobID)
}

// List returns snapshots of every known job, oldest first.
func (m *Manager) List(ctx context.Context) ([]*Job, error) {
	loaded, err := m.store.LoadJobs(ctx)
	if err != nil {
		return nil, service.WrapError(err, service.ErrStorage, "list jobs")
	}
	return loaded, nil
}

// lookup collapses concurrent reads of the same job id into one store query.
func (m *Manager) lookup(ctx context.Context, jobID string) (*Job, error) {
	v, err, _ := m.group.Do(jobID, func() (any, error) {
		job, ok, err := m.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, service.WrapError(err, service.ErrStorage, "read job")
		}
		if !ok {
			return nil, service.NewError(service.ErrNotFound, "unknown job id").WithContext("job_id", jobID)
		}
		return job, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneJob(v.(*Job)), nil
}
