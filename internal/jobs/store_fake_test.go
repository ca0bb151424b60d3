package jobs

import (
	"context"
	"sync"
	"time"
)

// fakeStore is an in-memory Store with the same transition guards as the
// sqlite implementation.
type fakeStore struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]*Job)}
}

func (f *fakeStore) CreateJob(_ context.Context, job *Job) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = cloneJob(job)
	return nil
}

func (f *fakeStore) GetJob(_ context.Context, jobID string) (*Job, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, false, nil
	}
	return cloneJob(job), true, nil
}

func (f *fakeStore) MarkRunning(_ context.Context, jobID string, startedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || job.Status != StatusPending {
		return false, nil
	}
	job.Status = StatusRunning
	t := startedAt
	job.StartedAt = &t
	return true, nil
}

func (f *fakeStore) UpdateTerminal(_ context.Context, jobID string, status Status, result *AnalysisResult, jobErr *JobError, completedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || job.Status != StatusRunning {
		return false, nil
	}
	job.Status = status
	job.Result = result
	job.Error = jobErr
	t := completedAt
	job.CompletedAt = &t
	return true, nil
}

func (f *fakeStore) ResetToPending(_ context.Context, jobID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || job.Status != StatusRunning {
		return false, nil
	}
	job.Status = StatusPending
	job.StartedAt = nil
	return true, nil
}

func (f *fakeStore) DeleteJob(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, jobID)
	return nil
}

func (f *fakeStore) LoadJobs(_ context.Context) ([]*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := make([]*Job, 0, len(f.jobs))
	for _, job := range f.jobs {
		ret = append(ret, cloneJob(job))
	}
	return ret, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func (f *fakeStore) put(job *Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = cloneJob(job)
}
