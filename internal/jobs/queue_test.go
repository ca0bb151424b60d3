package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Suriyanand/financial-document-analyzer/internal/service"
)

func pendingJob(id string) *Job {
	return &Job{
		ID:          id,
		InputRef:    "/tmp/doc-" + id + ".pdf",
		Status:      StatusPending,
		SubmittedAt: time.Now().UTC(),
	}
}

func okPipeline() Pipeline {
	return PipelineFunc(func(_ context.Context, _ PipelineRequest) (*AnalysisResult, error) {
		return &AnalysisResult{Report: "report", Recommendation: "buy"}, nil
	})
}

func TestQueue_RunsJobToCompletion(t *testing.T) {
	store := newFakeStore()
	store.put(pendingJob("job-1"))

	q := NewQueue(store, okPipeline())
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	require.Eventually(t, func() bool {
		job, ok, _ := store.GetJob(context.Background(), "job-1")
		return ok && job.Status == StatusCompleted
	}, time.Second, 10*time.Millisecond)

	job, ok, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, job.Result)
	assert.Equal(t, "report", job.Result.Report)
	assert.Nil(t, job.Error)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)
}

func TestQueue_RecordsPipelineFailure(t *testing.T) {
	store := newFakeStore()
	store.put(pendingJob("job-1"))

	q := NewQueue(store, PipelineFunc(func(_ context.Context, _ PipelineRequest) (*AnalysisResult, error) {
		return nil, assert.AnError
	}))
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	require.Eventually(t, func() bool {
		job, ok, _ := store.GetJob(context.Background(), "job-1")
		return ok && job.Status == StatusFailed
	}, time.Second, 10*time.Millisecond)

	job, _, _ := store.GetJob(context.Background(), "job-1")
	require.NotNil(t, job.Error)
	assert.Equal(t, ErrorKindPipeline, job.Error.Kind)
	assert.NotEmpty(t, job.Error.Message)
	assert.Nil(t, job.Result)
}

func TestQueue_RecoversFromPipelinePanic(t *testing.T) {
	store := newFakeStore()
	store.put(pendingJob("job-1"))
	store.put(pendingJob("job-2"))

	var calls atomic.Int32
	q := NewQueue(store, PipelineFunc(func(_ context.Context, _ PipelineRequest) (*AnalysisResult, error) {
		if calls.Add(1) == 1 {
			panic("model backend exploded")
		}
		return &AnalysisResult{Report: "ok"}, nil
	}))
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	// The panic is converted into a failed job and the worker survives to
	// process the next one.
	require.Eventually(t, func() bool {
		a, _, _ := store.GetJob(context.Background(), "job-1")
		b, _, _ := store.GetJob(context.Background(), "job-2")
		return a != nil && b != nil && a.Status.Terminal() && b.Status.Terminal()
	}, time.Second, 10*time.Millisecond)

	failed, _, _ := store.GetJob(context.Background(), "job-1")
	require.NotNil(t, failed.Error)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Contains(t, failed.Error.Message, "model backend exploded")

	completed, _, _ := store.GetJob(context.Background(), "job-2")
	assert.Equal(t, StatusCompleted, completed.Status)
}

func TestQueue_TimeoutRecordedOnceAndLateResultDiscarded(t *testing.T) {
	store := newFakeStore()
	store.put(pendingJob("job-1"))

	release := make(chan struct{})
	q := NewQueue(store, PipelineFunc(func(_ context.Context, _ PipelineRequest) (*AnalysisResult, error) {
		<-release
		return &AnalysisResult{Report: "too late"}, nil
	}), WithJobTimeout(50*time.Millisecond))
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	require.Eventually(t, func() bool {
		job, ok, _ := store.GetJob(context.Background(), "job-1")
		return ok && job.Status == StatusFailed
	}, time.Second, 10*time.Millisecond)

	job, _, _ := store.GetJob(context.Background(), "job-1")
	require.NotNil(t, job.Error)
	assert.Equal(t, ErrorKindTimeout, job.Error.Kind)

	// Let the pipeline finish after the timeout was already recorded; the
	// terminal state must not change.
	close(release)
	time.Sleep(100 * time.Millisecond)

	after, _, _ := store.GetJob(context.Background(), "job-1")
	assert.Equal(t, StatusFailed, after.Status)
	assert.Equal(t, ErrorKindTimeout, after.Error.Kind)
	assert.Nil(t, after.Result)
}

func TestQueue_Enqueue_OverloadedWhenFull(t *testing.T) {
	store := newFakeStore()
	// No workers are started, so the queue cannot drain.
	q := NewQueue(store, okPipeline(), WithQueueCapacity(1))

	require.NoError(t, q.Enqueue("job-1"))

	err := q.Enqueue("job-2")
	require.Error(t, err)
	assert.True(t, service.IsErrorType(err, service.ErrOverloaded))
}

func TestQueue_Enqueue_BlocksUpToSubmitTimeout(t *testing.T) {
	store := newFakeStore()
	q := NewQueue(store, okPipeline(),
		WithQueueCapacity(1),
		WithSubmitTimeout(50*time.Millisecond),
	)

	require.NoError(t, q.Enqueue("job-1"))

	start := time.Now()
	err := q.Enqueue("job-2")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, service.IsErrorType(err, service.ErrOverloaded))
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestQueue_Start_FailsInterruptedJobs(t *testing.T) {
	store := newFakeStore()
	interrupted := pendingJob("job-1")
	interrupted.Status = StatusRunning
	store.put(interrupted)

	q := NewQueue(store, okPipeline(), WithRecoveryPolicy(RecoveryFail))
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	job, ok, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, ErrorKindInterrupted, job.Error.Kind)
}

func TestQueue_Start_RequeuesInterruptedJobs(t *testing.T) {
	store := newFakeStore()
	interrupted := pendingJob("job-1")
	interrupted.Status = StatusRunning
	store.put(interrupted)

	q := NewQueue(store, okPipeline(), WithRecoveryPolicy(RecoveryRequeue))
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	require.Eventually(t, func() bool {
		job, ok, _ := store.GetJob(context.Background(), "job-1")
		return ok && job.Status == StatusCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_Start_ReenqueuesPendingJobs(t *testing.T) {
	store := newFakeStore()
	store.put(pendingJob("job-1"))
	store.put(pendingJob("job-2"))

	q := NewQueue(store, okPipeline())
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	require.Eventually(t, func() bool {
		a, _, _ := store.GetJob(context.Background(), "job-1")
		b, _, _ := store.GetJob(context.Background(), "job-2")
		return a != nil && b != nil &&
			a.Status == StatusCompleted && b.Status == StatusCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_SkipsDuplicateDispatch(t *testing.T) {
	store := newFakeStore()
	store.put(pendingJob("job-1"))

	var runs atomic.Int32
	q := NewQueue(store, PipelineFunc(func(_ context.Context, _ PipelineRequest) (*AnalysisResult, error) {
		runs.Add(1)
		return &AnalysisResult{Report: "once"}, nil
	}))
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	// The same id queued twice must execute only once; the second dispatch
	// hits the pending-state guard.
	require.NoError(t, q.Enqueue("job-1"))

	require.Eventually(t, func() bool {
		job, ok, _ := store.GetJob(context.Background(), "job-1")
		return ok && job.Status == StatusCompleted
	}, time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}
