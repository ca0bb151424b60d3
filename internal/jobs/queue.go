package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Suriyanand/financial-document-analyzer/internal/service"
	"github.com/Suriyanand/financial-document-analyzer/pkg/log"
)

// RecoveryPolicy resolves jobs found in running state on startup, which can
// only mean their worker died mid-execution.
type RecoveryPolicy string

const (
	// RecoveryFail marks interrupted jobs failed with kind Interrupted.
	RecoveryFail RecoveryPolicy = "fail"
	// RecoveryRequeue resets interrupted jobs to pending for a fresh attempt.
	RecoveryRequeue RecoveryPolicy = "requeue"
)

const (
	defaultQueueCapacity = 64
	defaultJobTimeout    = 5 * time.Minute
)

// Queue owns the bounded worker pool that executes jobs against the
// analysis pipeline. It is the only writer of job state.
type Queue struct {
	workerCount   int
	store         Store
	pipeline      Pipeline
	jobTimeout    time.Duration
	submitTimeout time.Duration
	recovery      RecoveryPolicy

	mu         sync.Mutex
	started    bool
	pendingIDs chan string
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

type QueueOption func(*Queue)

func WithWorkerCount(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workerCount = n
		}
	}
}

func WithQueueCapacity(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.pendingIDs = make(chan string, n)
		}
	}
}

// WithSubmitTimeout bounds how long Enqueue blocks when the queue is full.
// Zero means fail fast with an Overloaded error.
func WithSubmitTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.submitTimeout = d
		}
	}
}

// WithJobTimeout bounds a single pipeline invocation.
func WithJobTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.jobTimeout = d
		}
	}
}

func WithRecoveryPolicy(policy RecoveryPolicy) QueueOption {
	return func(q *Queue) {
		if policy == RecoveryFail || policy == RecoveryRequeue {
			q.recovery = policy
		}
	}
}

func NewQueue(store Store, pipeline Pipeline, opts ...QueueOption) *Queue {
	q := &Queue{
		workerCount: 1,
		store:       store,
		pipeline:    pipeline,
		jobTimeout:  defaultJobTimeout,
		recovery:    RecoveryFail,
		pendingIDs:  make(chan string, defaultQueueCapacity),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start resolves jobs left over from a previous process and spawns the
// worker pool. Safe to call once; later calls are no-ops.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return nil
	}
	q.started = true
	q.mu.Unlock()

	recovered, err := q.recoverFromStore(ctx)
	if err != nil {
		return err
	}
	for _, id := range recovered {
		q.enqueueRecovered(id)
	}

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return nil
}

// Stop signals the workers and waits for the in-flight job of each worker
// to record its outcome.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.wg.Wait()
	})
}

// Enqueue hands a persisted pending job to the worker pool. When the queue
// is full it blocks up to the configured submit timeout, then reports
// Overloaded; a job is never silently dropped.
func (q *Queue) Enqueue(jobID string) error {
	select {
	case q.pendingIDs <- jobID:
		return nil
	default:
	}

	if q.submitTimeout <= 0 {
		return service.NewError(service.ErrOverloaded, "job queue is full").WithContext("job_id", jobID)
	}

	timer := time.NewTimer(q.submitTimeout)
	defer timer.Stop()
	select {
	case q.pendingIDs <- jobID:
		return nil
	case <-timer.C:
		return service.NewError(service.ErrOverloaded, "job queue is full").WithContext("job_id", jobID)
	case <-q.stopCh:
		return service.NewError(service.ErrOverloaded, "job queue is shutting down").WithContext("job_id", jobID)
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.pendingIDs:
			q.runJob(id)
		}
	}
}

type pipelineOutcome struct {
	result *AnalysisResult
	err    error
}

func (q *Queue) runJob(id string) {
	ctx := context.Background()

	job, ok, err := q.store.GetJob(ctx, id)
	if err != nil {
		log.Error("Failed to load job %s before dispatch: %v", id, err)
		return
	}
	if !ok {
		log.Warn("Dispatched job %s no longer exists", id)
		return
	}

	ok, err = q.store.MarkRunning(ctx, id, time.Now().UTC())
	if err != nil {
		log.Error("Failed to mark job %s running: %v", id, err)
		return
	}
	if !ok {
		// Duplicate dispatch or an already resolved job.
		log.Warn("Skipping job %s: not in pending state", id)
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, q.jobTimeout)
	defer cancel()

	outCh := make(chan pipelineOutcome, 1)
	go func() {
		var result *AnalysisResult
		err := service.SafeExecute(func() error {
			res, runErr := q.pipeline.Run(runCtx, PipelineRequest{
				DocumentPath: job.InputRef,
				Query:        job.Query,
			})
			result = res
			return runErr
		})
		outCh <- pipelineOutcome{result: result, err: err}
	}()

	select {
	case <-runCtx.Done():
		// Stop waiting; a late pipeline return is discarded by the
		// store's terminal-state guard.
		q.recordFailure(ctx, id, ErrorKindTimeout,
			fmt.Sprintf("analysis exceeded %s", q.jobTimeout))
	case out := <-outCh:
		switch {
		case out.err != nil && errors.Is(out.err, context.DeadlineExceeded):
			q.recordFailure(ctx, id, ErrorKindTimeout,
				fmt.Sprintf("analysis exceeded %s", q.jobTimeout))
		case out.err != nil:
			q.recordFailure(ctx, id, ErrorKindPipeline, out.err.Error())
		case out.result == nil:
			q.recordFailure(ctx, id, ErrorKindPipeline, "pipeline returned no result")
		default:
			q.recordCompletion(ctx, id, out.result)
		}
	}
}

func (q *Queue) recordCompletion(ctx context.Context, id string, result *AnalysisResult) {
	ok, err := q.store.UpdateTerminal(ctx, id, StatusCompleted, result, nil, time.Now().UTC())
	if err != nil {
		log.Error("Failed to record completion for job %s: %v", id, err)
		return
	}
	if !ok {
		log.Warn("Discarding completion for job %s: already terminal", id)
		return
	}
	log.Info("Job %s completed", id)
}

func (q *Queue) recordFailure(ctx context.Context, id string, kind ErrorKind, message string) {
	jobErr := &JobError{Kind: kind, Message: message}
	ok, err := q.store.UpdateTerminal(ctx, id, StatusFailed, nil, jobErr, time.Now().UTC())
	if err != nil {
		log.Error("Failed to record failure for job %s: %v", id, err)
		return
	}
	if !ok {
		log.Warn("Discarding failure for job %s: already terminal", id)
		return
	}
	log.Info("Job %s failed: [%s] %s", id, kind, message)
}

// recoverFromStore resolves every non-terminal job found at startup and
// returns the ids to feed back into the pool.
func (q *Queue) recoverFromStore(ctx context.Context) ([]string, error) {
	loaded, err := q.store.LoadJobs(ctx)
	if err != nil {
		return nil, service.WrapError(err, service.ErrStorage, "load jobs for recovery")
	}

	recovered := make([]string, 0)
	for _, job := range loaded {
		if job == nil || job.ID == "" {
			continue
		}
		switch job.Status {
		case StatusPending:
			recovered = append(recovered, job.ID)
		case StatusRunning:
			if q.recovery == RecoveryRequeue {
				ok, err := q.store.ResetToPending(ctx, job.ID)
				if err != nil {
					log.Error("Failed to requeue interrupted job %s: %v", job.ID, err)
					continue
				}
				if ok {
					log.Info("Requeueing interrupted job %s", job.ID)
					recovered = append(recovered, job.ID)
				}
				continue
			}
			q.recordFailure(ctx, job.ID, ErrorKindInterrupted,
				"job was running when the process restarted")
		}
	}
	return recovered, nil
}

// enqueueRecovered must not lose a recovered id even when the bounded
// channel is already full.
func (q *Queue) enqueueRecovered(id string) {
	select {
	case q.pendingIDs <- id:
	default:
		go func() {
			select {
			case q.pendingIDs <- id:
			case <-q.stopCh:
			}
		}()
	}
}
