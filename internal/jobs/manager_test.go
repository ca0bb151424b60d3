package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Suriyanand/financial-document-analyzer/internal/service"
)

func TestManager_Submit_ValidatesInputRef(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, NewQueue(store, okPipeline()))

	_, err := m.Submit(context.Background(), "   ", "")
	require.Error(t, err)
	assert.True(t, service.IsErrorType(err, service.ErrValidation))
	assert.Equal(t, 0, store.count())
}

func TestManager_Submit_StorageErrorLeavesNoJob(t *testing.T) {
	store := newFakeStore()
	store.createErr = assert.AnError
	m := NewManager(store, NewQueue(store, okPipeline()))

	_, err := m.Submit(context.Background(), "/tmp/report.pdf", "")
	require.Error(t, err)
	assert.True(t, service.IsErrorType(err, service.ErrStorage))
	assert.Equal(t, 0, store.count())
}

func TestManager_Submit_RollsBackOverloadedJob(t *testing.T) {
	store := newFakeStore()
	// Capacity 1 and no running workers: the second submission cannot be
	// enqueued and must leave no record behind.
	m := NewManager(store, NewQueue(store, okPipeline(), WithQueueCapacity(1)))

	_, err := m.Submit(context.Background(), "/tmp/a.pdf", "")
	require.NoError(t, err)

	_, err = m.Submit(context.Background(), "/tmp/b.pdf", "")
	require.Error(t, err)
	assert.True(t, service.IsErrorType(err, service.ErrOverloaded))
	assert.Equal(t, 1, store.count())
}

func TestManager_Submit_ReturnsUniqueIDs(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, NewQueue(store, okPipeline(), WithQueueCapacity(256)))

	const n = 50
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := m.Submit(context.Background(), "/tmp/report.pdf", "")
			require.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.NotEmpty(t, id)
		require.False(t, seen[id], "duplicate job id %s", id)
		seen[id] = true

		// Before any worker runs, a fresh submission is never terminal.
		status, err := m.GetStatus(context.Background(), id)
		require.NoError(t, err)
		assert.Contains(t, []Status{StatusPending, StatusRunning}, status)
	}
	assert.Len(t, seen, n)
}

func TestManager_GetStatus_UnknownJob(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, NewQueue(store, okPipeline()))

	_, err := m.GetStatus(context.Background(), "no-such-job")
	require.Error(t, err)
	assert.True(t, service.IsErrorType(err, service.ErrNotFound))

	_, err = m.GetResult(context.Background(), "no-such-job")
	require.Error(t, err)
	assert.True(t, service.IsErrorType(err, service.ErrNotFound))
}

func TestManager_GetResult_NotReadyWhilePending(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, NewQueue(store, okPipeline()))

	id, err := m.Submit(context.Background(), "/tmp/report.pdf", "")
	require.NoError(t, err)

	outcome, err := m.GetResult(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, outcome.Ready)
	assert.Equal(t, StatusPending, outcome.Status)
	assert.Nil(t, outcome.Result)
	assert.Nil(t, outcome.Error)
}

func TestManager_GetResult_CompletedJob(t *testing.T) {
	store := newFakeStore()
	q := NewQueue(store, okPipeline())
	m := NewManager(store, q)
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	id, err := m.Submit(context.Background(), "/tmp/report.pdf", "growth outlook?")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := m.GetStatus(context.Background(), id)
		return err == nil && status == StatusCompleted
	}, time.Second, 10*time.Millisecond)

	outcome, err := m.GetResult(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, outcome.Ready)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, "report", outcome.Result.Report)
	assert.Nil(t, outcome.Error)
}

func TestManager_GetResult_FailedJobNeverBlocks(t *testing.T) {
	store := newFakeStore()
	q := NewQueue(store, PipelineFunc(func(_ context.Context, _ PipelineRequest) (*AnalysisResult, error) {
		return nil, assert.AnError
	}))
	m := NewManager(store, q)
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	id, err := m.Submit(context.Background(), "/tmp/corrupt.pdf", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := m.GetStatus(context.Background(), id)
		return err == nil && status == StatusFailed
	}, time.Second, 10*time.Millisecond)

	outcome, err := m.GetResult(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, outcome.Ready)
	require.NotNil(t, outcome.Error)
	assert.Equal(t, ErrorKindPipeline, outcome.Error.Kind)
	assert.NotEmpty(t, outcome.Error.Message)
	assert.Nil(t, outcome.Result)
}

func TestManager_TerminalStateIsImmutable(t *testing.T) {
	store := newFakeStore()
	q := NewQueue(store, okPipeline())
	m := NewManager(store, q)
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	id, err := m.Submit(context.Background(), "/tmp/report.pdf", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := m.GetStatus(context.Background(), id)
		return err == nil && status.Terminal()
	}, time.Second, 10*time.Millisecond)

	first, err := m.GetResult(context.Background(), id)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := m.GetResult(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, first.Status, again.Status)
		assert.Equal(t, first.Result, again.Result)
		assert.Equal(t, first.Error, again.Error)
	}
}
