package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/shared/logger"
)

// MockJob implements Job
type MockJob struct {
	ExecuteFunc func(ctx context.Context) error
	name        string
}

func (m *MockJob) Execute(ctx context.Context) error {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx)
	}
	return nil
}

func (m *MockJob) UserID() string      { return "1" }
func (m *MockJob) Description() string { return m.name }

func TestWorkerPool_RunKeepsOrder(t *testing.T) {
	boom := errors.New("boom")
	jobs := []Job{
		&MockJob{name: "ok"},
		&MockJob{name: "fails", ExecuteFunc: func(ctx context.Context) error { return boom }},
		&MockJob{name: "panics", ExecuteFunc: func(ctx context.Context) error { panic("bad state") }},
		&MockJob{name: "ok-2"},
	}

	for _, workers := range []int{1, 2, 8} {
		results := NewWorkerPool(workers, 0, time.Second, logger.Nop()).Run(context.Background(), jobs)
		require.Len(t, results, len(jobs))

		assert.NoError(t, results[0].Err)
		assert.ErrorIs(t, results[1].Err, boom)
		assert.ErrorContains(t, results[2].Err, "panicked")
		assert.NoError(t, results[3].Err)
		for i, r := range results {
			assert.Same(t, jobs[i], r.Job)
		}
	}
}

func TestWorkerPool_Concurrency(t *testing.T) {
	var active, peak int32
	release := make(chan struct{})

	var jobs []Job
	for i := 0; i < 4; i++ {
		jobs = append(jobs, &MockJob{ExecuteFunc: func(ctx context.Context) error {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&active, -1)
			return nil
		}})
	}

	done := make(chan []JobResult)
	go func() { done <- NewWorkerPool(2, 0, time.Second, logger.Nop()).Run(context.Background(), jobs) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&active) == 2 }, time.Second, 5*time.Millisecond)
	close(release)

	results := <-done
	assert.Len(t, results, 4)
	assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
}

func TestWorkerPool_JobTimeout(t *testing.T) {
	job := &MockJob{ExecuteFunc: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	res := NewWorkerPool(1, 0, 20*time.Millisecond, logger.Nop()).RunOne(context.Background(), job)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestWorkerPool_CancelledBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran int32
	jobs := []Job{
		&MockJob{ExecuteFunc: func(ctx context.Context) error { atomic.AddInt32(&ran, 1); return ctx.Err() }},
		&MockJob{ExecuteFunc: func(ctx context.Context) error { atomic.AddInt32(&ran, 1); return ctx.Err() }},
	}

	results := NewWorkerPool(1, 0, time.Second, logger.Nop()).Run(ctx, jobs)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestWorkerPool_Empty(t *testing.T) {
	assert.Empty(t, NewWorkerPool(0, 0, 0, logger.Nop()).Run(context.Background(), nil))
}
