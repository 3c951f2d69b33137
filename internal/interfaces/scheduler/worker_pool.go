package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	jobTracer         = otel.Tracer("finsync/scheduler")
	jobMeter          = otel.Meter("finsync/scheduler")
	jobDuration, _    = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _       = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Total jobs executed by status"))
	connsSkipped, _   = jobMeter.Int64Counter("scheduler.connections.skipped", metric.WithDescription("Connections skipped because they synced recently"))
	defaultJobTimeout = 5 * time.Minute
)

// JobResult is the outcome of one job in a batch.
type JobResult struct {
	Job      Job
	Err      error
	Duration time.Duration
}

// WorkerPool runs batches of jobs on a fixed number of goroutines. With one
// worker the batch runs sequentially in submission order.
type WorkerPool struct {
	workerCount int
	jobDelay    time.Duration
	jobTimeout  time.Duration
	logger      zerolog.Logger
}

// NewWorkerPool creates a pool.
// workerCount: number of concurrent workers
// jobDelay: pause between jobs on the same worker (rate limiting)
// jobTimeout: upper bound for a single job
func NewWorkerPool(workerCount int, jobDelay, jobTimeout time.Duration, logger zerolog.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	return &WorkerPool{
		workerCount: workerCount,
		jobDelay:    jobDelay,
		jobTimeout:  jobTimeout,
		logger:      logger,
	}
}

// Run executes jobs and waits for all of them. results[i] belongs to jobs[i].
// Jobs not started before ctx is cancelled get ctx.Err() as their error.
func (wp *WorkerPool) Run(ctx context.Context, jobs []Job) []JobResult {
	results := make([]JobResult, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	queue := make(chan int)
	var wg sync.WaitGroup

	workers := min(wp.workerCount, len(jobs))
	for id := 1; id <= workers; id++ {
		wg.Add(1)
		go wp.worker(ctx, id, jobs, queue, results, &wg)
	}

feed:
	for i := range jobs {
		select {
		case queue <- i:
		case <-ctx.Done():
			for j := i; j < len(jobs); j++ {
				results[j] = JobResult{Job: jobs[j], Err: ctx.Err()}
			}
			break feed
		}
	}
	close(queue)
	wg.Wait()

	return results
}

// RunOne executes a single job on the caller's goroutine.
func (wp *WorkerPool) RunOne(ctx context.Context, job Job) JobResult {
	return wp.processJob(ctx, 0, job)
}

func (wp *WorkerPool) worker(ctx context.Context, id int, jobs []Job, queue <-chan int, results []JobResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for i := range queue {
		results[i] = wp.processJob(ctx, id, jobs[i])

		if wp.jobDelay > 0 {
			select {
			case <-time.After(wp.jobDelay):
			case <-ctx.Done():
			}
		}
	}
}

// processJob executes one job with timeout, tracing, metrics and panic recovery.
func (wp *WorkerPool) processJob(parent context.Context, workerID int, job Job) (res JobResult) {
	log := wp.logger.With().Int("worker_id", workerID).Str("job", job.Description()).Str("user_id", job.UserID()).Logger()

	ctx, cancel := context.WithTimeout(parent, wp.jobTimeout)
	defer cancel()

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.description", job.Description()),
			attribute.String("job.user_id", job.UserID()),
		),
	)
	defer span.End()

	start := time.Now()
	res.Job = job

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("job panicked: %v", r)
		}
		res.Duration = time.Since(start)

		status := "success"
		if res.Err != nil {
			status = "error"
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			log.Error().Err(res.Err).Dur("duration", res.Duration).Msg("job failed")
		} else {
			log.Info().Dur("duration", res.Duration).Msg("job completed")
		}
		jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
		jobDuration.Record(ctx, res.Duration.Seconds())
	}()

	log.Debug().Msg("processing job")
	res.Err = job.Execute(ctx)
	return res
}
