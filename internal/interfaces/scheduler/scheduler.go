// Package scheduler runs connection syncs on a fixed interval and on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"finsync/internal/domain/connection"
	"finsync/internal/shared/clock"
	"finsync/internal/shared/logger"
)

// ErrNotSyncable is returned by SyncOne for connections that are not
// connected or have no consent.
var ErrNotSyncable = errors.New("connection is not syncable")

// Config holds the scheduler settings.
type Config struct {
	Interval        time.Duration
	MinSyncInterval time.Duration
	RefreshGrace    time.Duration
	WorkerCount     int
	JobDelay        time.Duration
	JobTimeout      time.Duration
	RunOnStartup    bool
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running    bool         `json:"running"`
	Interval   string       `json:"interval"`
	LastReport *BatchReport `json:"lastReport,omitempty"`
}

// Scheduler periodically syncs every eligible connection. It is constructed
// once at startup and shared by reference.
type Scheduler struct {
	cfg         Config
	connections connection.Repository
	refresher   Refresher
	syncer      ConnectionSyncer
	pool        *WorkerPool
	clock       clock.Clock
	logger      zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	batchMu    sync.Mutex // one batch at a time
	reportMu   sync.RWMutex
	lastReport *BatchReport
}

// New creates a stopped scheduler.
func New(cfg Config, connections connection.Repository, refresher Refresher, syncer ConnectionSyncer, clk clock.Clock, log zerolog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	log = log.With().Str("component", "scheduler").Logger()

	return &Scheduler{
		cfg:         cfg,
		connections: connections,
		refresher:   refresher,
		syncer:      syncer,
		pool:        NewWorkerPool(cfg.WorkerCount, cfg.JobDelay, cfg.JobTimeout, log),
		clock:       clk,
		logger:      log,
	}
}

// Start launches the interval loop. Calling Start on a running scheduler
// logs a warning and does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn().Msg("scheduler already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, s.done)

	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Dur("min_sync_interval", s.cfg.MinSyncInterval).
		Int("workers", s.pool.workerCount).
		Msg("scheduler started")
}

// Stop cancels the loop and any running batch, and waits for it to exit.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.running = false
	s.mu.Unlock()

	<-done
	s.logger.Info().Msg("scheduler stopped")
}

// IsRunning reports whether the interval loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.cfg.RunOnStartup {
		s.RunOnce(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs one batch over all syncable connections and returns its
// report. No connection failure escapes this method.
func (s *Scheduler) RunOnce(ctx context.Context) *BatchReport {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	report := &BatchReport{RunID: uuid.NewString(), StartedAt: s.clock.Now()}
	log := s.logger.With().Str("run_id", report.RunID).Logger()
	ctx = logger.WithContext(ctx, log)

	ctx, span := jobTracer.Start(ctx, "scheduler.tick")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", report.RunID))

	defer func() {
		report.FinishedAt = s.clock.Now()
		s.reportMu.Lock()
		s.lastReport = report
		s.reportMu.Unlock()

		log.Info().
			Int("total", report.Total).
			Int("skipped", report.Skipped).
			Int("succeeded", report.Succeeded).
			Int("failed", report.Failed).
			Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
			Msg("sync batch finished")
	}()

	conns, err := s.connections.ListSyncable(ctx)
	if err != nil {
		report.Error = fmt.Sprintf("failed to list connections: %v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Msg("failed to list syncable connections")
		return report
	}
	report.Total = len(conns)

	now := s.clock.Now()
	var jobs []Job
	for _, c := range conns {
		if c.SyncedWithin(now, s.cfg.MinSyncInterval) {
			report.add(ConnectionOutcome{ConnectionID: c.ID, UserID: c.UserID, ItemID: c.ItemID, Status: OutcomeSkipped})
			connsSkipped.Add(ctx, 1)
			log.Debug().Str("item_id", c.ItemID).Time("last_sync_at", *c.LastSyncAt).Msg("synced recently, skipping")
			continue
		}
		jobs = append(jobs, s.newJob(c, true))
	}

	log.Info().Int("connections", len(conns)).Int("jobs", len(jobs)).Msg("sync batch started")

	for _, res := range s.pool.Run(ctx, jobs) {
		report.add(outcomeOf(res))
	}
	return report
}

// TriggerNow starts a batch in the background.
func (s *Scheduler) TriggerNow() {
	s.logger.Info().Msg("manual trigger")
	go s.RunOnce(context.Background())
}

// SyncOne syncs a single connection right away, ignoring the recently-synced
// rule. The outcome is recorded on the connection exactly as in a batch.
func (s *Scheduler) SyncOne(ctx context.Context, userID int64, itemID string, refresh bool) error {
	c, err := s.connections.GetByItemID(ctx, userID, itemID)
	if err != nil {
		return fmt.Errorf("failed to load connection: %w", err)
	}
	if !c.Syncable() {
		return fmt.Errorf("%w: status %s", ErrNotSyncable, c.Status)
	}

	ctx = logger.WithContext(ctx, s.logger)
	res := s.pool.RunOne(ctx, s.newJob(c, refresh))
	return res.Err
}

// LastReport returns the report of the latest finished batch, or nil.
func (s *Scheduler) LastReport() *BatchReport {
	s.reportMu.RLock()
	defer s.reportMu.RUnlock()
	return s.lastReport
}

// Status returns the running flag, interval and last report.
func (s *Scheduler) Status() Status {
	return Status{
		Running:    s.IsRunning(),
		Interval:   s.cfg.Interval.String(),
		LastReport: s.LastReport(),
	}
}

func (s *Scheduler) newJob(c *connection.Connection, refresh bool) *ConnectionSyncJob {
	return NewConnectionSyncJob(c, s.refresher, s.syncer, s.connections, s.clock, s.cfg.RefreshGrace, refresh)
}

func outcomeOf(res JobResult) ConnectionOutcome {
	o := ConnectionOutcome{Status: OutcomeSucceeded, Duration: res.Duration}
	if job, ok := res.Job.(*ConnectionSyncJob); ok {
		c := job.Connection()
		o.ConnectionID, o.UserID, o.ItemID = c.ID, c.UserID, c.ItemID
		o.Report = job.Report()
	}
	if res.Err != nil {
		o.Status = OutcomeFailed
		o.Error = res.Err.Error()
	}
	return o
}
