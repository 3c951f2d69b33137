package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"finsync/internal/domain/connection"
	"finsync/internal/domain/openfinance"
	"finsync/internal/infrastructure/pluggy"
	"finsync/internal/shared/clock"
	"finsync/internal/shared/logger"
)

// Refresher asks the aggregator to pull fresh data from the institution.
type Refresher interface {
	TriggerRefresh(ctx context.Context, itemID string) (*pluggy.Item, error)
}

// ConnectionSyncer reconciles one connection into the local store.
type ConnectionSyncer interface {
	SyncConnection(ctx context.Context, userID int64, itemID string) (*openfinance.ConnectionReport, error)
}

// ConnectionSyncJob refreshes one connection remotely, waits for the
// aggregator, pulls the data and records the outcome on the connection row.
// Trigger and pull are not atomic; a crash in between is repaired by the
// next run because reconcilers are idempotent.
type ConnectionSyncJob struct {
	conn        *connection.Connection
	refresher   Refresher
	syncer      ConnectionSyncer
	connections connection.Repository
	clock       clock.Clock
	grace       time.Duration
	refresh     bool

	report *openfinance.ConnectionReport
}

// NewConnectionSyncJob creates a job for conn. With refresh false the remote
// refresh and grace wait are skipped.
func NewConnectionSyncJob(
	conn *connection.Connection,
	refresher Refresher,
	syncer ConnectionSyncer,
	connections connection.Repository,
	clk clock.Clock,
	grace time.Duration,
	refresh bool,
) *ConnectionSyncJob {
	return &ConnectionSyncJob{
		conn:        conn,
		refresher:   refresher,
		syncer:      syncer,
		connections: connections,
		clock:       clk,
		grace:       grace,
		refresh:     refresh,
	}
}

// Execute runs the job. Any failure, panics included, is written to the
// connection before it is returned.
func (j *ConnectionSyncJob) Execute(ctx context.Context) (err error) {
	log := logger.FromContext(ctx).With().
		Str("connection_id", j.conn.ID).
		Int64("user_id", j.conn.UserID).
		Str("item_id", j.conn.ItemID).
		Logger()
	ctx = logger.WithContext(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync panicked: %v", r)
		}
		if err != nil {
			j.recordFailure(ctx, err)
		}
	}()

	if j.refresh {
		if _, err := j.refresher.TriggerRefresh(ctx, j.conn.ItemID); err != nil {
			return fmt.Errorf("failed to trigger refresh: %w", err)
		}
		log.Debug().Dur("grace", j.grace).Msg("refresh triggered, waiting for aggregator")

		if j.grace > 0 {
			select {
			case <-time.After(j.grace):
			case <-ctx.Done():
				return fmt.Errorf("cancelled while waiting for refresh: %w", ctx.Err())
			}
		}
	}

	report, err := j.syncer.SyncConnection(ctx, j.conn.UserID, j.conn.ItemID)
	j.report = report
	if err != nil {
		return err
	}

	if err := j.connections.RecordSyncSuccess(ctx, j.conn.ID, j.clock.Now()); err != nil {
		return fmt.Errorf("failed to record sync success: %w", err)
	}
	return nil
}

// recordFailure runs detached from ctx so a timeout still gets recorded.
func (j *ConnectionSyncJob) recordFailure(ctx context.Context, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := j.connections.RecordSyncFailure(ctx, j.conn.ID, cause.Error()); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("failed to record sync failure")
	}
}

// Connection returns the connection the job works on.
func (j *ConnectionSyncJob) Connection() *connection.Connection {
	return j.conn
}

// Report returns the orchestrator report, or nil when the sync never ran.
func (j *ConnectionSyncJob) Report() *openfinance.ConnectionReport {
	return j.report
}

func (j *ConnectionSyncJob) UserID() string {
	return strconv.FormatInt(j.conn.UserID, 10)
}

func (j *ConnectionSyncJob) Description() string {
	return fmt.Sprintf("Connection sync for item %s", j.conn.ItemID)
}
