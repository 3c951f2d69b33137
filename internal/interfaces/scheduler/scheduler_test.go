package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/domain/connection"
	"finsync/internal/domain/openfinance"
	"finsync/internal/infrastructure/pluggy"
	"finsync/internal/shared/clock"
	"finsync/internal/shared/logger"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestScheduler(cfg Config, repo *MockConnectionRepo, refresher *MockRefresher, syncer *MockSyncer) *Scheduler {
	if cfg.MinSyncInterval == 0 {
		cfg.MinSyncInterval = time.Hour
	}
	return New(cfg, repo, refresher, syncer, clock.NewManual(now), logger.Nop())
}

func TestRunOnce_SkipsRecentlySynced(t *testing.T) {
	repo := &MockConnectionRepo{
		ListSyncableFunc: func(ctx context.Context) ([]*connection.Connection, error) {
			return []*connection.Connection{
				newConn("recent", ago(now, 30*time.Minute)),
				newConn("stale", ago(now, 90*time.Minute)),
				newConn("never", nil),
			}, nil
		},
	}
	refresher := &MockRefresher{}
	syncer := &MockSyncer{}

	report := newTestScheduler(Config{}, repo, refresher, syncer).RunOnce(context.Background())

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, OutcomeSkipped, report.Outcome("recent").Status)

	assert.Equal(t, []string{"stale", "never"}, syncer.calls())
	assert.Equal(t, []string{"stale", "never"}, refresher.calls())

	at, ok := repo.success("conn-stale")
	require.True(t, ok)
	assert.Equal(t, now, at)
	_, ok = repo.success("conn-recent")
	assert.False(t, ok)
}

func TestRunOnce_FailureIsolation(t *testing.T) {
	repo := &MockConnectionRepo{
		ListSyncableFunc: func(ctx context.Context) ([]*connection.Connection, error) {
			return []*connection.Connection{newConn("bad", nil), newConn("panics", nil), newConn("good", nil)}, nil
		},
	}
	syncer := &MockSyncer{
		SyncConnectionFunc: func(ctx context.Context, userID int64, itemID string) (*openfinance.ConnectionReport, error) {
			switch itemID {
			case "bad":
				return nil, &openfinance.SyncError{Step: openfinance.StepAccounts, UserID: userID, ItemID: itemID, Err: errors.New("upstream 500")}
			case "panics":
				panic("nil map")
			}
			return &openfinance.ConnectionReport{UserID: userID, ItemID: itemID}, nil
		},
	}

	report := newTestScheduler(Config{}, repo, &MockRefresher{}, syncer).RunOnce(context.Background())

	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Succeeded)

	msg, ok := repo.failure("conn-bad")
	require.True(t, ok)
	assert.Contains(t, msg, "upstream 500")

	msg, ok = repo.failure("conn-panics")
	require.True(t, ok)
	assert.Contains(t, msg, "panicked")

	_, ok = repo.success("conn-good")
	assert.True(t, ok)
	assert.Equal(t, OutcomeFailed, report.Outcome("bad").Status)
	assert.NotEmpty(t, report.Outcome("bad").Error)
}

func TestRunOnce_RefreshFailureSkipsPull(t *testing.T) {
	repo := &MockConnectionRepo{
		ListSyncableFunc: func(ctx context.Context) ([]*connection.Connection, error) {
			return []*connection.Connection{newConn("item-1", nil)}, nil
		},
	}
	refresher := &MockRefresher{
		TriggerRefreshFunc: func(ctx context.Context, itemID string) (*pluggy.Item, error) {
			return nil, &pluggy.APIError{StatusCode: 400, Body: "item is updating"}
		},
	}
	syncer := &MockSyncer{}

	report := newTestScheduler(Config{}, repo, refresher, syncer).RunOnce(context.Background())

	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, syncer.calls())
	msg, ok := repo.failure("conn-item-1")
	require.True(t, ok)
	assert.Contains(t, msg, "trigger refresh")
}

func TestRunOnce_ListError(t *testing.T) {
	repo := &MockConnectionRepo{
		ListSyncableFunc: func(ctx context.Context) ([]*connection.Connection, error) {
			return nil, errors.New("connection refused")
		},
	}
	s := newTestScheduler(Config{}, repo, &MockRefresher{}, &MockSyncer{})

	report := s.RunOnce(context.Background())
	assert.Contains(t, report.Error, "connection refused")
	assert.Same(t, report, s.LastReport())
}

func TestRunOnce_ParallelWorkers(t *testing.T) {
	var conns []*connection.Connection
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		conns = append(conns, newConn(id, nil))
	}
	repo := &MockConnectionRepo{
		ListSyncableFunc: func(ctx context.Context) ([]*connection.Connection, error) { return conns, nil },
	}
	syncer := &MockSyncer{
		SyncConnectionFunc: func(ctx context.Context, userID int64, itemID string) (*openfinance.ConnectionReport, error) {
			if itemID == "c" {
				return nil, errors.New("boom")
			}
			return &openfinance.ConnectionReport{}, nil
		},
	}

	report := newTestScheduler(Config{WorkerCount: 3}, repo, &MockRefresher{}, syncer).RunOnce(context.Background())
	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, syncer.calls(), 5)
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestScheduler(Config{Interval: time.Hour}, &MockConnectionRepo{}, &MockRefresher{}, &MockSyncer{})

	assert.False(t, s.IsRunning())
	s.Start()
	s.Start() // warning only
	assert.True(t, s.IsRunning())

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop() // no-op

	s.Start()
	assert.True(t, s.IsRunning())
	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestScheduler_RunOnStartup(t *testing.T) {
	repo := &MockConnectionRepo{
		ListSyncableFunc: func(ctx context.Context) ([]*connection.Connection, error) {
			return []*connection.Connection{newConn("item-1", nil)}, nil
		},
	}
	s := newTestScheduler(Config{Interval: time.Hour, RunOnStartup: true}, repo, &MockRefresher{}, &MockSyncer{})

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return s.LastReport() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.LastReport().Succeeded)

	status := s.Status()
	assert.True(t, status.Running)
	assert.Equal(t, "1h0m0s", status.Interval)
}

func TestScheduler_SyncOne(t *testing.T) {
	conns := map[string]*connection.Connection{
		"item-1":  newConn("item-1", ago(now, time.Minute)),
		"revoked": {ID: "conn-revoked", UserID: 1, ItemID: "revoked", ConsentID: strPtr("c"), Status: connection.StatusRevoked},
	}
	repo := &MockConnectionRepo{
		GetByItemIDFunc: func(ctx context.Context, userID int64, itemID string) (*connection.Connection, error) {
			if c, ok := conns[itemID]; ok {
				return c, nil
			}
			return nil, connection.ErrConnectionNotFound
		},
	}
	refresher := &MockRefresher{}
	syncer := &MockSyncer{}
	s := newTestScheduler(Config{}, repo, refresher, syncer)
	ctx := context.Background()

	// recently synced connections are still synced on demand
	require.NoError(t, s.SyncOne(ctx, 1, "item-1", false))
	assert.Equal(t, []string{"item-1"}, syncer.calls())
	assert.Empty(t, refresher.calls())
	_, ok := repo.success("conn-item-1")
	assert.True(t, ok)

	require.NoError(t, s.SyncOne(ctx, 1, "item-1", true))
	assert.Equal(t, []string{"item-1"}, refresher.calls())

	assert.ErrorIs(t, s.SyncOne(ctx, 1, "revoked", false), ErrNotSyncable)
	assert.ErrorIs(t, s.SyncOne(ctx, 1, "missing", false), connection.ErrConnectionNotFound)
}
