package scheduler

import (
	"context"
	"sync"
	"time"

	"finsync/internal/domain/connection"
	"finsync/internal/domain/openfinance"
	"finsync/internal/infrastructure/pluggy"
)

// MockConnectionRepo implements connection.Repository and records sync outcomes.
type MockConnectionRepo struct {
	ListSyncableFunc func(ctx context.Context) ([]*connection.Connection, error)
	GetByItemIDFunc  func(ctx context.Context, userID int64, itemID string) (*connection.Connection, error)
	RecordFailureErr error

	mu        sync.Mutex
	successes map[string]time.Time
	failures  map[string]string
}

func (m *MockConnectionRepo) Register(ctx context.Context, params connection.RegisterParams) (*connection.Connection, error) {
	return nil, nil
}

func (m *MockConnectionRepo) GetByItemID(ctx context.Context, userID int64, itemID string) (*connection.Connection, error) {
	if m.GetByItemIDFunc != nil {
		return m.GetByItemIDFunc(ctx, userID, itemID)
	}
	return nil, connection.ErrConnectionNotFound
}

func (m *MockConnectionRepo) ListSyncable(ctx context.Context) ([]*connection.Connection, error) {
	if m.ListSyncableFunc != nil {
		return m.ListSyncableFunc(ctx)
	}
	return nil, nil
}

func (m *MockConnectionRepo) ListByUserID(ctx context.Context, userID int64) ([]*connection.Connection, error) {
	return nil, nil
}

func (m *MockConnectionRepo) RecordSyncSuccess(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.successes == nil {
		m.successes = map[string]time.Time{}
	}
	m.successes[id] = at
	return nil
}

func (m *MockConnectionRepo) RecordSyncFailure(ctx context.Context, id string, message string) error {
	if m.RecordFailureErr != nil {
		return m.RecordFailureErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = map[string]string{}
	}
	m.failures[id] = message
	return nil
}

func (m *MockConnectionRepo) UpdateStatus(ctx context.Context, id string, status connection.Status) error {
	return nil
}

func (m *MockConnectionRepo) success(id string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.successes[id]
	return at, ok
}

func (m *MockConnectionRepo) failure(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.failures[id]
	return msg, ok
}

// MockRefresher implements Refresher
type MockRefresher struct {
	TriggerRefreshFunc func(ctx context.Context, itemID string) (*pluggy.Item, error)

	mu    sync.Mutex
	items []string
}

func (m *MockRefresher) TriggerRefresh(ctx context.Context, itemID string) (*pluggy.Item, error) {
	m.mu.Lock()
	m.items = append(m.items, itemID)
	m.mu.Unlock()
	if m.TriggerRefreshFunc != nil {
		return m.TriggerRefreshFunc(ctx, itemID)
	}
	return &pluggy.Item{ID: itemID, Status: "UPDATING"}, nil
}

func (m *MockRefresher) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.items...)
}

// MockSyncer implements ConnectionSyncer
type MockSyncer struct {
	SyncConnectionFunc func(ctx context.Context, userID int64, itemID string) (*openfinance.ConnectionReport, error)

	mu    sync.Mutex
	items []string
}

func (m *MockSyncer) SyncConnection(ctx context.Context, userID int64, itemID string) (*openfinance.ConnectionReport, error) {
	m.mu.Lock()
	m.items = append(m.items, itemID)
	m.mu.Unlock()
	if m.SyncConnectionFunc != nil {
		return m.SyncConnectionFunc(ctx, userID, itemID)
	}
	return &openfinance.ConnectionReport{UserID: userID, ItemID: itemID}, nil
}

func (m *MockSyncer) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.items...)
}

func strPtr(s string) *string { return &s }

func newConn(id string, lastSync *time.Time) *connection.Connection {
	return &connection.Connection{
		ID:         "conn-" + id,
		UserID:     1,
		ItemID:     id,
		ConsentID:  strPtr("consent-" + id),
		Status:     connection.StatusConnected,
		LastSyncAt: lastSync,
	}
}

func ago(now time.Time, d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}
