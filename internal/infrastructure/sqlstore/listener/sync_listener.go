// Package listener turns PostgreSQL NOTIFY messages on the sync_requested
// channel into on-demand connection syncs.
package listener

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

const (
	ChannelName       = "sync_requested"
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// SyncRequest is the NOTIFY payload
type SyncRequest struct {
	UserID int64  `json:"user_id"`
	ItemID string `json:"item_id"`
}

// SyncRequester runs a single connection sync. The scheduler implements it.
type SyncRequester interface {
	SyncOne(ctx context.Context, userID int64, itemID string, refresh bool) error
}

// Execer runs a statement. *sqlstore.DB satisfies it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SyncListener listens for sync requests published by other services
type SyncListener struct {
	connStr    string
	requester  SyncRequester
	logger     zerolog.Logger
	shutdownCh chan struct{}
	done       chan struct{}
}

// NewSyncListener creates a listener on the sync_requested channel
func NewSyncListener(connStr string, requester SyncRequester, logger zerolog.Logger) *SyncListener {
	return &SyncListener{
		connStr:    connStr,
		requester:  requester,
		logger:     logger.With().Str("component", "sync_listener").Logger(),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening in a background goroutine
func (l *SyncListener) Start(ctx context.Context) {
	go l.listen(ctx)
	l.logger.Info().Str("channel", ChannelName).Msg("sync listener started")
}

// Stop shuts down the listener and waits for it to exit
func (l *SyncListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	l.logger.Info().Msg("sync listener stopped")
}

func (l *SyncListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			l.logger.Info().Msg("reconnecting to PostgreSQL for notifications")
		}
	}
}

func (l *SyncListener) connectAndListen(ctx context.Context) {
	listener := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.logger.Info().Msg("connected to notification channel")
		case pq.ListenerEventDisconnected:
			l.logger.Warn().Err(err).Msg("disconnected from notification channel")
		case pq.ListenerEventReconnected:
			l.logger.Info().Msg("reconnected to notification channel")
		case pq.ListenerEventConnectionAttemptFailed:
			l.logger.Error().Err(err).Msg("notification connection attempt failed")
		}
	})
	defer listener.Close()

	if err := listener.Listen(ChannelName); err != nil {
		l.logger.Error().Err(err).Str("channel", ChannelName).Msg("failed to listen")
		return
	}

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			if n == nil {
				// connection lost
				return
			}
			l.handle(ctx, n.Extra)
		case <-time.After(pingInterval):
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.Warn().Err(err).Msg("listener ping failed")
				}
			}()
		}
	}
}

func (l *SyncListener) handle(ctx context.Context, payload string) {
	req, err := ParseSyncRequest(payload)
	if err != nil {
		l.logger.Error().Err(err).Str("payload", payload).Msg("invalid sync request")
		return
	}

	log := l.logger.With().Int64("user_id", req.UserID).Str("item_id", req.ItemID).Logger()
	log.Info().Msg("sync requested")

	go func() {
		if err := l.requester.SyncOne(context.WithoutCancel(ctx), req.UserID, req.ItemID, false); err != nil {
			log.Error().Err(err).Msg("requested sync failed")
		}
	}()
}

// ParseSyncRequest decodes and checks a NOTIFY payload
func ParseSyncRequest(payload string) (SyncRequest, error) {
	var req SyncRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return SyncRequest{}, fmt.Errorf("failed to parse notification payload: %w", err)
	}
	if req.UserID <= 0 {
		return SyncRequest{}, errors.New("user_id is required")
	}
	if req.ItemID == "" {
		return SyncRequest{}, errors.New("item_id is required")
	}
	return req, nil
}

// NotifySyncRequested publishes a sync request for any listener to pick up
func NotifySyncRequested(ctx context.Context, db Execer, userID int64, itemID string) error {
	payload, err := json.Marshal(SyncRequest{UserID: userID, ItemID: itemID})
	if err != nil {
		return fmt.Errorf("failed to encode sync request: %w", err)
	}
	if _, err := db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, ChannelName, string(payload)); err != nil {
		return fmt.Errorf("failed to notify %s: %w", ChannelName, err)
	}
	return nil
}
