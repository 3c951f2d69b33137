package connection

import (
	"context"
	"time"
)

// Repository defines the interface for connection data access
type Repository interface {
	// Register inserts the connection or updates consent, institution and status
	Register(ctx context.Context, params RegisterParams) (*Connection, error)

	// GetByItemID retrieves the connection of a user for an item
	GetByItemID(ctx context.Context, userID int64, itemID string) (*Connection, error)

	// ListSyncable returns connected connections that carry a consent id
	ListSyncable(ctx context.Context) ([]*Connection, error)

	// ListByUserID returns every connection of a user
	ListByUserID(ctx context.Context, userID int64) ([]*Connection, error)

	// RecordSyncSuccess sets last_sync_at, marks the sync ok and clears last_error
	RecordSyncSuccess(ctx context.Context, id string, at time.Time) error

	// RecordSyncFailure marks the sync as failed with a truncated error message
	RecordSyncFailure(ctx context.Context, id string, message string) error

	// UpdateStatus changes the lifecycle status
	UpdateStatus(ctx context.Context, id string, status Status) error
}
