package transaction

import (
	"context"
)

// Repository defines the interface for transaction data access
type Repository interface {
	// Upsert creates or updates a transaction by (user_id, external_transaction_id).
	// A manually set category survives the update.
	Upsert(ctx context.Context, params UpsertParams) (string, error)
	GetByExternalID(ctx context.Context, userID int64, externalID string) (*Transaction, error)
	ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*Transaction, error)
	// SetManualCategory records a user edit and flags the category as manual
	SetManualCategory(ctx context.Context, userID int64, id, category string) error
}
