package account

import "context"

// Repository defines the interface for account data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Upsert creates or updates an account by (user_id, external_account_id)
	// and returns its local ID
	Upsert(ctx context.Context, params UpsertParams) (string, error)

	// GetByExternalID retrieves an account by its aggregator ID
	GetByExternalID(ctx context.Context, userID int64, externalID string) (*Account, error)

	// ListByItem retrieves the accounts persisted for one connection
	ListByItem(ctx context.Context, userID int64, itemID string) ([]*Account, error)
}
