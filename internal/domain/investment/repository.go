package investment

import "context"

// Repository defines the interface for investment data access
type Repository interface {
	Upsert(ctx context.Context, params UpsertParams) (string, error)
	ListByItem(ctx context.Context, userID int64, itemID string) ([]*Investment, error)
}
