package pluggy

import (
	"context"
)

// ClientInterface defines the aggregator calls used by the sync engine
type ClientInterface interface {
	ListAccounts(ctx context.Context, itemID string) ([]Account, error)
	ListTransactions(ctx context.Context, accountID string, q TransactionQuery) (*Page[Transaction], error)
	ListCreditCardAccounts(ctx context.Context, itemID string) ([]Account, error) // 404 yields an empty list
	ListInvoices(ctx context.Context, cardID string) ([]Invoice, error)           // 404 yields an empty list
	ListInvestments(ctx context.Context, itemID string) ([]Investment, error)     // 404 yields an empty list
	TriggerRefresh(ctx context.Context, itemID string) (*Item, error)
	Revoke(ctx context.Context, itemID string) error
}
