package creditcard

import "context"

// Repository defines the interface for credit card and invoice data access
type Repository interface {
	// UpsertCard creates or updates a card and returns its local ID
	UpsertCard(ctx context.Context, params UpsertCardParams) (string, error)

	// UpsertInvoice creates or updates an invoice and returns its local ID
	UpsertInvoice(ctx context.Context, params UpsertInvoiceParams) (string, error)

	// ListByItem retrieves the cards persisted for one connection
	ListByItem(ctx context.Context, userID int64, itemID string) ([]*CreditCard, error)

	// ListInvoices retrieves a card's invoices ordered by due date
	ListInvoices(ctx context.Context, cardID string) ([]*Invoice, error)
}
