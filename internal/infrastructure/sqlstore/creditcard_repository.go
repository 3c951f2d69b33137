package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"finsync/internal/domain/creditcard"
)

// CreditCardRepository implements creditcard.Repository
type CreditCardRepository struct {
	db *DB
}

var _ creditcard.Repository = (*CreditCardRepository)(nil)

func NewCreditCardRepository(db *DB) *CreditCardRepository {
	return &CreditCardRepository{db: db}
}

const creditCardColumns = `id, user_id, external_item_id, external_card_id, name, brand, number_masked,
	credit_limit, available_limit, current_balance, created_at, updated_at`

const invoiceColumns = `id, user_id, card_id, external_invoice_id, due_date, total_amount, minimum_payment,
	status, created_at, updated_at`

// UpsertCard creates or updates a card keyed by (user, external card id)
func (r *CreditCardRepository) UpsertCard(ctx context.Context, params creditcard.UpsertCardParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	query := `
		INSERT INTO credit_cards (id, user_id, external_item_id, external_card_id, name, brand, number_masked,
			credit_limit, available_limit, current_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, external_card_id) DO UPDATE SET
			external_item_id = excluded.external_item_id,
			name = excluded.name,
			brand = excluded.brand,
			number_masked = excluded.number_masked,
			credit_limit = excluded.credit_limit,
			available_limit = excluded.available_limit,
			current_balance = excluded.current_balance,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.UserID, params.ItemID, params.ExternalID, params.Name,
		nullString(params.Brand), nullString(params.NumberMasked),
		params.CreditLimit, params.AvailableLimit, params.CurrentBalance,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert credit card: %w", err)
	}
	return id, nil
}

// UpsertInvoice creates or updates an invoice keyed by its external id
func (r *CreditCardRepository) UpsertInvoice(ctx context.Context, params creditcard.UpsertInvoiceParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	query := `
		INSERT INTO card_invoices (id, user_id, card_id, external_invoice_id, due_date, total_amount,
			minimum_payment, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_invoice_id) DO UPDATE SET
			card_id = excluded.card_id,
			due_date = excluded.due_date,
			total_amount = excluded.total_amount,
			minimum_payment = excluded.minimum_payment,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.UserID, params.CardID, params.ExternalID, params.DueDate.UTC(),
		params.TotalAmount, params.MinimumPayment, nullString(params.Status),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert invoice: %w", err)
	}
	return id, nil
}

func (r *CreditCardRepository) ListByItem(ctx context.Context, userID int64, itemID string) ([]*creditcard.CreditCard, error) {
	query := `
		SELECT ` + creditCardColumns + `
		FROM credit_cards
		WHERE user_id = $1 AND external_item_id = $2
		ORDER BY external_card_id
	`

	rows, err := r.db.QueryContext(ctx, query, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit cards: %w", err)
	}
	defer rows.Close()

	var cards []*creditcard.CreditCard
	for rows.Next() {
		var c creditcard.CreditCard
		var brand, masked sql.NullString
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.ItemID, &c.ExternalID, &c.Name, &brand, &masked,
			&c.CreditLimit, &c.AvailableLimit, &c.CurrentBalance, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credit card: %w", err)
		}
		c.Brand = brand.String
		c.NumberMasked = masked.String
		cards = append(cards, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list credit cards: %w", err)
	}
	return cards, nil
}

func (r *CreditCardRepository) ListInvoices(ctx context.Context, cardID string) ([]*creditcard.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM card_invoices WHERE card_id = $1 ORDER BY due_date`

	rows, err := r.db.QueryContext(ctx, query, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*creditcard.Invoice
	for rows.Next() {
		var inv creditcard.Invoice
		var status sql.NullString
		if err := rows.Scan(
			&inv.ID, &inv.UserID, &inv.CardID, &inv.ExternalID, &inv.DueDate, &inv.TotalAmount,
			&inv.MinimumPayment, &status, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		inv.Status = status.String
		invoices = append(invoices, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}
