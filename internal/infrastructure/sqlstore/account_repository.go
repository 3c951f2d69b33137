package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"finsync/internal/domain/account"
)

// AccountRepository implements the account.Repository interface
type AccountRepository struct {
	db *DB
}

var _ account.Repository = (*AccountRepository)(nil)

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, user_id, external_item_id, external_account_id, name, type, subtype, currency,
	current_balance, available_balance, created_at, updated_at`

// Upsert creates or updates an account. Every remote field, balances
// included, overwrites the stored value; the local ID never changes.
func (r *AccountRepository) Upsert(ctx context.Context, params account.UpsertParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", account.ErrInvalidInput, err)
	}

	query := `
		INSERT INTO accounts (id, user_id, external_item_id, external_account_id, name, type, subtype, currency,
			current_balance, available_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, external_account_id) DO UPDATE SET
			external_item_id = excluded.external_item_id,
			name = excluded.name,
			type = excluded.type,
			subtype = excluded.subtype,
			currency = excluded.currency,
			current_balance = excluded.current_balance,
			available_balance = excluded.available_balance,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.UserID, params.ItemID, params.ExternalID, params.Name,
		params.Type, params.Subtype, params.Currency, params.CurrentBalance, params.AvailableBalance,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert account: %w", err)
	}
	return id, nil
}

// GetByExternalID retrieves an account by its aggregator ID
func (r *AccountRepository) GetByExternalID(ctx context.Context, userID int64, externalID string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND external_account_id = $2`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, userID, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// ListByItem retrieves all accounts of a user under one item
func (r *AccountRepository) ListByItem(ctx context.Context, userID int64, itemID string) ([]*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1 AND external_item_id = $2
		ORDER BY external_account_id
	`

	rows, err := r.db.QueryContext(ctx, query, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func scanAccount(s scanner) (*account.Account, error) {
	var acc account.Account
	err := s.Scan(
		&acc.ID, &acc.UserID, &acc.ItemID, &acc.ExternalID, &acc.Name, &acc.Type, &acc.Subtype, &acc.Currency,
		&acc.CurrentBalance, &acc.AvailableBalance, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}
