package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"finsync/internal/domain/transaction"
)

// TransactionRepository implements transaction.Repository
type TransactionRepository struct {
	db *DB
}

var _ transaction.Repository = (*TransactionRepository)(nil)

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, user_id, account_id, external_transaction_id, date, amount, description,
	merchant, category, category_is_manual, status, created_at, updated_at`

// Upsert creates or updates a transaction. The category is decided inside the
// statement so a concurrent manual edit is never overwritten.
func (r *TransactionRepository) Upsert(ctx context.Context, params transaction.UpsertParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	query := `
		INSERT INTO transactions (id, user_id, account_id, external_transaction_id, date, amount, description,
			merchant, category, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, external_transaction_id) DO UPDATE SET
			account_id = excluded.account_id,
			date = excluded.date,
			amount = excluded.amount,
			description = excluded.description,
			merchant = excluded.merchant,
			category = CASE WHEN transactions.category_is_manual THEN transactions.category ELSE excluded.category END,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.UserID, params.AccountID, params.ExternalID, params.Date.UTC(),
		params.Amount, params.Description, nullString(params.Merchant), nullString(params.Category), params.Status,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert transaction: %w", err)
	}
	return id, nil
}

func (r *TransactionRepository) GetByExternalID(ctx context.Context, userID int64, externalID string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 AND external_transaction_id = $2`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, userID, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY date DESC, external_transaction_id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// SetManualCategory is the user edit path; later syncs keep this category.
func (r *TransactionRepository) SetManualCategory(ctx context.Context, userID int64, id, category string) error {
	query := `
		UPDATE transactions
		SET category = $1, category_is_manual = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND user_id = $3
	`
	result, err := r.db.ExecContext(ctx, query, category, id, userID)
	if err != nil {
		return fmt.Errorf("failed to set category: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set category: %w", err)
	}
	if n == 0 {
		return transaction.ErrTransactionNotFound
	}
	return nil
}

func scanTransaction(s scanner) (*transaction.Transaction, error) {
	var tx transaction.Transaction
	var merchant, category sql.NullString

	err := s.Scan(
		&tx.ID, &tx.UserID, &tx.AccountID, &tx.ExternalID, &tx.Date, &tx.Amount, &tx.Description,
		&merchant, &category, &tx.CategoryIsManual, &tx.Status, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Merchant = merchant.String
	tx.Category = category.String
	return &tx, nil
}
