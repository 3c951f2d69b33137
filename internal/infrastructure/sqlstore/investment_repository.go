package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"finsync/internal/domain/investment"
)

// InvestmentRepository implements investment.Repository
type InvestmentRepository struct {
	db *DB
}

var _ investment.Repository = (*InvestmentRepository)(nil)

func NewInvestmentRepository(db *DB) *InvestmentRepository {
	return &InvestmentRepository{db: db}
}

// Upsert creates or updates an investment position
func (r *InvestmentRepository) Upsert(ctx context.Context, params investment.UpsertParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	query := `
		INSERT INTO investments (id, user_id, external_item_id, external_investment_id, name, type, subtype,
			currency, quantity, unit_price, current_value, profitability)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, external_investment_id) DO UPDATE SET
			external_item_id = excluded.external_item_id,
			name = excluded.name,
			type = excluded.type,
			subtype = excluded.subtype,
			currency = excluded.currency,
			quantity = excluded.quantity,
			unit_price = excluded.unit_price,
			current_value = excluded.current_value,
			profitability = excluded.profitability,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.UserID, params.ItemID, params.ExternalID, params.Name, params.Type,
		nullString(params.Subtype), params.Currency,
		params.Quantity, params.UnitPrice, params.CurrentValue, params.Profitability,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert investment: %w", err)
	}
	return id, nil
}

func (r *InvestmentRepository) ListByItem(ctx context.Context, userID int64, itemID string) ([]*investment.Investment, error) {
	query := `
		SELECT id, user_id, external_item_id, external_investment_id, name, type, subtype, currency,
			quantity, unit_price, current_value, profitability, created_at, updated_at
		FROM investments
		WHERE user_id = $1 AND external_item_id = $2
		ORDER BY external_investment_id
	`

	rows, err := r.db.QueryContext(ctx, query, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}
	defer rows.Close()

	var investments []*investment.Investment
	for rows.Next() {
		var inv investment.Investment
		var subtype sql.NullString
		if err := rows.Scan(
			&inv.ID, &inv.UserID, &inv.ItemID, &inv.ExternalID, &inv.Name, &inv.Type, &subtype, &inv.Currency,
			&inv.Quantity, &inv.UnitPrice, &inv.CurrentValue, &inv.Profitability, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}
		inv.Subtype = subtype.String
		investments = append(investments, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}
	return investments, nil
}
