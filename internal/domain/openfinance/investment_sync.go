package openfinance

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"finsync/internal/domain/investment"
	"finsync/internal/infrastructure/pluggy"
)

// InvestmentReconciler mirrors the investment positions of an item.
type InvestmentReconciler struct {
	client pluggy.ClientInterface
	repo   investment.Repository
}

func NewInvestmentReconciler(client pluggy.ClientInterface, repo investment.Repository) *InvestmentReconciler {
	return &InvestmentReconciler{client: client, repo: repo}
}

func (r *InvestmentReconciler) Reconcile(ctx context.Context, userID int64, itemID string) StepResult {
	result := StepResult{Step: StepInvestments}

	positions, err := r.client.ListInvestments(ctx, itemID)
	if err != nil {
		result.Err = fmt.Errorf("failed to fetch investments: %w", err)
		return result
	}
	result.Found = len(positions)

	for _, inv := range positions {
		// Missing numbers become zero, missing profitability stays NULL.
		params := investment.UpsertParams{
			UserID:        userID,
			ItemID:        itemID,
			ExternalID:    inv.ID,
			Name:          inv.Name,
			Type:          inv.Type,
			Subtype:       inv.Subtype,
			Currency:      inv.CurrencyCode,
			Quantity:      orZero(inv.Quantity),
			UnitPrice:     orZero(inv.Value),
			CurrentValue:  orZero(inv.Balance),
			Profitability: inv.LastTwelveMonthsRate,
		}
		if err := params.Validate(); err != nil {
			result.skipf("investment %q: %v", inv.ID, err)
			continue
		}

		if _, err := r.repo.Upsert(ctx, params); err != nil {
			result.Err = fmt.Errorf("failed to upsert investment %s: %w", inv.ID, err)
			return result
		}
		result.Upserted++
	}

	return result
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
