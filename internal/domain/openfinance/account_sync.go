// Package openfinance reconciles aggregator data into the local store.
package openfinance

import (
	"context"
	"fmt"

	"finsync/internal/domain/account"
	"finsync/internal/infrastructure/pluggy"
	"finsync/internal/shared/logger"
)

// AccountReconciler mirrors the accounts of an item.
type AccountReconciler struct {
	client pluggy.ClientInterface
	repo   account.Repository
}

func NewAccountReconciler(client pluggy.ClientInterface, repo account.Repository) *AccountReconciler {
	return &AccountReconciler{client: client, repo: repo}
}

// Reconcile fetches the item's accounts and upserts them.
func (r *AccountReconciler) Reconcile(ctx context.Context, userID int64, itemID string) StepResult {
	remote, err := r.client.ListAccounts(ctx, itemID)
	if err != nil {
		return StepResult{Step: StepAccounts, Err: fmt.Errorf("failed to fetch accounts: %w", err)}
	}
	return r.Apply(ctx, userID, itemID, remote)
}

// Apply upserts a fetched account set. Balances always take the remote value.
func (r *AccountReconciler) Apply(ctx context.Context, userID int64, itemID string, remote []pluggy.Account) StepResult {
	log := logger.FromContext(ctx)
	result := StepResult{Step: StepAccounts, Found: len(remote)}

	for _, a := range remote {
		params := account.UpsertParams{
			UserID:           userID,
			ItemID:           itemID,
			ExternalID:       a.ID,
			Name:             a.DisplayName(),
			Type:             a.Type,
			Subtype:          a.Subtype,
			Currency:         a.CurrencyCode,
			CurrentBalance:   a.Balance.Current,
			AvailableBalance: a.Balance.Available,
		}
		if err := params.Validate(); err != nil {
			result.skipf("account %q: %v", a.ID, err)
			continue
		}

		if _, err := r.repo.Upsert(ctx, params); err != nil {
			result.Err = fmt.Errorf("failed to upsert account %s: %w", a.ID, err)
			return result
		}
		result.Upserted++
		log.Debug().Str("account_id", a.ID).Str("balance", a.Balance.Current.String()).Msg("account upserted")
	}

	return result
}
