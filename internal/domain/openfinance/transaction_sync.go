package openfinance

import (
	"context"
	"fmt"
	"time"

	"finsync/internal/domain/account"
	"finsync/internal/domain/transaction"
	"finsync/internal/infrastructure/pluggy"
	"finsync/internal/shared/clock"
	"finsync/internal/shared/logger"
)

// TransactionPageSize is the page size requested per account.
const TransactionPageSize = 500

// TransactionReconciler mirrors the transactions of every persisted account
// of an item.
type TransactionReconciler struct {
	client       pluggy.ClientInterface
	accounts     account.Repository
	repo         transaction.Repository
	clock        clock.Clock
	lookbackDays int
}

func NewTransactionReconciler(
	client pluggy.ClientInterface,
	accounts account.Repository,
	repo transaction.Repository,
	clk clock.Clock,
	lookbackDays int,
) *TransactionReconciler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &TransactionReconciler{
		client:       client,
		accounts:     accounts,
		repo:         repo,
		clock:        clk,
		lookbackDays: lookbackDays,
	}
}

// Reconcile pages through each account's transactions inside the lookback
// window and upserts them. The first remote or store error aborts the step.
func (r *TransactionReconciler) Reconcile(ctx context.Context, userID int64, itemID string) StepResult {
	log := logger.FromContext(ctx)
	result := StepResult{Step: StepTransactions}

	accounts, err := r.accounts.ListByItem(ctx, userID, itemID)
	if err != nil {
		result.Err = fmt.Errorf("failed to load accounts: %w", err)
		return result
	}

	to := truncateDay(r.clock.Now())
	from := to.AddDate(0, 0, -r.lookbackDays)

	for _, acc := range accounts {
		for page := 1; ; page++ {
			resp, err := r.client.ListTransactions(ctx, acc.ExternalID, pluggy.TransactionQuery{
				PageSize: TransactionPageSize,
				Page:     page,
				From:     from,
				To:       to,
			})
			if err != nil {
				result.Err = fmt.Errorf("failed to fetch transactions for account %s: %w", acc.ExternalID, err)
				return result
			}

			if err := r.apply(ctx, userID, acc.ID, resp.Results, &result); err != nil {
				result.Err = err
				return result
			}

			if page >= resp.TotalPages || len(resp.Results) == 0 {
				break
			}
		}
		log.Debug().Str("account_id", acc.ExternalID).Int("found", result.Found).Msg("account transactions synced")
	}

	return result
}

func (r *TransactionReconciler) apply(ctx context.Context, userID int64, accountID string, txs []pluggy.Transaction, result *StepResult) error {
	for _, t := range txs {
		result.Found++

		date, err := t.GetDate()
		if err != nil {
			result.skipf("transaction %q: %v", t.ID, err)
			continue
		}

		params := transaction.UpsertParams{
			UserID:      userID,
			AccountID:   accountID,
			ExternalID:  t.ID,
			Date:        truncateDay(date),
			Amount:      t.Amount,
			Description: t.Description,
			Merchant:    t.MerchantName(),
			Category:    t.CategoryName(),
			Status:      t.Status,
		}
		if err := params.Validate(); err != nil {
			result.skipf("transaction %q: %v", t.ID, err)
			continue
		}

		if _, err := r.repo.Upsert(ctx, params); err != nil {
			return fmt.Errorf("failed to upsert transaction %s: %w", t.ID, err)
		}
		result.Upserted++
	}
	return nil
}

// truncateDay returns the UTC calendar day of t.
func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
