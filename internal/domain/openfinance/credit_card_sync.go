package openfinance

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"finsync/internal/domain/creditcard"
	"finsync/internal/infrastructure/pluggy"
	"finsync/internal/shared/logger"
)

// CreditCardReconciler mirrors the credit card accounts of an item and their
// invoices.
type CreditCardReconciler struct {
	client pluggy.ClientInterface
	repo   creditcard.Repository
}

func NewCreditCardReconciler(client pluggy.ClientInterface, repo creditcard.Repository) *CreditCardReconciler {
	return &CreditCardReconciler{client: client, repo: repo}
}

// Reconcile upserts every card and then its invoices. An invoice failure is
// recorded as a warning and the remaining cards are still processed, except
// for auth errors, which end the step so the orchestrator can escalate them.
func (r *CreditCardReconciler) Reconcile(ctx context.Context, userID int64, itemID string) StepResult {
	log := logger.FromContext(ctx)
	result := StepResult{Step: StepCreditCards}

	cards, err := r.client.ListCreditCardAccounts(ctx, itemID)
	if err != nil {
		result.Err = fmt.Errorf("failed to fetch credit cards: %w", err)
		return result
	}
	result.Found = len(cards)

	for _, c := range cards {
		params := cardParams(userID, itemID, c)
		if err := params.Validate(); err != nil {
			result.skipf("card %q: %v", c.ID, err)
			continue
		}

		cardID, err := r.repo.UpsertCard(ctx, params)
		if err != nil {
			result.Err = fmt.Errorf("failed to upsert card %s: %w", c.ID, err)
			return result
		}
		result.Upserted++

		n, err := r.syncInvoices(ctx, userID, cardID, c.ID, &result)
		if errors.Is(err, pluggy.ErrAuth) {
			result.Err = fmt.Errorf("invoices for card %s: %w", c.ID, err)
			return result
		}
		if err != nil {
			log.Warn().Err(err).Str("card_id", c.ID).Msg("invoice sync failed, continuing with next card")
			result.warnf("invoices for card %s: %v", c.ID, err)
			continue
		}
		log.Debug().Str("card_id", c.ID).Int("invoices", n).Msg("card synced")
	}

	return result
}

func (r *CreditCardReconciler) syncInvoices(ctx context.Context, userID int64, cardID, externalCardID string, result *StepResult) (int, error) {
	invoices, err := r.client.ListInvoices(ctx, externalCardID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	upserted := 0
	for _, inv := range invoices {
		due, err := inv.GetDueDate()
		if err != nil {
			result.skipf("invoice %q: %v", inv.ID, err)
			continue
		}

		params := creditcard.UpsertInvoiceParams{
			UserID:         userID,
			CardID:         cardID,
			ExternalID:     inv.ID,
			DueDate:        truncateDay(due),
			TotalAmount:    inv.TotalAmount,
			MinimumPayment: inv.MinimumPaymentAmount,
			Status:         inv.Status,
		}
		if err := params.Validate(); err != nil {
			result.skipf("invoice %q: %v", inv.ID, err)
			continue
		}

		if _, err := r.repo.UpsertInvoice(ctx, params); err != nil {
			return upserted, fmt.Errorf("failed to upsert invoice %s: %w", inv.ID, err)
		}
		upserted++
	}
	return upserted, nil
}

// cardParams maps a credit account. The credit sub-object may be absent, in
// which case limits stay NULL.
func cardParams(userID int64, itemID string, a pluggy.Account) creditcard.UpsertCardParams {
	p := creditcard.UpsertCardParams{
		UserID:       userID,
		ItemID:       itemID,
		ExternalID:   a.ID,
		Name:         a.DisplayName(),
		NumberMasked: creditcard.MaskNumber(a.Number),
		// amount owed
		CurrentBalance: a.Balance.Current,
	}
	if a.CreditData != nil {
		p.Brand = a.CreditData.Brand
		p.CreditLimit = a.CreditData.CreditLimit
		p.AvailableLimit = a.CreditData.AvailableCreditLimit
	}
	if !p.AvailableLimit.Valid && a.Balance.Available.Valid {
		p.AvailableLimit = decimal.NewNullDecimal(a.Balance.Available.Decimal)
	}
	return p
}
