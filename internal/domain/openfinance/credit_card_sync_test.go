package openfinance

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/domain/creditcard"
	"finsync/internal/infrastructure/pluggy"
	"finsync/internal/shared/logger"
)

func TestCreditCardReconciler_MapsCreditData(t *testing.T) {
	client := &MockClient{
		ListCreditCardAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
			return []pluggy.Account{
				{
					ID: "card-1", Type: pluggy.AccountTypeCredit, Name: "Gold", Number: "5162 9200 1234 5678",
					Balance: pluggy.Balance{Current: decimal.RequireFromString("830.10")},
					CreditData: &pluggy.CreditData{
						Brand:                "MASTERCARD",
						CreditLimit:          decimal.NewNullDecimal(decimal.RequireFromString("5000")),
						AvailableCreditLimit: decimal.NewNullDecimal(decimal.RequireFromString("4169.90")),
					},
				},
				{ID: "card-2", Subtype: pluggy.AccountSubtypeCreditCard, Name: "Basic"},
			}, nil
		},
		ListInvoicesFunc: func(ctx context.Context, cardID string) ([]pluggy.Invoice, error) {
			if cardID != "card-1" {
				return nil, nil
			}
			return []pluggy.Invoice{
				{ID: "inv-1", DueDate: "2025-02-10", TotalAmount: decimal.RequireFromString("830.10"), Status: "OPEN"},
				{ID: "inv-bad", DueDate: "soon"},
			}, nil
		},
	}

	repo := &MockCreditCardRepo{}
	res := NewCreditCardReconciler(client, repo).Reconcile(context.Background(), 1, "item-1")
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Found)
	assert.Equal(t, 2, res.Upserted)
	assert.Equal(t, 1, res.Skipped)

	require.Len(t, repo.cards, 2)
	gold := repo.cards[0]
	assert.Equal(t, "MASTERCARD", gold.Brand)
	assert.Equal(t, "**** 5678", gold.NumberMasked)
	assert.True(t, gold.CreditLimit.Decimal.Equal(decimal.RequireFromString("5000")))
	assert.True(t, gold.CurrentBalance.Equal(decimal.RequireFromString("830.10")))

	basic := repo.cards[1]
	assert.Empty(t, basic.Brand)
	assert.False(t, basic.CreditLimit.Valid)
	assert.Empty(t, basic.NumberMasked)

	require.Len(t, repo.invoices, 1)
	assert.Equal(t, "local-card-1", repo.invoices[0].CardID)
}

func TestCreditCardReconciler_InvoiceFailureContinues(t *testing.T) {
	client := &MockClient{
		ListCreditCardAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
			return []pluggy.Account{{ID: "card-1"}, {ID: "card-2"}}, nil
		},
		ListInvoicesFunc: func(ctx context.Context, cardID string) ([]pluggy.Invoice, error) {
			if cardID == "card-1" {
				return nil, &pluggy.APIError{StatusCode: 500, Body: "upstream"}
			}
			return []pluggy.Invoice{{ID: "inv-2", DueDate: "2025-02-10"}}, nil
		},
	}

	repo := &MockCreditCardRepo{}
	res := NewCreditCardReconciler(client, repo).Reconcile(context.Background(), 1, "item-1")
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Upserted)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "card-1")

	require.Len(t, repo.invoices, 1)
	assert.Equal(t, "inv-2", repo.invoices[0].ExternalID)
}

func TestCreditCardReconciler_InvoiceAuthErrorEndsStep(t *testing.T) {
	client := &MockClient{
		ListCreditCardAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
			return []pluggy.Account{{ID: "card-1"}, {ID: "card-2"}}, nil
		},
		ListInvoicesFunc: func(ctx context.Context, cardID string) ([]pluggy.Invoice, error) {
			return nil, fmt.Errorf("%w: %w", pluggy.ErrAuth, &pluggy.APIError{StatusCode: 401, Body: "expired"})
		},
	}

	repo := &MockCreditCardRepo{}
	res := NewCreditCardReconciler(client, repo).Reconcile(context.Background(), 1, "item-1")
	require.ErrorIs(t, res.Err, pluggy.ErrAuth)
	assert.Equal(t, 1, res.Upserted)
	assert.Empty(t, res.Warnings)
	assert.Len(t, repo.cards, 1)
}

func TestSyncConnection_InvoiceAuthErrorIsFatal(t *testing.T) {
	client := &MockClient{
		ListCreditCardAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
			return []pluggy.Account{{ID: "card-1"}}, nil
		},
		ListInvoicesFunc: func(ctx context.Context, cardID string) ([]pluggy.Invoice, error) {
			return nil, fmt.Errorf("%w: %w", pluggy.ErrAuth, &pluggy.APIError{StatusCode: 401})
		},
	}

	svc := NewSyncServiceWithSteps(nil, logger.Nop(),
		NewCreditCardReconciler(client, &MockCreditCardRepo{}),
		NewInvestmentReconciler(client, &MockInvestmentRepo{}),
	)

	report, err := svc.SyncConnection(context.Background(), 1, "item-1")
	require.ErrorIs(t, err, pluggy.ErrAuth)

	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, StepCreditCards, syncErr.Step)
	assert.Len(t, report.Steps, 1, "investments must not run after an auth failure")
}

func TestCreditCardReconciler_Errors(t *testing.T) {
	t.Run("remote error", func(t *testing.T) {
		client := &MockClient{ListCreditCardAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
			return nil, errors.New("timeout")
		}}
		res := NewCreditCardReconciler(client, &MockCreditCardRepo{}).Reconcile(context.Background(), 1, "item-1")
		assert.Error(t, res.Err)
	})

	t.Run("card upsert error", func(t *testing.T) {
		client := &MockClient{ListCreditCardAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
			return []pluggy.Account{{ID: "card-1"}}, nil
		}}
		repo := &MockCreditCardRepo{UpsertCardFunc: func(ctx context.Context, p creditcard.UpsertCardParams) (string, error) {
			return "", errors.New("db down")
		}}
		res := NewCreditCardReconciler(client, repo).Reconcile(context.Background(), 1, "item-1")
		assert.ErrorContains(t, res.Err, "db down")
	})
}

func TestCardParams_FallsBackToAvailableBalance(t *testing.T) {
	p := cardParams(1, "item-1", pluggy.Account{
		ID: "card-1",
		Balance: pluggy.Balance{
			Current:   decimal.RequireFromString("100"),
			Available: decimal.NewNullDecimal(decimal.RequireFromString("900")),
		},
	})
	require.True(t, p.AvailableLimit.Valid)
	assert.True(t, p.AvailableLimit.Decimal.Equal(decimal.RequireFromString("900")))
}
