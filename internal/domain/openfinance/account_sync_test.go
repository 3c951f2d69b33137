package openfinance

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/domain/account"
	"finsync/internal/infrastructure/pluggy"
)

func decodeAccounts(t *testing.T, raw string) []pluggy.Account {
	t.Helper()
	var accounts []pluggy.Account
	require.NoError(t, json.Unmarshal([]byte(raw), &accounts))
	return accounts
}

func TestAccountReconciler_BalanceShapes(t *testing.T) {
	accounts := decodeAccounts(t, `[
		{"id": "acc-object", "type": "BANK", "currencyCode": "BRL", "balance": {"current": 1000.50, "available": 950.00}},
		{"id": "acc-number", "type": "BANK", "currencyCode": "BRL", "balance": 1000.50}
	]`)

	repo := &MockAccountRepo{}
	r := NewAccountReconciler(&MockClient{}, repo)

	res := r.Apply(context.Background(), 1, "item-1", accounts)
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Found)
	assert.Equal(t, 2, res.Upserted)

	require.Len(t, repo.upserted, 2)
	obj, num := repo.upserted[0], repo.upserted[1]
	assert.True(t, obj.CurrentBalance.Equal(decimal.RequireFromString("1000.50")))
	assert.True(t, num.CurrentBalance.Equal(obj.CurrentBalance))
	require.True(t, obj.AvailableBalance.Valid)
	assert.True(t, obj.AvailableBalance.Decimal.Equal(decimal.RequireFromString("950")))
	assert.False(t, num.AvailableBalance.Valid)
	assert.Equal(t, "item-1", obj.ItemID)
}

func TestAccountReconciler_Reconcile(t *testing.T) {
	tests := []struct {
		name         string
		client       *MockClient
		upsertErr    error
		wantErr      bool
		wantUpserted int
		wantSkipped  int
	}{
		{
			name: "all accounts upserted",
			client: &MockClient{ListAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
				return []pluggy.Account{{ID: "a1", CurrencyCode: "BRL"}, {ID: "a2", CurrencyCode: "USD"}}, nil
			}},
			wantUpserted: 2,
		},
		{
			name: "row without id skipped",
			client: &MockClient{ListAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
				return []pluggy.Account{{ID: ""}, {ID: "a2"}}, nil
			}},
			wantUpserted: 1,
			wantSkipped:  1,
		},
		{
			name: "remote error is returned",
			client: &MockClient{ListAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
				return nil, &pluggy.APIError{StatusCode: 500, Body: "boom"}
			}},
			wantErr: true,
		},
		{
			name: "store error aborts",
			client: &MockClient{ListAccountsFunc: func(ctx context.Context, itemID string) ([]pluggy.Account, error) {
				return []pluggy.Account{{ID: "a1"}, {ID: "a2"}}, nil
			}},
			upsertErr: errors.New("disk full"),
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockAccountRepo{}
			if tt.upsertErr != nil {
				repo.UpsertFunc = func(ctx context.Context, p account.UpsertParams) (string, error) {
					return "", tt.upsertErr
				}
			}

			res := NewAccountReconciler(tt.client, repo).Reconcile(context.Background(), 1, "item-1")
			assert.Equal(t, StepAccounts, res.Step)
			if tt.wantErr {
				assert.Error(t, res.Err)
				return
			}
			require.NoError(t, res.Err)
			assert.Equal(t, tt.wantUpserted, res.Upserted)
			assert.Equal(t, tt.wantSkipped, res.Skipped)
			assert.Len(t, res.Warnings, tt.wantSkipped)
		})
	}
}
