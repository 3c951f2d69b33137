package openfinance

import (
	"context"
	"sync"

	"finsync/internal/domain/account"
	"finsync/internal/domain/creditcard"
	"finsync/internal/domain/investment"
	"finsync/internal/domain/transaction"
	"finsync/internal/infrastructure/pluggy"
)

// MockClient implements pluggy.ClientInterface
type MockClient struct {
	ListAccountsFunc           func(ctx context.Context, itemID string) ([]pluggy.Account, error)
	ListTransactionsFunc       func(ctx context.Context, accountID string, q pluggy.TransactionQuery) (*pluggy.Page[pluggy.Transaction], error)
	ListCreditCardAccountsFunc func(ctx context.Context, itemID string) ([]pluggy.Account, error)
	ListInvoicesFunc           func(ctx context.Context, cardID string) ([]pluggy.Invoice, error)
	ListInvestmentsFunc        func(ctx context.Context, itemID string) ([]pluggy.Investment, error)
	TriggerRefreshFunc         func(ctx context.Context, itemID string) (*pluggy.Item, error)
	RevokeFunc                 func(ctx context.Context, itemID string) error
}

var _ pluggy.ClientInterface = (*MockClient)(nil)

func (m *MockClient) ListAccounts(ctx context.Context, itemID string) ([]pluggy.Account, error) {
	if m.ListAccountsFunc != nil {
		return m.ListAccountsFunc(ctx, itemID)
	}
	return nil, nil
}

func (m *MockClient) ListTransactions(ctx context.Context, accountID string, q pluggy.TransactionQuery) (*pluggy.Page[pluggy.Transaction], error) {
	if m.ListTransactionsFunc != nil {
		return m.ListTransactionsFunc(ctx, accountID, q)
	}
	return &pluggy.Page[pluggy.Transaction]{Page: q.Page, TotalPages: 1}, nil
}

func (m *MockClient) ListCreditCardAccounts(ctx context.Context, itemID string) ([]pluggy.Account, error) {
	if m.ListCreditCardAccountsFunc != nil {
		return m.ListCreditCardAccountsFunc(ctx, itemID)
	}
	return nil, nil
}

func (m *MockClient) ListInvoices(ctx context.Context, cardID string) ([]pluggy.Invoice, error) {
	if m.ListInvoicesFunc != nil {
		return m.ListInvoicesFunc(ctx, cardID)
	}
	return nil, nil
}

func (m *MockClient) ListInvestments(ctx context.Context, itemID string) ([]pluggy.Investment, error) {
	if m.ListInvestmentsFunc != nil {
		return m.ListInvestmentsFunc(ctx, itemID)
	}
	return nil, nil
}

func (m *MockClient) TriggerRefresh(ctx context.Context, itemID string) (*pluggy.Item, error) {
	if m.TriggerRefreshFunc != nil {
		return m.TriggerRefreshFunc(ctx, itemID)
	}
	return &pluggy.Item{ID: itemID, Status: "UPDATING"}, nil
}

func (m *MockClient) Revoke(ctx context.Context, itemID string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, itemID)
	}
	return nil
}

// MockAccountRepo implements account.Repository
type MockAccountRepo struct {
	UpsertFunc          func(ctx context.Context, params account.UpsertParams) (string, error)
	GetByExternalIDFunc func(ctx context.Context, userID int64, externalID string) (*account.Account, error)
	ListByItemFunc      func(ctx context.Context, userID int64, itemID string) ([]*account.Account, error)

	mu       sync.Mutex
	upserted []account.UpsertParams
}

func (m *MockAccountRepo) Upsert(ctx context.Context, params account.UpsertParams) (string, error) {
	m.mu.Lock()
	m.upserted = append(m.upserted, params)
	m.mu.Unlock()
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, params)
	}
	return "local-" + params.ExternalID, nil
}

func (m *MockAccountRepo) GetByExternalID(ctx context.Context, userID int64, externalID string) (*account.Account, error) {
	if m.GetByExternalIDFunc != nil {
		return m.GetByExternalIDFunc(ctx, userID, externalID)
	}
	return nil, account.ErrAccountNotFound
}

func (m *MockAccountRepo) ListByItem(ctx context.Context, userID int64, itemID string) ([]*account.Account, error) {
	if m.ListByItemFunc != nil {
		return m.ListByItemFunc(ctx, userID, itemID)
	}
	return nil, nil
}

// MockTransactionRepo implements transaction.Repository
type MockTransactionRepo struct {
	UpsertFunc func(ctx context.Context, params transaction.UpsertParams) (string, error)

	mu       sync.Mutex
	upserted []transaction.UpsertParams
}

func (m *MockTransactionRepo) Upsert(ctx context.Context, params transaction.UpsertParams) (string, error) {
	m.mu.Lock()
	m.upserted = append(m.upserted, params)
	m.mu.Unlock()
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, params)
	}
	return "local-" + params.ExternalID, nil
}

func (m *MockTransactionRepo) GetByExternalID(ctx context.Context, userID int64, externalID string) (*transaction.Transaction, error) {
	return nil, transaction.ErrTransactionNotFound
}

func (m *MockTransactionRepo) ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*transaction.Transaction, error) {
	return nil, nil
}

func (m *MockTransactionRepo) SetManualCategory(ctx context.Context, userID int64, id, category string) error {
	return nil
}

// MockCreditCardRepo implements creditcard.Repository
type MockCreditCardRepo struct {
	UpsertCardFunc    func(ctx context.Context, params creditcard.UpsertCardParams) (string, error)
	UpsertInvoiceFunc func(ctx context.Context, params creditcard.UpsertInvoiceParams) (string, error)

	cards    []creditcard.UpsertCardParams
	invoices []creditcard.UpsertInvoiceParams
}

func (m *MockCreditCardRepo) UpsertCard(ctx context.Context, params creditcard.UpsertCardParams) (string, error) {
	m.cards = append(m.cards, params)
	if m.UpsertCardFunc != nil {
		return m.UpsertCardFunc(ctx, params)
	}
	return "local-" + params.ExternalID, nil
}

func (m *MockCreditCardRepo) UpsertInvoice(ctx context.Context, params creditcard.UpsertInvoiceParams) (string, error) {
	m.invoices = append(m.invoices, params)
	if m.UpsertInvoiceFunc != nil {
		return m.UpsertInvoiceFunc(ctx, params)
	}
	return "local-" + params.ExternalID, nil
}

func (m *MockCreditCardRepo) ListByItem(ctx context.Context, userID int64, itemID string) ([]*creditcard.CreditCard, error) {
	return nil, nil
}

func (m *MockCreditCardRepo) ListInvoices(ctx context.Context, cardID string) ([]*creditcard.Invoice, error) {
	return nil, nil
}

// MockInvestmentRepo implements investment.Repository
type MockInvestmentRepo struct {
	UpsertFunc func(ctx context.Context, params investment.UpsertParams) (string, error)

	upserted []investment.UpsertParams
}

func (m *MockInvestmentRepo) Upsert(ctx context.Context, params investment.UpsertParams) (string, error) {
	m.upserted = append(m.upserted, params)
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, params)
	}
	return "local-" + params.ExternalID, nil
}

func (m *MockInvestmentRepo) ListByItem(ctx context.Context, userID int64, itemID string) ([]*investment.Investment, error) {
	return nil, nil
}

func strPtr(s string) *string { return &s }
