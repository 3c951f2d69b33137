package pluggy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Account types and subtypes as reported by the aggregator.
const (
	AccountTypeBank   = "BANK"
	AccountTypeCredit = "CREDIT"

	AccountSubtypeCreditCard = "CREDIT_CARD"
)

// Page is the envelope of every list endpoint.
type Page[T any] struct {
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	Page       int `json:"page"`
	Results    []T `json:"results"`
}

// Balance is an account balance. The aggregator reports it either as a bare
// number (or numeric string) or as an object with current and available
// amounts; both decode into the same pair.
type Balance struct {
	Current   decimal.Decimal
	Available decimal.NullDecimal
}

func (b *Balance) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = Balance{}
		return nil
	}

	if data[0] == '{' {
		var obj struct {
			Current   *decimal.Decimal `json:"current"`
			Available *decimal.Decimal `json:"available"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("failed to parse balance object: %w", err)
		}
		*b = Balance{}
		if obj.Current != nil {
			b.Current = *obj.Current
		}
		if obj.Available != nil {
			b.Available = decimal.NewNullDecimal(*obj.Available)
		}
		return nil
	}

	var n decimal.Decimal
	if err := n.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("failed to parse balance %s: %w", string(data), err)
	}
	*b = Balance{Current: n}
	return nil
}

// Account is a bank, credit or brokerage account under an item.
type Account struct {
	ID            string      `json:"id"`
	ItemID        string      `json:"itemId"`
	Type          string      `json:"type"`
	Subtype       string      `json:"subtype"`
	Number        string      `json:"number"`
	Name          string      `json:"name"`
	MarketingName string      `json:"marketingName"`
	CurrencyCode  string      `json:"currencyCode"`
	Balance       Balance     `json:"balance"`
	CreditData    *CreditData `json:"creditData,omitempty"`
}

// DisplayName prefers the marketing name when the institution sends one.
func (a *Account) DisplayName() string {
	if a.MarketingName != "" {
		return a.MarketingName
	}
	return a.Name
}

// IsCreditCard reports whether the account is a credit card.
func (a *Account) IsCreditCard() bool {
	return a.Type == AccountTypeCredit || a.Subtype == AccountSubtypeCreditCard
}

// CreditData holds the credit-card specific fields of an account.
type CreditData struct {
	Level                string              `json:"level"`
	Brand                string              `json:"brand"`
	Status               string              `json:"status"`
	CreditLimit          decimal.NullDecimal `json:"creditLimit"`
	AvailableCreditLimit decimal.NullDecimal `json:"availableCreditLimit"`
	MinimumPayment       decimal.NullDecimal `json:"minimumPayment"`
	BalanceDueDate       string              `json:"balanceDueDate"`
	BalanceCloseDate     string              `json:"balanceCloseDate"`
}

// TransactionQuery selects one page of an account's transactions.
type TransactionQuery struct {
	PageSize int
	Page     int
	From     time.Time
	To       time.Time
}

// Transaction is a posted or pending movement on an account.
type Transaction struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"accountId"`
	Description  string          `json:"description"`
	CurrencyCode string          `json:"currencyCode"`
	Amount       decimal.Decimal `json:"amount"`
	Date         string          `json:"date"`
	Category     *string         `json:"category"`
	Status       string          `json:"status"` // POSTED or PENDING
	Type         string          `json:"type"`   // DEBIT or CREDIT
	Merchant     *Merchant       `json:"merchant,omitempty"`
}

// Merchant identifies the counterparty of a card transaction.
type Merchant struct {
	Name         string `json:"name"`
	BusinessName string `json:"businessName"`
}

// GetDate parses the transaction date.
func (t *Transaction) GetDate() (time.Time, error) {
	return parseTime("date", t.Date)
}

// MerchantName returns the merchant name or "" when there is none.
func (t *Transaction) MerchantName() string {
	if t.Merchant == nil {
		return ""
	}
	if t.Merchant.Name != "" {
		return t.Merchant.Name
	}
	return t.Merchant.BusinessName
}

// CategoryName returns the category or "".
func (t *Transaction) CategoryName() string {
	if t.Category == nil {
		return ""
	}
	return *t.Category
}

// Invoice is a credit card bill (fatura).
type Invoice struct {
	ID                   string              `json:"id"`
	DueDate              string              `json:"dueDate"`
	TotalAmount          decimal.Decimal     `json:"totalAmount"`
	MinimumPaymentAmount decimal.NullDecimal `json:"minimumPaymentAmount"`
	CurrencyCode         string              `json:"totalAmountCurrencyCode"`
	Status               string              `json:"status"`
}

// GetDueDate parses the invoice due date.
func (i *Invoice) GetDueDate() (time.Time, error) {
	return parseTime("dueDate", i.DueDate)
}

// Investment is a position held under an item.
type Investment struct {
	ID                   string              `json:"id"`
	ItemID               string              `json:"itemId"`
	Name                 string              `json:"name"`
	Code                 string              `json:"code"`
	Type                 string              `json:"type"`
	Subtype              string              `json:"subtype"`
	CurrencyCode         string              `json:"currencyCode"`
	Quantity             decimal.NullDecimal `json:"quantity"`
	Value                decimal.NullDecimal `json:"value"`   // unit price
	Balance              decimal.NullDecimal `json:"balance"` // current gross value
	LastTwelveMonthsRate decimal.NullDecimal `json:"lastTwelveMonthsRate"`
}

// Item is a connection between a user and an institution.
type Item struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updatedAt"`
}

type authRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// Token is the result of an auth call.
type Token struct {
	APIKey    string `json:"apiKey"`
	ExpiresIn int64  `json:"expiresIn"` // seconds, 0 when the server omits it
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%s is empty", field)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse %s '%s'", field, s)
}
