package transaction

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrTransactionNotFound = errors.New("transaction not found")
)

type Transaction struct {
	ID               string          `json:"id"`
	UserID           int64           `json:"userId"`
	AccountID        string          `json:"accountId"` // local account ID
	ExternalID       string          `json:"externalId"`
	Date             time.Time       `json:"date"`
	Amount           decimal.Decimal `json:"amount"` // negative for debits
	Description      string          `json:"description"`
	Merchant         string          `json:"merchant,omitempty"`
	Category         string          `json:"category,omitempty"`
	CategoryIsManual bool            `json:"categoryIsManual"`
	Status           string          `json:"status"` // "PENDING" or "POSTED"
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// UpsertParams is used for syncing transactions from the aggregator.
// Category is only applied when the stored row has no manual category.
type UpsertParams struct {
	UserID      int64
	AccountID   string
	ExternalID  string
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Merchant    string
	Category    string
	Status      string
}

// Validate validates the upsert parameters
func (p UpsertParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required for upsert")
	}
	if p.ExternalID == "" {
		return errors.New("external transaction ID is required for upsert")
	}
	if p.AccountID == "" {
		return errors.New("account ID is required for upsert")
	}
	if p.Date.IsZero() {
		return errors.New("transaction date is required for upsert")
	}
	return nil
}
