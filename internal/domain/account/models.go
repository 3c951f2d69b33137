package account

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidInput    = errors.New("invalid input")
)

// Account mirrors a bank or brokerage account held at the aggregator.
type Account struct {
	ID               string              `json:"id"`
	UserID           int64               `json:"userId"`
	ItemID           string              `json:"itemId"`
	ExternalID       string              `json:"externalId"`
	Name             string              `json:"name"`
	Type             string              `json:"type"`
	Subtype          string              `json:"subtype"`
	Currency         string              `json:"currency"`
	CurrentBalance   decimal.Decimal     `json:"currentBalance"`
	AvailableBalance decimal.NullDecimal `json:"availableBalance"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// UpsertParams contains parameters for upserting an account keyed by
// (UserID, ExternalID). Balances are always overwritten.
type UpsertParams struct {
	UserID           int64
	ItemID           string
	ExternalID       string
	Name             string
	Type             string
	Subtype          string
	Currency         string
	CurrentBalance   decimal.Decimal
	AvailableBalance decimal.NullDecimal
}

// Validate validates the upsert parameters
func (p UpsertParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required for upsert")
	}
	if p.ExternalID == "" {
		return errors.New("external account ID is required for upsert")
	}
	if p.ItemID == "" {
		return errors.New("item ID is required for upsert")
	}
	if p.Currency != "" && len(p.Currency) != 3 {
		return errors.New("currency must be a 3 letter ISO 4217 code")
	}
	return nil
}
