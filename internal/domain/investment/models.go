package investment

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Investment is a position held under a connection.
type Investment struct {
	ID            string              `json:"id"`
	UserID        int64               `json:"userId"`
	ItemID        string              `json:"itemId"`
	ExternalID    string              `json:"externalId"`
	Name          string              `json:"name"`
	Type          string              `json:"type"`
	Subtype       string              `json:"subtype,omitempty"`
	Currency      string              `json:"currency"`
	Quantity      decimal.Decimal     `json:"quantity"`
	UnitPrice     decimal.Decimal     `json:"unitPrice"`
	CurrentValue  decimal.Decimal     `json:"currentValue"`
	Profitability decimal.NullDecimal `json:"profitability"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// UpsertParams upserts an investment keyed by (UserID, ExternalID).
type UpsertParams struct {
	UserID        int64
	ItemID        string
	ExternalID    string
	Name          string
	Type          string
	Subtype       string
	Currency      string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	CurrentValue  decimal.Decimal
	Profitability decimal.NullDecimal
}

func (p UpsertParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required for upsert")
	}
	if p.ExternalID == "" {
		return errors.New("external investment ID is required for upsert")
	}
	if p.ItemID == "" {
		return errors.New("item ID is required for upsert")
	}
	return nil
}
