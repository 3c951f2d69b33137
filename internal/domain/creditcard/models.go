// Package creditcard holds credit cards and their invoices (faturas).
package creditcard

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrCardNotFound = errors.New("credit card not found")
)

type CreditCard struct {
	ID             string              `json:"id"`
	UserID         int64               `json:"userId"`
	ItemID         string              `json:"itemId"`
	ExternalID     string              `json:"externalId"`
	Name           string              `json:"name"`
	Brand          string              `json:"brand,omitempty"`
	NumberMasked   string              `json:"numberMasked,omitempty"`
	CreditLimit    decimal.NullDecimal `json:"creditLimit"`
	AvailableLimit decimal.NullDecimal `json:"availableLimit"`
	CurrentBalance decimal.Decimal     `json:"currentBalance"` // amount owed
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

type Invoice struct {
	ID             string              `json:"id"`
	UserID         int64               `json:"userId"`
	CardID         string              `json:"cardId"`
	ExternalID     string              `json:"externalId"`
	DueDate        time.Time           `json:"dueDate"`
	TotalAmount    decimal.Decimal     `json:"totalAmount"`
	MinimumPayment decimal.NullDecimal `json:"minimumPayment"`
	Status         string              `json:"status,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// UpsertCardParams upserts a card keyed by (UserID, ExternalID).
type UpsertCardParams struct {
	UserID         int64
	ItemID         string
	ExternalID     string
	Name           string
	Brand          string
	NumberMasked   string
	CreditLimit    decimal.NullDecimal
	AvailableLimit decimal.NullDecimal
	CurrentBalance decimal.Decimal
}

func (p UpsertCardParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required for upsert")
	}
	if p.ExternalID == "" {
		return errors.New("external card ID is required for upsert")
	}
	if p.ItemID == "" {
		return errors.New("item ID is required for upsert")
	}
	return nil
}

// UpsertInvoiceParams upserts an invoice keyed by ExternalID, which the
// aggregator guarantees to be globally unique.
type UpsertInvoiceParams struct {
	UserID         int64
	CardID         string
	ExternalID     string
	DueDate        time.Time
	TotalAmount    decimal.Decimal
	MinimumPayment decimal.NullDecimal
	Status         string
}

func (p UpsertInvoiceParams) Validate() error {
	if p.ExternalID == "" {
		return errors.New("external invoice ID is required for upsert")
	}
	if p.CardID == "" {
		return errors.New("card ID is required for upsert")
	}
	if p.DueDate.IsZero() {
		return errors.New("due date is required for upsert")
	}
	return nil
}

// MaskNumber keeps only the last four digits of a card number.
func MaskNumber(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if digits == "" {
		return ""
	}
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	return "**** " + digits
}
