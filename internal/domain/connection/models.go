package connection

import (
	"errors"
	"time"
	"unicode/utf8"
)

// Status is the lifecycle state of a connection.
type Status string

const (
	StatusConnected   Status = "connected"
	StatusPending     Status = "pending"
	StatusError       Status = "error"
	StatusRevoked     Status = "revoked"
	StatusNeedsReauth Status = "needs-reauth"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusConnected, StatusPending, StatusError, StatusRevoked, StatusNeedsReauth:
		return true
	}
	return false
}

// Outcome of the last sync attempt.
const (
	SyncStatusOK    = "ok"
	SyncStatusError = "error"
)

// MaxErrorLength bounds the last_error column, in characters.
const MaxErrorLength = 500

// Domain errors
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrInvalidStatus      = errors.New("invalid connection status")
	ErrInvalidInput       = errors.New("invalid input")
)

// Connection links a user to one aggregator item (an institution login).
type Connection struct {
	ID              string     `json:"id"`
	UserID          int64      `json:"userId"`
	ItemID          string     `json:"itemId"`
	ConsentID       *string    `json:"consentId,omitempty"`
	InstitutionName string     `json:"institutionName"`
	Status          Status     `json:"status"`
	LastSyncAt      *time.Time `json:"lastSyncAt,omitempty"`
	LastSyncStatus  string     `json:"lastSyncStatus,omitempty"`
	LastError       string     `json:"lastError,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// SyncedWithin reports whether the connection last synced less than window before now.
func (c *Connection) SyncedWithin(now time.Time, window time.Duration) bool {
	if c.LastSyncAt == nil {
		return false
	}
	return now.Sub(*c.LastSyncAt) < window
}

// Syncable reports whether the scheduler should consider this connection.
func (c *Connection) Syncable() bool {
	return c.Status == StatusConnected && c.ConsentID != nil && *c.ConsentID != ""
}

// RegisterParams creates or updates the connection for (UserID, ItemID).
type RegisterParams struct {
	UserID          int64
	ItemID          string
	ConsentID       *string
	InstitutionName string
	Status          Status
}

// Validate validates the register parameters
func (p RegisterParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.ItemID == "" {
		return errors.New("item ID is required")
	}
	if !p.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// TruncateError shortens msg to MaxErrorLength characters without splitting a rune.
func TruncateError(msg string) string {
	if utf8.RuneCountInString(msg) <= MaxErrorLength {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:MaxErrorLength-3]) + "..."
}
