package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finsync/internal/domain/connection"
)

// ConnectionRepository implements connection.Repository
type ConnectionRepository struct {
	db *DB
}

var _ connection.Repository = (*ConnectionRepository)(nil)

func NewConnectionRepository(db *DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `id, user_id, external_item_id, external_consent_id, institution_name, status,
	last_sync_at, last_sync_status, last_error, created_at, updated_at`

// Register inserts the connection or refreshes its consent, institution and status.
func (r *ConnectionRepository) Register(ctx context.Context, params connection.RegisterParams) (*connection.Connection, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", connection.ErrInvalidInput, err)
	}

	query := `
		INSERT INTO connections (id, user_id, external_item_id, external_consent_id, institution_name, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, external_item_id) DO UPDATE SET
			external_consent_id = excluded.external_consent_id,
			institution_name = excluded.institution_name,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
		RETURNING ` + connectionColumns

	c, err := scanConnection(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.UserID, params.ItemID, nullStringPtr(params.ConsentID),
		params.InstitutionName, string(params.Status),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to register connection: %w", err)
	}
	return c, nil
}

// GetByItemID retrieves the connection of a user for an item
func (r *ConnectionRepository) GetByItemID(ctx context.Context, userID int64, itemID string) (*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE user_id = $1 AND external_item_id = $2`

	c, err := scanConnection(r.db.QueryRowContext(ctx, query, userID, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, connection.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return c, nil
}

// ListSyncable returns connected connections with a consent id
func (r *ConnectionRepository) ListSyncable(ctx context.Context) ([]*connection.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE status = $1 AND external_consent_id IS NOT NULL AND external_consent_id <> ''
		ORDER BY user_id, external_item_id
	`
	return r.list(ctx, "list syncable connections", query, string(connection.StatusConnected))
}

// ListByUserID returns every connection of a user
func (r *ConnectionRepository) ListByUserID(ctx context.Context, userID int64) ([]*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE user_id = $1 ORDER BY created_at`
	return r.list(ctx, "list connections", query, userID)
}

// RecordSyncSuccess stamps a successful sync
func (r *ConnectionRepository) RecordSyncSuccess(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE connections
		SET last_sync_at = $1, last_sync_status = $2, last_error = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`
	return r.exec(ctx, "record sync success", query, at.UTC(), connection.SyncStatusOK, id)
}

// RecordSyncFailure stamps a failed sync; last_sync_at is left untouched
func (r *ConnectionRepository) RecordSyncFailure(ctx context.Context, id string, message string) error {
	query := `
		UPDATE connections
		SET last_sync_status = $1, last_error = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`
	return r.exec(ctx, "record sync failure", query, connection.SyncStatusError, connection.TruncateError(message), id)
}

// UpdateStatus changes the lifecycle status
func (r *ConnectionRepository) UpdateStatus(ctx context.Context, id string, status connection.Status) error {
	if !status.Valid() {
		return connection.ErrInvalidStatus
	}
	query := `UPDATE connections SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	return r.exec(ctx, "update connection status", query, string(status), id)
}

func (r *ConnectionRepository) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if rows == 0 {
		return connection.ErrConnectionNotFound
	}
	return nil
}

func (r *ConnectionRepository) list(ctx context.Context, op, query string, args ...any) ([]*connection.Connection, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	var conns []*connection.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return conns, nil
}

func scanConnection(s scanner) (*connection.Connection, error) {
	var c connection.Connection
	var status string
	var consentID, lastSyncStatus, lastError sql.NullString
	var lastSyncAt sql.NullTime

	err := s.Scan(
		&c.ID, &c.UserID, &c.ItemID, &consentID, &c.InstitutionName, &status,
		&lastSyncAt, &lastSyncStatus, &lastError, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = connection.Status(status)
	if consentID.Valid {
		c.ConsentID = &consentID.String
	}
	if lastSyncAt.Valid {
		t := lastSyncAt.Time
		c.LastSyncAt = &t
	}
	c.LastSyncStatus = lastSyncStatus.String
	c.LastError = lastError.String

	return &c, nil
}
