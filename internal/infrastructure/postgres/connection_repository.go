package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agrego/internal/domain/connection"
)

// ConnectionRepository implements the connection.Repository interface for PostgreSQL
type ConnectionRepository struct {
	db *DB
}

// NewConnectionRepository creates a new PostgreSQL connection repository
func NewConnectionRepository(db *DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `id, user_id, provider_item_id, institution_name, status, last_synced_at, created_at, updated_at`

func scanConnection(row interface{ Scan(...any) error }) (*connection.Connection, error) {
	var conn connection.Connection
	var lastSyncedAt sql.NullTime

	err := row.Scan(
		&conn.ID, &conn.UserID, &conn.ProviderItemID, &conn.InstitutionName,
		&conn.Status, &lastSyncedAt, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastSyncedAt.Valid {
		conn.LastSyncedAt = &lastSyncedAt.Time
	}
	return &conn, nil
}

// GetByID retrieves a connection by its ID
func (r *ConnectionRepository) GetByID(ctx context.Context, id int64) (*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, connection.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return conn, nil
}

// GetByProviderItemID retrieves a connection by its provider item id.
// Returns nil, nil when the item id is unknown.
func (r *ConnectionRepository) GetByProviderItemID(ctx context.Context, providerItemID string) (*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE provider_item_id = $1`

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query, providerItemID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection by item id: %w", err)
	}
	return conn, nil
}

// ListByUserID retrieves all connections for a user
func (r *ConnectionRepository) ListByUserID(ctx context.Context, userID int64) ([]*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var conns []*connection.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

// Upsert creates a connection for a provider item or refreshes its
// institution name and status when one already exists.
func (r *ConnectionRepository) Upsert(ctx context.Context, params connection.UpsertParams) (*connection.Connection, error) {
	query := `
		INSERT INTO connections (user_id, provider_item_id, institution_name, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider_item_id)
		DO UPDATE SET
			institution_name = EXCLUDED.institution_name,
			status = EXCLUDED.status,
			updated_at = CURRENT_TIMESTAMP
		RETURNING ` + connectionColumns + `
	`

	conn, err := scanConnection(r.db.QueryRowContext(
		ctx, query,
		params.UserID, params.ProviderItemID, params.InstitutionName, params.Status,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert connection: %w", err)
	}
	return conn, nil
}

// UpdateStatus sets the lifecycle status of a connection
func (r *ConnectionRepository) UpdateStatus(ctx context.Context, providerItemID, status string) error {
	query := `UPDATE connections SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE provider_item_id = $2`

	result, err := r.db.ExecContext(ctx, query, status, providerItemID)
	if err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return connection.ErrConnectionNotFound
	}
	return nil
}

// TouchLastSynced records a successful sync timestamp
func (r *ConnectionRepository) TouchLastSynced(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE connections SET last_synced_at = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to touch last synced: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return connection.ErrConnectionNotFound
	}
	return nil
}

// Delete removes a connection owned by the user. Linked accounts keep
// their rows with connection_id set to NULL by the schema.
func (r *ConnectionRepository) Delete(ctx context.Context, id int64, userID int64) error {
	query := `DELETE FROM connections WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return connection.ErrConnectionNotFound
	}
	return nil
}
