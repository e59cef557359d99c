package postgres

import (
	"context"
	"fmt"
	"time"

	"agrego/internal/domain/webhooklog"
)

// WebhookLogRepository implements the webhooklog.Repository interface
// for PostgreSQL. The table is append-only.
type WebhookLogRepository struct {
	db *DB
}

// NewWebhookLogRepository creates a new PostgreSQL webhook log repository
func NewWebhookLogRepository(db *DB) *WebhookLogRepository {
	return &WebhookLogRepository{db: db}
}

// Record appends one delivery to the log
func (r *WebhookLogRepository) Record(ctx context.Context, params webhooklog.RecordParams) (*webhooklog.Entry, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO webhook_logs (event, provider_item_id, handled, error)
		VALUES ($1, $2, $3, $4)
		RETURNING id, event, provider_item_id, handled, error, received_at
	`

	var entry webhooklog.Entry
	err := r.db.QueryRowContext(ctx, query,
		params.Event, params.ProviderItemID, params.Handled, params.Error,
	).Scan(
		&entry.ID, &entry.Event, &entry.ProviderItemID, &entry.Handled, &entry.Error, &entry.ReceivedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record webhook delivery: %w", err)
	}
	return &entry, nil
}

// CountFailuresSince counts failed deliveries for one connection in
// the trailing window
func (r *WebhookLogRepository) CountFailuresSince(ctx context.Context, providerItemID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM webhook_logs
		WHERE provider_item_id = $1 AND handled = false AND error != '' AND received_at > $2
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, providerItemID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count webhook failures: %w", err)
	}
	return count, nil
}

// ListByProviderItemID retrieves the most recent deliveries for one connection
func (r *WebhookLogRepository) ListByProviderItemID(ctx context.Context, providerItemID string, limit int) ([]*webhooklog.Entry, error) {
	query := `
		SELECT id, event, provider_item_id, handled, error, received_at
		FROM webhook_logs
		WHERE provider_item_id = $1
		ORDER BY received_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, providerItemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook deliveries: %w", err)
	}
	defer rows.Close()

	var entries []*webhooklog.Entry
	for rows.Next() {
		var entry webhooklog.Entry
		err := rows.Scan(&entry.ID, &entry.Event, &entry.ProviderItemID, &entry.Handled, &entry.Error, &entry.ReceivedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook delivery: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
