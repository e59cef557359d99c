package webhooklog

import (
	"context"
	"time"
)

// Repository defines the interface for webhook log data access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	Record(ctx context.Context, params RecordParams) (*Entry, error)
	// CountFailuresSince counts failed deliveries for one connection in
	// the trailing window, used to decide when to mark the connection
	// webhook_error.
	CountFailuresSince(ctx context.Context, providerItemID string, since time.Time) (int, error)
	ListByProviderItemID(ctx context.Context, providerItemID string, limit int) ([]*Entry, error)
}
