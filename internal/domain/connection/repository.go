package connection

import (
	"context"
	"time"
)

// Repository defines the interface for connection data access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Connection, error)
	GetByProviderItemID(ctx context.Context, providerItemID string) (*Connection, error)
	ListByUserID(ctx context.Context, userID int64) ([]*Connection, error)
	Upsert(ctx context.Context, params UpsertParams) (*Connection, error)
	UpdateStatus(ctx context.Context, providerItemID, status string) error
	TouchLastSynced(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64, userID int64) error
}
