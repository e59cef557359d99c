package transaction

import (
	"context"
	"time"
)

// Repository defines the interface for transaction data access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Transaction, error)
	// GetByHash returns nil, nil when the user has no transaction with
	// that content hash.
	GetByHash(ctx context.Context, userID int64, hash string) (*Transaction, error)
	// GetByProviderID returns nil, nil when the provider id is unknown.
	GetByProviderID(ctx context.Context, userID int64, providerTransactionID string) (*Transaction, error)
	ListByAccountID(ctx context.Context, accountID int64, from, to time.Time) ([]*Transaction, error)
	Create(ctx context.Context, params CreateParams) (*Transaction, error)
	UpdateFromSync(ctx context.Context, id int64, params SyncUpdateParams) error
}
