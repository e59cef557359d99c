package investment

import (
	"context"
	"time"
)

// Repository defines the interface for investment data access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Investment, error)
	// GetByProviderID returns nil, nil when the provider id is unknown
	// for the user.
	GetByProviderID(ctx context.Context, userID int64, providerInvestmentID string) (*Investment, error)
	// FindByNaturalKey matches on (name, purchase date) for holdings the
	// provider reports without an id. A nil purchaseDate matches only
	// rows with no purchase date. Returns nil, nil when nothing matches.
	FindByNaturalKey(ctx context.Context, userID int64, name string, purchaseDate *time.Time) (*Investment, error)
	ListByConnectionID(ctx context.Context, connectionID int64) ([]*Investment, error)
	Create(ctx context.Context, params CreateParams) (*Investment, error)
	UpdateValue(ctx context.Context, id int64, currentValue float64, quantity *float64) error
}
