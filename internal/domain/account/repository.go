package account

import "context"

// Repository defines the interface for account data access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Account, error)
	// GetByProviderAccountID returns nil, nil when no account with that
	// provider id exists for the user.
	GetByProviderAccountID(ctx context.Context, userID int64, providerAccountID string) (*Account, error)
	ListByUserID(ctx context.Context, userID int64) ([]*Account, error)
	ListByConnectionID(ctx context.Context, connectionID int64) ([]*Account, error)
	Create(ctx context.Context, params CreateParams) (*Account, error)
	UpdateFromSync(ctx context.Context, id int64, params SyncParams) error
	SetSyncEnabled(ctx context.Context, id int64, userID int64, enabled bool) error

	GetCreditCard(ctx context.Context, accountID int64) (*CreditCard, error)
	UpsertCreditCard(ctx context.Context, accountID int64, params CreditCardParams) error
}
