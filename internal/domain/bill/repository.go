package bill

import "context"

// Repository defines the interface for credit-card bill data access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Bill, error)
	// GetByProviderBillID returns nil, nil when the user has no bill
	// with that provider id.
	GetByProviderBillID(ctx context.Context, userID int64, providerBillID string) (*Bill, error)
	ListByAccountID(ctx context.Context, accountID int64) ([]*Bill, error)
	Upsert(ctx context.Context, params UpsertParams) (*Bill, bool, error)
	ReplaceLineItems(ctx context.Context, billID int64, items []LineItemParams) error
	ListLineItems(ctx context.Context, billID int64) ([]*LineItem, error)
}
