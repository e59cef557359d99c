package loan

import (
	"context"
	"time"
)

// Repository defines the interface for loan data access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Loan, error)
	// GetByProviderLoanID returns nil, nil when the provider id is
	// unknown for the user.
	GetByProviderLoanID(ctx context.Context, userID int64, providerLoanID string) (*Loan, error)
	// FindByNaturalKey matches on (name, principal, start date) for
	// loans reported without a provider id. Principal is compared at
	// cent precision. Returns nil, nil when nothing matches.
	FindByNaturalKey(ctx context.Context, userID int64, name string, principal float64, startDate *time.Time) (*Loan, error)
	ListByConnectionID(ctx context.Context, connectionID int64) ([]*Loan, error)
	Create(ctx context.Context, params CreateParams) (*Loan, error)
	Update(ctx context.Context, id int64, params UpdateParams) error
}
