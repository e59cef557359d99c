package credential

import "context"

// Repository defines the interface for credential data access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	// GetByUserID returns nil, nil when the user has no stored
	// credential. Callers treat that as "provider sync disabled".
	GetByUserID(ctx context.Context, userID int64) (*Credential, error)
	Save(ctx context.Context, params SaveParams) error
	Delete(ctx context.Context, userID int64) error
	// ListUserIDs returns every user with a stored credential, for the
	// scheduled full sync.
	ListUserIDs(ctx context.Context) ([]int64, error)
}
