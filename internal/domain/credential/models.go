// Package credential stores each user's provider client id/secret
// pair. The secret is encrypted at rest; a user without a stored
// credential simply has no provider link and every sync for them is a
// no-op.
package credential

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Domain errors
var (
	ErrCredentialNotFound = errors.New("provider credential not found")
	ErrInvalidClientID    = errors.New("provider client id must be a UUID")
	ErrSecretRequired     = errors.New("provider client secret is required")
)

// Credential is one user's provider credential pair. ClientSecret is
// held decrypted in memory only; the repository encrypts on write and
// decrypts on read.
type Credential struct {
	UserID       int64     `json:"userId"`
	ClientID     string    `json:"clientId"`
	ClientSecret string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SaveParams contains parameters for storing a credential pair
type SaveParams struct {
	UserID       int64
	ClientID     string
	ClientSecret string
}

// Validate rejects malformed credentials before anything is persisted
// or sent to the provider.
func (p SaveParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if _, err := uuid.Parse(p.ClientID); err != nil {
		return ErrInvalidClientID
	}
	if p.ClientSecret == "" {
		return ErrSecretRequired
	}
	return nil
}
