package connection

import (
	"errors"
	"time"
)

// Connection statuses
const (
	StatusConnected    = "connected"
	StatusLoginError   = "login_error"
	StatusOutdated     = "outdated"
	StatusWebhookError = "webhook_error"
)

var validStatuses = map[string]struct{}{
	StatusConnected:    {},
	StatusLoginError:   {},
	StatusOutdated:     {},
	StatusWebhookError: {},
}

// Domain errors
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrInvalidStatus      = errors.New("invalid connection status")
	ErrItemIDRequired     = errors.New("provider item id is required")
)

// Connection links a user to one bank through the provider. The
// provider item id is the stable handle every webhook and sync carries.
type Connection struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"userId"`
	ProviderItemID  string     `json:"providerItemId"`
	InstitutionName string     `json:"institutionName"`
	Status          string     `json:"status"`
	LastSyncedAt    *time.Time `json:"lastSyncedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// UpsertParams carries the fields written when a connection is created
// or refreshed from provider state.
type UpsertParams struct {
	UserID          int64
	ProviderItemID  string
	InstitutionName string
	Status          string
}

// Validate checks upsert parameters against domain rules
func (p *UpsertParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.ProviderItemID == "" {
		return ErrItemIDRequired
	}
	if _, ok := validStatuses[p.Status]; !ok {
		return ErrInvalidStatus
	}
	return nil
}

// StatusFromProvider maps the provider's item status vocabulary onto
// the local connection lifecycle. Unknown statuses map to outdated so
// a stale connection is never silently shown as healthy.
func StatusFromProvider(itemStatus string) string {
	switch itemStatus {
	case "UPDATED", "UPDATING":
		return StatusConnected
	case "LOGIN_ERROR", "INVALID_CREDENTIALS", "WAITING_USER_INPUT":
		return StatusLoginError
	default:
		return StatusOutdated
	}
}
