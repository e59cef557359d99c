// Package webhooklog keeps an append-only record of webhook
// deliveries, used both as an audit trail and to decide when a
// repeatedly failing connection should be flagged.
package webhooklog

import (
	"errors"
	"time"
)

// ErrInvalidEntry is returned when a log entry misses required fields.
var ErrInvalidEntry = errors.New("invalid webhook log entry")

// Entry is one received webhook delivery. Entries are never updated
// or deleted.
type Entry struct {
	ID             string    `json:"id"`
	Event          string    `json:"event"`
	ProviderItemID string    `json:"providerItemId"`
	Handled        bool      `json:"handled"`
	Error          string    `json:"error"`
	ReceivedAt     time.Time `json:"receivedAt"`
}

// RecordParams contains parameters for appending a log entry
type RecordParams struct {
	Event          string
	ProviderItemID string
	Handled        bool
	Error          string
}

// Validate checks record parameters against domain rules
func (p RecordParams) Validate() error {
	if p.Event == "" {
		return ErrInvalidEntry
	}
	return nil
}
