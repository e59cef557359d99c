// Package openfinance provides domain services for syncing financial
// data pulled from the Open Finance provider into local records.
package openfinance

import (
	"context"
	"errors"
	"fmt"

	ofclient "agrego/internal/infrastructure/openfinance"
)

// ErrNoCredential mirrors the client factory's sentinel so domain
// callers need not import the infrastructure package directly. Syncs
// for users without a credential are a quiet no-op.
var ErrNoCredential = ofclient.ErrNoCredential

// ErrSyncInProgress is returned when a sync for the same connection is
// already running; the caller's work is already being done.
var ErrSyncInProgress = errors.New("sync already in progress for connection")

// ClientFactory builds a provider client bound to one user's
// credential pair. Implemented in the infrastructure layer.
type ClientFactory interface {
	ClientForUser(ctx context.Context, userID int64) (ofclient.ClientInterface, error)
}

// SyncResult contains the results of one sync operation
type SyncResult struct {
	UserID  int64
	Found   int
	Created int
	Updated int
	Skipped int
	Errors  []string
}

// absorb folds the counters of a sub-result into the receiver
func (r *SyncResult) absorb(other *SyncResult) {
	if other == nil {
		return
	}
	r.Found += other.Found
	r.Created += other.Created
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
}

// addError records a non-fatal failure and keeps the sync going
func (r *SyncResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
