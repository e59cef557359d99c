package openfinance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agrego/internal/domain/connection"
	ofclient "agrego/internal/infrastructure/openfinance"
)

// ErrUnknownConnection is returned for a provider item id no local
// connection maps to.
var ErrUnknownConnection = errors.New("no connection for provider item id")

// connectionScope resolves the connection and a client for its owner.
func (s *Service) connectionScope(ctx context.Context, providerItemID string) (*connection.Connection, ofclient.ClientInterface, error) {
	conn, err := s.connectionRepo.GetByProviderItemID(ctx, providerItemID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up connection: %w", err)
	}
	if conn == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownConnection, providerItemID)
	}
	client, err := s.factory.ClientForUser(ctx, conn.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build provider client: %w", err)
	}
	return conn, client, nil
}

// SyncConnectionByItemID runs the full entity pipeline for the
// connection owning a provider item id. Used by webhook item events
// and the manual sync trigger.
func (s *Service) SyncConnectionByItemID(ctx context.Context, providerItemID string) (*SyncResult, error) {
	conn, client, err := s.connectionScope(ctx, providerItemID)
	if err != nil {
		return nil, err
	}
	return s.SyncConnection(ctx, client, conn)
}

// SyncTransactionsByItemID pulls transactions for one item within the
// given window. A nil window falls back to the default trailing 24h.
func (s *Service) SyncTransactionsByItemID(ctx context.Context, providerItemID string, from, to *time.Time) (*SyncResult, error) {
	conn, client, err := s.connectionScope(ctx, providerItemID)
	if err != nil {
		return nil, err
	}
	if !s.guard.acquire(conn.ProviderItemID) {
		return nil, ErrSyncInProgress
	}
	defer s.guard.release(conn.ProviderItemID)

	if from == nil {
		start := time.Now().Add(-defaultTransactionWindow)
		from = &start
	}

	result, err := s.transactions.SyncConnectionTransactions(ctx, client, conn, from, to)
	if err == nil {
		if touchErr := s.connectionRepo.TouchLastSynced(ctx, conn.ID, time.Now()); touchErr != nil {
			result.addError("failed to record sync time: %v", touchErr)
		}
	} else if markErr := s.markConnectionBroken(ctx, conn, err); markErr != nil {
		result.addError("failed to flag connection: %v", markErr)
	}
	return result, err
}

// SyncAccountsByItemID refreshes the accounts of one item.
func (s *Service) SyncAccountsByItemID(ctx context.Context, providerItemID string) (*SyncResult, error) {
	conn, client, err := s.connectionScope(ctx, providerItemID)
	if err != nil {
		return nil, err
	}
	if !s.guard.acquire(conn.ProviderItemID) {
		return nil, ErrSyncInProgress
	}
	defer s.guard.release(conn.ProviderItemID)
	return s.accounts.SyncConnectionAccounts(ctx, client, conn)
}

// SyncBillsByItemID refreshes the credit-card bills of one item.
func (s *Service) SyncBillsByItemID(ctx context.Context, providerItemID string) (*SyncResult, error) {
	conn, client, err := s.connectionScope(ctx, providerItemID)
	if err != nil {
		return nil, err
	}
	if !s.guard.acquire(conn.ProviderItemID) {
		return nil, ErrSyncInProgress
	}
	defer s.guard.release(conn.ProviderItemID)
	return s.bills.SyncConnectionBills(ctx, client, conn)
}

// SyncInvestmentsByItemID refreshes the holdings of one item.
func (s *Service) SyncInvestmentsByItemID(ctx context.Context, providerItemID string) (*SyncResult, error) {
	conn, client, err := s.connectionScope(ctx, providerItemID)
	if err != nil {
		return nil, err
	}
	if !s.guard.acquire(conn.ProviderItemID) {
		return nil, ErrSyncInProgress
	}
	defer s.guard.release(conn.ProviderItemID)
	return s.investments.SyncConnectionInvestments(ctx, client, conn)
}

// SyncLoansByItemID refreshes the liabilities of one item.
func (s *Service) SyncLoansByItemID(ctx context.Context, providerItemID string) (*SyncResult, error) {
	conn, client, err := s.connectionScope(ctx, providerItemID)
	if err != nil {
		return nil, err
	}
	if !s.guard.acquire(conn.ProviderItemID) {
		return nil, ErrSyncInProgress
	}
	defer s.guard.release(conn.ProviderItemID)
	return s.loans.SyncConnectionLoans(ctx, client, conn)
}

// RegisterConnection creates the connection for a freshly linked item
// and runs its first full sync. Used when an item/created webhook
// arrives for an item no local connection maps to yet.
func (s *Service) RegisterConnection(ctx context.Context, userID int64, providerItemID string) (*SyncResult, error) {
	client, err := s.factory.ClientForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider client: %w", err)
	}
	item, err := client.GetItem(ctx, providerItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item %s: %w", providerItemID, err)
	}
	conn, err := s.upsertConnection(ctx, userID, item)
	if err != nil {
		return nil, err
	}
	return s.SyncConnection(ctx, client, conn)
}

// ConnectTokenForUser issues a linking-widget token for one user.
func (s *Service) ConnectTokenForUser(ctx context.Context, userID int64, itemID string, opts ofclient.ConnectTokenOptions) (string, error) {
	client, err := s.factory.ClientForUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return client.ConnectToken(ctx, itemID, opts)
}
