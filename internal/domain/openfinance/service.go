package openfinance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agrego/internal/domain/connection"
	"agrego/internal/domain/credential"
	"agrego/internal/domain/notification"
	ofclient "agrego/internal/infrastructure/openfinance"
	"agrego/internal/shared/logger"
	"agrego/internal/shared/messages"
)

// Default pull windows. Webhook-driven syncs narrow these using the
// event payload; full syncs fall back to the last successful sync.
const (
	defaultTransactionWindow = 24 * time.Hour
	firstSyncWindow          = 90 * 24 * time.Hour
)

// Service orchestrates a full sync for a user or a single connection:
// connections first, then accounts, then the per-entity syncers. One
// failing entity records its errors and the rest still run.
type Service struct {
	factory        ClientFactory
	connectionRepo connection.Repository
	credentialRepo credential.Repository

	accounts     *AccountSyncService
	transactions *TransactionSyncService
	bills        *BillSyncService
	investments  *InvestmentSyncService
	loans        *LoanSyncService

	notifications *notification.Service
	texts         *messages.Messages

	guard *syncGuard
}

// NewService creates the sync orchestrator
func NewService(
	factory ClientFactory,
	connectionRepo connection.Repository,
	credentialRepo credential.Repository,
	accounts *AccountSyncService,
	transactions *TransactionSyncService,
	bills *BillSyncService,
	investments *InvestmentSyncService,
	loans *LoanSyncService,
	notifications *notification.Service,
	texts *messages.Messages,
) *Service {
	return &Service{
		factory:        factory,
		connectionRepo: connectionRepo,
		credentialRepo: credentialRepo,
		accounts:       accounts,
		transactions:   transactions,
		bills:          bills,
		investments:    investments,
		loans:          loans,
		notifications:  notifications,
		texts:          texts,
		guard:          newSyncGuard(),
	}
}

// SyncUser refreshes every connection of one user from provider state.
// A user without a stored credential is a quiet no-op.
func (s *Service) SyncUser(ctx context.Context, userID int64) (*SyncResult, error) {
	result := &SyncResult{UserID: userID, Errors: []string{}}

	client, err := s.factory.ClientForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoCredential) {
			logger.Get().Debugw("skipping sync, no provider credential", "user_id", userID)
			return result, nil
		}
		return result, fmt.Errorf("failed to build provider client: %w", err)
	}

	items, err := client.ListItems(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list provider items: %w", err)
	}

	for i := range items {
		conn, err := s.upsertConnection(ctx, userID, &items[i])
		if err != nil {
			result.addError("failed to upsert connection %s: %v", items[i].ID, err)
			continue
		}
		if conn.Status != connection.StatusConnected {
			logger.Get().Infow("skipping data pull for unhealthy connection",
				"user_id", userID, "item_id", conn.ProviderItemID, "status", conn.Status)
			s.notifyIfBroken(ctx, conn)
			continue
		}

		connResult, err := s.SyncConnection(ctx, client, conn)
		result.absorb(connResult)
		if err != nil {
			if errors.Is(err, ErrSyncInProgress) {
				continue
			}
			if errors.Is(err, ofclient.ErrAuthentication) {
				// The credential is bad for every remaining item too.
				result.addError("provider authentication failed: %v", err)
				return result, err
			}
			result.addError("failed to sync connection %s: %v", conn.ProviderItemID, err)
		}
	}

	logger.Get().Infow("user sync complete",
		"user_id", userID, "connections", len(items),
		"created", result.Created, "updated", result.Updated, "errors", len(result.Errors))
	return result, nil
}

// SyncConnection runs the full entity pipeline for one connection.
// Concurrent syncs of the same connection coalesce: the second caller
// gets ErrSyncInProgress and no work is repeated.
func (s *Service) SyncConnection(ctx context.Context, client ofclient.ClientInterface, conn *connection.Connection) (*SyncResult, error) {
	if !s.guard.acquire(conn.ProviderItemID) {
		return nil, ErrSyncInProgress
	}
	defer s.guard.release(conn.ProviderItemID)

	result := &SyncResult{UserID: conn.UserID, Errors: []string{}}

	accResult, err := s.accounts.SyncConnectionAccounts(ctx, client, conn)
	result.absorb(accResult)
	if err != nil {
		if markErr := s.markConnectionBroken(ctx, conn, err); markErr != nil {
			result.addError("failed to flag connection: %v", markErr)
		}
		return result, err
	}

	from, to := s.transactionWindow(conn)
	txResult, err := s.transactions.SyncConnectionTransactions(ctx, client, conn, &from, &to)
	result.absorb(txResult)
	if err != nil {
		if markErr := s.markConnectionBroken(ctx, conn, err); markErr != nil {
			result.addError("failed to flag connection: %v", markErr)
		}
		return result, err
	}

	billResult, err := s.bills.SyncConnectionBills(ctx, client, conn)
	result.absorb(billResult)
	if err != nil {
		result.addError("bill sync aborted: %v", err)
	}

	invResult, err := s.investments.SyncConnectionInvestments(ctx, client, conn)
	result.absorb(invResult)
	if err != nil {
		result.addError("investment sync aborted: %v", err)
	}

	loanResult, err := s.loans.SyncConnectionLoans(ctx, client, conn)
	result.absorb(loanResult)
	if err != nil {
		result.addError("loan sync aborted: %v", err)
	}

	if err := s.connectionRepo.TouchLastSynced(ctx, conn.ID, time.Now()); err != nil {
		result.addError("failed to record sync time: %v", err)
	}
	return result, nil
}

// SyncAllUsers runs a full sync for every user holding a credential.
// Used by the scheduler; one failing user never blocks the rest.
func (s *Service) SyncAllUsers(ctx context.Context) ([]*SyncResult, error) {
	userIDs, err := s.credentialRepo.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with credentials: %w", err)
	}

	results := make([]*SyncResult, 0, len(userIDs))
	for _, userID := range userIDs {
		result, err := s.SyncUser(ctx, userID)
		if err != nil {
			logger.Get().Errorw("user sync failed", "user_id", userID, "error", err)
		}
		results = append(results, result)
	}
	return results, nil
}

// upsertConnection mirrors one provider item into the local connection
// table.
func (s *Service) upsertConnection(ctx context.Context, userID int64, item *ofclient.Item) (*connection.Connection, error) {
	name := item.Connector.Name
	if name == "" {
		name = "Unknown institution"
	}
	return s.connectionRepo.Upsert(ctx, connection.UpsertParams{
		UserID:          userID,
		ProviderItemID:  item.ID,
		InstitutionName: name,
		Status:          connection.StatusFromProvider(item.Status),
	})
}

// transactionWindow picks the pull range for a connection: since the
// last successful sync with a small overlap, or a wide first-sync
// window when the connection has never completed one.
func (s *Service) transactionWindow(conn *connection.Connection) (from, to time.Time) {
	to = time.Now()
	if conn.LastSyncedAt == nil {
		return to.Add(-firstSyncWindow), to
	}
	from = conn.LastSyncedAt.Add(-defaultTransactionWindow)
	return from, to
}

// markConnectionBroken flags a connection after an authentication
// failure and alerts the user.
func (s *Service) markConnectionBroken(ctx context.Context, conn *connection.Connection, cause error) error {
	if !errors.Is(cause, ofclient.ErrAuthentication) {
		return nil
	}
	if err := s.connectionRepo.UpdateStatus(ctx, conn.ProviderItemID, connection.StatusLoginError); err != nil {
		return fmt.Errorf("failed to mark connection login_error: %w", err)
	}
	conn.Status = connection.StatusLoginError
	s.notifyIfBroken(ctx, conn)
	return nil
}

// notifyIfBroken pushes a connection-health alert for login errors
func (s *Service) notifyIfBroken(ctx context.Context, conn *connection.Connection) {
	if s.notifications == nil || s.texts == nil {
		return
	}
	if conn.Status != connection.StatusLoginError {
		return
	}
	s.notifications.NotifyConnectionIssue(ctx, conn.UserID, conn.InstitutionName, s.texts.ConnectionError.Body)
}
