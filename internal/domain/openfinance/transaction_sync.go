package openfinance

import (
	"context"
	"fmt"
	"time"

	"agrego/internal/domain/account"
	"agrego/internal/domain/connection"
	"agrego/internal/domain/transaction"
	ofclient "agrego/internal/infrastructure/openfinance"
	"agrego/internal/shared/logger"
)

// TransactionSyncService ingests provider transactions into the local
// ledger. Identity is resolved by provider transaction id first, then
// by content hash, so a transaction seen through both pull sync and a
// webhook lands exactly once.
type TransactionSyncService struct {
	accountRepo     account.Repository
	transactionRepo transaction.Repository
}

// NewTransactionSyncService creates a new transaction sync service
func NewTransactionSyncService(accountRepo account.Repository, transactionRepo transaction.Repository) *TransactionSyncService {
	return &TransactionSyncService{
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
	}
}

// SyncConnectionTransactions pulls the transactions of every account
// under a connection for the given window. A failing account does not
// abort the connection.
func (s *TransactionSyncService) SyncConnectionTransactions(ctx context.Context, client ofclient.ClientInterface, conn *connection.Connection, from, to *time.Time) (*SyncResult, error) {
	result := &SyncResult{UserID: conn.UserID, Errors: []string{}}

	items, errs, err := client.GetAllItemTransactions(ctx, conn.ProviderItemID, from, to)
	result.Errors = append(result.Errors, errs...)
	if err != nil {
		return result, fmt.Errorf("failed to fetch transactions for item %s: %w", conn.ProviderItemID, err)
	}

	for _, item := range items {
		s.ingestAccountTransactions(ctx, conn, item.Account.ID, item.Transactions, result)
	}

	logger.Get().Infow("transaction sync complete",
		"user_id", conn.UserID, "item_id", conn.ProviderItemID,
		"found", result.Found, "created", result.Created, "updated", result.Updated,
		"skipped", result.Skipped, "errors", len(result.Errors))
	return result, nil
}

// IngestAccountTransactions processes a batch of raw transactions for
// one provider account. Used directly by the webhook router, which
// already knows which account the event belongs to.
func (s *TransactionSyncService) IngestAccountTransactions(ctx context.Context, conn *connection.Connection, providerAccountID string, txns []ofclient.Transaction) *SyncResult {
	result := &SyncResult{UserID: conn.UserID, Errors: []string{}}
	s.ingestAccountTransactions(ctx, conn, providerAccountID, txns, result)
	return result
}

func (s *TransactionSyncService) ingestAccountTransactions(ctx context.Context, conn *connection.Connection, providerAccountID string, txns []ofclient.Transaction, result *SyncResult) {
	result.Found += len(txns)

	localAccount, err := s.accountRepo.GetByProviderAccountID(ctx, conn.UserID, providerAccountID)
	if err != nil {
		result.addError("failed to look up account %s: %v", providerAccountID, err)
		return
	}
	if localAccount == nil {
		// Account sync has not seen this account yet; skip rather than
		// invent an orphan row.
		logger.Get().Warnw("skipping transactions for unknown account",
			"user_id", conn.UserID, "provider_account_id", providerAccountID, "count", len(txns))
		result.Skipped += len(txns)
		return
	}
	if !localAccount.SyncEnabled {
		logger.Get().Infow("skipping transactions for sync-disabled account",
			"user_id", conn.UserID, "account_id", localAccount.ID, "count", len(txns))
		result.Skipped += len(txns)
		return
	}

	for i := range txns {
		if err := s.ingestTransaction(ctx, conn.UserID, localAccount, &txns[i], result); err != nil {
			result.addError("failed to ingest transaction %s: %v", txns[i].ID, err)
			logger.Get().Errorw("transaction ingest failed",
				"user_id", conn.UserID, "provider_transaction_id", txns[i].ID, "error", err)
		}
	}
}

// ingestTransaction resolves identity and creates or refreshes one
// ledger entry.
func (s *TransactionSyncService) ingestTransaction(ctx context.Context, userID int64, localAccount *account.Account, apiTx *ofclient.Transaction, result *SyncResult) error {
	postedAt, err := apiTx.PostedDate()
	if err != nil {
		return fmt.Errorf("failed to parse date: %w", err)
	}
	if postedAt == nil {
		return fmt.Errorf("transaction date is required")
	}

	hash := transaction.Hash(localAccount.ID, apiTx.Amount, *postedAt, apiTx.Description)
	category := transaction.MapCategory(apiTx.Category, apiTx.Description)
	status := statusFromProvider(apiTx.Status)

	existing, err := s.transactionRepo.GetByProviderID(ctx, userID, apiTx.ID)
	if err != nil {
		return fmt.Errorf("failed to check provider id: %w", err)
	}
	if existing == nil {
		existing, err = s.transactionRepo.GetByHash(ctx, userID, hash)
		if err != nil {
			return fmt.Errorf("failed to check content hash: %w", err)
		}
	}

	if existing != nil {
		// Identity matched; only status and category may move, and the
		// provider id is attached when the row predates it.
		params := transaction.SyncUpdateParams{}
		changed := false
		if existing.Status != status {
			params.Status = &status
			changed = true
		}
		if existing.Category != category && existing.Category == transaction.CategoryOther {
			params.Category = &category
			changed = true
		}
		if existing.ProviderTransactionID == nil {
			providerID := apiTx.ID
			params.ProviderTransactionID = &providerID
			changed = true
		}
		if !changed {
			result.Skipped++
			return nil
		}
		if err := s.transactionRepo.UpdateFromSync(ctx, existing.ID, params); err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}
		result.Updated++
		return nil
	}

	providerID := apiTx.ID
	params := transaction.CreateParams{
		UserID:                userID,
		AccountID:             localAccount.ID,
		ProviderTransactionID: &providerID,
		Amount:                apiTx.Amount,
		Description:           apiTx.Description,
		Category:              category,
		TransactionType:       transaction.MapType(apiTx.Amount, category, apiTx.Type),
		Status:                status,
		Date:                  *postedAt,
		Hash:                  hash,
	}
	if meta := apiTx.CreditCardMetadata; meta != nil {
		params.InstallmentNumber = meta.InstallmentNumber
		params.TotalInstallments = meta.TotalInstallments
	}

	if _, err := s.transactionRepo.Create(ctx, params); err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	result.Created++
	return nil
}

func statusFromProvider(providerStatus string) string {
	if providerStatus == "PENDING" {
		return transaction.StatusPending
	}
	return transaction.StatusPosted
}
