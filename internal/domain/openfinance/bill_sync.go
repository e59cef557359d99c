package openfinance

import (
	"context"
	"errors"
	"fmt"

	"agrego/internal/domain/account"
	"agrego/internal/domain/bill"
	"agrego/internal/domain/connection"
	ofclient "agrego/internal/infrastructure/openfinance"
	"agrego/internal/shared/logger"
)

// BillSyncService mirrors credit-card statements and their line items.
// The provider grants the bill scope per account, so a 403 on one card
// is an expected steady state and degrades to zero records.
type BillSyncService struct {
	accountRepo account.Repository
	billRepo    bill.Repository
}

// NewBillSyncService creates a new bill sync service
func NewBillSyncService(accountRepo account.Repository, billRepo bill.Repository) *BillSyncService {
	return &BillSyncService{accountRepo: accountRepo, billRepo: billRepo}
}

// SyncConnectionBills pulls statements for every credit-card account
// under a connection.
func (s *BillSyncService) SyncConnectionBills(ctx context.Context, client ofclient.ClientInterface, conn *connection.Connection) (*SyncResult, error) {
	result := &SyncResult{UserID: conn.UserID, Errors: []string{}}

	accounts, err := s.accountRepo.ListByConnectionID(ctx, conn.ID)
	if err != nil {
		return result, fmt.Errorf("failed to list connection accounts: %w", err)
	}

	for _, acc := range accounts {
		if acc.AccountType != account.TypeCreditCard || acc.ProviderAccountID == nil || !acc.SyncEnabled {
			continue
		}
		if err := s.syncAccountBills(ctx, client, conn, acc, result); err != nil {
			if errors.Is(err, ofclient.ErrAuthentication) {
				return result, err
			}
			result.addError("failed to sync bills for account %d: %v", acc.ID, err)
			logger.Get().Errorw("bill sync failed",
				"user_id", conn.UserID, "account_id", acc.ID, "error", err)
		}
	}

	logger.Get().Infow("bill sync complete",
		"user_id", conn.UserID, "item_id", conn.ProviderItemID,
		"found", result.Found, "created", result.Created, "updated", result.Updated,
		"errors", len(result.Errors))
	return result, nil
}

// syncAccountBills pulls and upserts the statements of one card
func (s *BillSyncService) syncAccountBills(ctx context.Context, client ofclient.ClientInterface, conn *connection.Connection, acc *account.Account, result *SyncResult) error {
	apiBills, err := client.ListBills(ctx, *acc.ProviderAccountID)
	if err != nil {
		if errors.Is(err, ofclient.ErrPermissionDenied) {
			logger.Get().Warnw("bill scope not granted for account, treating as empty",
				"user_id", conn.UserID, "account_id", acc.ID)
			return nil
		}
		return err
	}
	result.Found += len(apiBills)

	for i := range apiBills {
		if err := s.syncBill(ctx, client, conn, acc, &apiBills[i], result); err != nil {
			result.addError("failed to sync bill %s: %v", apiBills[i].ID, err)
		}
	}
	return nil
}

// syncBill upserts one statement and replaces its line items
func (s *BillSyncService) syncBill(ctx context.Context, client ofclient.ClientInterface, conn *connection.Connection, acc *account.Account, apiBill *ofclient.Bill, result *SyncResult) error {
	dueDate, err := apiBill.ParsedDueDate()
	if err != nil {
		return fmt.Errorf("failed to parse due date: %w", err)
	}
	if dueDate == nil {
		return fmt.Errorf("bill due date is required")
	}
	closeDate, err := apiBill.ParsedCloseDate()
	if err != nil {
		logger.Get().Warnw("unparseable bill close date, storing without it",
			"bill_id", apiBill.ID, "error", err)
		closeDate = nil
	}

	stored, created, err := s.billRepo.Upsert(ctx, bill.UpsertParams{
		UserID:         conn.UserID,
		AccountID:      acc.ID,
		ProviderBillID: apiBill.ID,
		DueDate:        *dueDate,
		CloseDate:      closeDate,
		TotalAmount:    apiBill.TotalAmount,
		MinimumPayment: apiBill.MinimumPayment,
		PaidAmount:     apiBill.PaidAmount,
		Status:         bill.StatusFromProvider(apiBill.Status),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert bill: %w", err)
	}
	if created {
		result.Created++
	} else {
		result.Updated++
	}

	items, err := client.ListBillTransactions(ctx, apiBill.ID)
	if err != nil {
		if errors.Is(err, ofclient.ErrPermissionDenied) {
			return nil
		}
		return fmt.Errorf("failed to fetch bill line items: %w", err)
	}

	params := make([]bill.LineItemParams, 0, len(items))
	for i := range items {
		date, err := items[i].PostedDate()
		if err != nil {
			date = nil
		}
		params = append(params, bill.LineItemParams{
			ProviderID:        items[i].ID,
			Description:       items[i].Description,
			Amount:            items[i].Amount,
			Date:              date,
			InstallmentNumber: items[i].InstallmentNumber,
			TotalInstallments: items[i].TotalInstallments,
		})
	}
	if err := s.billRepo.ReplaceLineItems(ctx, stored.ID, params); err != nil {
		return fmt.Errorf("failed to store bill line items: %w", err)
	}
	return nil
}
