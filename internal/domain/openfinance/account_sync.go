package openfinance

import (
	"context"
	"fmt"

	"agrego/internal/domain/account"
	"agrego/internal/domain/connection"
	ofclient "agrego/internal/infrastructure/openfinance"
	"agrego/internal/shared/logger"
)

// AccountSyncService mirrors provider accounts into local account
// records, including the denormalized credit-card row for card
// accounts.
type AccountSyncService struct {
	accountRepo account.Repository
}

// NewAccountSyncService creates a new account sync service
func NewAccountSyncService(accountRepo account.Repository) *AccountSyncService {
	return &AccountSyncService{accountRepo: accountRepo}
}

// SyncConnectionAccounts pulls the accounts under one connection and
// creates or refreshes the local rows. User renames are preserved;
// only balance and currency are refreshed on existing accounts.
func (s *AccountSyncService) SyncConnectionAccounts(ctx context.Context, client ofclient.ClientInterface, conn *connection.Connection) (*SyncResult, error) {
	result := &SyncResult{UserID: conn.UserID, Errors: []string{}}

	apiAccounts, err := client.ListAccounts(ctx, conn.ProviderItemID)
	if err != nil {
		return result, fmt.Errorf("failed to fetch accounts for item %s: %w", conn.ProviderItemID, err)
	}
	result.Found = len(apiAccounts)

	for _, apiAccount := range apiAccounts {
		if err := s.syncAccount(ctx, conn, apiAccount, result); err != nil {
			result.addError("failed to sync account %s: %v", apiAccount.ID, err)
			logger.Get().Errorw("account sync failed",
				"user_id", conn.UserID, "provider_account_id", apiAccount.ID, "error", err)
		}
	}

	logger.Get().Infow("account sync complete",
		"user_id", conn.UserID, "item_id", conn.ProviderItemID,
		"found", result.Found, "created", result.Created, "updated", result.Updated,
		"errors", len(result.Errors))
	return result, nil
}

// syncAccount creates or refreshes a single account
func (s *AccountSyncService) syncAccount(ctx context.Context, conn *connection.Connection, apiAccount ofclient.Account, result *SyncResult) error {
	existing, err := s.accountRepo.GetByProviderAccountID(ctx, conn.UserID, apiAccount.ID)
	if err != nil {
		return fmt.Errorf("failed to look up account: %w", err)
	}

	localType := account.TypeFromProvider(apiAccount.Type, apiAccount.Subtype)

	var acc *account.Account
	if existing == nil {
		providerID := apiAccount.ID
		currency := apiAccount.CurrencyCode
		if currency == "" {
			currency = "BRL"
		}
		acc, err = s.accountRepo.Create(ctx, account.CreateParams{
			UserID:            conn.UserID,
			ConnectionID:      &conn.ID,
			ProviderAccountID: &providerID,
			Name:              apiAccount.Name,
			AccountType:       localType,
			Currency:          currency,
			Balance:           apiAccount.Balance,
		})
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		result.Created++
	} else {
		acc = existing
		if !existing.SyncEnabled {
			logger.Get().Debugw("account has sync disabled, leaving untouched",
				"user_id", conn.UserID, "account_id", existing.ID)
			result.Skipped++
			return nil
		}
		if !existing.NeedsSyncUpdate(apiAccount.Balance, apiAccount.CurrencyCode) {
			result.Skipped++
		} else {
			balance := apiAccount.Balance
			params := account.SyncParams{Balance: &balance}
			if apiAccount.CurrencyCode != "" {
				currency := apiAccount.CurrencyCode
				params.Currency = &currency
			}
			if err := s.accountRepo.UpdateFromSync(ctx, existing.ID, params); err != nil {
				return fmt.Errorf("failed to update account: %w", err)
			}
			result.Updated++
		}
	}

	if localType == account.TypeCreditCard && apiAccount.CreditData != nil {
		if err := s.syncCreditCard(ctx, acc.ID, apiAccount.CreditData); err != nil {
			return fmt.Errorf("failed to sync credit card data: %w", err)
		}
	}
	return nil
}

// syncCreditCard refreshes the card row kept alongside a credit_card
// account.
func (s *AccountSyncService) syncCreditCard(ctx context.Context, accountID int64, data *ofclient.CreditData) error {
	dueDate, err := data.DueDate()
	if err != nil {
		logger.Get().Warnw("unparseable card due date, keeping previous value",
			"account_id", accountID, "error", err)
	}
	closeDate, err := data.CloseDate()
	if err != nil {
		logger.Get().Warnw("unparseable card close date, keeping previous value",
			"account_id", accountID, "error", err)
	}

	return s.accountRepo.UpsertCreditCard(ctx, accountID, account.CreditCardParams{
		CreditLimit:    data.CreditLimit,
		AvailableLimit: data.AvailableCreditLimit,
		Brand:          data.Brand,
		DueDate:        dueDate,
		CloseDate:      closeDate,
	})
}
