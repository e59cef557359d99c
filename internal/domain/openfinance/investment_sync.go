package openfinance

import (
	"context"
	"errors"
	"fmt"

	"agrego/internal/domain/account"
	"agrego/internal/domain/connection"
	"agrego/internal/domain/investment"
	ofclient "agrego/internal/infrastructure/openfinance"
	"agrego/internal/shared/logger"
)

// InvestmentSyncService mirrors provider holdings. Holdings may come
// without a provider id, so matching falls back to the (name, purchase
// date) natural key.
type InvestmentSyncService struct {
	accountRepo    account.Repository
	investmentRepo investment.Repository
}

// NewInvestmentSyncService creates a new investment sync service
func NewInvestmentSyncService(accountRepo account.Repository, investmentRepo investment.Repository) *InvestmentSyncService {
	return &InvestmentSyncService{accountRepo: accountRepo, investmentRepo: investmentRepo}
}

// SyncConnectionInvestments pulls holdings for every investment
// account under a connection. A 403 means the scope was not granted
// and degrades to zero records.
func (s *InvestmentSyncService) SyncConnectionInvestments(ctx context.Context, client ofclient.ClientInterface, conn *connection.Connection) (*SyncResult, error) {
	result := &SyncResult{UserID: conn.UserID, Errors: []string{}}

	accounts, err := s.accountRepo.ListByConnectionID(ctx, conn.ID)
	if err != nil {
		return result, fmt.Errorf("failed to list connection accounts: %w", err)
	}

	for _, acc := range accounts {
		if acc.AccountType != account.TypeInvestment || acc.ProviderAccountID == nil || !acc.SyncEnabled {
			continue
		}

		holdings, err := client.ListInvestments(ctx, *acc.ProviderAccountID)
		if err != nil {
			if errors.Is(err, ofclient.ErrPermissionDenied) {
				logger.Get().Warnw("investment scope not granted for account, treating as empty",
					"user_id", conn.UserID, "account_id", acc.ID)
				continue
			}
			if errors.Is(err, ofclient.ErrAuthentication) {
				return result, err
			}
			result.addError("failed to fetch investments for account %d: %v", acc.ID, err)
			continue
		}
		result.Found += len(holdings)

		for i := range holdings {
			if err := s.syncInvestment(ctx, conn, &holdings[i], result); err != nil {
				result.addError("failed to sync investment %q: %v", holdings[i].Name, err)
			}
		}
	}

	logger.Get().Infow("investment sync complete",
		"user_id", conn.UserID, "item_id", conn.ProviderItemID,
		"found", result.Found, "created", result.Created, "updated", result.Updated,
		"skipped", result.Skipped, "errors", len(result.Errors))
	return result, nil
}

// syncInvestment resolves identity and creates or refreshes one
// holding.
func (s *InvestmentSyncService) syncInvestment(ctx context.Context, conn *connection.Connection, holding *ofclient.Investment, result *SyncResult) error {
	purchaseDate, err := holding.PurchaseDate()
	if err != nil {
		logger.Get().Warnw("unparseable investment date, matching without it",
			"name", holding.Name, "error", err)
		purchaseDate = nil
	}

	var existing *investment.Investment
	if holding.ID != "" {
		existing, err = s.investmentRepo.GetByProviderID(ctx, conn.UserID, holding.ID)
		if err != nil {
			return fmt.Errorf("failed to check provider id: %w", err)
		}
	}
	if existing == nil {
		existing, err = s.investmentRepo.FindByNaturalKey(ctx, conn.UserID, holding.Name, purchaseDate)
		if err != nil {
			return fmt.Errorf("failed to match natural key: %w", err)
		}
	}

	value := holding.Balance
	if holding.Value != nil {
		value = *holding.Value
	}

	if existing != nil {
		if !existing.NeedsValueUpdate(value) {
			result.Skipped++
			return nil
		}
		if err := s.investmentRepo.UpdateValue(ctx, existing.ID, value, holding.Quantity); err != nil {
			return fmt.Errorf("failed to update investment value: %w", err)
		}
		result.Updated++
		return nil
	}

	currency := holding.CurrencyCode
	if currency == "" {
		currency = "BRL"
	}
	_, err = s.investmentRepo.Create(ctx, investment.CreateParams{
		UserID:               conn.UserID,
		ConnectionID:         conn.ID,
		ProviderInvestmentID: holding.ID,
		Name:                 holding.Name,
		InvestmentType:       investment.TypeFromProvider(holding.Type),
		CurrentValue:         value,
		Quantity:             holding.Quantity,
		PurchaseDate:         purchaseDate,
		Currency:             currency,
	})
	if err != nil {
		return fmt.Errorf("failed to create investment: %w", err)
	}
	result.Created++
	return nil
}
