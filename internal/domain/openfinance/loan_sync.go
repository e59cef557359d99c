package openfinance

import (
	"context"
	"errors"
	"fmt"

	"agrego/internal/domain/connection"
	"agrego/internal/domain/loan"
	ofclient "agrego/internal/infrastructure/openfinance"
	"agrego/internal/shared/logger"
)

// LoanSyncService mirrors provider liabilities. Identity is the
// provider loan id when present, else the (name, principal, start
// date) natural key.
type LoanSyncService struct {
	loanRepo loan.Repository
}

// NewLoanSyncService creates a new loan sync service
func NewLoanSyncService(loanRepo loan.Repository) *LoanSyncService {
	return &LoanSyncService{loanRepo: loanRepo}
}

// SyncConnectionLoans pulls the liabilities reported for a connection.
func (s *LoanSyncService) SyncConnectionLoans(ctx context.Context, client ofclient.ClientInterface, conn *connection.Connection) (*SyncResult, error) {
	result := &SyncResult{UserID: conn.UserID, Errors: []string{}}

	apiLoans, err := client.ListLoans(ctx, conn.ProviderItemID)
	if err != nil {
		if errors.Is(err, ofclient.ErrPermissionDenied) {
			logger.Get().Warnw("loan scope not granted for item, treating as empty",
				"user_id", conn.UserID, "item_id", conn.ProviderItemID)
			return result, nil
		}
		return result, fmt.Errorf("failed to fetch loans for item %s: %w", conn.ProviderItemID, err)
	}
	result.Found = len(apiLoans)

	for i := range apiLoans {
		if err := s.syncLoan(ctx, conn, &apiLoans[i], result); err != nil {
			result.addError("failed to sync loan %q: %v", apiLoans[i].Name, err)
			logger.Get().Errorw("loan sync failed",
				"user_id", conn.UserID, "loan", apiLoans[i].Name, "error", err)
		}
	}

	logger.Get().Infow("loan sync complete",
		"user_id", conn.UserID, "item_id", conn.ProviderItemID,
		"found", result.Found, "created", result.Created, "updated", result.Updated,
		"skipped", result.Skipped, "errors", len(result.Errors))
	return result, nil
}

// syncLoan resolves identity and creates or refreshes one liability
func (s *LoanSyncService) syncLoan(ctx context.Context, conn *connection.Connection, apiLoan *ofclient.Loan, result *SyncResult) error {
	startDate, err := apiLoan.StartDate()
	if err != nil {
		logger.Get().Warnw("unparseable loan contract date, matching without it",
			"loan", apiLoan.Name, "error", err)
		startDate = nil
	}
	nextPayment, err := apiLoan.NextDueDate()
	if err != nil {
		nextPayment = nil
	}

	var existing *loan.Loan
	if apiLoan.ID != "" {
		existing, err = s.loanRepo.GetByProviderLoanID(ctx, conn.UserID, apiLoan.ID)
		if err != nil {
			return fmt.Errorf("failed to check provider id: %w", err)
		}
	}
	if existing == nil {
		existing, err = s.loanRepo.FindByNaturalKey(ctx, conn.UserID, apiLoan.Name, apiLoan.PrincipalAmount, startDate)
		if err != nil {
			return fmt.Errorf("failed to match natural key: %w", err)
		}
	}

	if existing != nil {
		if !existing.NeedsUpdate(apiLoan.OutstandingBalance, apiLoan.InterestRate, apiLoan.RemainingInstallments) {
			result.Skipped++
			return nil
		}
		balance := apiLoan.OutstandingBalance
		err := s.loanRepo.Update(ctx, existing.ID, loan.UpdateParams{
			OutstandingBalance:    &balance,
			InstallmentAmount:     apiLoan.InstallmentAmount,
			RemainingInstallments: apiLoan.RemainingInstallments,
			InterestRate:          apiLoan.InterestRate,
			NextPaymentDate:       nextPayment,
		})
		if err != nil {
			return fmt.Errorf("failed to update loan: %w", err)
		}
		result.Updated++
		return nil
	}

	currency := apiLoan.CurrencyCode
	if currency == "" {
		currency = "BRL"
	}
	_, err = s.loanRepo.Create(ctx, loan.CreateParams{
		UserID:                conn.UserID,
		ConnectionID:          conn.ID,
		ProviderLoanID:        apiLoan.ID,
		Name:                  apiLoan.Name,
		PrincipalAmount:       apiLoan.PrincipalAmount,
		OutstandingBalance:    apiLoan.OutstandingBalance,
		InstallmentAmount:     apiLoan.InstallmentAmount,
		RemainingInstallments: apiLoan.RemainingInstallments,
		TotalInstallments:     apiLoan.TotalInstallments,
		InterestRate:          apiLoan.InterestRate,
		StartDate:             startDate,
		NextPaymentDate:       nextPayment,
		Currency:              currency,
	})
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	result.Created++
	return nil
}
