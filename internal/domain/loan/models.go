package loan

import (
	"errors"
	"time"
)

// Smallest changes worth persisting during a sync. Balances jitter
// below a cent between pulls; rates below a tenth of a basis point.
const (
	balanceEpsilon = 0.01
	rateEpsilon    = 0.001
)

// Domain errors
var (
	ErrLoanNotFound = errors.New("loan not found")
	ErrNameRequired = errors.New("loan name is required")
)

// Loan is a liability reported under a connection. When the provider
// assigns no loan id, the (name, principal, start date) triple is the
// best-effort natural key.
type Loan struct {
	ID                    int64      `json:"id"`
	UserID                int64      `json:"userId"`
	ConnectionID          int64      `json:"connectionId"`
	ProviderLoanID        string     `json:"providerLoanId"`
	Name                  string     `json:"name"`
	PrincipalAmount       float64    `json:"principalAmount"`
	OutstandingBalance    float64    `json:"outstandingBalance"`
	InstallmentAmount     *float64   `json:"installmentAmount"`
	RemainingInstallments *int       `json:"remainingInstallments"`
	TotalInstallments     *int       `json:"totalInstallments"`
	InterestRate          *float64   `json:"interestRate"`
	StartDate             *time.Time `json:"startDate"`
	NextPaymentDate       *time.Time `json:"nextPaymentDate"`
	Currency              string     `json:"currency"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// CreateParams contains parameters for creating a loan
type CreateParams struct {
	UserID                int64
	ConnectionID          int64
	ProviderLoanID        string
	Name                  string
	PrincipalAmount       float64
	OutstandingBalance    float64
	InstallmentAmount     *float64
	RemainingInstallments *int
	TotalInstallments     *int
	InterestRate          *float64
	StartDate             *time.Time
	NextPaymentDate       *time.Time
	Currency              string
}

// Validate checks create parameters against domain rules
func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// UpdateParams carries the fields a re-sync may refresh on an existing
// loan.
type UpdateParams struct {
	OutstandingBalance    *float64
	InstallmentAmount     *float64
	RemainingInstallments *int
	InterestRate          *float64
	NextPaymentDate       *time.Time
}

// NeedsUpdate reports whether freshly pulled figures differ enough
// from the stored ones to be worth a write.
func (l *Loan) NeedsUpdate(outstandingBalance float64, interestRate *float64, remainingInstallments *int) bool {
	if absDiff(l.OutstandingBalance, outstandingBalance) >= balanceEpsilon {
		return true
	}
	if interestRate != nil {
		if l.InterestRate == nil || absDiff(*l.InterestRate, *interestRate) >= rateEpsilon {
			return true
		}
	}
	if remainingInstallments != nil {
		if l.RemainingInstallments == nil || *l.RemainingInstallments != *remainingInstallments {
			return true
		}
	}
	return false
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
