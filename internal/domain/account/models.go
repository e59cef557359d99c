package account

import (
	"errors"
	"time"
)

// Local account types
const (
	TypeChecking   = "checking"
	TypeSavings    = "savings"
	TypeCreditCard = "credit_card"
	TypeLoan       = "loan"
	TypeInvestment = "investment"
)

var validTypes = map[string]struct{}{
	TypeChecking:   {},
	TypeSavings:    {},
	TypeCreditCard: {},
	TypeLoan:       {},
	TypeInvestment: {},
}

// balanceEpsilon is the smallest balance move worth persisting during
// a sync; provider balances jitter below a cent between pulls.
const balanceEpsilon = 0.01

// Common ISO 4217 currency codes
var validCurrencies = map[string]struct{}{
	"BRL": {}, "USD": {}, "EUR": {}, "GBP": {}, "JPY": {},
	"CHF": {}, "CAD": {}, "AUD": {}, "MXN": {}, "ARS": {},
	"CLP": {}, "COP": {}, "PEN": {}, "UYU": {},
}

// Domain errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidType     = errors.New("invalid account type")
	ErrInvalidCurrency = errors.New("valid ISO 4217 currency is required")
	ErrForbidden       = errors.New("access forbidden")
)

// Account represents a financial account. Provider-linked accounts
// carry the connection id and provider account id; manually created
// accounts leave both nil and are never touched by a sync.
type Account struct {
	ID                int64      `json:"id"`
	UserID            int64      `json:"userId"`
	ConnectionID      *int64     `json:"connectionId"`
	ProviderAccountID *string    `json:"providerAccountId"`
	Name              string     `json:"name"`
	AccountType       string     `json:"accountType"`
	Currency          string     `json:"currency"`
	Balance           float64    `json:"balance"`
	SyncEnabled       bool       `json:"syncEnabled"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// NeedsSyncUpdate reports whether freshly pulled figures differ enough
// from the stored ones to be worth a write.
func (a *Account) NeedsSyncUpdate(balance float64, currency string) bool {
	if absDiff(a.Balance, balance) >= balanceEpsilon {
		return true
	}
	if currency != "" && currency != a.Currency {
		return true
	}
	return false
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// CreditCard holds the card-specific fields kept alongside a
// credit_card account.
type CreditCard struct {
	AccountID      int64      `json:"accountId"`
	CreditLimit    *float64   `json:"creditLimit"`
	AvailableLimit *float64   `json:"availableLimit"`
	Brand          string     `json:"brand"`
	DueDate        *time.Time `json:"dueDate"`
	CloseDate      *time.Time `json:"closeDate"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// CreateParams contains parameters for creating a new account
type CreateParams struct {
	UserID            int64
	ConnectionID      *int64
	ProviderAccountID *string
	Name              string
	AccountType       string
	Currency          string
	Balance           float64
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.Name == "" {
		return errors.New("account name is required")
	}
	if _, ok := validTypes[p.AccountType]; !ok {
		return ErrInvalidType
	}
	if p.Currency == "" {
		return errors.New("currency is required")
	}
	if _, ok := validCurrencies[p.Currency]; !ok {
		return ErrInvalidCurrency
	}
	return nil
}

// SyncParams contains the fields a provider sync may refresh on an
// existing account. Name is deliberately absent: user renames win over
// provider names.
type SyncParams struct {
	Balance  *float64
	Currency *string
}

// CreditCardParams contains the card fields written during a sync
type CreditCardParams struct {
	CreditLimit    *float64
	AvailableLimit *float64
	Brand          string
	DueDate        *time.Time
	CloseDate      *time.Time
}

// TypeFromProvider maps the provider's type/subtype pair onto the
// local account vocabulary. The subtype decides when present; the
// coarse type is the fallback.
func TypeFromProvider(providerType, subtype string) string {
	switch subtype {
	case "CHECKING_ACCOUNT":
		return TypeChecking
	case "SAVINGS_ACCOUNT":
		return TypeSavings
	case "CREDIT_CARD":
		return TypeCreditCard
	case "LOAN_ACCOUNT":
		return TypeLoan
	case "INVESTMENT_ACCOUNT":
		return TypeInvestment
	}
	switch providerType {
	case "CREDIT":
		return TypeCreditCard
	case "INVESTMENT":
		return TypeInvestment
	case "LOAN":
		return TypeLoan
	default:
		return TypeChecking
	}
}
