package investment

import (
	"errors"
	"time"
)

// Local investment types
const (
	TypeFixedIncome = "fixed_income"
	TypeFund        = "fund"
	TypeEquity      = "equity"
	TypeETF         = "etf"
	TypeOther       = "other"
)

// valueEpsilon is the smallest current-value change worth persisting.
// Provider feeds jitter below a cent between pulls.
const valueEpsilon = 0.01

// Domain errors
var (
	ErrInvestmentNotFound = errors.New("investment not found")
	ErrNameRequired       = errors.New("investment name is required")
)

// Investment is a holding reported under a connection. Providers do
// not always assign ids to holdings, so the (name, purchase date) pair
// doubles as a best-effort natural key.
type Investment struct {
	ID                   int64      `json:"id"`
	UserID               int64      `json:"userId"`
	ConnectionID         int64      `json:"connectionId"`
	ProviderInvestmentID string     `json:"providerInvestmentId"`
	Name                 string     `json:"name"`
	InvestmentType       string     `json:"investmentType"`
	CurrentValue         float64    `json:"currentValue"`
	Quantity             *float64   `json:"quantity"`
	PurchaseDate         *time.Time `json:"purchaseDate"`
	Currency             string     `json:"currency"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// CreateParams contains parameters for creating an investment
type CreateParams struct {
	UserID               int64
	ConnectionID         int64
	ProviderInvestmentID string
	Name                 string
	InvestmentType       string
	CurrentValue         float64
	Quantity             *float64
	PurchaseDate         *time.Time
	Currency             string
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

// NeedsValueUpdate reports whether a freshly pulled value differs
// enough from the stored one to be worth a write.
func (i *Investment) NeedsValueUpdate(value float64) bool {
	diff := i.CurrentValue - value
	if diff < 0 {
		diff = -diff
	}
	return diff >= valueEpsilon
}

// TypeFromProvider maps the provider's investment type onto the local
// vocabulary.
func TypeFromProvider(providerType string) string {
	switch providerType {
	case "FIXED_INCOME", "COE", "SECURITY":
		return TypeFixedIncome
	case "MUTUAL_FUND":
		return TypeFund
	case "EQUITY":
		return TypeEquity
	case "ETF":
		return TypeETF
	default:
		return TypeOther
	}
}
