package transaction

import (
	"errors"
	"time"
)

// Local transaction types
const (
	TypeIncome   = "income"
	TypeExpense  = "expense"
	TypeTransfer = "transfer"
)

// Transaction statuses
const (
	StatusPending = "pending"
	StatusPosted  = "posted"
)

// Domain errors
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrForbidden           = errors.New("access forbidden")
)

// Transaction represents a single ledger entry. Synced entries carry
// the provider transaction id; the content hash identifies the entry
// across channels regardless of where it came from.
type Transaction struct {
	ID                    int64     `json:"id"`
	UserID                int64     `json:"userId"`
	AccountID             int64     `json:"accountId"`
	ProviderTransactionID *string   `json:"providerTransactionId"`
	Amount                float64   `json:"amount"`
	Description           string    `json:"description"`
	Category              string    `json:"category"`
	TransactionType       string    `json:"transactionType"`
	Status                string    `json:"status"`
	Date                  time.Time `json:"date"`
	Hash                  string    `json:"-"`
	InstallmentNumber     *int      `json:"installmentNumber,omitempty"`
	TotalInstallments     *int      `json:"totalInstallments,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// CreateParams contains parameters for creating a transaction during a
// sync. The hash is computed by the caller from the identity fields.
type CreateParams struct {
	UserID                int64
	AccountID             int64
	ProviderTransactionID *string
	Amount                float64
	Description           string
	Category              string
	TransactionType       string
	Status                string
	Date                  time.Time
	Hash                  string
	InstallmentNumber     *int
	TotalInstallments     *int
}

// Validate checks create parameters against domain rules
func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.AccountID <= 0 {
		return errors.New("valid account ID is required")
	}
	if p.Date.IsZero() {
		return errors.New("transaction date is required")
	}
	if p.Hash == "" {
		return errors.New("transaction hash is required")
	}
	switch p.TransactionType {
	case TypeIncome, TypeExpense, TypeTransfer:
	default:
		return ErrInvalidType
	}
	return nil
}

// SyncUpdateParams carries the mutable fields a re-synced transaction
// may refresh on an existing row.
type SyncUpdateParams struct {
	Status                *string
	Category              *string
	ProviderTransactionID *string
}
