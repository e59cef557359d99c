package bill

import (
	"errors"
	"time"
)

// Bill statuses
const (
	StatusOpen    = "open"
	StatusClosed  = "closed"
	StatusOverdue = "overdue"
	StatusPaid    = "paid"
)

var validStatuses = map[string]struct{}{
	StatusOpen:    {},
	StatusClosed:  {},
	StatusOverdue: {},
	StatusPaid:    {},
}

// Domain errors
var (
	ErrBillNotFound   = errors.New("bill not found")
	ErrInvalidStatus  = errors.New("invalid bill status")
	ErrDueDateMissing = errors.New("bill due date is required")
)

// Bill is one credit-card statement period for an account.
type Bill struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"userId"`
	AccountID      int64      `json:"accountId"`
	ProviderBillID string     `json:"providerBillId"`
	DueDate        time.Time  `json:"dueDate"`
	CloseDate      *time.Time `json:"closeDate"`
	TotalAmount    float64    `json:"totalAmount"`
	MinimumPayment *float64   `json:"minimumPayment"`
	PaidAmount     *float64   `json:"paidAmount"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// LineItem is one installment-aware entry on a bill.
type LineItem struct {
	ID                int64      `json:"id"`
	BillID            int64      `json:"billId"`
	ProviderID        string     `json:"providerId"`
	Description       string     `json:"description"`
	Amount            float64    `json:"amount"`
	Date              *time.Time `json:"date"`
	InstallmentNumber *int       `json:"installmentNumber"`
	TotalInstallments *int       `json:"totalInstallments"`
}

// UpsertParams carries the fields written when a bill is created or
// refreshed from provider state.
type UpsertParams struct {
	UserID         int64
	AccountID      int64
	ProviderBillID string
	DueDate        time.Time
	CloseDate      *time.Time
	TotalAmount    float64
	MinimumPayment *float64
	PaidAmount     *float64
	Status         string
}

// Validate checks upsert parameters against domain rules
func (p UpsertParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.AccountID <= 0 {
		return errors.New("valid account ID is required")
	}
	if p.ProviderBillID == "" {
		return errors.New("provider bill id is required")
	}
	if p.DueDate.IsZero() {
		return ErrDueDateMissing
	}
	if _, ok := validStatuses[p.Status]; !ok {
		return ErrInvalidStatus
	}
	return nil
}

// LineItemParams carries one line item written during a bill sync
type LineItemParams struct {
	ProviderID        string
	Description       string
	Amount            float64
	Date              *time.Time
	InstallmentNumber *int
	TotalInstallments *int
}

// StatusFromProvider maps the provider's bill status onto the local
// vocabulary. Unknown statuses are treated as open.
func StatusFromProvider(providerStatus string) string {
	switch providerStatus {
	case "CLOSED":
		return StatusClosed
	case "OVERDUE":
		return StatusOverdue
	case "PAID":
		return StatusPaid
	default:
		return StatusOpen
	}
}
