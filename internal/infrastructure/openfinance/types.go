package openfinance

import (
	"fmt"
	"time"
)

// page is the provider's list envelope shared by every collection
// endpoint.
type page[T any] struct {
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	Page       int `json:"page"`
	Results    []T `json:"results"`
}

type authRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type authResponse struct {
	APIKey string `json:"apiKey" validate:"required"`
	// ExpiresIn is the declared lifetime in seconds; 0 means the
	// provider did not declare one.
	ExpiresIn int `json:"expiresIn"`
}

type connectTokenRequest struct {
	ItemID  string              `json:"itemId,omitempty"`
	Options ConnectTokenOptions `json:"options,omitempty"`
}

type connectTokenResponse struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

// ConnectTokenOptions narrows the scope of a connect token handed to
// the client-side linking widget.
type ConnectTokenOptions struct {
	ClientUserID string `json:"clientUserId,omitempty"`
	WebhookURL   string `json:"webhookUrl,omitempty"`
}

// Item is one provider-side bank connection.
type Item struct {
	ID              string `json:"id" validate:"required"`
	Status          string `json:"status"` // UPDATED, LOGIN_ERROR, OUTDATED, WAITING_USER_INPUT
	ExecutionStatus string `json:"executionStatus"`
	Connector       struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"connector"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Account is a bank or credit-card account under an item.
type Account struct {
	ID           string      `json:"id" validate:"required"`
	ItemID       string      `json:"itemId" validate:"required"`
	Type         string      `json:"type"`    // BANK or CREDIT
	Subtype      string      `json:"subtype"` // CHECKING_ACCOUNT, SAVINGS_ACCOUNT, CREDIT_CARD, LOAN_ACCOUNT, INVESTMENT_ACCOUNT
	Name         string      `json:"name"`
	Number       string      `json:"number"`
	Balance      float64     `json:"balance"`
	CurrencyCode string      `json:"currencyCode"`
	BankData     *BankData   `json:"bankData,omitempty"`
	CreditData   *CreditData `json:"creditData,omitempty"`
}

// BankData carries checking/savings specific fields.
type BankData struct {
	TransferNumber string   `json:"transferNumber"`
	ClosingBalance *float64 `json:"closingBalance"`
}

// CreditData carries credit-card specific fields.
type CreditData struct {
	Brand                string   `json:"brand"`
	Level                string   `json:"level"`
	CreditLimit          *float64 `json:"creditLimit"`
	AvailableCreditLimit *float64 `json:"availableCreditLimit"`
	MinimumPayment       *float64 `json:"minimumPayment"`
	BalanceDueDate       string   `json:"balanceDueDate"`
	BalanceCloseDate     string   `json:"balanceCloseDate"`
}

// DueDate parses the balance due date if present.
func (c *CreditData) DueDate() (*time.Time, error) {
	return parseDate(c.BalanceDueDate, "balanceDueDate")
}

// CloseDate parses the balance close date if present.
func (c *CreditData) CloseDate() (*time.Time, error) {
	return parseDate(c.BalanceCloseDate, "balanceCloseDate")
}

// Transaction is a single ledger entry as the provider reports it.
type Transaction struct {
	ID          string  `json:"id" validate:"required"`
	AccountID   string  `json:"accountId"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date" validate:"required"`
	Category    *string `json:"category"`
	CategoryID  *string `json:"categoryId"`
	Type        string  `json:"type"`   // DEBIT or CREDIT
	Status      string  `json:"status"` // PENDING or POSTED
	CurrencyCode string `json:"currencyCode"`

	CreditCardMetadata *CreditCardMetadata `json:"creditCardMetadata,omitempty"`
}

// PostedDate parses the transaction date. The provider mixes RFC3339
// and bare date formats across connectors.
func (t *Transaction) PostedDate() (*time.Time, error) {
	return parseDate(t.Date, "date")
}

// CreditCardMetadata carries installment details on card transactions.
type CreditCardMetadata struct {
	InstallmentNumber *int   `json:"installmentNumber"`
	TotalInstallments *int   `json:"totalInstallments"`
	PurchaseDate      string `json:"purchaseDate"`
}

// Bill is one credit-card statement period.
type Bill struct {
	ID             string   `json:"id" validate:"required"`
	AccountID      string   `json:"accountId"`
	DueDate        string   `json:"dueDate" validate:"required"`
	CloseDate      string   `json:"closeDate"`
	TotalAmount    float64  `json:"totalAmount"`
	MinimumPayment *float64 `json:"minimumPayment"`
	PaidAmount     *float64 `json:"paidAmount"`
	Status         string   `json:"status"` // OPEN, CLOSED, OVERDUE, PAID
}

// ParsedDueDate parses the statement due date.
func (b *Bill) ParsedDueDate() (*time.Time, error) {
	return parseDate(b.DueDate, "dueDate")
}

// ParsedCloseDate parses the statement close date if present.
func (b *Bill) ParsedCloseDate() (*time.Time, error) {
	return parseDate(b.CloseDate, "closeDate")
}

// BillTransaction is one installment-aware line item of a bill.
type BillTransaction struct {
	ID                string  `json:"id" validate:"required"`
	Description       string  `json:"description"`
	Amount            float64 `json:"amount"`
	Date              string  `json:"date"`
	InstallmentNumber *int    `json:"installmentNumber"`
	TotalInstallments *int    `json:"totalInstallments"`
}

// PostedDate parses the line item date if present.
func (t *BillTransaction) PostedDate() (*time.Time, error) {
	return parseDate(t.Date, "date")
}

// Investment is a holding reported for an account.
type Investment struct {
	ID           string  `json:"id"`
	Name         string  `json:"name" validate:"required"`
	Type         string  `json:"type"` // FIXED_INCOME, MUTUAL_FUND, EQUITY, ETF, COE, SECURITY
	Balance      float64 `json:"balance"`
	Value        *float64 `json:"value"`
	Quantity     *float64 `json:"quantity"`
	Date         string  `json:"date"`
	CurrencyCode string  `json:"currencyCode"`
}

// PurchaseDate parses the acquisition date if present.
func (i *Investment) PurchaseDate() (*time.Time, error) {
	return parseDate(i.Date, "date")
}

// Loan is a liability reported for an item.
type Loan struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"productName" validate:"required"`
	PrincipalAmount       float64  `json:"principalAmount"`
	OutstandingBalance    float64  `json:"outstandingBalance"`
	InstallmentAmount     *float64 `json:"installmentAmount"`
	RemainingInstallments *int     `json:"remainingInstallments"`
	TotalInstallments     *int     `json:"totalInstallments"`
	InterestRate          *float64 `json:"interestRate"`
	ContractDate          string   `json:"contractDate"`
	NextPaymentDate       string   `json:"nextPaymentDate"`
	CurrencyCode          string   `json:"currencyCode"`
}

// StartDate parses the contract date if present.
func (l *Loan) StartDate() (*time.Time, error) {
	return parseDate(l.ContractDate, "contractDate")
}

// NextDueDate parses the next payment date if present.
func (l *Loan) NextDueDate() (*time.Time, error) {
	return parseDate(l.NextPaymentDate, "nextPaymentDate")
}

// parseDate accepts the date formats the provider mixes across
// connectors: RFC3339 with and without nanoseconds, bare dates and
// "2006-01-02 15:04:05".
func parseDate(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("failed to parse %s '%s'", field, value)
}
