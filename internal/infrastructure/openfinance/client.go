// Package openfinance implements the authenticated, rate-limited client
// for the Open Finance provider's REST API.
package openfinance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"agrego/internal/shared/logger"
)

const (
	headerAPIKey = "X-API-KEY"

	// defaultPageSize is the provider's maximum transactions page size.
	defaultPageSize = 500
)

// ItemTransactions aggregates the transactions fetched for one account
// of an item during a fan-out pull.
type ItemTransactions struct {
	Account      Account
	Transactions []Transaction
}

// ClientInterface is the provider gateway surface consumed by the
// entity syncers.
type ClientInterface interface {
	ConnectToken(ctx context.Context, itemID string, opts ConnectTokenOptions) (string, error)
	ListItems(ctx context.Context) ([]Item, error)
	GetItem(ctx context.Context, itemID string) (*Item, error)
	ListAccounts(ctx context.Context, itemID string) ([]Account, error)
	ListTransactions(ctx context.Context, accountID string, from, to *time.Time, pageNum, pageSize int) ([]Transaction, int, error)
	ListAllTransactions(ctx context.Context, accountID string, from, to *time.Time) ([]Transaction, error)
	ListBills(ctx context.Context, accountID string) ([]Bill, error)
	ListBillTransactions(ctx context.Context, billID string) ([]BillTransaction, error)
	ListInvestments(ctx context.Context, accountID string) ([]Investment, error)
	ListLoans(ctx context.Context, itemID string) ([]Loan, error)
	GetAllItemTransactions(ctx context.Context, itemID string, from, to *time.Time) ([]ItemTransactions, []string, error)
}

// Client is the typed gateway over the rate-limited transport. One
// Client carries one user's token state; build a fresh Client per user.
type Client struct {
	transport *Transport
	tokens    *TokenManager
	validate  *validator.Validate
}

var _ ClientInterface = (*Client)(nil)

// NewClient builds a gateway for one credential pair.
func NewClient(transport *Transport, clientID, clientSecret string) (*Client, error) {
	tokens, err := NewTokenManager(transport, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	return &Client{
		transport: transport,
		tokens:    tokens,
		validate:  validator.New(),
	}, nil
}

// ConnectToken issues a narrow-scoped token for the client-side linking
// widget. Pass an item id to request an update-mode token.
func (c *Client) ConnectToken(ctx context.Context, itemID string, opts ConnectTokenOptions) (string, error) {
	return c.tokens.ConnectToken(ctx, itemID, opts)
}

// get issues an authenticated GET. On a 401 both cached tokens are
// invalidated and the request is retried exactly once with a fresh key;
// a second 401 surfaces as ErrAuthentication.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	for attempt := 0; attempt < 2; attempt++ {
		apiKey, err := c.tokens.APIKey(ctx)
		if err != nil {
			return err
		}

		err = c.transport.Request(ctx, http.MethodGet, path, query, map[string]string{headerAPIKey: apiKey}, nil, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrAuthentication) && attempt == 0 {
			logger.Get().Infow("provider rejected API key, re-authenticating once", "path", path)
			c.tokens.Invalidate()
			continue
		}
		return err
	}
	return ErrAuthentication
}

// ListItems returns every connection registered for the credentials.
func (c *Client) ListItems(ctx context.Context) ([]Item, error) {
	var resp page[Item]
	if err := c.get(ctx, "/items", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return validatedList(c.validate, resp.Results, "item")
}

// GetItem returns one connection by provider item id.
func (c *Client) GetItem(ctx context.Context, itemID string) (*Item, error) {
	var item Item
	if err := c.get(ctx, "/items/"+url.PathEscape(itemID), nil, &item); err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}
	if err := c.validate.Struct(item); err != nil {
		return nil, &ParseError{Reason: "invalid item payload", Err: err}
	}
	return &item, nil
}

// ListAccounts returns the accounts under one item.
func (c *Client) ListAccounts(ctx context.Context, itemID string) ([]Account, error) {
	query := url.Values{"itemId": {itemID}}
	var resp page[Account]
	if err := c.get(ctx, "/accounts", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to list accounts for item %s: %w", itemID, err)
	}
	return validatedList(c.validate, resp.Results, "account")
}

// ListTransactions returns one page of transactions for an account,
// plus the total page count reported by the provider.
func (c *Client) ListTransactions(ctx context.Context, accountID string, from, to *time.Time, pageNum, pageSize int) ([]Transaction, int, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	query := url.Values{
		"accountId": {accountID},
		"page":      {strconv.Itoa(pageNum)},
		"pageSize":  {strconv.Itoa(pageSize)},
	}
	if from != nil {
		query.Set("from", from.Format("2006-01-02"))
	}
	if to != nil {
		query.Set("to", to.Format("2006-01-02"))
	}

	var resp page[Transaction]
	if err := c.get(ctx, "/transactions", query, &resp); err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions for account %s: %w", accountID, err)
	}
	results, err := validatedList(c.validate, resp.Results, "transaction")
	if err != nil {
		return nil, 0, err
	}
	return results, resp.TotalPages, nil
}

// ListAllTransactions walks every page for an account in pagination
// order and returns the concatenated results.
func (c *Client) ListAllTransactions(ctx context.Context, accountID string, from, to *time.Time) ([]Transaction, error) {
	var all []Transaction
	for pageNum := 1; ; pageNum++ {
		results, totalPages, err := c.ListTransactions(ctx, accountID, from, to, pageNum, defaultPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
		if pageNum >= totalPages || len(results) == 0 {
			return all, nil
		}
	}
}

// ListBills returns the credit-card bills for an account.
func (c *Client) ListBills(ctx context.Context, accountID string) ([]Bill, error) {
	query := url.Values{"accountId": {accountID}}
	var resp page[Bill]
	if err := c.get(ctx, "/credit_card_bills", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to list bills for account %s: %w", accountID, err)
	}
	return validatedList(c.validate, resp.Results, "bill")
}

// ListBillTransactions returns the line items of one bill.
func (c *Client) ListBillTransactions(ctx context.Context, billID string) ([]BillTransaction, error) {
	var resp page[BillTransaction]
	if err := c.get(ctx, "/credit_card_bills/"+url.PathEscape(billID)+"/transactions", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list transactions for bill %s: %w", billID, err)
	}
	return validatedList(c.validate, resp.Results, "bill transaction")
}

// ListInvestments returns the holdings reported for an account.
func (c *Client) ListInvestments(ctx context.Context, accountID string) ([]Investment, error) {
	query := url.Values{"accountId": {accountID}}
	var resp page[Investment]
	if err := c.get(ctx, "/investments", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to list investments for account %s: %w", accountID, err)
	}
	return validatedList(c.validate, resp.Results, "investment")
}

// ListLoans returns the liabilities reported for an item.
func (c *Client) ListLoans(ctx context.Context, itemID string) ([]Loan, error) {
	query := url.Values{"itemId": {itemID}}
	var resp page[Loan]
	if err := c.get(ctx, "/loans", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to list loans for item %s: %w", itemID, err)
	}
	return validatedList(c.validate, resp.Results, "loan")
}

// GetAllItemTransactions fans out over an item: list its accounts, then
// pull every account's transactions. A failing account does not abort
// the item; its error is collected and the remaining accounts still
// return what succeeded.
func (c *Client) GetAllItemTransactions(ctx context.Context, itemID string, from, to *time.Time) ([]ItemTransactions, []string, error) {
	accounts, err := c.ListAccounts(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}

	var (
		results []ItemTransactions
		errs    []string
	)
	for _, acc := range accounts {
		txns, err := c.ListAllTransactions(ctx, acc.ID, from, to)
		if err != nil {
			if errors.Is(err, ErrAuthentication) {
				// Token state is gone for every remaining account too.
				return results, errs, err
			}
			errs = append(errs, fmt.Sprintf("account %s: %v", acc.ID, err))
			logger.Get().Warnw("skipping failed account during item fan-out",
				"item_id", itemID, "account_id", acc.ID, "error", err)
			continue
		}
		results = append(results, ItemTransactions{Account: acc, Transactions: txns})
	}
	return results, errs, nil
}

// validated filters a result list through struct validation; a single
// invalid record fails the whole payload closed with a ParseError.
func validatedList[T any](v *validator.Validate, results []T, kind string) ([]T, error) {
	for i := range results {
		if err := v.Struct(results[i]); err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("invalid %s payload", kind), Err: err}
		}
	}
	return results, nil
}
