package openfinance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"agrego/internal/domain/account"
	"agrego/internal/domain/bill"
	"agrego/internal/domain/connection"
	"agrego/internal/domain/credential"
	"agrego/internal/domain/investment"
	"agrego/internal/domain/loan"
	"agrego/internal/domain/transaction"
	ofclient "agrego/internal/infrastructure/openfinance"
)

// MockClient implements ofclient.ClientInterface
type MockClient struct {
	ConnectTokenFunc         func(ctx context.Context, itemID string, opts ofclient.ConnectTokenOptions) (string, error)
	ListItemsFunc            func(ctx context.Context) ([]ofclient.Item, error)
	GetItemFunc              func(ctx context.Context, itemID string) (*ofclient.Item, error)
	ListAccountsFunc         func(ctx context.Context, itemID string) ([]ofclient.Account, error)
	ListAllTransactionsFunc  func(ctx context.Context, accountID string, from, to *time.Time) ([]ofclient.Transaction, error)
	ListBillsFunc            func(ctx context.Context, accountID string) ([]ofclient.Bill, error)
	ListBillTransactionsFunc func(ctx context.Context, billID string) ([]ofclient.BillTransaction, error)
	ListInvestmentsFunc      func(ctx context.Context, accountID string) ([]ofclient.Investment, error)
	ListLoansFunc            func(ctx context.Context, itemID string) ([]ofclient.Loan, error)
}

func (m *MockClient) ConnectToken(ctx context.Context, itemID string, opts ofclient.ConnectTokenOptions) (string, error) {
	if m.ConnectTokenFunc != nil {
		return m.ConnectTokenFunc(ctx, itemID, opts)
	}
	return "test-connect-token", nil
}

func (m *MockClient) ListItems(ctx context.Context) ([]ofclient.Item, error) {
	if m.ListItemsFunc != nil {
		return m.ListItemsFunc(ctx)
	}
	return nil, nil
}

func (m *MockClient) GetItem(ctx context.Context, itemID string) (*ofclient.Item, error) {
	if m.GetItemFunc != nil {
		return m.GetItemFunc(ctx, itemID)
	}
	return nil, nil
}

func (m *MockClient) ListAccounts(ctx context.Context, itemID string) ([]ofclient.Account, error) {
	if m.ListAccountsFunc != nil {
		return m.ListAccountsFunc(ctx, itemID)
	}
	return nil, nil
}

func (m *MockClient) ListTransactions(ctx context.Context, accountID string, from, to *time.Time, pageNum, pageSize int) ([]ofclient.Transaction, int, error) {
	txns, err := m.ListAllTransactions(ctx, accountID, from, to)
	return txns, 1, err
}

func (m *MockClient) ListAllTransactions(ctx context.Context, accountID string, from, to *time.Time) ([]ofclient.Transaction, error) {
	if m.ListAllTransactionsFunc != nil {
		return m.ListAllTransactionsFunc(ctx, accountID, from, to)
	}
	return nil, nil
}

func (m *MockClient) ListBills(ctx context.Context, accountID string) ([]ofclient.Bill, error) {
	if m.ListBillsFunc != nil {
		return m.ListBillsFunc(ctx, accountID)
	}
	return nil, nil
}

func (m *MockClient) ListBillTransactions(ctx context.Context, billID string) ([]ofclient.BillTransaction, error) {
	if m.ListBillTransactionsFunc != nil {
		return m.ListBillTransactionsFunc(ctx, billID)
	}
	return nil, nil
}

func (m *MockClient) ListInvestments(ctx context.Context, accountID string) ([]ofclient.Investment, error) {
	if m.ListInvestmentsFunc != nil {
		return m.ListInvestmentsFunc(ctx, accountID)
	}
	return nil, nil
}

func (m *MockClient) ListLoans(ctx context.Context, itemID string) ([]ofclient.Loan, error) {
	if m.ListLoansFunc != nil {
		return m.ListLoansFunc(ctx, itemID)
	}
	return nil, nil
}

func (m *MockClient) GetAllItemTransactions(ctx context.Context, itemID string, from, to *time.Time) ([]ofclient.ItemTransactions, []string, error) {
	accounts, err := m.ListAccounts(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	var results []ofclient.ItemTransactions
	var errs []string
	for _, acc := range accounts {
		txns, err := m.ListAllTransactions(ctx, acc.ID, from, to)
		if err != nil {
			if errors.Is(err, ofclient.ErrAuthentication) {
				return results, errs, err
			}
			errs = append(errs, fmt.Sprintf("account %s: %v", acc.ID, err))
			continue
		}
		results = append(results, ofclient.ItemTransactions{Account: acc, Transactions: txns})
	}
	return results, errs, nil
}

// fakeAccountRepo is an in-memory account.Repository
type fakeAccountRepo struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*account.Account
	cards    map[int64]*account.CreditCard
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		accounts: make(map[int64]*account.Account),
		cards:    make(map[int64]*account.CreditCard),
	}
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[id], nil
}

func (f *fakeAccountRepo) GetByProviderAccountID(ctx context.Context, userID int64, providerAccountID string) (*account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acc := range f.accounts {
		if acc.UserID == userID && acc.ProviderAccountID != nil && *acc.ProviderAccountID == providerAccountID {
			return acc, nil
		}
	}
	return nil, nil
}

func (f *fakeAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*account.Account
	for _, acc := range f.accounts {
		if acc.UserID == userID {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) ListByConnectionID(ctx context.Context, connectionID int64) ([]*account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*account.Account
	for _, acc := range f.accounts {
		if acc.ConnectionID != nil && *acc.ConnectionID == connectionID {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) Create(ctx context.Context, params account.CreateParams) (*account.Account, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	acc := &account.Account{
		ID:                f.nextID,
		UserID:            params.UserID,
		ConnectionID:      params.ConnectionID,
		ProviderAccountID: params.ProviderAccountID,
		Name:              params.Name,
		AccountType:       params.AccountType,
		Currency:          params.Currency,
		Balance:           params.Balance,
		SyncEnabled:       true,
	}
	f.accounts[acc.ID] = acc
	return acc, nil
}

func (f *fakeAccountRepo) UpdateFromSync(ctx context.Context, id int64, params account.SyncParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[id]
	if !ok {
		return account.ErrAccountNotFound
	}
	if params.Balance != nil {
		acc.Balance = *params.Balance
	}
	if params.Currency != nil {
		acc.Currency = *params.Currency
	}
	return nil
}

func (f *fakeAccountRepo) SetSyncEnabled(ctx context.Context, id, userID int64, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[id]
	if !ok || acc.UserID != userID {
		return account.ErrAccountNotFound
	}
	acc.SyncEnabled = enabled
	return nil
}

func (f *fakeAccountRepo) GetCreditCard(ctx context.Context, accountID int64) (*account.CreditCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cards[accountID], nil
}

func (f *fakeAccountRepo) UpsertCreditCard(ctx context.Context, accountID int64, params account.CreditCardParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cards[accountID] = &account.CreditCard{
		AccountID:      accountID,
		CreditLimit:    params.CreditLimit,
		AvailableLimit: params.AvailableLimit,
		Brand:          params.Brand,
		DueDate:        params.DueDate,
		CloseDate:      params.CloseDate,
	}
	return nil
}

// fakeTransactionRepo is an in-memory transaction.Repository that
// enforces the per-user hash uniqueness the real schema guarantees.
type fakeTransactionRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []*transaction.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{}
}

func (f *fakeTransactionRepo) GetByID(ctx context.Context, id int64) (*transaction.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.rows {
		if tx.ID == id {
			return tx, nil
		}
	}
	return nil, nil
}

func (f *fakeTransactionRepo) GetByHash(ctx context.Context, userID int64, hash string) (*transaction.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.rows {
		if tx.UserID == userID && tx.Hash == hash {
			return tx, nil
		}
	}
	return nil, nil
}

func (f *fakeTransactionRepo) GetByProviderID(ctx context.Context, userID int64, providerTransactionID string) (*transaction.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.rows {
		if tx.UserID == userID && tx.ProviderTransactionID != nil && *tx.ProviderTransactionID == providerTransactionID {
			return tx, nil
		}
	}
	return nil, nil
}

func (f *fakeTransactionRepo) ListByAccountID(ctx context.Context, accountID int64, from, to time.Time) ([]*transaction.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*transaction.Transaction
	for _, tx := range f.rows {
		if tx.AccountID == accountID && !tx.Date.Before(from) && !tx.Date.After(to) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeTransactionRepo) Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.rows {
		if tx.UserID == params.UserID && tx.Hash == params.Hash {
			return nil, errors.New("duplicate transaction hash for user")
		}
	}
	f.nextID++
	tx := &transaction.Transaction{
		ID:                    f.nextID,
		UserID:                params.UserID,
		AccountID:             params.AccountID,
		ProviderTransactionID: params.ProviderTransactionID,
		Amount:                params.Amount,
		Description:           params.Description,
		Category:              params.Category,
		TransactionType:       params.TransactionType,
		Status:                params.Status,
		Date:                  params.Date,
		Hash:                  params.Hash,
		InstallmentNumber:     params.InstallmentNumber,
		TotalInstallments:     params.TotalInstallments,
	}
	f.rows = append(f.rows, tx)
	return tx, nil
}

func (f *fakeTransactionRepo) UpdateFromSync(ctx context.Context, id int64, params transaction.SyncUpdateParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.rows {
		if tx.ID != id {
			continue
		}
		if params.Status != nil {
			tx.Status = *params.Status
		}
		if params.Category != nil {
			tx.Category = *params.Category
		}
		if params.ProviderTransactionID != nil {
			tx.ProviderTransactionID = params.ProviderTransactionID
		}
		return nil
	}
	return transaction.ErrTransactionNotFound
}

// fakeBillRepo is an in-memory bill.Repository
type fakeBillRepo struct {
	mu     sync.Mutex
	nextID int64
	bills  map[int64]*bill.Bill
	items  map[int64][]bill.LineItemParams
}

func newFakeBillRepo() *fakeBillRepo {
	return &fakeBillRepo{
		bills: make(map[int64]*bill.Bill),
		items: make(map[int64][]bill.LineItemParams),
	}
}

func (f *fakeBillRepo) GetByID(ctx context.Context, id int64) (*bill.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bills[id], nil
}

func (f *fakeBillRepo) GetByProviderBillID(ctx context.Context, userID int64, providerBillID string) (*bill.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bills {
		if b.UserID == userID && b.ProviderBillID == providerBillID {
			return b, nil
		}
	}
	return nil, nil
}

func (f *fakeBillRepo) ListByAccountID(ctx context.Context, accountID int64) ([]*bill.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*bill.Bill
	for _, b := range f.bills {
		if b.AccountID == accountID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBillRepo) Upsert(ctx context.Context, params bill.UpsertParams) (*bill.Bill, bool, error) {
	if err := params.Validate(); err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bills {
		if b.UserID == params.UserID && b.ProviderBillID == params.ProviderBillID {
			b.TotalAmount = params.TotalAmount
			b.Status = params.Status
			b.PaidAmount = params.PaidAmount
			return b, false, nil
		}
	}
	f.nextID++
	b := &bill.Bill{
		ID:             f.nextID,
		UserID:         params.UserID,
		AccountID:      params.AccountID,
		ProviderBillID: params.ProviderBillID,
		DueDate:        params.DueDate,
		CloseDate:      params.CloseDate,
		TotalAmount:    params.TotalAmount,
		MinimumPayment: params.MinimumPayment,
		PaidAmount:     params.PaidAmount,
		Status:         params.Status,
	}
	f.bills[b.ID] = b
	return b, true, nil
}

func (f *fakeBillRepo) ReplaceLineItems(ctx context.Context, billID int64, items []bill.LineItemParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[billID] = items
	return nil
}

func (f *fakeBillRepo) ListLineItems(ctx context.Context, billID int64) ([]*bill.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*bill.LineItem
	for i := range f.items[billID] {
		p := f.items[billID][i]
		out = append(out, &bill.LineItem{
			ID:          int64(i + 1),
			BillID:      billID,
			ProviderID:  p.ProviderID,
			Description: p.Description,
			Amount:      p.Amount,
			Date:        p.Date,
		})
	}
	return out, nil
}

// fakeInvestmentRepo is an in-memory investment.Repository
type fakeInvestmentRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []*investment.Investment
}

func newFakeInvestmentRepo() *fakeInvestmentRepo { return &fakeInvestmentRepo{} }

func (f *fakeInvestmentRepo) GetByID(ctx context.Context, id int64) (*investment.Investment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.rows {
		if inv.ID == id {
			return inv, nil
		}
	}
	return nil, nil
}

func (f *fakeInvestmentRepo) GetByProviderID(ctx context.Context, userID int64, providerInvestmentID string) (*investment.Investment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.rows {
		if inv.UserID == userID && inv.ProviderInvestmentID == providerInvestmentID && providerInvestmentID != "" {
			return inv, nil
		}
	}
	return nil, nil
}

func (f *fakeInvestmentRepo) FindByNaturalKey(ctx context.Context, userID int64, name string, purchaseDate *time.Time) (*investment.Investment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.rows {
		if inv.UserID != userID || inv.Name != name {
			continue
		}
		if inv.PurchaseDate == nil && purchaseDate == nil {
			return inv, nil
		}
		if inv.PurchaseDate != nil && purchaseDate != nil && inv.PurchaseDate.Equal(*purchaseDate) {
			return inv, nil
		}
	}
	return nil, nil
}

func (f *fakeInvestmentRepo) ListByConnectionID(ctx context.Context, connectionID int64) ([]*investment.Investment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*investment.Investment
	for _, inv := range f.rows {
		if inv.ConnectionID == connectionID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeInvestmentRepo) Create(ctx context.Context, params investment.CreateParams) (*investment.Investment, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	inv := &investment.Investment{
		ID:                   f.nextID,
		UserID:               params.UserID,
		ConnectionID:         params.ConnectionID,
		ProviderInvestmentID: params.ProviderInvestmentID,
		Name:                 params.Name,
		InvestmentType:       params.InvestmentType,
		CurrentValue:         params.CurrentValue,
		Quantity:             params.Quantity,
		PurchaseDate:         params.PurchaseDate,
		Currency:             params.Currency,
	}
	f.rows = append(f.rows, inv)
	return inv, nil
}

func (f *fakeInvestmentRepo) UpdateValue(ctx context.Context, id int64, currentValue float64, quantity *float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.rows {
		if inv.ID == id {
			inv.CurrentValue = currentValue
			if quantity != nil {
				inv.Quantity = quantity
			}
			return nil
		}
	}
	return investment.ErrInvestmentNotFound
}

// fakeLoanRepo is an in-memory loan.Repository
type fakeLoanRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []*loan.Loan
}

func newFakeLoanRepo() *fakeLoanRepo { return &fakeLoanRepo{} }

func (f *fakeLoanRepo) GetByID(ctx context.Context, id int64) (*loan.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.rows {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, nil
}

func (f *fakeLoanRepo) GetByProviderLoanID(ctx context.Context, userID int64, providerLoanID string) (*loan.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.rows {
		if l.UserID == userID && l.ProviderLoanID == providerLoanID && providerLoanID != "" {
			return l, nil
		}
	}
	return nil, nil
}

func (f *fakeLoanRepo) FindByNaturalKey(ctx context.Context, userID int64, name string, principal float64, startDate *time.Time) (*loan.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.rows {
		if l.UserID != userID || l.Name != name {
			continue
		}
		if strconv.FormatFloat(l.PrincipalAmount, 'f', 2, 64) != strconv.FormatFloat(principal, 'f', 2, 64) {
			continue
		}
		if l.StartDate == nil && startDate == nil {
			return l, nil
		}
		if l.StartDate != nil && startDate != nil && l.StartDate.Equal(*startDate) {
			return l, nil
		}
	}
	return nil, nil
}

func (f *fakeLoanRepo) ListByConnectionID(ctx context.Context, connectionID int64) ([]*loan.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*loan.Loan
	for _, l := range f.rows {
		if l.ConnectionID == connectionID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLoanRepo) Create(ctx context.Context, params loan.CreateParams) (*loan.Loan, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	l := &loan.Loan{
		ID:                    f.nextID,
		UserID:                params.UserID,
		ConnectionID:          params.ConnectionID,
		ProviderLoanID:        params.ProviderLoanID,
		Name:                  params.Name,
		PrincipalAmount:       params.PrincipalAmount,
		OutstandingBalance:    params.OutstandingBalance,
		InstallmentAmount:     params.InstallmentAmount,
		RemainingInstallments: params.RemainingInstallments,
		TotalInstallments:     params.TotalInstallments,
		InterestRate:          params.InterestRate,
		StartDate:             params.StartDate,
		NextPaymentDate:       params.NextPaymentDate,
		Currency:              params.Currency,
	}
	f.rows = append(f.rows, l)
	return l, nil
}

func (f *fakeLoanRepo) Update(ctx context.Context, id int64, params loan.UpdateParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.rows {
		if l.ID != id {
			continue
		}
		if params.OutstandingBalance != nil {
			l.OutstandingBalance = *params.OutstandingBalance
		}
		if params.InstallmentAmount != nil {
			l.InstallmentAmount = params.InstallmentAmount
		}
		if params.RemainingInstallments != nil {
			l.RemainingInstallments = params.RemainingInstallments
		}
		if params.InterestRate != nil {
			l.InterestRate = params.InterestRate
		}
		if params.NextPaymentDate != nil {
			l.NextPaymentDate = params.NextPaymentDate
		}
		return nil
	}
	return loan.ErrLoanNotFound
}

// fakeConnectionRepo is an in-memory connection.Repository
type fakeConnectionRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*connection.Connection
}

func newFakeConnectionRepo() *fakeConnectionRepo {
	return &fakeConnectionRepo{rows: make(map[string]*connection.Connection)}
}

func (f *fakeConnectionRepo) GetByID(ctx context.Context, id int64) (*connection.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.rows {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeConnectionRepo) GetByProviderItemID(ctx context.Context, providerItemID string) (*connection.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[providerItemID], nil
}

func (f *fakeConnectionRepo) ListByUserID(ctx context.Context, userID int64) ([]*connection.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*connection.Connection
	for _, c := range f.rows {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConnectionRepo) Upsert(ctx context.Context, params connection.UpsertParams) (*connection.Connection, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.rows[params.ProviderItemID]; ok {
		existing.Status = params.Status
		existing.InstitutionName = params.InstitutionName
		return existing, nil
	}
	f.nextID++
	c := &connection.Connection{
		ID:              f.nextID,
		UserID:          params.UserID,
		ProviderItemID:  params.ProviderItemID,
		InstitutionName: params.InstitutionName,
		Status:          params.Status,
	}
	f.rows[params.ProviderItemID] = c
	return c, nil
}

func (f *fakeConnectionRepo) UpdateStatus(ctx context.Context, providerItemID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[providerItemID]
	if !ok {
		return connection.ErrConnectionNotFound
	}
	c.Status = status
	return nil
}

func (f *fakeConnectionRepo) TouchLastSynced(ctx context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.rows {
		if c.ID == id {
			c.LastSyncedAt = &at
			return nil
		}
	}
	return connection.ErrConnectionNotFound
}

func (f *fakeConnectionRepo) Delete(ctx context.Context, id, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, c := range f.rows {
		if c.ID == id && c.UserID == userID {
			delete(f.rows, key)
			return nil
		}
	}
	return connection.ErrConnectionNotFound
}

// fakeCredentialRepo is an in-memory credential.Repository
type fakeCredentialRepo struct {
	mu    sync.Mutex
	creds map[int64]*credential.Credential
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{creds: make(map[int64]*credential.Credential)}
}

func (f *fakeCredentialRepo) GetByUserID(ctx context.Context, userID int64) (*credential.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds[userID], nil
}

func (f *fakeCredentialRepo) Save(ctx context.Context, params credential.SaveParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds[params.UserID] = &credential.Credential{
		UserID:       params.UserID,
		ClientID:     params.ClientID,
		ClientSecret: params.ClientSecret,
	}
	return nil
}

func (f *fakeCredentialRepo) Delete(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.creds, userID)
	return nil
}

func (f *fakeCredentialRepo) ListUserIDs(ctx context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for id := range f.creds {
		out = append(out, id)
	}
	return out, nil
}

// staticFactory returns the same client for every user, or
// ErrNoCredential when client is nil.
type staticFactory struct {
	client ofclient.ClientInterface
}

func (s *staticFactory) ClientForUser(ctx context.Context, userID int64) (ofclient.ClientInterface, error) {
	if s.client == nil {
		return nil, ErrNoCredential
	}
	return s.client, nil
}
