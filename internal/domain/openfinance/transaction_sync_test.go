package openfinance

import (
	"context"
	"testing"
	"time"

	"agrego/internal/domain/account"
	"agrego/internal/domain/transaction"
	ofclient "agrego/internal/infrastructure/openfinance"
)

func seedCheckingAccount(t *testing.T, repo *fakeAccountRepo, connID int64) *account.Account {
	t.Helper()
	providerID := "acc-1"
	acc, err := repo.Create(context.Background(), account.CreateParams{
		UserID:            7,
		ConnectionID:      &connID,
		ProviderAccountID: &providerID,
		Name:              "Conta Corrente",
		AccountType:       account.TypeChecking,
		Currency:          "BRL",
		Balance:           1000,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return acc
}

func TestSyncConnectionTransactions_IdempotentAcrossRuns(t *testing.T) {
	accountRepo := newFakeAccountRepo()
	txRepo := newFakeTransactionRepo()
	svc := NewTransactionSyncService(accountRepo, txRepo)
	conn := testConnection()
	seedCheckingAccount(t, accountRepo, conn.ID)

	client := &MockClient{
		ListAccountsFunc: func(ctx context.Context, itemID string) ([]ofclient.Account, error) {
			return []ofclient.Account{{ID: "acc-1", ItemID: "item-1"}}, nil
		},
		ListAllTransactionsFunc: func(ctx context.Context, accountID string, from, to *time.Time) ([]ofclient.Transaction, error) {
			return []ofclient.Transaction{
				{ID: "tx-1", AccountID: "acc-1", Description: "UBER *TRIP", Amount: -45.90, Date: "2026-03-15", Type: "DEBIT", Status: "POSTED"},
				{ID: "tx-2", AccountID: "acc-1", Description: "Salario Marco", Amount: 5000, Date: "2026-03-05", Type: "CREDIT", Status: "POSTED"},
			}, nil
		},
	}

	first, err := svc.SyncConnectionTransactions(context.Background(), client, conn, nil, nil)
	if err != nil {
		t.Fatalf("first sync error = %v", err)
	}
	if first.Created != 2 {
		t.Fatalf("first sync created = %d, want 2", first.Created)
	}

	second, err := svc.SyncConnectionTransactions(context.Background(), client, conn, nil, nil)
	if err != nil {
		t.Fatalf("second sync error = %v", err)
	}
	if second.Created != 0 {
		t.Errorf("second sync created = %d, want 0", second.Created)
	}
	if second.Skipped != 2 {
		t.Errorf("second sync skipped = %d, want 2", second.Skipped)
	}
	if len(txRepo.rows) != 2 {
		t.Errorf("stored rows = %d, want 2", len(txRepo.rows))
	}
}

func TestSyncConnectionTransactions_CrossChannelDedup(t *testing.T) {
	accountRepo := newFakeAccountRepo()
	txRepo := newFakeTransactionRepo()
	svc := NewTransactionSyncService(accountRepo, txRepo)
	conn := testConnection()
	acc := seedCheckingAccount(t, accountRepo, conn.ID)

	// First observation arrives without a provider id, as a manual or
	// webhook-delivered entry would.
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	hash := transaction.Hash(acc.ID, -45.90, date, "UBER *TRIP")
	_, err := txRepo.Create(context.Background(), transaction.CreateParams{
		UserID:          7,
		AccountID:       acc.ID,
		Amount:          -45.90,
		Description:     "UBER *TRIP",
		Category:        transaction.CategoryTransport,
		TransactionType: transaction.TypeExpense,
		Status:          transaction.StatusPending,
		Date:            date,
		Hash:            hash,
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	client := &MockClient{
		ListAccountsFunc: func(ctx context.Context, itemID string) ([]ofclient.Account, error) {
			return []ofclient.Account{{ID: "acc-1", ItemID: "item-1"}}, nil
		},
		ListAllTransactionsFunc: func(ctx context.Context, accountID string, from, to *time.Time) ([]ofclient.Transaction, error) {
			return []ofclient.Transaction{
				{ID: "tx-1", AccountID: "acc-1", Description: "uber  *trip", Amount: -45.90, Date: "2026-03-15T14:22:00Z", Type: "DEBIT", Status: "POSTED"},
			}, nil
		},
	}

	result, err := svc.SyncConnectionTransactions(context.Background(), client, conn, nil, nil)
	if err != nil {
		t.Fatalf("sync error = %v", err)
	}
	if result.Created != 0 {
		t.Errorf("created = %d, the hash match must prevent a second row", result.Created)
	}
	if result.Updated != 1 {
		t.Errorf("updated = %d, want 1 (status and provider id attach)", result.Updated)
	}
	if len(txRepo.rows) != 1 {
		t.Fatalf("stored rows = %d, want 1", len(txRepo.rows))
	}

	row := txRepo.rows[0]
	if row.Status != transaction.StatusPosted {
		t.Errorf("status = %q, want posted after provider confirmation", row.Status)
	}
	if row.ProviderTransactionID == nil || *row.ProviderTransactionID != "tx-1" {
		t.Errorf("provider id was not attached to the existing row: %v", row.ProviderTransactionID)
	}
}

func TestSyncConnectionTransactions_UnknownAccountSkips(t *testing.T) {
	accountRepo := newFakeAccountRepo()
	txRepo := newFakeTransactionRepo()
	svc := NewTransactionSyncService(accountRepo, txRepo)
	conn := testConnection()

	client := &MockClient{
		ListAccountsFunc: func(ctx context.Context, itemID string) ([]ofclient.Account, error) {
			return []ofclient.Account{{ID: "acc-unseen", ItemID: "item-1"}}, nil
		},
		ListAllTransactionsFunc: func(ctx context.Context, accountID string, from, to *time.Time) ([]ofclient.Transaction, error) {
			return []ofclient.Transaction{
				{ID: "tx-1", AccountID: "acc-unseen", Description: "whatever", Amount: -1, Date: "2026-03-15"},
			}, nil
		},
	}

	result, err := svc.SyncConnectionTransactions(context.Background(), client, conn, nil, nil)
	if err != nil {
		t.Fatalf("sync error = %v", err)
	}
	if result.Skipped != 1 || result.Created != 0 {
		t.Errorf("result = created %d skipped %d, want 0/1", result.Created, result.Skipped)
	}
}

func TestIngestAccountTransactions_SyncDisabledAccountSkips(t *testing.T) {
	accountRepo := newFakeAccountRepo()
	txRepo := newFakeTransactionRepo()
	svc := NewTransactionSyncService(accountRepo, txRepo)
	conn := testConnection()
	acc := seedCheckingAccount(t, accountRepo, conn.ID)
	if err := accountRepo.SetSyncEnabled(context.Background(), acc.ID, 7, false); err != nil {
		t.Fatalf("disable sync: %v", err)
	}

	result := svc.IngestAccountTransactions(context.Background(), conn, "acc-1", []ofclient.Transaction{
		{ID: "tx-1", Description: "UBER *TRIP", Amount: -45.90, Date: "2026-03-15", Type: "DEBIT", Status: "POSTED"},
		{ID: "tx-2", Description: "Salario Marco", Amount: 5000, Date: "2026-03-05", Type: "CREDIT", Status: "POSTED"},
	})
	if result.Created != 0 || result.Skipped != 2 {
		t.Errorf("result = created %d skipped %d, want 0/2", result.Created, result.Skipped)
	}
	if len(txRepo.rows) != 0 {
		t.Errorf("stored rows = %d, a paused account must not receive entries", len(txRepo.rows))
	}
}

func TestIngestAccountTransactions_CategoryAndType(t *testing.T) {
	accountRepo := newFakeAccountRepo()
	txRepo := newFakeTransactionRepo()
	svc := NewTransactionSyncService(accountRepo, txRepo)
	conn := testConnection()
	seedCheckingAccount(t, accountRepo, conn.ID)

	groceries := "Groceries"
	result := svc.IngestAccountTransactions(context.Background(), conn, "acc-1", []ofclient.Transaction{
		{ID: "tx-1", Description: "SUPERMERCADO EXTRA", Amount: -230.10, Date: "2026-03-14", Type: "DEBIT", Status: "POSTED", Category: &groceries},
	})
	if result.Created != 1 {
		t.Fatalf("created = %d, want 1; errors: %v", result.Created, result.Errors)
	}

	row := txRepo.rows[0]
	if row.Category != transaction.CategoryGroceries {
		t.Errorf("category = %q, want groceries", row.Category)
	}
	if row.TransactionType != transaction.TypeExpense {
		t.Errorf("type = %q, want expense", row.TransactionType)
	}
}
