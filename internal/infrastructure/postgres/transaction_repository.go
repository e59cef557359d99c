package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agrego/internal/domain/transaction"
)

// TransactionRepository implements the transaction.Repository interface
// for PostgreSQL. The (user_id, hash) unique index backs cross-channel
// dedup: two sync paths racing on the same entry collapse into one row.
type TransactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, user_id, account_id, provider_transaction_id, amount, description, category, transaction_type, status, date, hash, installment_number, total_installments, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*transaction.Transaction, error) {
	var tx transaction.Transaction
	var providerID sql.NullString
	var installmentNumber, totalInstallments sql.NullInt64

	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.AccountID, &providerID,
		&tx.Amount, &tx.Description, &tx.Category, &tx.TransactionType,
		&tx.Status, &tx.Date, &tx.Hash, &installmentNumber, &totalInstallments,
		&tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if providerID.Valid {
		tx.ProviderTransactionID = &providerID.String
	}
	if installmentNumber.Valid {
		n := int(installmentNumber.Int64)
		tx.InstallmentNumber = &n
	}
	if totalInstallments.Valid {
		n := int(totalInstallments.Int64)
		tx.TotalInstallments = &n
	}
	return &tx, nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// GetByHash retrieves the user's transaction with the given content
// hash. Returns nil, nil when no such transaction exists.
func (r *TransactionRepository) GetByHash(ctx context.Context, userID int64, hash string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 AND hash = $2`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, userID, hash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction by hash: %w", err)
	}
	return tx, nil
}

// GetByProviderID retrieves the user's transaction carrying a provider
// transaction id. Returns nil, nil when the id is unknown.
func (r *TransactionRepository) GetByProviderID(ctx context.Context, userID int64, providerTransactionID string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 AND provider_transaction_id = $2`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, userID, providerTransactionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction by provider id: %w", err)
	}
	return tx, nil
}

// ListByAccountID retrieves an account's transactions inside a date range
func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID int64, from, to time.Time) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// Create inserts a new transaction row
func (r *TransactionRepository) Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	query := `
		INSERT INTO transactions (
			user_id, account_id, provider_transaction_id, amount, description,
			category, transaction_type, status, date, hash,
			installment_number, total_installments
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + transactionColumns + `
	`

	var providerID sql.NullString
	if params.ProviderTransactionID != nil {
		providerID = sql.NullString{String: *params.ProviderTransactionID, Valid: true}
	}
	var installmentNumber, totalInstallments sql.NullInt64
	if params.InstallmentNumber != nil {
		installmentNumber = sql.NullInt64{Int64: int64(*params.InstallmentNumber), Valid: true}
	}
	if params.TotalInstallments != nil {
		totalInstallments = sql.NullInt64{Int64: int64(*params.TotalInstallments), Valid: true}
	}

	tx, err := scanTransaction(r.db.QueryRowContext(
		ctx, query,
		params.UserID, params.AccountID, providerID, params.Amount, params.Description,
		params.Category, params.TransactionType, params.Status, params.Date, params.Hash,
		installmentNumber, totalInstallments,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

// UpdateFromSync refreshes the mutable fields on a resynced
// transaction. Only non-nil params are written.
func (r *TransactionRepository) UpdateFromSync(ctx context.Context, id int64, params transaction.SyncUpdateParams) error {
	query := `
		UPDATE transactions
		SET status = COALESCE($1, status),
		    category = COALESCE($2, category),
		    provider_transaction_id = COALESCE($3, provider_transaction_id),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
	`

	var status, category, providerID sql.NullString
	if params.Status != nil {
		status = sql.NullString{String: *params.Status, Valid: true}
	}
	if params.Category != nil {
		category = sql.NullString{String: *params.Category, Valid: true}
	}
	if params.ProviderTransactionID != nil {
		providerID = sql.NullString{String: *params.ProviderTransactionID, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query, status, category, providerID, id)
	if err != nil {
		return fmt.Errorf("failed to update transaction from sync: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return transaction.ErrTransactionNotFound
	}
	return nil
}
