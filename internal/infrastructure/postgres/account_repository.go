package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"agrego/internal/domain/account"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, user_id, connection_id, provider_account_id, name, account_type, currency, balance, sync_enabled, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*account.Account, error) {
	var acc account.Account
	var connectionID sql.NullInt64
	var providerAccountID sql.NullString

	err := row.Scan(
		&acc.ID, &acc.UserID, &connectionID, &providerAccountID,
		&acc.Name, &acc.AccountType, &acc.Currency, &acc.Balance,
		&acc.SyncEnabled, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if connectionID.Valid {
		acc.ConnectionID = &connectionID.Int64
	}
	if providerAccountID.Valid {
		acc.ProviderAccountID = &providerAccountID.String
	}
	return &acc, nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// GetByProviderAccountID retrieves the user's account carrying a
// provider account id. Returns nil, nil when the id is unknown.
func (r *AccountRepository) GetByProviderAccountID(ctx context.Context, userID int64, providerAccountID string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND provider_account_id = $2`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, userID, providerAccountID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by provider id: %w", err)
	}
	return acc, nil
}

// ListByUserID retrieves all accounts for a user
func (r *AccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

// ListByConnectionID retrieves the accounts linked to one connection
func (r *AccountRepository) ListByConnectionID(ctx context.Context, connectionID int64) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE connection_id = $1 ORDER BY created_at`
	return r.list(ctx, query, connectionID)
}

func (r *AccountRepository) list(ctx context.Context, query string, arg any) ([]*account.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, params account.CreateParams) (*account.Account, error) {
	query := `
		INSERT INTO accounts (user_id, connection_id, provider_account_id, name, account_type, currency, balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + accountColumns + `
	`

	var connectionID sql.NullInt64
	if params.ConnectionID != nil {
		connectionID = sql.NullInt64{Int64: *params.ConnectionID, Valid: true}
	}
	var providerAccountID sql.NullString
	if params.ProviderAccountID != nil {
		providerAccountID = sql.NullString{String: *params.ProviderAccountID, Valid: true}
	}

	acc, err := scanAccount(r.db.QueryRowContext(
		ctx, query,
		params.UserID, connectionID, providerAccountID,
		params.Name, params.AccountType, params.Currency, params.Balance,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return acc, nil
}

// UpdateFromSync refreshes the provider-owned fields on an account.
// Only non-nil params are written; the name never is.
func (r *AccountRepository) UpdateFromSync(ctx context.Context, id int64, params account.SyncParams) error {
	query := `
		UPDATE accounts
		SET balance = COALESCE($1, balance),
		    currency = COALESCE($2, currency),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`

	var balance sql.NullFloat64
	if params.Balance != nil {
		balance = sql.NullFloat64{Float64: *params.Balance, Valid: true}
	}
	var currency sql.NullString
	if params.Currency != nil {
		currency = sql.NullString{String: *params.Currency, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query, balance, currency, id)
	if err != nil {
		return fmt.Errorf("failed to update account from sync: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

// SetSyncEnabled toggles whether syncs may touch the account
func (r *AccountRepository) SetSyncEnabled(ctx context.Context, id int64, userID int64, enabled bool) error {
	query := `UPDATE accounts SET sync_enabled = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND user_id = $3`

	result, err := r.db.ExecContext(ctx, query, enabled, id, userID)
	if err != nil {
		return fmt.Errorf("failed to set sync enabled: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

// GetCreditCard retrieves the card row for a credit_card account.
// Returns nil, nil when no card data has been synced yet.
func (r *AccountRepository) GetCreditCard(ctx context.Context, accountID int64) (*account.CreditCard, error) {
	query := `
		SELECT account_id, credit_limit, available_limit, brand, due_date, close_date, updated_at
		FROM credit_cards
		WHERE account_id = $1
	`

	var card account.CreditCard
	var creditLimit, availableLimit sql.NullFloat64
	var brand sql.NullString
	var dueDate, closeDate sql.NullTime

	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&card.AccountID, &creditLimit, &availableLimit, &brand, &dueDate, &closeDate, &card.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit card: %w", err)
	}

	if creditLimit.Valid {
		card.CreditLimit = &creditLimit.Float64
	}
	if availableLimit.Valid {
		card.AvailableLimit = &availableLimit.Float64
	}
	if brand.Valid {
		card.Brand = brand.String
	}
	if dueDate.Valid {
		card.DueDate = &dueDate.Time
	}
	if closeDate.Valid {
		card.CloseDate = &closeDate.Time
	}
	return &card, nil
}

// UpsertCreditCard writes the card fields pulled during a sync
func (r *AccountRepository) UpsertCreditCard(ctx context.Context, accountID int64, params account.CreditCardParams) error {
	query := `
		INSERT INTO credit_cards (account_id, credit_limit, available_limit, brand, due_date, close_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id)
		DO UPDATE SET
			credit_limit = EXCLUDED.credit_limit,
			available_limit = EXCLUDED.available_limit,
			brand = EXCLUDED.brand,
			due_date = EXCLUDED.due_date,
			close_date = EXCLUDED.close_date,
			updated_at = CURRENT_TIMESTAMP
	`

	var creditLimit, availableLimit sql.NullFloat64
	if params.CreditLimit != nil {
		creditLimit = sql.NullFloat64{Float64: *params.CreditLimit, Valid: true}
	}
	if params.AvailableLimit != nil {
		availableLimit = sql.NullFloat64{Float64: *params.AvailableLimit, Valid: true}
	}
	var dueDate, closeDate sql.NullTime
	if params.DueDate != nil {
		dueDate = sql.NullTime{Time: *params.DueDate, Valid: true}
	}
	if params.CloseDate != nil {
		closeDate = sql.NullTime{Time: *params.CloseDate, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query, accountID, creditLimit, availableLimit, nullString(params.Brand), dueDate, closeDate)
	if err != nil {
		return fmt.Errorf("failed to upsert credit card: %w", err)
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
