package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agrego/internal/domain/loan"
)

// LoanRepository implements the loan.Repository interface for PostgreSQL
type LoanRepository struct {
	db *DB
}

// NewLoanRepository creates a new PostgreSQL loan repository
func NewLoanRepository(db *DB) *LoanRepository {
	return &LoanRepository{db: db}
}

const loanColumns = `id, user_id, connection_id, provider_loan_id, name, principal_amount, outstanding_balance, installment_amount, remaining_installments, total_installments, interest_rate, start_date, next_payment_date, currency, created_at, updated_at`

func scanLoan(row interface{ Scan(...any) error }) (*loan.Loan, error) {
	var l loan.Loan
	var providerID sql.NullString
	var installmentAmount, interestRate sql.NullFloat64
	var remainingInstallments, totalInstallments sql.NullInt64
	var startDate, nextPaymentDate sql.NullTime

	err := row.Scan(
		&l.ID, &l.UserID, &l.ConnectionID, &providerID, &l.Name,
		&l.PrincipalAmount, &l.OutstandingBalance, &installmentAmount,
		&remainingInstallments, &totalInstallments, &interestRate,
		&startDate, &nextPaymentDate, &l.Currency, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if providerID.Valid {
		l.ProviderLoanID = providerID.String
	}
	if installmentAmount.Valid {
		l.InstallmentAmount = &installmentAmount.Float64
	}
	if remainingInstallments.Valid {
		n := int(remainingInstallments.Int64)
		l.RemainingInstallments = &n
	}
	if totalInstallments.Valid {
		n := int(totalInstallments.Int64)
		l.TotalInstallments = &n
	}
	if interestRate.Valid {
		l.InterestRate = &interestRate.Float64
	}
	if startDate.Valid {
		l.StartDate = &startDate.Time
	}
	if nextPaymentDate.Valid {
		l.NextPaymentDate = &nextPaymentDate.Time
	}
	return &l, nil
}

// GetByID retrieves a loan by its ID
func (r *LoanRepository) GetByID(ctx context.Context, id int64) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	l, err := scanLoan(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, loan.ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return l, nil
}

// GetByProviderLoanID retrieves the user's loan carrying a provider
// id. Returns nil, nil when the id is unknown.
func (r *LoanRepository) GetByProviderLoanID(ctx context.Context, userID int64, providerLoanID string) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE user_id = $1 AND provider_loan_id = $2`

	l, err := scanLoan(r.db.QueryRowContext(ctx, query, userID, providerLoanID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan by provider id: %w", err)
	}
	return l, nil
}

// FindByNaturalKey matches a loan on (name, principal, start date).
// Principal is compared at cent precision; a nil start date matches
// only rows with no start date. Returns nil, nil when nothing matches.
func (r *LoanRepository) FindByNaturalKey(ctx context.Context, userID int64, name string, principal float64, startDate *time.Time) (*loan.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE user_id = $1 AND name = $2
		  AND ROUND(principal_amount::numeric, 2) = ROUND($3::numeric, 2)
		  AND ($4::date IS NULL AND start_date IS NULL OR start_date = $4::date)
		LIMIT 1
	`

	var date sql.NullTime
	if startDate != nil {
		date = sql.NullTime{Time: *startDate, Valid: true}
	}

	l, err := scanLoan(r.db.QueryRowContext(ctx, query, userID, name, principal, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find loan by natural key: %w", err)
	}
	return l, nil
}

// ListByConnectionID retrieves the loans reported under one connection
func (r *LoanRepository) ListByConnectionID(ctx context.Context, connectionID int64) ([]*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE connection_id = $1 ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []*loan.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// Create inserts a new loan row
func (r *LoanRepository) Create(ctx context.Context, params loan.CreateParams) (*loan.Loan, error) {
	query := `
		INSERT INTO loans (
			user_id, connection_id, provider_loan_id, name, principal_amount,
			outstanding_balance, installment_amount, remaining_installments,
			total_installments, interest_rate, start_date, next_payment_date, currency
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + loanColumns + `
	`

	var installmentAmount, interestRate sql.NullFloat64
	if params.InstallmentAmount != nil {
		installmentAmount = sql.NullFloat64{Float64: *params.InstallmentAmount, Valid: true}
	}
	if params.InterestRate != nil {
		interestRate = sql.NullFloat64{Float64: *params.InterestRate, Valid: true}
	}
	var remainingInstallments, totalInstallments sql.NullInt64
	if params.RemainingInstallments != nil {
		remainingInstallments = sql.NullInt64{Int64: int64(*params.RemainingInstallments), Valid: true}
	}
	if params.TotalInstallments != nil {
		totalInstallments = sql.NullInt64{Int64: int64(*params.TotalInstallments), Valid: true}
	}
	var startDate, nextPaymentDate sql.NullTime
	if params.StartDate != nil {
		startDate = sql.NullTime{Time: *params.StartDate, Valid: true}
	}
	if params.NextPaymentDate != nil {
		nextPaymentDate = sql.NullTime{Time: *params.NextPaymentDate, Valid: true}
	}

	l, err := scanLoan(r.db.QueryRowContext(
		ctx, query,
		params.UserID, params.ConnectionID, nullString(params.ProviderLoanID),
		params.Name, params.PrincipalAmount, params.OutstandingBalance,
		installmentAmount, remainingInstallments, totalInstallments,
		interestRate, startDate, nextPaymentDate, params.Currency,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}
	return l, nil
}

// Update refreshes the mutable fields on a resynced loan. Only
// non-nil params are written.
func (r *LoanRepository) Update(ctx context.Context, id int64, params loan.UpdateParams) error {
	query := `
		UPDATE loans
		SET outstanding_balance = COALESCE($1, outstanding_balance),
		    installment_amount = COALESCE($2, installment_amount),
		    remaining_installments = COALESCE($3, remaining_installments),
		    interest_rate = COALESCE($4, interest_rate),
		    next_payment_date = COALESCE($5, next_payment_date),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $6
	`

	var outstandingBalance, installmentAmount, interestRate sql.NullFloat64
	if params.OutstandingBalance != nil {
		outstandingBalance = sql.NullFloat64{Float64: *params.OutstandingBalance, Valid: true}
	}
	if params.InstallmentAmount != nil {
		installmentAmount = sql.NullFloat64{Float64: *params.InstallmentAmount, Valid: true}
	}
	if params.InterestRate != nil {
		interestRate = sql.NullFloat64{Float64: *params.InterestRate, Valid: true}
	}
	var remainingInstallments sql.NullInt64
	if params.RemainingInstallments != nil {
		remainingInstallments = sql.NullInt64{Int64: int64(*params.RemainingInstallments), Valid: true}
	}
	var nextPaymentDate sql.NullTime
	if params.NextPaymentDate != nil {
		nextPaymentDate = sql.NullTime{Time: *params.NextPaymentDate, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		outstandingBalance, installmentAmount, remainingInstallments, interestRate, nextPaymentDate, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return loan.ErrLoanNotFound
	}
	return nil
}
