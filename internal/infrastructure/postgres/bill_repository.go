package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"agrego/internal/domain/bill"
)

// BillRepository implements the bill.Repository interface for PostgreSQL
type BillRepository struct {
	db *DB
}

// NewBillRepository creates a new PostgreSQL bill repository
func NewBillRepository(db *DB) *BillRepository {
	return &BillRepository{db: db}
}

const billColumns = `id, user_id, account_id, provider_bill_id, due_date, close_date, total_amount, minimum_payment, paid_amount, status, created_at, updated_at`

func scanBill(row interface{ Scan(...any) error }) (*bill.Bill, error) {
	var b bill.Bill
	var closeDate sql.NullTime
	var minimumPayment, paidAmount sql.NullFloat64

	err := row.Scan(
		&b.ID, &b.UserID, &b.AccountID, &b.ProviderBillID,
		&b.DueDate, &closeDate, &b.TotalAmount, &minimumPayment, &paidAmount,
		&b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if closeDate.Valid {
		b.CloseDate = &closeDate.Time
	}
	if minimumPayment.Valid {
		b.MinimumPayment = &minimumPayment.Float64
	}
	if paidAmount.Valid {
		b.PaidAmount = &paidAmount.Float64
	}
	return &b, nil
}

// GetByID retrieves a bill by its ID
func (r *BillRepository) GetByID(ctx context.Context, id int64) (*bill.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM credit_card_bills WHERE id = $1`

	b, err := scanBill(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, bill.ErrBillNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	return b, nil
}

// GetByProviderBillID retrieves the user's bill carrying a provider
// bill id. Returns nil, nil when the id is unknown.
func (r *BillRepository) GetByProviderBillID(ctx context.Context, userID int64, providerBillID string) (*bill.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM credit_card_bills WHERE user_id = $1 AND provider_bill_id = $2`

	b, err := scanBill(r.db.QueryRowContext(ctx, query, userID, providerBillID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill by provider id: %w", err)
	}
	return b, nil
}

// ListByAccountID retrieves the bills of one card account, newest first
func (r *BillRepository) ListByAccountID(ctx context.Context, accountID int64) ([]*bill.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM credit_card_bills WHERE account_id = $1 ORDER BY due_date DESC`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var bills []*bill.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// Upsert creates a bill or refreshes the statement fields when one
// with the same provider bill id exists. The second return reports
// whether a new row was created.
func (r *BillRepository) Upsert(ctx context.Context, params bill.UpsertParams) (*bill.Bill, bool, error) {
	query := `
		INSERT INTO credit_card_bills (
			user_id, account_id, provider_bill_id, due_date, close_date,
			total_amount, minimum_payment, paid_amount, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, provider_bill_id)
		DO UPDATE SET
			due_date = EXCLUDED.due_date,
			close_date = EXCLUDED.close_date,
			total_amount = EXCLUDED.total_amount,
			minimum_payment = EXCLUDED.minimum_payment,
			paid_amount = EXCLUDED.paid_amount,
			status = EXCLUDED.status,
			updated_at = CURRENT_TIMESTAMP
		RETURNING ` + billColumns + `, (xmax = 0) AS inserted
	`

	var closeDate sql.NullTime
	if params.CloseDate != nil {
		closeDate = sql.NullTime{Time: *params.CloseDate, Valid: true}
	}
	var minimumPayment, paidAmount sql.NullFloat64
	if params.MinimumPayment != nil {
		minimumPayment = sql.NullFloat64{Float64: *params.MinimumPayment, Valid: true}
	}
	if params.PaidAmount != nil {
		paidAmount = sql.NullFloat64{Float64: *params.PaidAmount, Valid: true}
	}

	var b bill.Bill
	var closeDateOut sql.NullTime
	var minimumPaymentOut, paidAmountOut sql.NullFloat64
	var inserted bool

	err := r.db.QueryRowContext(
		ctx, query,
		params.UserID, params.AccountID, params.ProviderBillID, params.DueDate, closeDate,
		params.TotalAmount, minimumPayment, paidAmount, params.Status,
	).Scan(
		&b.ID, &b.UserID, &b.AccountID, &b.ProviderBillID,
		&b.DueDate, &closeDateOut, &b.TotalAmount, &minimumPaymentOut, &paidAmountOut,
		&b.Status, &b.CreatedAt, &b.UpdatedAt, &inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert bill: %w", err)
	}

	if closeDateOut.Valid {
		b.CloseDate = &closeDateOut.Time
	}
	if minimumPaymentOut.Valid {
		b.MinimumPayment = &minimumPaymentOut.Float64
	}
	if paidAmountOut.Valid {
		b.PaidAmount = &paidAmountOut.Float64
	}
	return &b, inserted, nil
}

// ReplaceLineItems swaps a bill's line items for the freshly pulled
// set in one transaction. The provider statement is the source of
// truth for what is on a bill.
func (r *BillRepository) ReplaceLineItems(ctx context.Context, billID int64, items []bill.LineItemParams) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bill_line_items WHERE bill_id = $1`, billID); err != nil {
		return fmt.Errorf("failed to clear bill line items: %w", err)
	}

	insert := `
		INSERT INTO bill_line_items (bill_id, provider_id, description, amount, date, installment_number, total_installments)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, item := range items {
		var date sql.NullTime
		if item.Date != nil {
			date = sql.NullTime{Time: *item.Date, Valid: true}
		}
		var installmentNumber, totalInstallments sql.NullInt64
		if item.InstallmentNumber != nil {
			installmentNumber = sql.NullInt64{Int64: int64(*item.InstallmentNumber), Valid: true}
		}
		if item.TotalInstallments != nil {
			totalInstallments = sql.NullInt64{Int64: int64(*item.TotalInstallments), Valid: true}
		}

		_, err := tx.ExecContext(ctx, insert,
			billID, nullString(item.ProviderID), item.Description, item.Amount,
			date, installmentNumber, totalInstallments,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bill line item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit line items: %w", err)
	}
	return nil
}

// ListLineItems retrieves a bill's line items
func (r *BillRepository) ListLineItems(ctx context.Context, billID int64) ([]*bill.LineItem, error) {
	query := `
		SELECT id, bill_id, provider_id, description, amount, date, installment_number, total_installments
		FROM bill_line_items
		WHERE bill_id = $1
		ORDER BY date, id
	`

	rows, err := r.db.QueryContext(ctx, query, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bill line items: %w", err)
	}
	defer rows.Close()

	var items []*bill.LineItem
	for rows.Next() {
		var item bill.LineItem
		var providerID sql.NullString
		var date sql.NullTime
		var installmentNumber, totalInstallments sql.NullInt64

		err := rows.Scan(
			&item.ID, &item.BillID, &providerID, &item.Description,
			&item.Amount, &date, &installmentNumber, &totalInstallments,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill line item: %w", err)
		}

		if providerID.Valid {
			item.ProviderID = providerID.String
		}
		if date.Valid {
			item.Date = &date.Time
		}
		if installmentNumber.Valid {
			n := int(installmentNumber.Int64)
			item.InstallmentNumber = &n
		}
		if totalInstallments.Valid {
			n := int(totalInstallments.Int64)
			item.TotalInstallments = &n
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}
