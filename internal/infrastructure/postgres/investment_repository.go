package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agrego/internal/domain/investment"
)

// InvestmentRepository implements the investment.Repository interface for PostgreSQL
type InvestmentRepository struct {
	db *DB
}

// NewInvestmentRepository creates a new PostgreSQL investment repository
func NewInvestmentRepository(db *DB) *InvestmentRepository {
	return &InvestmentRepository{db: db}
}

const investmentColumns = `id, user_id, connection_id, provider_investment_id, name, investment_type, current_value, quantity, purchase_date, currency, created_at, updated_at`

func scanInvestment(row interface{ Scan(...any) error }) (*investment.Investment, error) {
	var inv investment.Investment
	var providerID sql.NullString
	var quantity sql.NullFloat64
	var purchaseDate sql.NullTime

	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.ConnectionID, &providerID,
		&inv.Name, &inv.InvestmentType, &inv.CurrentValue, &quantity,
		&purchaseDate, &inv.Currency, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if providerID.Valid {
		inv.ProviderInvestmentID = providerID.String
	}
	if quantity.Valid {
		inv.Quantity = &quantity.Float64
	}
	if purchaseDate.Valid {
		inv.PurchaseDate = &purchaseDate.Time
	}
	return &inv, nil
}

// GetByID retrieves an investment by its ID
func (r *InvestmentRepository) GetByID(ctx context.Context, id int64) (*investment.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`

	inv, err := scanInvestment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, investment.ErrInvestmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get investment: %w", err)
	}
	return inv, nil
}

// GetByProviderID retrieves the user's investment carrying a provider
// id. Returns nil, nil when the id is unknown.
func (r *InvestmentRepository) GetByProviderID(ctx context.Context, userID int64, providerInvestmentID string) (*investment.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE user_id = $1 AND provider_investment_id = $2`

	inv, err := scanInvestment(r.db.QueryRowContext(ctx, query, userID, providerInvestmentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get investment by provider id: %w", err)
	}
	return inv, nil
}

// FindByNaturalKey matches a holding on (name, purchase date). A nil
// purchase date matches only rows with no purchase date. Returns
// nil, nil when nothing matches.
func (r *InvestmentRepository) FindByNaturalKey(ctx context.Context, userID int64, name string, purchaseDate *time.Time) (*investment.Investment, error) {
	query := `
		SELECT ` + investmentColumns + `
		FROM investments
		WHERE user_id = $1 AND name = $2
		  AND ($3::date IS NULL AND purchase_date IS NULL OR purchase_date = $3::date)
		LIMIT 1
	`

	var date sql.NullTime
	if purchaseDate != nil {
		date = sql.NullTime{Time: *purchaseDate, Valid: true}
	}

	inv, err := scanInvestment(r.db.QueryRowContext(ctx, query, userID, name, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find investment by natural key: %w", err)
	}
	return inv, nil
}

// ListByConnectionID retrieves the holdings reported under one connection
func (r *InvestmentRepository) ListByConnectionID(ctx context.Context, connectionID int64) ([]*investment.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE connection_id = $1 ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}
	defer rows.Close()

	var investments []*investment.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}
		investments = append(investments, inv)
	}
	return investments, rows.Err()
}

// Create inserts a new investment row
func (r *InvestmentRepository) Create(ctx context.Context, params investment.CreateParams) (*investment.Investment, error) {
	query := `
		INSERT INTO investments (
			user_id, connection_id, provider_investment_id, name, investment_type,
			current_value, quantity, purchase_date, currency
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + investmentColumns + `
	`

	var quantity sql.NullFloat64
	if params.Quantity != nil {
		quantity = sql.NullFloat64{Float64: *params.Quantity, Valid: true}
	}
	var purchaseDate sql.NullTime
	if params.PurchaseDate != nil {
		purchaseDate = sql.NullTime{Time: *params.PurchaseDate, Valid: true}
	}

	inv, err := scanInvestment(r.db.QueryRowContext(
		ctx, query,
		params.UserID, params.ConnectionID, nullString(params.ProviderInvestmentID),
		params.Name, params.InvestmentType, params.CurrentValue, quantity,
		purchaseDate, params.Currency,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create investment: %w", err)
	}
	return inv, nil
}

// UpdateValue refreshes the current value and quantity of a holding
func (r *InvestmentRepository) UpdateValue(ctx context.Context, id int64, currentValue float64, quantity *float64) error {
	query := `
		UPDATE investments
		SET current_value = $1,
		    quantity = COALESCE($2, quantity),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`

	var q sql.NullFloat64
	if quantity != nil {
		q = sql.NullFloat64{Float64: *quantity, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query, currentValue, q, id)
	if err != nil {
		return fmt.Errorf("failed to update investment value: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return investment.ErrInvestmentNotFound
	}
	return nil
}
