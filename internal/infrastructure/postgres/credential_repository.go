package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"agrego/internal/domain/credential"
	"agrego/internal/infrastructure/crypto"
)

// CredentialRepository implements the credential.Repository interface
// for PostgreSQL. Client secrets are encrypted before they touch the
// database and decrypted on the way out.
type CredentialRepository struct {
	db        *DB
	encryptor *crypto.Encryptor
}

// NewCredentialRepository creates a new PostgreSQL credential repository
func NewCredentialRepository(db *DB, encryptor *crypto.Encryptor) *CredentialRepository {
	return &CredentialRepository{db: db, encryptor: encryptor}
}

// GetByUserID retrieves and decrypts the user's provider credential.
// Returns nil, nil when the user has none stored.
func (r *CredentialRepository) GetByUserID(ctx context.Context, userID int64) (*credential.Credential, error) {
	query := `
		SELECT user_id, client_id, client_secret_enc, created_at, updated_at
		FROM provider_credentials
		WHERE user_id = $1
	`

	var cred credential.Credential
	var encryptedSecret string

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&cred.UserID, &cred.ClientID, &encryptedSecret, &cred.CreatedAt, &cred.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	cred.ClientSecret, err = r.encryptor.Decrypt(encryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt client secret: %w", err)
	}
	return &cred, nil
}

// Save stores or replaces the user's credential pair
func (r *CredentialRepository) Save(ctx context.Context, params credential.SaveParams) error {
	encrypted, err := r.encryptor.Encrypt(params.ClientSecret)
	if err != nil {
		return fmt.Errorf("failed to encrypt client secret: %w", err)
	}

	query := `
		INSERT INTO provider_credentials (user_id, client_id, client_secret_enc)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET
			client_id = EXCLUDED.client_id,
			client_secret_enc = EXCLUDED.client_secret_enc,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := r.db.ExecContext(ctx, query, params.UserID, params.ClientID, encrypted); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Delete removes the user's credential, disabling provider sync
func (r *CredentialRepository) Delete(ctx context.Context, userID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM provider_credentials WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return credential.ErrCredentialNotFound
	}
	return nil
}

// ListUserIDs returns every user with a stored credential
func (r *CredentialRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM provider_credentials ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list credential users: %w", err)
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}
