package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recallcontext/backend/internal/models"
)

// Repository handles user_settings persistence, one row per identity.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a settings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByUserID returns the settings row for userID, or nil when none exists.
func (r *Repository) GetByUserID(ctx context.Context, userID string) (*models.UserSettings, error) {
	const q = `SELECT id, user_id, encrypted_api_key, encryption_iv, created_at, updated_at
		FROM user_settings WHERE user_id = $1`
	var s models.UserSettings
	err := r.pool.QueryRow(ctx, q, userID).Scan(&s.ID, &s.UserID, &s.EncryptedAPIKey, &s.EncryptionIV, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Upsert creates or overwrites the credential fields for userID.
func (r *Repository) Upsert(ctx context.Context, userID, encryptedAPIKey, iv string) error {
	const q = `INSERT INTO user_settings (user_id, encrypted_api_key, encryption_iv)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET encrypted_api_key = EXCLUDED.encrypted_api_key, encryption_iv = EXCLUDED.encryption_iv, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, userID, encryptedAPIKey, iv)
	return err
}
