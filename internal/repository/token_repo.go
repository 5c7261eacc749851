package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mail-sync-service/internal/model"
)

type TokenRepository struct {
	db *pgxpool.Pool
}

func NewTokenRepository(db *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{db: db}
}

// FindByOwner returns the credential for an owner, or nil when none is stored.
func (r *TokenRepository) FindByOwner(ctx context.Context, ownerID string) (*model.Credential, error) {
	query := `
        SELECT id, owner_id, google_email, access_token, refresh_token,
               access_token_expires_at, last_synced_at, created_at, updated_at
        FROM gmail_tokens
        WHERE owner_id = $1
    `

	var c model.Credential
	var refreshToken *string

	err := r.db.QueryRow(ctx, query, ownerID).Scan(
		&c.ID,
		&c.OwnerID,
		&c.GoogleEmail,
		&c.AccessToken,
		&refreshToken,
		&c.AccessTokenExpiresAt,
		&c.LastSyncedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if refreshToken != nil {
		c.RefreshToken = *refreshToken
	}
	return &c, nil
}

// FindAll returns every stored credential. Full scan is fine at the expected
// scale (dozens to low hundreds of owners).
func (r *TokenRepository) FindAll(ctx context.Context) ([]model.Credential, error) {
	query := `
        SELECT id, owner_id, google_email, access_token, refresh_token,
               access_token_expires_at, last_synced_at, created_at, updated_at
        FROM gmail_tokens
        ORDER BY owner_id
    `

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	creds := []model.Credential{}
	for rows.Next() {
		var c model.Credential
		var refreshToken *string

		err := rows.Scan(
			&c.ID,
			&c.OwnerID,
			&c.GoogleEmail,
			&c.AccessToken,
			&refreshToken,
			&c.AccessTokenExpiresAt,
			&c.LastSyncedAt,
			&c.CreatedAt,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		if refreshToken != nil {
			c.RefreshToken = *refreshToken
		}
		creds = append(creds, c)
	}

	return creds, rows.Err()
}

// Save upserts the credential keyed by owner_id.
func (r *TokenRepository) Save(ctx context.Context, c *model.Credential) error {
	query := `
        INSERT INTO gmail_tokens
            (owner_id, google_email, access_token, refresh_token,
             access_token_expires_at, last_synced_at, created_at, updated_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NOW(), NOW())
        ON CONFLICT (owner_id) DO UPDATE SET
            google_email = EXCLUDED.google_email,
            access_token = EXCLUDED.access_token,
            refresh_token = COALESCE(EXCLUDED.refresh_token, gmail_tokens.refresh_token),
            access_token_expires_at = EXCLUDED.access_token_expires_at,
            last_synced_at = EXCLUDED.last_synced_at,
            updated_at = NOW()
        RETURNING id
    `

	return r.db.QueryRow(ctx, query,
		c.OwnerID,
		c.GoogleEmail,
		c.AccessToken,
		c.RefreshToken,
		c.AccessTokenExpiresAt,
		c.LastSyncedAt,
	).Scan(&c.ID)
}

// UpdateLastSynced stamps a successful sync for an owner.
func (r *TokenRepository) UpdateLastSynced(ctx context.Context, ownerID string, syncedAt time.Time) error {
	query := `
        UPDATE gmail_tokens
        SET last_synced_at = $2, updated_at = NOW()
        WHERE owner_id = $1
    `
	_, err := r.db.Exec(ctx, query, ownerID, syncedAt)
	return err
}

// DeleteByOwner removes the credential on explicit disconnect.
func (r *TokenRepository) DeleteByOwner(ctx context.Context, ownerID string) error {
	query := `DELETE FROM gmail_tokens WHERE owner_id = $1`
	_, err := r.db.Exec(ctx, query, ownerID)
	return err
}
