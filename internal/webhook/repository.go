// Package webhook receives booking-provider callbacks and turns them into
// lead timeline events.
package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrKeyNotFound = errors.New("webhook api key not found")

// APIKey authenticates a webhook caller. Only the SHA-256 hash of the key
// is stored; the plaintext is shown once at creation.
type APIKey struct {
	ID             uuid.UUID
	Name           string
	KeyHash        string
	AllowedDomains []string
	CreatedAt      time.Time
	RevokedAt      *time.Time
}

func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByHash(ctx context.Context, keyHash string) (APIKey, error) {
	var key APIKey
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, key_hash, allowed_domains, created_at, revoked_at
		FROM webhook_api_keys
		WHERE key_hash = $1 AND revoked_at IS NULL
	`, keyHash).Scan(&key.ID, &key.Name, &key.KeyHash, &key.AllowedDomains, &key.CreatedAt, &key.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return APIKey{}, ErrKeyNotFound
	}
	return key, err
}

func (r *Repository) Create(ctx context.Context, name, keyHash string, allowedDomains []string) (APIKey, error) {
	var key APIKey
	err := r.pool.QueryRow(ctx, `
		INSERT INTO webhook_api_keys (name, key_hash, allowed_domains)
		VALUES ($1, $2, $3)
		RETURNING id, name, key_hash, allowed_domains, created_at, revoked_at
	`, name, keyHash, allowedDomains).Scan(&key.ID, &key.Name, &key.KeyHash, &key.AllowedDomains, &key.CreatedAt, &key.RevokedAt)
	return key, err
}

func (r *Repository) List(ctx context.Context) ([]APIKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, key_hash, allowed_domains, created_at, revoked_at
		FROM webhook_api_keys
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]APIKey, 0)
	for rows.Next() {
		var key APIKey
		if err := rows.Scan(&key.ID, &key.Name, &key.KeyHash, &key.AllowedDomains, &key.CreatedAt, &key.RevokedAt); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *Repository) Revoke(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE webhook_api_keys SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}
