package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrVerificationNotFound = errors.New("verification not found")

type EmailVerification struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	Email      string
	TokenHash  string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// CreateVerification stores a pending verification for a lead. Prior
// unconsumed verifications for the same lead are removed first, so at most
// one link per lead is live at a time.
func (r *Repository) CreateVerification(ctx context.Context, leadID uuid.UUID, email, tokenHash string, expiresAt time.Time) (EmailVerification, error) {
	if _, err := r.db.Exec(ctx, `
		DELETE FROM lead_email_verifications WHERE lead_id = $1 AND consumed_at IS NULL
	`, leadID); err != nil {
		return EmailVerification{}, err
	}

	var v EmailVerification
	err := r.db.QueryRow(ctx, `
		INSERT INTO lead_email_verifications (lead_id, email, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, lead_id, email, token_hash, expires_at, consumed_at, created_at
	`, leadID, email, tokenHash, expiresAt).Scan(
		&v.ID, &v.LeadID, &v.Email, &v.TokenHash, &v.ExpiresAt, &v.ConsumedAt, &v.CreatedAt,
	)
	return v, err
}

func (r *Repository) GetVerificationByTokenHash(ctx context.Context, tokenHash string) (EmailVerification, error) {
	var v EmailVerification
	err := r.db.QueryRow(ctx, `
		SELECT id, lead_id, email, token_hash, expires_at, consumed_at, created_at
		FROM lead_email_verifications
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&v.ID, &v.LeadID, &v.Email, &v.TokenHash, &v.ExpiresAt, &v.ConsumedAt, &v.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return EmailVerification{}, ErrVerificationNotFound
	}
	return v, err
}

func (r *Repository) ConsumeVerification(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE lead_email_verifications SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVerificationNotFound
	}
	return nil
}

// DeleteExpiredVerifications removes stale unconsumed rows. Run by the
// scheduler, not request handlers.
func (r *Repository) DeleteExpiredVerifications(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM lead_email_verifications WHERE consumed_at IS NULL AND expires_at < $1
	`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
