// Package repository provides Postgres persistence for staff users and
// their refresh/reset tokens.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailInUse    = errors.New("email already in use")
	ErrTokenNotFound = errors.New("token not found")
)

// Token types stored in user_tokens.
const (
	TokenTypeRefresh       = "refresh"
	TokenTypePasswordReset = "password_reset"
)

// User is a staff member. Each user holds exactly one role: admin,
// doctor or employee.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, password_hash, name, role, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	Name         string
	Role         string
}

func (r *Repository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		uuid.New(), params.Email, params.PasswordHash, params.Name, params.Role)

	user, err := scanUser(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return User{}, ErrEmailInUse
	}
	return user, err
}

const getUserByEmailQuery = `
	SELECT ` + userColumns + `
	FROM users
	WHERE lower(email) = lower($1)`

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, getUserByEmailQuery, email))
}

func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetRole(ctx context.Context, id uuid.UUID, role string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// User tokens (refresh + password reset)
// =============================================================================

func (r *Repository) CreateUserToken(ctx context.Context, userID uuid.UUID, tokenHash, tokenType string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_tokens (token_hash, user_id, token_type, expires_at)
		VALUES ($1, $2, $3, $4)`,
		tokenHash, userID, tokenType, expiresAt)
	return err
}

const getUserTokenQuery = `
	SELECT user_id, expires_at
	FROM user_tokens
	WHERE token_hash = $1
	  AND token_type = $2
	  AND used_at IS NULL`

// GetUserToken returns the owner and expiry of an unused token.
func (r *Repository) GetUserToken(ctx context.Context, tokenHash, tokenType string) (uuid.UUID, time.Time, error) {
	var userID uuid.UUID
	var expiresAt time.Time
	err := r.pool.QueryRow(ctx, getUserTokenQuery, tokenHash, tokenType).Scan(&userID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, time.Time{}, ErrTokenNotFound
	}
	return userID, expiresAt, err
}

func (r *Repository) UseUserToken(ctx context.Context, tokenHash, tokenType string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_tokens SET used_at = now()
		WHERE token_hash = $1 AND token_type = $2 AND used_at IS NULL`,
		tokenHash, tokenType)
	return err
}

func (r *Repository) RevokeUserToken(ctx context.Context, tokenHash, tokenType string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM user_tokens WHERE token_hash = $1 AND token_type = $2`,
		tokenHash, tokenType)
	return err
}

func (r *Repository) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID, tokenType string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM user_tokens WHERE user_id = $1 AND token_type = $2`,
		userID, tokenType)
	return err
}
