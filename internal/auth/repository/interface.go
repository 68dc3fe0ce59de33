package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UsersRepository is the persistence contract the auth service depends on.
type UsersRepository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetRole(ctx context.Context, id uuid.UUID, role string) error

	CreateUserToken(ctx context.Context, userID uuid.UUID, tokenHash, tokenType string, expiresAt time.Time) error
	GetUserToken(ctx context.Context, tokenHash, tokenType string) (uuid.UUID, time.Time, error)
	UseUserToken(ctx context.Context, tokenHash, tokenType string) error
	RevokeUserToken(ctx context.Context, tokenHash, tokenType string) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID, tokenType string) error
}

var _ UsersRepository = (*Repository)(nil)
