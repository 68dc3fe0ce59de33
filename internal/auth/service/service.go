// Package service implements staff authentication: bcrypt credentials,
// JWT access tokens and rotating opaque refresh tokens.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"smiledesign_backend/internal/auth/password"
	"smiledesign_backend/internal/auth/repository"
	"smiledesign_backend/internal/auth/token"
	"smiledesign_backend/platform/apperr"
	"smiledesign_backend/platform/config"
	"smiledesign_backend/platform/logger"
)

const (
	accessTokenType  = "access"
	resetTokenTTL    = 2 * time.Hour
	refreshTokenSize = 48
)

// Mailer sends the password reset link. The email module implements it.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, to, link string) error
}

type Service struct {
	repo    repository.UsersRepository
	cfg     config.AuthServiceConfig
	baseURL string
	mailer  Mailer
	log     *logger.Logger
	now     func() time.Time
}

func New(repo repository.UsersRepository, cfg config.AuthServiceConfig, portalBaseURL string, mailer Mailer, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		cfg:     cfg,
		baseURL: strings.TrimRight(portalBaseURL, "/"),
		mailer:  mailer,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// TokenPair is what a successful sign-in or refresh yields.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SignIn checks credentials and issues a token pair. Failures are
// reported with one generic message so callers cannot probe for accounts.
func (s *Service) SignIn(ctx context.Context, email, plainPassword string) (repository.User, TokenPair, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return repository.User{}, TokenPair{}, apperr.Unauthorized("invalid credentials").WithOp("auth.SignIn")
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		s.log.AuthEvent("sign_in", user.Email, false, "bad password")
		return repository.User{}, TokenPair{}, apperr.Unauthorized("invalid credentials").WithOp("auth.SignIn")
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return repository.User{}, TokenPair{}, err
	}
	s.log.AuthEvent("sign_in", user.Email, true, "")
	return user, pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a
// fresh pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	hash := token.HashSHA256(refreshToken)
	userID, expiresAt, err := s.repo.GetUserToken(ctx, hash, repository.TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, apperr.Unauthorized("invalid refresh token").WithOp("auth.Refresh")
	}

	_ = s.repo.RevokeUserToken(ctx, hash, repository.TokenTypeRefresh)
	if s.now().After(expiresAt) {
		return TokenPair{}, apperr.Gone("refresh token expired").WithOp("auth.Refresh")
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return TokenPair{}, apperr.Unauthorized("invalid refresh token").WithOp("auth.Refresh")
	}
	return s.issueTokens(ctx, user)
}

func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	return s.repo.RevokeUserToken(ctx, token.HashSHA256(refreshToken), repository.TokenTypeRefresh)
}

// ForgotPassword issues a reset link. Unknown emails return success so
// the endpoint does not leak which accounts exist.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil
	}

	rawToken, err := token.GenerateRandomToken(32)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "token generation", err).WithOp("auth.ForgotPassword")
	}

	expiresAt := s.now().Add(resetTokenTTL)
	if err := s.repo.CreateUserToken(ctx, user.ID, token.HashSHA256(rawToken), repository.TokenTypePasswordReset, expiresAt); err != nil {
		return apperr.Wrap(apperr.KindInternal, "store reset token", err).WithOp("auth.ForgotPassword")
	}

	link := s.baseURL + "/reset-password?token=" + rawToken
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, link); err != nil {
		s.log.Warn("password reset email failed", "user_id", user.ID.String(), "error", err.Error())
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	hash := token.HashSHA256(rawToken)
	userID, expiresAt, err := s.repo.GetUserToken(ctx, hash, repository.TokenTypePasswordReset)
	if err != nil {
		return apperr.Unauthorized("invalid reset token").WithOp("auth.ResetPassword")
	}
	if s.now().After(expiresAt) {
		return apperr.Gone("reset token expired").WithOp("auth.ResetPassword")
	}

	passwordHash, err := password.Hash(newPassword)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "hash password", err).WithOp("auth.ResetPassword")
	}
	if err := s.repo.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return apperr.Wrap(apperr.KindInternal, "update password", err).WithOp("auth.ResetPassword")
	}

	// A reset invalidates every open session.
	_ = s.repo.UseUserToken(ctx, hash, repository.TokenTypePasswordReset)
	_ = s.repo.RevokeAllUserTokens(ctx, userID, repository.TokenTypeRefresh)
	s.log.AuthEvent("password_reset", userID.String(), true, "")
	return nil
}

// =============================================================================
// User administration
// =============================================================================

type CreateUserParams struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// CreateUser provisions a staff account. Admin only; there is no public
// sign-up for a clinic CRM.
func (s *Service) CreateUser(ctx context.Context, params CreateUserParams) (repository.User, error) {
	passwordHash, err := password.Hash(params.Password)
	if err != nil {
		return repository.User{}, apperr.Wrap(apperr.KindInternal, "hash password", err).WithOp("auth.CreateUser")
	}

	user, err := s.repo.CreateUser(ctx, repository.CreateUserParams{
		Email:        strings.ToLower(strings.TrimSpace(params.Email)),
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(params.Name),
		Role:         params.Role,
	})
	if errors.Is(err, repository.ErrEmailInUse) {
		return repository.User{}, apperr.Conflict("email already in use").WithOp("auth.CreateUser")
	}
	if err != nil {
		return repository.User{}, apperr.Wrap(apperr.KindInternal, "create user", err).WithOp("auth.CreateUser")
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (repository.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.User{}, apperr.NotFound("user not found").WithOp("auth.GetUser")
	}
	if err != nil {
		return repository.User{}, apperr.Wrap(apperr.KindInternal, "load user", err).WithOp("auth.GetUser")
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]repository.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list users", err).WithOp("auth.ListUsers")
	}
	return users, nil
}

func (s *Service) SetRole(ctx context.Context, id uuid.UUID, role string) error {
	err := s.repo.SetRole(ctx, id, role)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("user not found").WithOp("auth.SetRole")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "set role", err).WithOp("auth.SetRole")
	}
	return nil
}

// =============================================================================
// Token issuance
// =============================================================================

func (s *Service) issueTokens(ctx context.Context, user repository.User) (TokenPair, error) {
	accessToken, err := s.signJWT(user)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindInternal, "sign access token", err).WithOp("auth.issueTokens")
	}

	refreshToken, err := token.GenerateRandomToken(refreshTokenSize)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindInternal, "token generation", err).WithOp("auth.issueTokens")
	}

	expiresAt := s.now().Add(s.cfg.GetRefreshTokenTTL())
	if err := s.repo.CreateUserToken(ctx, user.ID, token.HashSHA256(refreshToken), repository.TokenTypeRefresh, expiresAt); err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindInternal, "store refresh token", err).WithOp("auth.issueTokens")
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *Service) signJWT(user repository.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"type": accessTokenType,
		"role": user.Role,
		"exp":  now.Add(s.cfg.GetAccessTokenTTL()).Unix(),
		"iat":  now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.GetJWTAccessSecret()))
}
