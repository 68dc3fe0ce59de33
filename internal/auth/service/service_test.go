package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"smiledesign_backend/internal/auth/password"
	"smiledesign_backend/internal/auth/repository"
	"smiledesign_backend/internal/auth/token"
	"smiledesign_backend/platform/apperr"
	"smiledesign_backend/platform/logger"
)

type storedToken struct {
	userID    uuid.UUID
	tokenType string
	expiresAt time.Time
	used      bool
}

type memRepo struct {
	repository.UsersRepository

	users  map[uuid.UUID]repository.User
	tokens map[string]storedToken
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:  make(map[uuid.UUID]repository.User),
		tokens: make(map[string]storedToken),
	}
}

func (m *memRepo) GetUserByEmail(_ context.Context, email string) (repository.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return repository.User{}, repository.ErrNotFound
}

func (m *memRepo) GetUserByID(_ context.Context, id uuid.UUID) (repository.User, error) {
	user, ok := m.users[id]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (m *memRepo) CreateUserToken(_ context.Context, userID uuid.UUID, tokenHash, tokenType string, expiresAt time.Time) error {
	m.tokens[tokenHash] = storedToken{userID: userID, tokenType: tokenType, expiresAt: expiresAt}
	return nil
}

func (m *memRepo) GetUserToken(_ context.Context, tokenHash, tokenType string) (uuid.UUID, time.Time, error) {
	stored, ok := m.tokens[tokenHash]
	if !ok || stored.tokenType != tokenType || stored.used {
		return uuid.Nil, time.Time{}, repository.ErrTokenNotFound
	}
	return stored.userID, stored.expiresAt, nil
}

func (m *memRepo) UseUserToken(_ context.Context, tokenHash, tokenType string) error {
	if stored, ok := m.tokens[tokenHash]; ok && stored.tokenType == tokenType {
		stored.used = true
		m.tokens[tokenHash] = stored
	}
	return nil
}

func (m *memRepo) RevokeUserToken(_ context.Context, tokenHash, tokenType string) error {
	delete(m.tokens, tokenHash)
	return nil
}

func (m *memRepo) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	m.users[id] = user
	return nil
}

func (m *memRepo) RevokeAllUserTokens(_ context.Context, userID uuid.UUID, tokenType string) error {
	for hash, stored := range m.tokens {
		if stored.userID == userID && stored.tokenType == tokenType {
			delete(m.tokens, hash)
		}
	}
	return nil
}

type testConfig struct{}

func (testConfig) GetJWTAccessSecret() string        { return "test-secret" }
func (testConfig) GetAccessTokenTTL() time.Duration  { return 15 * time.Minute }
func (testConfig) GetRefreshTokenTTL() time.Duration { return 24 * time.Hour }

type noopMailer struct{}

func (noopMailer) SendPasswordResetEmail(context.Context, string, string) error { return nil }

func seedUser(t *testing.T, repo *memRepo, email, plain, role string) repository.User {
	t.Helper()
	hash, err := password.Hash(plain)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := repository.User{ID: uuid.New(), Email: email, PasswordHash: hash, Name: "Test Staff", Role: role}
	repo.users[user.ID] = user
	return user
}

func newTestService(repo *memRepo) *Service {
	return New(repo, testConfig{}, "https://portal.example.com", noopMailer{}, logger.New("test"))
}

func TestSignInIssuesAccessTokenWithRoleClaim(t *testing.T) {
	repo := newMemRepo()
	seedUser(t, repo, "dr.yilmaz@clinic.example", "correct-horse-battery", "doctor")
	svc := newTestService(repo)

	user, pair, err := svc.SignIn(context.Background(), "dr.yilmaz@clinic.example", "correct-horse-battery")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if user.Role != "doctor" {
		t.Fatalf("role = %q", user.Role)
	}
	if pair.RefreshToken == "" {
		t.Fatal("expected a refresh token")
	}

	parsed, err := jwt.Parse(pair.AccessToken, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("access token invalid: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["role"] != "doctor" {
		t.Fatalf("role claim = %v", claims["role"])
	}
	if claims["type"] != "access" {
		t.Fatalf("type claim = %v", claims["type"])
	}
	if claims["sub"] != user.ID.String() {
		t.Fatalf("sub claim = %v", claims["sub"])
	}
}

func TestSignInGenericFailureMessage(t *testing.T) {
	repo := newMemRepo()
	seedUser(t, repo, "staff@clinic.example", "correct-horse-battery", "employee")
	svc := newTestService(repo)

	cases := []struct{ email, password string }{
		{"staff@clinic.example", "wrong"},
		{"nobody@clinic.example", "whatever"},
	}
	for _, tc := range cases {
		_, _, err := svc.SignIn(context.Background(), tc.email, tc.password)
		if !apperr.Is(err, apperr.KindUnauthorized) {
			t.Fatalf("SignIn(%q) kind = %v", tc.email, err)
		}
		var appErr *apperr.Error
		if !errors.As(err, &appErr) || appErr.Message != "invalid credentials" {
			t.Fatalf("SignIn(%q) message = %v", tc.email, err)
		}
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	repo := newMemRepo()
	seedUser(t, repo, "staff@clinic.example", "correct-horse-battery", "employee")
	svc := newTestService(repo)

	_, pair, err := svc.SignIn(context.Background(), "staff@clinic.example", "correct-horse-battery")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	next, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The old token is revoked after rotation.
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized for replayed token, got %v", err)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	repo := newMemRepo()
	user := seedUser(t, repo, "staff@clinic.example", "correct-horse-battery", "employee")
	svc := newTestService(repo)

	raw, err := token.GenerateRandomToken(48)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	repo.tokens[token.HashSHA256(raw)] = storedToken{
		userID:    user.ID,
		tokenType: repository.TokenTypeRefresh,
		expiresAt: time.Now().Add(-time.Hour),
	}

	if _, err := svc.Refresh(context.Background(), raw); !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expected gone for expired token, got %v", err)
	}
}

func TestResetPasswordRevokesSessions(t *testing.T) {
	repo := newMemRepo()
	user := seedUser(t, repo, "staff@clinic.example", "correct-horse-battery", "employee")
	svc := newTestService(repo)

	_, pair, err := svc.SignIn(context.Background(), "staff@clinic.example", "correct-horse-battery")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	raw, _ := token.GenerateRandomToken(32)
	repo.tokens[token.HashSHA256(raw)] = storedToken{
		userID:    user.ID,
		tokenType: repository.TokenTypePasswordReset,
		expiresAt: time.Now().Add(time.Hour),
	}

	if err := svc.ResetPassword(context.Background(), raw, "new-longer-password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected refresh tokens revoked after reset, got %v", err)
	}
	if _, _, err := svc.SignIn(context.Background(), "staff@clinic.example", "new-longer-password"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
}
