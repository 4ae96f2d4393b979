package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/bawabati/bawabati-backend/pkg/auth"
	"github.com/bawabati/bawabati-backend/pkg/auth/session"
	"github.com/bawabati/bawabati-backend/pkg/config"
	"github.com/bawabati/bawabati-backend/pkg/db/models"
	"github.com/bawabati/bawabati-backend/pkg/enums"
	pkgerrors "github.com/bawabati/bawabati-backend/pkg/errors"
	"github.com/bawabati/bawabati-backend/pkg/security"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "bawabati",
	ExpirationMinutes: 30,
}

func TestServiceLoginIssuesTokenPair(t *testing.T) {
	password := "driver-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "driver@example.com",
		PasswordHash: mustHashPassword(t, password),
		FirstName:    "Samir",
		LastName:     "Haddad",
		Role:         enums.UserRoleDriver,
		IsActive:     true,
	}

	svc, sessions := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "Driver@Example.com",
		Password: password,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected subject %s, got %s", user.ID, claims.UserID)
	}
	if claims.Role != enums.UserRoleDriver {
		t.Fatalf("expected driver role claim, got %s", claims.Role)
	}
	if resp.RefreshToken != sessions.refreshToken {
		t.Fatalf("expected refresh token from session manager")
	}
	if user.LastLoginAt == nil {
		t.Fatal("expected last login to be recorded")
	}
}

func TestServiceLoginRejectsWrongPassword(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Email:        "customer@example.com",
		PasswordHash: mustHashPassword(t, "right-password"),
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
	svc, _ := buildTestService(t, user)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: "wrong-password",
	})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestServiceLoginRejectsInactiveUser(t *testing.T) {
	password := "inactive"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "inactive@example.com",
		PasswordHash: mustHashPassword(t, password),
		Role:         enums.UserRoleCustomer,
		IsActive:     false,
	}
	svc, _ := buildTestService(t, user)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestServiceLoginUnknownEmail(t *testing.T) {
	svc, _ := buildTestService(t, nil)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever",
	})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestServiceRefreshRotatesSession(t *testing.T) {
	password := "refresh-me"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "refresh@example.com",
		PasswordHash: mustHashPassword(t, password),
		Role:         enums.UserRoleVendor,
		IsActive:     true,
	}
	svc, sessions := buildTestService(t, user)

	login, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken != sessions.rotatedRefresh {
		t.Fatalf("expected rotated refresh token")
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, refreshed.AccessToken)
	if err != nil {
		t.Fatalf("parse refreshed token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != enums.UserRoleVendor {
		t.Fatalf("refreshed claims should carry the original identity")
	}
}

func TestServiceRefreshRejectsBadRefreshToken(t *testing.T) {
	password := "refresh-me"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "refresh@example.com",
		PasswordHash: mustHashPassword(t, password),
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
	svc, sessions := buildTestService(t, user)
	sessions.rotateErr = session.ErrInvalidRefreshToken

	login, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: "stolen",
	})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestServiceLogoutRevokesSession(t *testing.T) {
	svc, sessions := buildTestService(t, nil)

	if err := svc.Logout(context.Background(), "access-id"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if sessions.revoked != "access-id" {
		t.Fatalf("expected revoke for access-id, got %q", sessions.revoked)
	}

	requireCode(t, svc.Logout(context.Background(), "  "), pkgerrors.CodeUnauthorized)
}

func buildTestService(t *testing.T, user *models.User) (Service, *stubSessionManager) {
	t.Helper()
	sessions := &stubSessionManager{refreshToken: "refresh-token", rotatedRefresh: "rotated-token"}
	svc, err := NewService(ServiceParams{
		UserRepo:       stubUserRepo{user: user},
		SessionManager: sessions,
		JWTConfig:      testJWTConfig,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, sessions
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

type stubUserRepo struct {
	user *models.User
}

func (s stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

type stubSessionManager struct {
	refreshToken   string
	rotatedRefresh string
	rotateErr      error
	revoked        string
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	return s.refreshToken, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	return session.NewAccessID(), s.rotatedRefresh, nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	s.revoked = accessID
	return nil
}
