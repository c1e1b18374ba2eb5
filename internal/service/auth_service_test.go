package service

import (
	"errors"
	"testing"
	"time"

	"github.com/minidrive/minidrive/internal/repository"
	"github.com/minidrive/minidrive/pkg/testutil"
)

func newAuthTestEnv(t *testing.T) (*AuthService, func()) {
	t.Helper()

	db, _, cleanup := testutil.SetupTest(t)
	userRepo := repository.NewUserRepository(db)
	svc := NewAuthService(userRepo, "test-jwt-secret", time.Hour, 1<<30)
	return svc, cleanup
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc, cleanup := newAuthTestEnv(t)
	defer cleanup()

	user, err := svc.Register("Alice@Example.com", "correct horse battery", "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if !user.IsAdmin {
		t.Fatalf("first registered user should be admin")
	}
	if user.QuotaLimit != 1<<30 {
		t.Fatalf("expected default quota, got %d", user.QuotaLimit)
	}

	second, err := svc.Register("bob@example.com", "another password", "Bob")
	if err != nil {
		t.Fatalf("register second: %v", err)
	}
	if second.IsAdmin {
		t.Fatalf("second user must not be admin")
	}

	token, loggedIn, err := svc.Login("alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("login returned wrong user")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != user.ID || !claims.IsAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestAuthService_DuplicateEmailRejected(t *testing.T) {
	svc, cleanup := newAuthTestEnv(t)
	defer cleanup()

	if _, err := svc.Register("dup@example.com", "password one", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register("DUP@example.com", "password two", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAuthService_LoginFailuresIndistinguishable(t *testing.T) {
	svc, cleanup := newAuthTestEnv(t)
	defer cleanup()

	if _, err := svc.Register("carol@example.com", "the right password", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, wrongPass := svc.Login("carol@example.com", "the wrong password")
	_, _, noUser := svc.Login("nobody@example.com", "whatever")

	if !errors.Is(wrongPass, ErrInvalidCredentials) || !errors.Is(noUser, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", wrongPass, noUser)
	}
}

func TestAuthService_ValidateToken_RejectsGarbage(t *testing.T) {
	svc, cleanup := newAuthTestEnv(t)
	defer cleanup()

	if _, err := svc.ValidateToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	if _, err := svc.ValidateToken(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}
