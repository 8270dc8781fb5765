package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/blogspy/backend/internal/models"
)

type grantRecorder struct {
	calls []int
	err   error
}

func (g *grantRecorder) AddCredits(_ context.Context, _ uuid.UUID, credits, bonus int, _, _ string) (*models.CreditBalance, error) {
	g.calls = append(g.calls, credits+bonus)
	return &models.CreditBalance{}, g.err
}

func newTestService(g CreditGranter) Service {
	return NewService(NewMemoryRepository(), g, Config{Secret: "test-secret", SignupBonus: 3}, nil)
}

func TestRegisterLoginValidate(t *testing.T) {
	g := &grantRecorder{}
	svc := newTestService(g)

	u, err := svc.Register(context.Background(), " Ana@Example.com ", "correct horse", "Ana")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "ana@example.com" {
		t.Errorf("email = %q", u.Email)
	}
	if len(g.calls) != 1 || g.calls[0] != 3 {
		t.Errorf("signup bonus calls = %v, want [3]", g.calls)
	}

	token, err := svc.Login(context.Background(), "ANA@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, err := svc.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if id != u.ID {
		t.Errorf("token subject = %s, want %s", id, u.ID)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	svc := newTestService(nil)
	if _, err := svc.Register(context.Background(), "a@example.com", "password1", ""); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := svc.Register(context.Background(), "A@example.com", "password2", ""); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("got %v, want ErrDuplicateEmail", err)
	}
}

func TestRegister_BonusFailureIsNotFatal(t *testing.T) {
	svc := newTestService(&grantRecorder{err: errors.New("db down")})
	if _, err := svc.Register(context.Background(), "b@example.com", "password1", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := newTestService(nil)
	_, _ = svc.Register(context.Background(), "c@example.com", "password1", "")

	if _, err := svc.Login(context.Background(), "c@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: got %v", err)
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := newTestService(nil)

	if _, err := svc.ValidateToken(context.Background(), "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: got %v", err)
	}

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: uuid.NewString()})
	signed, _ := other.SignedString([]byte("another-secret"))
	if _, err := svc.ValidateToken(context.Background(), signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret: got %v", err)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	signed, _ = expired.SignedString([]byte("test-secret"))
	if _, err := svc.ValidateToken(context.Background(), signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired: got %v", err)
	}
}
