package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stemsi/psytest-backend/internal/config"
	"github.com/stemsi/psytest-backend/internal/model"
)

func newTestAuth(now time.Time) *AuthService {
	s := NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour})
	s.now = func() time.Time { return now }
	return s
}

func TestAuthRoundTrip(t *testing.T) {
	s := newTestAuth(time.Now())

	tok, err := s.GenerateAdminToken(3, []string{string(model.PermissionReportsRead)})
	if err != nil {
		t.Fatal(err)
	}
	claims, err := s.ValidateToken(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.TokenType != TokenTypeAdmin || claims.UserID != 3 || !claims.HasPermission(model.PermissionReportsRead) {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.HasPermission(model.PermissionSessionsWrite) {
		t.Fatal("permission not granted should be absent")
	}
}

func TestAuthExpired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	tok, err := newTestAuth(issued).GenerateParticipantToken(11)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := newTestAuth(time.Now()).ValidateToken(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAuthRejectsForeignSecret(t *testing.T) {
	tok, _ := newTestAuth(time.Now()).GenerateParticipantToken(11)

	other := NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour})
	if _, err := other.ValidateToken(tok); err == nil {
		t.Fatal("expected signature error")
	}
}
