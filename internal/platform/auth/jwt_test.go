package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSignAndParse(t *testing.T) {
	m := NewManager("test-secret", 15*time.Minute)
	token, err := m.Sign("user-1", "alice")
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if claims.Subject != "user-1" || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParse_WrongSecret(t *testing.T) {
	token, _ := NewManager("secret-a", time.Minute).Sign("user-1", "alice")
	_, err := NewManager("secret-b", time.Minute).Parse(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParse_Expired(t *testing.T) {
	m := NewManager("test-secret", time.Minute)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.Now = func() time.Time { return base }
	token, _ := m.Sign("user-1", "alice")

	m.Now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := m.Parse(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	if got := BearerToken("Bearer abc.def.ghi"); got != "abc.def.ghi" {
		t.Fatalf("unexpected token: %q", got)
	}
	if got := BearerToken("Basic dXNlcg=="); got != "" {
		t.Fatalf("non-bearer scheme accepted: %q", got)
	}
	if got := BearerToken(""); got != "" {
		t.Fatalf("empty header produced token: %q", got)
	}
}
