package auth

import (
	"errors"
	"testing"
	"time"
)

func TestDevModeAcceptsRoleTokens(t *testing.T) {
	v := NewVerifier("", "")
	p, err := v.Verify("Dispatcher")
	if err != nil || p.Role != RoleDispatcher {
		t.Fatalf("got %+v, %v", p, err)
	}
	if _, err := v.Verify("root"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unknown role accepted: %v", err)
	}
}

func TestHMACRoundTrip(t *testing.T) {
	v := NewVerifier("hmac", "s3cret")
	tok, err := v.Issue("ops-1", RoleAdmin, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	p, err := v.Verify(tok)
	if err != nil || p.Role != RoleAdmin || p.Subject != "ops-1" {
		t.Fatalf("got %+v, %v", p, err)
	}

	other := NewVerifier("hmac", "different")
	if _, err := other.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret accepted: %v", err)
	}
	expired, _ := v.Issue("ops-1", RoleAdmin, -time.Minute)
	if _, err := v.Verify(expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token accepted: %v", err)
	}
}
