package webhooks

import (
	"errors"
	"testing"
	"time"
)

func TestSignVerify(t *testing.T) {
	body := []byte(`{"type":"emergency.resolved"}`)
	at := time.Unix(1_700_000_000, 0)
	h := Sign("k", at, body)

	if err := Verify("k", body, h, at.Add(30*time.Second), time.Minute); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := Verify("other", body, h, at, time.Minute); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("wrong secret: %v", err)
	}
	if err := Verify("k", []byte(`{}`), h, at, time.Minute); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("tampered body: %v", err)
	}
	if err := Verify("k", body, h, at.Add(time.Hour), time.Minute); !errors.Is(err, ErrStaleSignature) {
		t.Fatalf("replayed signature: %v", err)
	}
	if err := Verify("k", body, "v1=zz", at, time.Minute); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("garbage header: %v", err)
	}
}
