package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenCodecIssueAndVerify(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	token, err := codec.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected a signed token")
	}

	subject, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("expected subject user-1, got %q", subject)
	}
}

func TestTokenCodecRejectsEmptyUserID(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)
	if _, err := codec.Issue(""); err == nil {
		t.Fatal("expected error issuing credential for empty user id")
	}
}

func TestTokenCodecRejectsTampering(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	token, err := codec.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tampered := token + "x"
	if _, err := codec.Verify(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for tampered token, got %v", err)
	}
}

func TestTokenCodecRejectsWrongSecret(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)
	other := NewTokenCodec("other-secret", time.Hour)

	token, err := codec.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := other.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid under a different secret, got %v", err)
	}
}

func TestTokenCodecRejectsExpired(t *testing.T) {
	issuedAt := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	now := issuedAt
	codec := NewTokenCodec("test-secret", time.Hour).WithNowFunc(func() time.Time { return now })

	token, err := codec.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = issuedAt.Add(30 * time.Minute)
	if _, err := codec.Verify(token); err != nil {
		t.Fatalf("expected token to verify before expiry, got %v", err)
	}

	now = issuedAt.Add(2 * time.Hour)
	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid after expiry, got %v", err)
	}
}

func TestTokenCodecRejectsGarbage(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	for _, token := range []string{"", "not-a-token", strings.Repeat("a", 64)} {
		if _, err := codec.Verify(token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid for %q, got %v", token, err)
		}
	}
}

func TestNewTokenCodecPanicsOnEmptySecret(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for empty secret")
		}
	}()
	NewTokenCodec("", time.Hour)
}
