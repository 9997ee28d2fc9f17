package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/meerkat-app/meerkat/internal/common"
)

func testManager() *Manager {
	return NewManager([]byte("SdbfkVibnwyqJJgpNFbWdmKKYPGZ1Nhl"), "meerkat.test", "meerkat.test", 2*time.Minute)
}

func TestIssueAndValidate_Success(t *testing.T) {
	t.Parallel()

	m := testManager()
	now := time.Now()

	tok, err := m.Issue(42, now)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	id, err := m.Validate(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if id != 42 {
		t.Fatalf("account id mismatch: got %d want 42", id)
	}
}

func TestValidate_Expired(t *testing.T) {
	t.Parallel()

	m := testManager()
	now := time.Now()

	tok, err := m.Issue(1, now)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = m.Validate(tok, now.Add(3*time.Minute))
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tok, err := testManager().Issue(1, now)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	other := NewManager([]byte("another-secret-another-secret-xx"), "meerkat.test", "meerkat.test", 2*time.Minute)
	_, err = other.Validate(tok, now)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestValidate_WrongIssuerAndAudience(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tok, err := testManager().Issue(1, now)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	wrongIssuer := NewManager([]byte("SdbfkVibnwyqJJgpNFbWdmKKYPGZ1Nhl"), "evil.test", "meerkat.test", 2*time.Minute)
	if _, err := wrongIssuer.Validate(tok, now); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken for issuer mismatch, got %v", err)
	}

	wrongAudience := NewManager([]byte("SdbfkVibnwyqJJgpNFbWdmKKYPGZ1Nhl"), "meerkat.test", "evil.test", 2*time.Minute)
	if _, err := wrongAudience.Validate(tok, now); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken for audience mismatch, got %v", err)
	}
}

func TestValidate_Garbage(t *testing.T) {
	t.Parallel()

	_, err := testManager().Validate("not-a-token", time.Now())
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestSubject_IgnoresExpiry(t *testing.T) {
	t.Parallel()

	m := testManager()
	now := time.Now()

	tok, err := m.Issue(7, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	// Long expired, but the subject must still be recoverable.
	id, err := m.Subject(tok)
	if err != nil {
		t.Fatalf("Subject error: %v", err)
	}
	if id != 7 {
		t.Fatalf("account id mismatch: got %d want 7", id)
	}
}

func TestSubject_ChecksSignatureIssuerAudience(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tok, err := testManager().Issue(7, now)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	cases := map[string]*Manager{
		"wrong secret":   NewManager([]byte("another-secret-another-secret-xx"), "meerkat.test", "meerkat.test", time.Minute),
		"wrong issuer":   NewManager([]byte("SdbfkVibnwyqJJgpNFbWdmKKYPGZ1Nhl"), "evil.test", "meerkat.test", time.Minute),
		"wrong audience": NewManager([]byte("SdbfkVibnwyqJJgpNFbWdmKKYPGZ1Nhl"), "meerkat.test", "evil.test", time.Minute),
	}
	for name, m := range cases {
		if _, err := m.Subject(tok); !errors.Is(err, common.ErrInvalidToken) {
			t.Fatalf("%s: expected common.ErrInvalidToken, got %v", name, err)
		}
	}
}
