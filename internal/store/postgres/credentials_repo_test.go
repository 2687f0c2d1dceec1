package postgres

import (
	"strings"
	"testing"
)

func TestCredentialSealOpenRoundTrip(t *testing.T) {
	repo, err := NewCredentialRepo(nil, []byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewCredentialRepo error: %v", err)
	}

	plaintext := "ya29.example-access-token"
	sealed, err := repo.seal(plaintext)
	if err != nil {
		t.Fatalf("seal error: %v", err)
	}
	if strings.Contains(sealed, plaintext) {
		t.Fatal("sealed value contains plaintext")
	}

	opened, err := repo.open(sealed)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	if opened != plaintext {
		t.Fatalf("opened = %q, want %q", opened, plaintext)
	}

	// A second seal of the same plaintext uses a fresh nonce.
	sealed2, err := repo.seal(plaintext)
	if err != nil {
		t.Fatalf("seal error: %v", err)
	}
	if sealed2 == sealed {
		t.Fatal("two seals produced identical ciphertext")
	}
}

func TestCredentialOpenRejectsTamperedCiphertext(t *testing.T) {
	repo, err := NewCredentialRepo(nil, []byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewCredentialRepo error: %v", err)
	}

	sealed, err := repo.seal("secret")
	if err != nil {
		t.Fatalf("seal error: %v", err)
	}

	tampered := []byte(sealed)
	tampered[len(tampered)-2] ^= 'x'
	if _, err := repo.open(string(tampered)); err == nil {
		t.Fatal("expected error for tampered ciphertext")
	}

	if _, err := repo.open("not base64!!"); err == nil {
		t.Fatal("expected error for invalid encoding")
	}
	if _, err := repo.open(""); err == nil {
		t.Fatal("expected error for empty ciphertext")
	}
}

func TestNewCredentialRepoRejectsBadKey(t *testing.T) {
	if _, err := NewCredentialRepo(nil, []byte("too short")); err == nil {
		t.Fatal("expected error for invalid key length")
	}
}
