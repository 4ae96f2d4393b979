package security_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/bawabati/bawabati-backend/pkg/config"
	"github.com/bawabati/bawabati-backend/pkg/security"
)

func testPasswordConfig() config.PasswordConfig {
	// Small parameters keep the test fast; clamping is exercised separately.
	return config.PasswordConfig{
		ArgonMemoryKB:    16384,
		ArgonTime:        1,
		ArgonParallelism: 2,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	cfg := testPasswordConfig()

	hash, err := security.HashPassword("driver-app-pa55word", cfg)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash format %q", hash)
	}

	ok, err := security.VerifyPassword("driver-app-pa55word", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatal("correct password should verify")
	}

	ok, err = security.VerifyPassword("driver-app-pa55wOrd", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Fatal("wrong password should not verify")
	}
}

func TestHashPasswordSaltsEachCall(t *testing.T) {
	cfg := testPasswordConfig()

	first, err := security.HashPassword("same-input", cfg)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	second, err := security.HashPassword("same-input", cfg)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password must differ by salt")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := security.HashPassword("", testPasswordConfig()); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	for _, encoded := range []string{
		"not-a-hash",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=16384,t=1,p=1$!!!$aGFzaA",
	} {
		_, err := security.VerifyPassword("irrelevant", encoded)
		if !errors.Is(err, security.ErrInvalidHash) {
			t.Fatalf("expected ErrInvalidHash for %q, got %v", encoded, err)
		}
	}
}
