package security

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	encoded, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if parts := strings.Split(encoded, ":"); len(parts) != 2 {
		t.Fatalf("encoded hash = %q, want salt:hash", encoded)
	}

	ok, err := VerifyPassword("s3cret!", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatal("correct password must verify")
	}

	ok, err = VerifyPassword("wrong", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword wrong: %v", err)
	}
	if ok {
		t.Fatal("wrong password must not verify")
	}
}

func TestHashPasswordIsSalted(t *testing.T) {
	a, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	b, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestVerifyPasswordBadEncoding(t *testing.T) {
	for _, encoded := range []string{"", "no-separator", "a:b:c", "!!!:!!!"} {
		if _, err := VerifyPassword("x", encoded); err == nil {
			t.Errorf("VerifyPassword(%q) expected error", encoded)
		}
	}
}

func TestDummyHashNeverMatches(t *testing.T) {
	if DummyHash() != DummyHash() {
		t.Fatal("dummy hash must be stable")
	}

	for _, password := range []string{"", "password", "9d41f5b02f3f6dd0x"} {
		ok, err := VerifyPassword(password, DummyHash())
		if err != nil {
			t.Fatalf("VerifyPassword(%q): %v", password, err)
		}
		if ok {
			t.Fatalf("password %q must not match the dummy hash", password)
		}
	}
}
