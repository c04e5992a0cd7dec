package security

import (
	"strings"
	"testing"
)

func TestGenerateConfirmationCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		code, err := GenerateConfirmationCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != confirmationCodeLength {
			t.Fatalf("unexpected length %d for %q", len(code), code)
		}
		for _, r := range code {
			if strings.ContainsRune("0O1I", r) {
				t.Fatalf("ambiguous character %q in code %q", r, code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("codes are not random")
	}
}

func TestHashAndVerifyRoundTrip(t *testing.T) {
	code, err := GenerateConfirmationCode()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	encoded, err := HashConfirmationCode(code)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format %q", encoded)
	}

	ok, err := VerifyConfirmationCode(code, encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected matching code to verify")
	}
}

func TestVerifyRejectsSingleCharacterDifference(t *testing.T) {
	encoded, err := HashConfirmationCode("TROCAFE2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	ok, err := VerifyConfirmationCode("TROCAFE3", encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch for single-character difference")
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	if _, err := VerifyConfirmationCode("X", "not-a-hash"); err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestHashEmptyCodeFails(t *testing.T) {
	if _, err := HashConfirmationCode(""); err == nil {
		t.Fatal("expected error for empty code")
	}
}
