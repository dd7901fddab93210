package auth

import (
	"strings"
	"testing"
)

func TestDeriveCodeChallenge(t *testing.T) {
	t.Parallel()

	// Appendix B of RFC 7636.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	got := deriveCodeChallenge(verifier)
	if got != want {
		t.Errorf("deriveCodeChallenge() = %q, want %q", got, want)
	}
	if again := deriveCodeChallenge(verifier); again != got {
		t.Errorf("deriveCodeChallenge() is not deterministic: %q != %q", again, got)
	}
}

func TestGeneratePKCECodes(t *testing.T) {
	t.Parallel()

	first, err := GeneratePKCECodes()
	if err != nil {
		t.Fatalf("GeneratePKCECodes() error: %v", err)
	}

	if n := len(first.CodeVerifier); n < 43 || n > 128 {
		t.Errorf("verifier length = %d, want between 43 and 128", n)
	}
	if strings.ContainsAny(first.CodeVerifier, "+/=") {
		t.Errorf("verifier %q contains non-URL-safe characters", first.CodeVerifier)
	}
	if first.CodeChallenge != deriveCodeChallenge(first.CodeVerifier) {
		t.Errorf("challenge does not match S256 transform of verifier")
	}

	second, err := GeneratePKCECodes()
	if err != nil {
		t.Fatalf("GeneratePKCECodes() error: %v", err)
	}
	if first.CodeVerifier == second.CodeVerifier {
		t.Error("two generations produced the same verifier")
	}
}
