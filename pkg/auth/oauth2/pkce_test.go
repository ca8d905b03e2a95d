package oauth2

import (
	"testing"

	"github.com/octopus-bim/octopus/pkg/domain"
)

func TestVerifyPKCES256(t *testing.T) {
	verifier := "a-very-random-code-verifier-string-1234567890"
	sum := HashCode(verifier) // S256 challenge happens to be the same transform as code hashing
	if !VerifyPKCE(verifier, sum, domain.CodeChallengeS256) {
		t.Fatal("expected matching S256 verifier/challenge to pass")
	}
	if VerifyPKCE("wrong-verifier", sum, domain.CodeChallengeS256) {
		t.Fatal("expected mismatched verifier to fail")
	}
}

func TestVerifyPKCEPlain(t *testing.T) {
	if !VerifyPKCE("challenge-value", "challenge-value", domain.CodeChallengePlain) {
		t.Fatal("expected matching plain verifier/challenge to pass")
	}
	if VerifyPKCE("other", "challenge-value", domain.CodeChallengePlain) {
		t.Fatal("expected mismatched plain verifier to fail")
	}
}

func TestVerifyPKCENoChallengeRequiresNoVerifier(t *testing.T) {
	if !VerifyPKCE("", "", "") {
		t.Fatal("expected no-PKCE flow to pass with empty verifier")
	}
	if VerifyPKCE("unexpected", "", "") {
		t.Fatal("expected a verifier with no challenge on file to fail")
	}
}

func TestGenerateAuthorizationCodeHashIsDeterministic(t *testing.T) {
	code, hash, err := GenerateAuthorizationCode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if HashCode(code) != hash {
		t.Fatal("HashCode(code) must reproduce the hash returned alongside it")
	}
}
