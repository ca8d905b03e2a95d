package oauth2

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/octopus-bim/octopus/pkg/domain"
)

// GenerateAuthorizationCode returns a fresh random code and its sha256
// hash. Only the hash is ever persisted; the plaintext code is never
// recoverable from storage.
func GenerateAuthorizationCode() (code, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	code = base64.RawURLEncoding.EncodeToString(raw)
	return code, HashCode(code), nil
}

// HashCode sha256-hashes a code for lookup/comparison without ever storing
// the plaintext value.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE checks a token request's code_verifier against the
// code_challenge recorded when the authorization code was issued.
func VerifyPKCE(verifier, challenge string, method domain.CodeChallengeMethod) bool {
	if challenge == "" {
		// No PKCE was requested at /oauth/authorize time; nothing to check.
		return verifier == ""
	}
	switch method {
	case domain.CodeChallengePlain:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	case domain.CodeChallengeS256:
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
	default:
		return false
	}
}
