package oauth2

import (
	"testing"
	"time"

	"github.com/octopus-bim/octopus/pkg/config"
)

func jwtTestCfg() config.OAuth {
	return config.OAuth{
		AccessTokenTTLSec: 60,
		Issuer:            "https://octopus.example.com",
		HMACSecret:        "test-signing-secret",
	}
}

func TestIssueAndParseAccessToken(t *testing.T) {
	cfg := jwtTestCfg()
	token, expiresAt, err := IssueAccessToken(cfg, "user-1", "workspace-1", []string{"files:read", "models:read"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatal("expected expiry in the future")
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject user-1, got %s", claims.Subject)
	}
	if claims.WorkspaceID != "workspace-1" {
		t.Fatalf("expected workspace-1, got %s", claims.WorkspaceID)
	}
	if claims.Scope != "files:read models:read" {
		t.Fatalf("unexpected scope: %q", claims.Scope)
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	cfg := jwtTestCfg()
	token, _, err := IssueAccessToken(cfg, "user-1", "workspace-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wrongCfg := cfg
	wrongCfg.HMACSecret = "a-different-secret"
	if _, err := ParseAccessToken(wrongCfg, token); err == nil {
		t.Fatal("expected signature verification to fail with wrong secret")
	}
}
