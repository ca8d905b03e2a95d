package oauth2

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/octopus-bim/octopus/pkg/config"
)

// Claims is the access token payload Octopus issues and later verifies.
type Claims struct {
	jwt.RegisteredClaims
	WorkspaceID string `json:"tid,omitempty"`
	Scope       string `json:"scp,omitempty"`
}

// IssueAccessToken signs a new HS256 access token whose sub is the user's
// subject, scoped to workspaceID and the given scopes, honoring cfg's
// issuer and TTL. No client_id claim is issued.
func IssueAccessToken(cfg config.OAuth, subject, workspaceID string, scopes []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(cfg.AccessTokenTTLSec) * time.Second)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		WorkspaceID: workspaceID,
		Scope:       strings.Join(scopes, " "),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.HMACSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseAccessToken verifies an access token's signature and expiry and
// returns its claims.
func ParseAccessToken(cfg config.OAuth, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("oauth2: unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.HMACSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("oauth2: invalid access token")
	}
	return claims, nil
}
