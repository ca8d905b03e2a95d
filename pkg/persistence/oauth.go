package persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
)

const oauthAppColumns = `SELECT id, workspace_id, client_id, client_secret_hash, client_type, redirect_uris, allowed_scopes, is_enabled, created_at, updated_at`

// CreateOAuthApp inserts a new OAuth client registration.
func (s *Store) CreateOAuthApp(ctx context.Context, a *domain.OAuthApp) error {
	_, err := s.querier(ctx).ExecContext(ctx,
		`INSERT INTO oauth_apps (id, workspace_id, client_id, client_secret_hash, client_type, redirect_uris, allowed_scopes, is_enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.WorkspaceID, a.ClientID, a.ClientSecretHash, a.ClientType,
		strings.Join(a.RedirectURIs, ","), strings.Join(a.AllowedScopes, ","), a.IsEnabled, a.CreatedAt, a.UpdatedAt)
	return err
}

// GetOAuthAppByClientID loads an OAuth client by its public client_id, the
// lookup path used by both /oauth/authorize and /oauth/token.
func (s *Store) GetOAuthAppByClientID(ctx context.Context, clientID string) (*domain.OAuthApp, error) {
	row := s.querier(ctx).QueryRowContext(ctx, oauthAppColumns+` FROM oauth_apps WHERE client_id = ?`, clientID)
	return scanOAuthApp(row, clientID)
}

func scanOAuthApp(row *sql.Row, id string) (*domain.OAuthApp, error) {
	a := &domain.OAuthApp{}
	var clientType, redirectURIs, scopes string
	err := row.Scan(&a.ID, &a.WorkspaceID, &a.ClientID, &a.ClientSecretHash, &clientType, &redirectURIs, &scopes, &a.IsEnabled, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errtypes.NotFound(id)
	}
	if err != nil {
		return nil, err
	}
	a.ClientType = domain.OAuthClientType(clientType)
	a.RedirectURIs = splitNonEmpty(redirectURIs)
	a.AllowedScopes = splitNonEmpty(scopes)
	return a, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// CreateAuthorizationCode inserts a freshly issued code's hash.
func (s *Store) CreateAuthorizationCode(ctx context.Context, c *domain.AuthorizationCode) error {
	_, err := s.querier(ctx).ExecContext(ctx,
		`INSERT INTO authorization_codes (id, code_hash, oauth_app_id, user_id, workspace_id, scopes, redirect_uri, code_challenge, code_challenge_method, created_at, expires_at, is_used, used_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CodeHash, c.OAuthAppID, c.UserID, c.WorkspaceID, strings.Join(c.Scopes, " "), c.RedirectURI,
		c.CodeChallenge, c.CodeChallengeMethod, c.CreatedAt, c.ExpiresAt, c.IsUsed, c.UsedAt)
	return err
}

// GetAuthorizationCodeByHash looks up a code by its sha256 hash.
func (s *Store) GetAuthorizationCodeByHash(ctx context.Context, codeHash string) (*domain.AuthorizationCode, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT id, code_hash, oauth_app_id, user_id, workspace_id, scopes, redirect_uri, code_challenge, code_challenge_method, created_at, expires_at, is_used, used_at
		 FROM authorization_codes WHERE code_hash = ?`, codeHash)
	c := &domain.AuthorizationCode{}
	var scopes, method string
	err := row.Scan(&c.ID, &c.CodeHash, &c.OAuthAppID, &c.UserID, &c.WorkspaceID, &scopes, &c.RedirectURI,
		&c.CodeChallenge, &method, &c.CreatedAt, &c.ExpiresAt, &c.IsUsed, &c.UsedAt)
	if err == sql.ErrNoRows {
		return nil, errtypes.NotFound("authorization code")
	}
	if err != nil {
		return nil, err
	}
	if scopes != "" {
		c.Scopes = strings.Split(scopes, " ")
	}
	c.CodeChallengeMethod = domain.CodeChallengeMethod(method)
	return c, nil
}

// MarkAuthorizationCodeUsed flips is_used, guarded so a replayed code loses
// the race against its first redemption.
func (s *Store) MarkAuthorizationCodeUsed(ctx context.Context, id string, usedAt time.Time) error {
	res, err := s.querier(ctx).ExecContext(ctx,
		`UPDATE authorization_codes SET is_used = 1, used_at = ? WHERE id = ? AND is_used = 0`, usedAt, id)
	if err != nil {
		return err
	}
	return requireAffected(res, errtypes.InvalidCredentials("authorization code already used"))
}
