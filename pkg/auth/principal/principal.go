// Package principal extracts the authenticated caller from an HTTP
// request and attaches it to the request context, auto-provisioning a
// User row on first sight. It replaces a CS3 gRPC
// Manager/Credentials/TokenStrategy abstraction (pkg/auth/auth.go) with a
// single HTTP bearer-token strategy, since Octopus has exactly one
// transport.
package principal

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/octopus-bim/octopus/pkg/appctx"
	"github.com/octopus-bim/octopus/pkg/auth/oauth2"
	"github.com/octopus-bim/octopus/pkg/config"
	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
	"github.com/octopus-bim/octopus/pkg/persistence"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID      string
	Subject     string
	WorkspaceID string
	Scopes      map[string]bool
}

type contextKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the request's Principal, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok
}

// TokenStrategy obtains a bearer token from the request.
type TokenStrategy interface {
	GetToken(r *http.Request) string
}

// BearerHeaderStrategy reads "Authorization: Bearer <token>".
type BearerHeaderStrategy struct{}

// GetToken implements TokenStrategy.
func (BearerHeaderStrategy) GetToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

// Middleware authenticates every request: in development mode it trusts
// the fixed principal from config; otherwise it verifies a bearer access
// token issued by pkg/auth/oauth2 and auto-provisions the corresponding
// User row.
func Middleware(store *persistence.Store, cfg *config.Config, strategy TokenStrategy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := appctx.GetLogger(r.Context())

			var p *Principal
			var err error
			if cfg.Auth.Mode == "development" {
				p, err = devPrincipal(r.Context(), store, cfg.Auth.Dev)
			} else {
				p, err = tokenPrincipal(r.Context(), store, cfg.OAuth, strategy.GetToken(r))
			}
			if err != nil {
				log.Warn().Err(err).Msg("principal: authentication failed")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			r = r.WithContext(WithPrincipal(r.Context(), p))
			next.ServeHTTP(w, r)
		})
	}
}

// EnsureDevUser resolves (and auto-provisions) the fixed development
// principal directly, for callers outside the /api/v1 middleware chain
// such as the OAuth2 authorize endpoint when auth.mode=development.
func EnsureDevUser(ctx context.Context, store *persistence.Store, dev config.DevAuth) (*Principal, error) {
	return devPrincipal(ctx, store, dev)
}

func devPrincipal(ctx context.Context, store *persistence.Store, dev config.DevAuth) (*Principal, error) {
	subject := dev.Subject
	if subject == "" {
		subject = "dev-user"
	}
	user, err := ensureUser(ctx, store, subject, dev.Email, dev.DisplayName)
	if err != nil {
		return nil, err
	}
	return &Principal{UserID: user.ID, Subject: user.Subject, Scopes: allScopes()}, nil
}

func tokenPrincipal(ctx context.Context, store *persistence.Store, cfg config.OAuth, token string) (*Principal, error) {
	if token == "" {
		return nil, errtypes.Unauthorized("missing bearer token")
	}
	claims, err := oauth2.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, errtypes.Unauthorized(err.Error())
	}
	user, err := ensureUser(ctx, store, claims.Subject, "", "")
	if err != nil {
		return nil, err
	}
	return &Principal{
		UserID:      user.ID,
		Subject:     user.Subject,
		WorkspaceID: claims.WorkspaceID,
		Scopes:      scopeSet(claims.Scope),
	}, nil
}

func ensureUser(ctx context.Context, store *persistence.Store, subject, email, displayName string) (*domain.User, error) {
	user, err := store.GetUserBySubject(ctx, subject)
	if err == nil {
		return user, nil
	}
	if _, isNotFound := err.(errtypes.IsNotFound); !isNotFound {
		return nil, err
	}

	user = &domain.User{
		ID: domain.NewID(), Subject: subject, Email: email, DisplayName: displayName,
		CreatedAt: time.Now().UTC(),
	}
	if createErr := store.CreateUser(ctx, user); createErr != nil {
		// Lost the race against a concurrent first-request from the same
		// subject; the row now exists, so re-read it.
		if existing, getErr := store.GetUserBySubject(ctx, subject); getErr == nil {
			return existing, nil
		}
		return nil, createErr
	}
	return user, nil
}

func scopeSet(scp string) map[string]bool {
	out := map[string]bool{}
	for _, s := range strings.Fields(scp) {
		out[s] = true
	}
	return out
}

func allScopes() map[string]bool {
	return map[string]bool{
		"workspaces:read": true, "workspaces:write": true,
		"projects:read": true, "projects:write": true,
		"files:read": true, "files:write": true,
		"models:read": true, "models:write": true,
	}
}
