// Package oauth2 implements Octopus's authorization-code + PKCE OAuth2
// server: a config struct, a dispatching handler, appctx-scoped logging,
// and persistence-backed AuthorizationCode rows giving exact control over
// code replay/expiry semantics.
package oauth2

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/octopus-bim/octopus/pkg/appctx"
	"github.com/octopus-bim/octopus/pkg/config"
	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
	"github.com/octopus-bim/octopus/pkg/persistence"
)

// CurrentUserFunc resolves the authenticated principal's user id for an
// /oauth/authorize request, set by whatever session mechanism fronts this
// service (development fixed principal, or a browser session cookie).
type CurrentUserFunc func(r *http.Request) (userID string, ok bool)

// Service serves the /oauth/authorize and /oauth/token endpoints.
type Service struct {
	store       *persistence.Store
	cfg         config.OAuth
	currentUser CurrentUserFunc
}

// New constructs the OAuth2 service.
func New(store *persistence.Store, cfg config.OAuth, currentUser CurrentUserFunc) *Service {
	return &Service{store: store, cfg: cfg, currentUser: currentUser}
}

// HandleAuthorize implements the authorization endpoint: validates the
// client and redirect URI, mints a single-use code bound to the requested
// scopes and PKCE challenge, and redirects back to the client.
//
// Client and redirect_uri are validated before anything else, including
// response_type: the response_type, scope and PKCE failures that follow
// report themselves via a redirect to redirectURI, and that redirect must
// never fire against a URI that was never registered to app. A missing
// login (login_required) and internal failures (server_error) are JSON
// responses, not redirects.
func (s *Service) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())
	q := r.URL.Query()

	app, err := s.store.GetOAuthAppByClientID(r.Context(), q.Get("client_id"))
	if err != nil {
		writeTokenError(w, http.StatusBadRequest, "invalid_client")
		return
	}
	if !app.IsEnabled {
		writeTokenError(w, http.StatusBadRequest, "unauthorized_client")
		return
	}

	redirectURI := q.Get("redirect_uri")
	if !containsString(app.RedirectURIs, redirectURI) {
		writeTokenError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if q.Get("response_type") != "code" {
		writeRedirectError(w, r, redirectURI, q.Get("state"), "unsupported_response_type", "")
		return
	}

	requested := strings.Fields(q.Get("scope"))
	for _, sc := range requested {
		if !containsString(app.AllowedScopes, sc) {
			writeRedirectError(w, r, redirectURI, q.Get("state"), "invalid_scope", "")
			return
		}
	}

	challenge := q.Get("code_challenge")
	method := q.Get("code_challenge_method")
	switch {
	case app.ClientType == domain.OAuthClientPublic && (challenge == "" || method != string(domain.CodeChallengeS256)):
		writeRedirectError(w, r, redirectURI, q.Get("state"), "invalid_request",
			"public clients must supply code_challenge with code_challenge_method=S256")
		return
	case method != "" && method != string(domain.CodeChallengeS256) && method != string(domain.CodeChallengePlain):
		writeRedirectError(w, r, redirectURI, q.Get("state"), "invalid_request",
			"code_challenge_method must be S256 or plain")
		return
	case challenge != "" && method == "":
		method = string(domain.CodeChallengePlain)
	}

	userID, ok := s.currentUser(r)
	if !ok {
		writeTokenError(w, http.StatusUnauthorized, "login_required")
		return
	}

	code, hash, err := GenerateAuthorizationCode()
	if err != nil {
		log.Error().Err(err).Msg("oauth2: failed to generate authorization code")
		writeTokenError(w, http.StatusInternalServerError, "server_error")
		return
	}

	now := time.Now().UTC()
	record := &domain.AuthorizationCode{
		ID:                  domain.NewID(),
		CodeHash:            hash,
		OAuthAppID:          app.ID,
		UserID:              userID,
		WorkspaceID:         app.WorkspaceID,
		Scopes:              requested,
		RedirectURI:         redirectURI,
		CodeChallenge:       challenge,
		CodeChallengeMethod: domain.CodeChallengeMethod(method),
		CreatedAt:           now,
		ExpiresAt:           now.Add(time.Duration(s.cfg.CodeTTLSec) * time.Second),
	}
	if err := s.store.CreateAuthorizationCode(r.Context(), record); err != nil {
		log.Error().Err(err).Msg("oauth2: failed to persist authorization code")
		writeTokenError(w, http.StatusInternalServerError, "server_error")
		return
	}

	dest, _ := url.Parse(redirectURI)
	dest = withQuery(dest, "code", code)
	if state := q.Get("state"); state != "" {
		dest = withQuery(dest, "state", state)
	}
	http.Redirect(w, r, dest.String(), http.StatusFound)
}

// HandleToken implements the token endpoint: redeems a single-use code for
// a signed access token.
func (s *Service) HandleToken(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())
	if err := r.ParseForm(); err != nil {
		writeTokenError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if r.PostForm.Get("grant_type") != "authorization_code" {
		writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}

	clientID := r.PostForm.Get("client_id")
	app, err := s.store.GetOAuthAppByClientID(r.Context(), clientID)
	if err != nil || !app.IsEnabled {
		writeTokenError(w, http.StatusBadRequest, "invalid_client")
		return
	}
	if app.ClientType == domain.OAuthClientConfidential {
		ok, err := VerifyClientSecret(app.ClientSecretHash, r.PostForm.Get("client_secret"))
		if err != nil || !ok {
			writeTokenError(w, http.StatusUnauthorized, "invalid_client")
			return
		}
	}

	codeHash := HashCode(r.PostForm.Get("code"))
	record, err := s.store.GetAuthorizationCodeByHash(r.Context(), codeHash)
	if err != nil {
		writeTokenError(w, http.StatusBadRequest, "invalid_grant")
		return
	}
	if record.IsUsed || record.OAuthAppID != app.ID || time.Now().UTC().After(record.ExpiresAt) {
		writeTokenError(w, http.StatusBadRequest, "invalid_grant")
		return
	}
	if record.RedirectURI != r.PostForm.Get("redirect_uri") {
		writeTokenError(w, http.StatusBadRequest, "invalid_grant")
		return
	}
	if !VerifyPKCE(r.PostForm.Get("code_verifier"), record.CodeChallenge, record.CodeChallengeMethod) {
		writeTokenError(w, http.StatusBadRequest, "invalid_grant")
		return
	}

	if err := s.store.MarkAuthorizationCodeUsed(r.Context(), record.ID, time.Now().UTC()); err != nil {
		if _, isInvalid := err.(errtypes.IsInvalidCredentials); isInvalid {
			// Lost the race against a concurrent redemption of the same code.
			writeTokenError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
		log.Error().Err(err).Msg("oauth2: failed to mark authorization code used")
		writeTokenError(w, http.StatusInternalServerError, "server_error")
		return
	}

	user, err := s.store.GetUser(r.Context(), record.UserID)
	if err != nil {
		log.Error().Err(err).Msg("oauth2: failed to load user for access token")
		writeTokenError(w, http.StatusInternalServerError, "server_error")
		return
	}

	accessToken, expiresAt, err := IssueAccessToken(s.cfg, user.Subject, record.WorkspaceID, record.Scopes)
	if err != nil {
		log.Error().Err(err).Msg("oauth2: failed to issue access token")
		writeTokenError(w, http.StatusInternalServerError, "server_error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   int(time.Until(expiresAt).Seconds()),
		"scope":        strings.Join(record.Scopes, " "),
	})
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func withQuery(u *url.URL, key, val string) *url.URL {
	q := u.Query()
	q.Set(key, val)
	u.RawQuery = q.Encode()
	return u
}

func writeRedirectError(w http.ResponseWriter, r *http.Request, redirectURI, state, errCode, description string) {
	dest, err := url.Parse(redirectURI)
	if err != nil || redirectURI == "" {
		writeTokenError(w, http.StatusBadRequest, errCode)
		return
	}
	dest = withQuery(dest, "error", errCode)
	if description != "" {
		dest = withQuery(dest, "error_description", description)
	}
	if state != "" {
		dest = withQuery(dest, "state", state)
	}
	http.Redirect(w, r, dest.String(), http.StatusFound)
}

func writeTokenError(w http.ResponseWriter, status int, errCode string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": errCode})
}
