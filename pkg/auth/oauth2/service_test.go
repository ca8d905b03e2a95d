package oauth2

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/octopus-bim/octopus/pkg/config"
	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/persistence"
)

func newTestStore(t *testing.T) *persistence.Store {
	t.Helper()
	store, err := persistence.Open(context.Background(), "sqlite3", "file::memory:?cache=shared&_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestApp(t *testing.T, store *persistence.Store, clientType domain.OAuthClientType, enabled bool) *domain.OAuthApp {
	t.Helper()
	now := time.Now().UTC()
	ws := &domain.Workspace{ID: domain.NewID(), Name: "acme", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.CreateWorkspace(context.Background(), ws))

	app := &domain.OAuthApp{
		ID:              domain.NewID(),
		WorkspaceID:     ws.ID,
		ClientID:        domain.NewID(),
		ClientType:      clientType,
		RedirectURIs:    []string{"https://client.example/cb"},
		AllowedScopes:   []string{"files:read", "files:write"},
		IsEnabled:       enabled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, store.CreateOAuthApp(context.Background(), app))
	return app
}

func authorizeURL(values url.Values) string {
	return "/oauth/authorize?" + values.Encode()
}

func testCfg() config.OAuth {
	return config.OAuth{AccessTokenTTLSec: 3600, CodeTTLSec: 60, HMACSecret: "test-secret", Issuer: "octopus-test"}
}

func TestHandleAuthorizePublicClientRequiresPKCE(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store, domain.OAuthClientPublic, true)
	svc := New(store, testCfg(), func(r *http.Request) (string, bool) { return "user-1", true })

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", app.ClientID)
	values.Set("redirect_uri", app.RedirectURIs[0])
	values.Set("state", "xyz")

	req := httptest.NewRequest(http.MethodGet, authorizeURL(values), nil)
	rec := httptest.NewRecorder()
	svc.HandleAuthorize(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	dest, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "invalid_request", dest.Query().Get("error"))
	require.Contains(t, dest.Query().Get("error_description"), "code_challenge")
	require.Equal(t, "xyz", dest.Query().Get("state"))
}

func TestHandleAuthorizeUnregisteredRedirectDoesNotRedirect(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store, domain.OAuthClientConfidential, true)
	svc := New(store, testCfg(), func(r *http.Request) (string, bool) { return "user-1", true })

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", app.ClientID)
	values.Set("redirect_uri", "https://attacker.example/cb")

	req := httptest.NewRequest(http.MethodGet, authorizeURL(values), nil)
	rec := httptest.NewRecorder()
	svc.HandleAuthorize(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, rec.Header().Get("Location"))
}

func TestHandleAuthorizeDisabledAppIsUnauthorizedClient(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store, domain.OAuthClientConfidential, false)
	svc := New(store, testCfg(), func(r *http.Request) (string, bool) { return "user-1", true })

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", app.ClientID)
	values.Set("redirect_uri", app.RedirectURIs[0])

	req := httptest.NewRequest(http.MethodGet, authorizeURL(values), nil)
	rec := httptest.NewRecorder()
	svc.HandleAuthorize(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, rec.Header().Get("Location"))
	require.Contains(t, rec.Body.String(), "unauthorized_client")
}

func TestHandleAuthorizeUnknownClientIsInvalidClient(t *testing.T) {
	store := newTestStore(t)
	svc := New(store, testCfg(), func(r *http.Request) (string, bool) { return "user-1", true })

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", "does-not-exist")
	values.Set("redirect_uri", "https://client.example/cb")

	req := httptest.NewRequest(http.MethodGet, authorizeURL(values), nil)
	rec := httptest.NewRecorder()
	svc.HandleAuthorize(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid_client")
}

func TestHandleAuthorizeRejectsBadChallengeMethod(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store, domain.OAuthClientConfidential, true)
	svc := New(store, testCfg(), func(r *http.Request) (string, bool) { return "user-1", true })

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", app.ClientID)
	values.Set("redirect_uri", app.RedirectURIs[0])
	values.Set("code_challenge", "abc")
	values.Set("code_challenge_method", "md5")

	req := httptest.NewRequest(http.MethodGet, authorizeURL(values), nil)
	rec := httptest.NewRecorder()
	svc.HandleAuthorize(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	dest, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "invalid_request", dest.Query().Get("error"))
}

func TestHandleAuthorizeAndTokenRoundTripWithPKCE(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store, domain.OAuthClientPublic, true)
	user := &domain.User{ID: domain.NewID(), Subject: "user-1", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateUser(context.Background(), user))
	svc := New(store, testCfg(), func(r *http.Request) (string, bool) { return user.ID, true })

	verifier := "a-sufficiently-long-pkce-code-verifier-value"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", app.ClientID)
	values.Set("redirect_uri", app.RedirectURIs[0])
	values.Set("scope", "files:read")
	values.Set("code_challenge", challenge)
	values.Set("code_challenge_method", "S256")

	req := httptest.NewRequest(http.MethodGet, authorizeURL(values), nil)
	rec := httptest.NewRecorder()
	svc.HandleAuthorize(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)

	dest, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	code := dest.Query().Get("code")
	require.NotEmpty(t, code)

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", app.ClientID)
	form.Set("redirect_uri", app.RedirectURIs[0])
	form.Set("code", code)
	form.Set("code_verifier", verifier)

	tokenReq := httptest.NewRequest(http.MethodPost, "/oauth/token", nil)
	tokenReq.PostForm = form
	tokenReq.Form = form
	tokenRec := httptest.NewRecorder()
	svc.HandleToken(tokenRec, tokenReq)

	require.Equal(t, http.StatusOK, tokenRec.Code)
	require.Contains(t, tokenRec.Body.String(), "access_token")
}
