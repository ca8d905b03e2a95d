package principal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/octopus-bim/octopus/pkg/config"
	"github.com/octopus-bim/octopus/pkg/persistence"
)

func newTestStore(t *testing.T) *persistence.Store {
	t.Helper()
	s, err := persistence.Open(context.Background(), "sqlite3", "file::memory:?cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMiddlewareDevelopmentModeAutoProvisions(t *testing.T) {
	store := newTestStore(t)
	cfg := &config.Config{Auth: config.Auth{Mode: "development", Dev: config.DevAuth{Subject: "local-dev", Email: "dev@example.com"}}}

	var seen *Principal
	mw := Middleware(store, cfg, BearerHeaderStrategy{})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen == nil || seen.Subject != "local-dev" {
		t.Fatalf("expected dev principal to be attached, got %+v", seen)
	}

	// A second request must resolve to the same auto-provisioned user, not
	// create a duplicate.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	var seen2 *Principal
	mw2 := Middleware(store, cfg, BearerHeaderStrategy{})
	handler2 := mw2(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen2, _ = FromContext(r.Context())
	}))
	handler2.ServeHTTP(httptest.NewRecorder(), req2)

	if seen2.UserID != seen.UserID {
		t.Fatalf("expected stable user id across requests, got %s and %s", seen.UserID, seen2.UserID)
	}
}

func TestMiddlewareProductionModeRejectsMissingToken(t *testing.T) {
	store := newTestStore(t)
	cfg := &config.Config{Auth: config.Auth{Mode: "oidc"}, OAuth: config.OAuth{HMACSecret: "secret", Issuer: "octopus"}}

	mw := Middleware(store, cfg, BearerHeaderStrategy{})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached without a valid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
