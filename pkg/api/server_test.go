package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/octopus-bim/octopus/pkg/auth/oauth2"
	"github.com/octopus-bim/octopus/pkg/config"
	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/files"
	"github.com/octopus-bim/octopus/pkg/modelsvc"
	"github.com/octopus-bim/octopus/pkg/persistence"
	"github.com/octopus-bim/octopus/pkg/queue"
	"github.com/octopus-bim/octopus/pkg/storagedriver"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := persistence.Open(context.Background(), "sqlite3", "file::memory:?cache=shared&_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	providers := map[string]storagedriver.Provider{"memory": storagedriver.NewMemory()}
	filesSvc, err := files.New(store, providers, "memory", config.Quota{}, 24)
	require.NoError(t, err)

	modelSvc := modelsvc.New(store)
	oauthSvc := oauth2.New(store, config.OAuth{AccessTokenTTLSec: 3600, CodeTTLSec: 60}, func(r *http.Request) (string, bool) { return "", false })
	q := queue.NewInProcess(16)
	notifier := queue.NewProgressNotifier()

	cfg := &config.Config{Auth: config.Auth{Mode: "development", Dev: config.DevAuth{Subject: "dev-user"}}}

	return NewServer(store, filesSvc, modelSvc, oauthSvc, q, notifier, cfg, zerolog.Nop())
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func TestWorkspaceProjectModelLifecycle(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	// createWorkspace makes the dev principal its Owner.
	body, _ := json.Marshal(map[string]string{"name": "acme"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workspaces", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var ws domain.Workspace
	decodeBody(t, rec, &ws)
	require.NotEmpty(t, ws.ID)

	// listWorkspaces returns it back.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/workspaces", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []domain.Workspace
	decodeBody(t, rec, &listed)
	require.Len(t, listed, 1)

	// createProject under the workspace (Owner satisfies >=Member).
	body, _ = json.Marshal(map[string]string{"name": "tower"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/workspaces/"+ws.ID+"/projects", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var proj domain.Project
	decodeBody(t, rec, &proj)

	// createModel under the project (Owner implies ProjectAdmin).
	body, _ = json.Marshal(map[string]string{"name": "Tower"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+proj.ID+"/models", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var model domain.Model
	decodeBody(t, rec, &model)
	require.Equal(t, proj.ID, model.ProjectID)
}

func TestUploadReserveContentCommitRoundTrip(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	ws := mustCreateWorkspace(t, router)
	proj := mustCreateProject(t, router, ws.ID)

	body, _ := json.Marshal(map[string]string{"fileName": "model.ifc", "contentType": "application/x-step"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+proj.ID+"/files/reserve", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var session domain.UploadSession
	decodeBody(t, rec, &session)

	var mpBody bytes.Buffer
	mw := multipart.NewWriter(&mpBody)
	part, err := mw.CreateFormFile("file", "model.ifc")
	require.NoError(t, err)
	_, err = part.Write([]byte("ISO-10303-21;\nHEADER;\nENDSEC;\nDATA;\nENDSEC;\nEND-ISO-10303-21;\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+proj.ID+"/files/sessions/"+session.ID+"/content", &mpBody)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+proj.ID+"/files/sessions/"+session.ID+"/commit", bytes.NewReader([]byte(`{}`)))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var file domain.File
	decodeBody(t, rec, &file)
	require.Equal(t, domain.FileCategoryIfc, file.Category)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/files/"+file.ID+"/content", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ISO-10303-21")
}

func TestGetWorkspaceRequiresMembership(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workspaces/"+domain.NewID(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func mustCreateWorkspace(t *testing.T, router http.Handler) domain.Workspace {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"name": "acme"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workspaces", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var ws domain.Workspace
	decodeBody(t, rec, &ws)
	return ws
}

func mustCreateProject(t *testing.T, router http.Handler, workspaceID string) domain.Project {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"name": "tower"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workspaces/"+workspaceID+"/projects", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var proj domain.Project
	decodeBody(t, rec, &proj)
	return proj
}
