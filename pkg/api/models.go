package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/octopus-bim/octopus/pkg/auth/rbac"
	"github.com/octopus-bim/octopus/pkg/domain"
)

type createModelRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// createModel requires Editor and creates a model container under a
// project.
func (s *Server) createModel(w http.ResponseWriter, r *http.Request) {
	p, err := currentPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	projectID := chi.URLParam(r, "projectID")
	if err := rbac.RequireProjectRole(r.Context(), s.store, projectID, p.UserID, domain.ProjectRoleEditor); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireScope(p, "models:write"); err != nil {
		writeError(w, r, err)
		return
	}

	var req createModelRequest
	if err := decodeJSON(r, s.validate, &req); err != nil {
		writeError(w, r, err)
		return
	}

	model, err := s.models.CreateModel(r.Context(), projectID, req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, model)
}

// modelProjectID resolves the project a model belongs to, the indirection
// every model/version-scoped handler needs before an RBAC check.
func (s *Server) modelProjectID(r *http.Request, modelID string) (string, error) {
	model, err := s.models.GetModel(r.Context(), modelID)
	if err != nil {
		return "", err
	}
	return model.ProjectID, nil
}

type createModelVersionRequest struct {
	IfcFileID string `json:"ifcFileId" validate:"required"`
}

// createModelVersion requires Editor, inserts a Pending version, and
// enqueues its processing jobs.
func (s *Server) createModelVersion(w http.ResponseWriter, r *http.Request) {
	p, err := currentPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	modelID := chi.URLParam(r, "modelID")
	projectID, err := s.modelProjectID(r, modelID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := rbac.RequireProjectRole(r.Context(), s.store, projectID, p.UserID, domain.ProjectRoleEditor); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireScope(p, "models:write"); err != nil {
		writeError(w, r, err)
		return
	}

	var req createModelVersionRequest
	if err := decodeJSON(r, s.validate, &req); err != nil {
		writeError(w, r, err)
		return
	}

	version, err := s.models.CreateModelVersion(r.Context(), modelID, req.IfcFileID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

// listModelVersions requires Viewer and returns every version of a model.
func (s *Server) listModelVersions(w http.ResponseWriter, r *http.Request) {
	p, err := currentPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	modelID := chi.URLParam(r, "modelID")
	projectID, err := s.modelProjectID(r, modelID)
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	if err := rbac.RequireProjectRole(r.Context(), s.store, projectID, p.UserID, domain.ProjectRoleViewer); err != nil {
		writeReadError(w, r, err)
		return
	}
	if err := requireScope(p, "models:read"); err != nil {
		writeReadError(w, r, err)
		return
	}

	versions, err := s.models.ListModelVersions(r.Context(), modelID)
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// versionProjectID resolves the project a model version belongs to via its
// model, the indirection the version-scoped handlers below need.
func (s *Server) versionProjectID(r *http.Request, versionID string) (*domain.ModelVersion, string, error) {
	version, err := s.models.GetModelVersion(r.Context(), versionID)
	if err != nil {
		return nil, "", err
	}
	projectID, err := s.modelProjectID(r, version.ModelID)
	if err != nil {
		return nil, "", err
	}
	return version, projectID, nil
}

// getModelVersion requires Viewer and returns a single version.
func (s *Server) getModelVersion(w http.ResponseWriter, r *http.Request) {
	p, err := currentPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	versionID := chi.URLParam(r, "versionID")
	version, projectID, err := s.versionProjectID(r, versionID)
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	if err := rbac.RequireProjectRole(r.Context(), s.store, projectID, p.UserID, domain.ProjectRoleViewer); err != nil {
		writeReadError(w, r, err)
		return
	}
	if err := requireScope(p, "models:read"); err != nil {
		writeReadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, version)
}

// streamWexBim requires Viewer and streams the version's WexBIM artifact,
// 404ing as NotReady if conversion hasn't produced one yet.
func (s *Server) streamWexBim(w http.ResponseWriter, r *http.Request) {
	s.streamArtifact(w, r, func(versionID string) (string, error) {
		return s.models.WexBimFileID(r.Context(), versionID)
	})
}

// streamProperties requires Viewer and streams the version's extracted
// properties document.
func (s *Server) streamProperties(w http.ResponseWriter, r *http.Request) {
	s.streamArtifact(w, r, func(versionID string) (string, error) {
		return s.models.PropertiesFileID(r.Context(), versionID)
	})
}

func (s *Server) streamArtifact(w http.ResponseWriter, r *http.Request, resolveFileID func(versionID string) (string, error)) {
	p, err := currentPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	versionID := chi.URLParam(r, "versionID")
	_, projectID, err := s.versionProjectID(r, versionID)
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	if err := rbac.RequireProjectRole(r.Context(), s.store, projectID, p.UserID, domain.ProjectRoleViewer); err != nil {
		writeReadError(w, r, err)
		return
	}
	if err := requireScope(p, "files:read"); err != nil {
		writeReadError(w, r, err)
		return
	}

	fileID, err := resolveFileID(versionID)
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	f, rc, err := s.files.DownloadFile(r.Context(), fileID)
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", f.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
