package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/octopus-bim/octopus/pkg/auth/rbac"
	"github.com/octopus-bim/octopus/pkg/domain"
)

type reserveUploadRequest struct {
	FileName          string `json:"fileName" validate:"required"`
	ContentType       string `json:"contentType"`
	ExpectedSizeBytes *int64 `json:"expectedSizeBytes"`
}

// reserveUpload opens an upload session for a project.
func (s *Server) reserveUpload(w http.ResponseWriter, r *http.Request) {
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
	if err := requireScope(p, "files:write"); err != nil {
		writeError(w, r, err)
		return
	}

	var req reserveUploadRequest
	if err := decodeJSON(r, s.validate, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := s.files.ReserveUpload(r.Context(), projectID, req.FileName, req.ContentType, req.ExpectedSizeBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// uploadContent streams a multipart body's first part into the session's
// temp storage key.
func (s *Server) uploadContent(w http.ResponseWriter, r *http.Request) {
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
	if err := requireScope(p, "files:write"); err != nil {
		writeError(w, r, err)
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, r, err)
		return
	}
	part, err := mr.NextPart()
	if err != nil && err != io.EOF {
		writeError(w, r, err)
		return
	}
	if part == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty multipart body"})
		return
	}
	defer part.Close()

	written, checksum, err := s.files.UploadContent(r.Context(), sessionID, part)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bytesWritten": written,
		"checksum":     checksum,
	})
}

type commitUploadRequest struct {
	Checksum string `json:"checksum"`
}

// commitUpload finalizes a session into a registered File row.
func (s *Server) commitUpload(w http.ResponseWriter, r *http.Request) {
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
	if err := requireScope(p, "files:write"); err != nil {
		writeError(w, r, err)
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	var req commitUploadRequest
	_ = decodeJSON(r, s.validate, &req) // checksum is optional; a malformed/empty body just means none supplied

	file, err := s.files.CommitUpload(r.Context(), sessionID, req.Checksum)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, file)
}

// listFiles returns the non-deleted files under a project, optionally
// filtered by kind/category.
func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	p, err := currentPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	projectID := chi.URLParam(r, "projectID")
	if err := rbac.RequireProjectRole(r.Context(), s.store, projectID, p.UserID, domain.ProjectRoleViewer); err != nil {
		writeReadError(w, r, err)
		return
	}
	if err := requireScope(p, "files:read"); err != nil {
		writeReadError(w, r, err)
		return
	}

	list, err := s.files.ListFiles(r.Context(), projectID)
	if err != nil {
		writeReadError(w, r, err)
		return
	}

	kind := domain.FileKind(r.URL.Query().Get("kind"))
	category := domain.FileCategory(r.URL.Query().Get("category"))
	filtered := list[:0]
	for _, f := range list {
		if kind != "" && f.Kind != kind {
			continue
		}
		if category != "" && f.Category != category {
			continue
		}
		filtered = append(filtered, f)
	}
	writeJSON(w, http.StatusOK, filtered)
}

// downloadFile streams a file's bytes, resolving access through the
// file's own project rather than a project id in the URL.
func (s *Server) downloadFile(w http.ResponseWriter, r *http.Request) {
	p, err := currentPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fileID := chi.URLParam(r, "fileID")

	file, err := s.files.GetFile(r.Context(), fileID)
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	if err := rbac.RequireProjectRole(r.Context(), s.store, file.ProjectID, p.UserID, domain.ProjectRoleViewer); err != nil {
		writeReadError(w, r, err)
		return
	}
	if err := requireScope(p, "files:read"); err != nil {
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
	w.Header().Set("Content-Length", strconv.FormatInt(f.SizeBytes, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
