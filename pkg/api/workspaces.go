package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/octopus-bim/octopus/pkg/auth/rbac"
	"github.com/octopus-bim/octopus/pkg/domain"
)

type createWorkspaceRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// createWorkspace creates a workspace and makes the caller its Owner.
func (s *Server) createWorkspace(w http.ResponseWriter, r *http.Request) {
	p, err := currentPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireScope(p, "workspaces:write"); err != nil {
		writeError(w, r, err)
		return
	}
	var req createWorkspaceRequest
	if err := decodeJSON(r, s.validate, &req); err != nil {
		writeError(w, r, err)
		return
	}

	now := time.Now().UTC()
	ws := &domain.Workspace{
		ID: domain.NewID(), Name: req.Name, Description: req.Description,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.store.CreateWorkspace(r.Context(), ws); err != nil {
		writeError(w, r, err)
		return
	}

	membership := &domain.WorkspaceMembership{
		ID: domain.NewID(), WorkspaceID: ws.ID, UserID: p.UserID,
		Role: domain.WorkspaceRoleOwner, CreatedAt: now,
	}
	if err := s.store.UpsertWorkspaceMembership(r.Context(), membership); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ws)
}

// listWorkspaces returns every workspace the caller belongs to.
func (s *Server) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	p, err := currentPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireScope(p, "workspaces:read"); err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.store.ListWorkspacesForUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// getWorkspace returns a workspace the caller can at least Guest into.
func (s *Server) getWorkspace(w http.ResponseWriter, r *http.Request) {
	p, err := currentPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	workspaceID := chi.URLParam(r, "workspaceID")
	if err := rbac.RequireWorkspaceRole(r.Context(), s.store, workspaceID, p.UserID, domain.WorkspaceRoleGuest); err != nil {
		writeReadError(w, r, err)
		return
	}
	if err := requireScope(p, "workspaces:read"); err != nil {
		writeReadError(w, r, err)
		return
	}
	ws, err := s.store.GetWorkspace(r.Context(), workspaceID)
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

type updateWorkspaceRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// updateWorkspace requires Admin and persists mutable fields.
func (s *Server) updateWorkspace(w http.ResponseWriter, r *http.Request) {
	p, err := currentPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	workspaceID := chi.URLParam(r, "workspaceID")
	if err := rbac.RequireWorkspaceRole(r.Context(), s.store, workspaceID, p.UserID, domain.WorkspaceRoleAdmin); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireScope(p, "workspaces:write"); err != nil {
		writeError(w, r, err)
		return
	}

	var req updateWorkspaceRequest
	if err := decodeJSON(r, s.validate, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ws, err := s.store.GetWorkspace(r.Context(), workspaceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ws.Name = req.Name
	ws.Description = req.Description
	ws.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateWorkspace(r.Context(), ws); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// createProject requires Member and creates a project under a workspace.
func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	p, err := currentPrincipal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	workspaceID := chi.URLParam(r, "workspaceID")
	if err := rbac.RequireWorkspaceRole(r.Context(), s.store, workspaceID, p.UserID, domain.WorkspaceRoleMember); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireScope(p, "projects:write"); err != nil {
		writeError(w, r, err)
		return
	}

	var req createProjectRequest
	if err := decodeJSON(r, s.validate, &req); err != nil {
		writeError(w, r, err)
		return
	}

	now := time.Now().UTC()
	proj := &domain.Project{
		ID: domain.NewID(), WorkspaceID: workspaceID, Name: req.Name, Description: req.Description,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.store.CreateProject(r.Context(), proj); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, proj)
}
