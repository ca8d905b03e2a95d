package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/octopus-bim/octopus/pkg/auth/rbac"
	"github.com/octopus-bim/octopus/pkg/domain"
)

// getUsage requires Guest and reports a workspace's current byte
// consumption against its effective quota.
func (s *Server) getUsage(w http.ResponseWriter, r *http.Request) {
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

	usage, err := s.files.GetUsage(r.Context(), workspaceID)
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
