// Package rbac resolves workspace and project role checks against the
// membership rows in pkg/persistence: resolve against a lookup, falling
// through to the next broader scope when no explicit membership exists.
package rbac

import (
	"context"

	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
)

// MembershipStore is the subset of pkg/persistence.Store this package
// needs, kept narrow so rbac can be unit tested without a real database.
type MembershipStore interface {
	GetWorkspaceMembership(ctx context.Context, workspaceID, userID string) (*domain.WorkspaceMembership, error)
	GetProjectMembership(ctx context.Context, projectID, userID string) (*domain.ProjectMembership, error)
	GetProject(ctx context.Context, id string) (*domain.Project, error)
}

// EffectiveProjectRole resolves a user's project-level authority: the
// higher of an explicit ProjectMembership's role and the role implied by
// workspace membership. Workspace Admin/Owner acts as ProjectAdmin on
// every project in the workspace; workspace Member acts as Viewer; Guest
// has no implicit project access.
func EffectiveProjectRole(ctx context.Context, store MembershipStore, projectID, userID string) (domain.ProjectRole, error) {
	project, err := store.GetProject(ctx, projectID)
	if err != nil {
		return domain.ProjectRoleNone, err
	}

	explicit, err := store.GetProjectMembership(ctx, projectID, userID)
	if err != nil {
		return domain.ProjectRoleNone, err
	}

	wsRole := domain.WorkspaceRoleNone
	wsMembership, err := store.GetWorkspaceMembership(ctx, project.WorkspaceID, userID)
	if err != nil {
		return domain.ProjectRoleNone, err
	}
	if wsMembership != nil {
		wsRole = wsMembership.Role
	}

	implied := impliedProjectRole(wsRole)
	if explicit == nil {
		return implied, nil
	}
	if explicit.Role > implied {
		return explicit.Role, nil
	}
	return implied, nil
}

func impliedProjectRole(wsRole domain.WorkspaceRole) domain.ProjectRole {
	switch {
	case wsRole >= domain.WorkspaceRoleAdmin:
		return domain.ProjectRoleProjectAdmin
	case wsRole >= domain.WorkspaceRoleMember:
		return domain.ProjectRoleViewer
	default:
		return domain.ProjectRoleNone
	}
}

// CanAccessWorkspace reports whether a user holds at least atLeast on a
// workspace.
func CanAccessWorkspace(ctx context.Context, store MembershipStore, workspaceID, userID string, atLeast domain.WorkspaceRole) (bool, error) {
	m, err := store.GetWorkspaceMembership(ctx, workspaceID, userID)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}
	return m.Role >= atLeast, nil
}

// RequireWorkspaceRole returns errtypes.Forbidden if the user's workspace
// role is below atLeast.
func RequireWorkspaceRole(ctx context.Context, store MembershipStore, workspaceID, userID string, atLeast domain.WorkspaceRole) error {
	ok, err := CanAccessWorkspace(ctx, store, workspaceID, userID, atLeast)
	if err != nil {
		return err
	}
	if !ok {
		return errtypes.Forbidden("workspace role " + atLeast.String() + " required")
	}
	return nil
}

// RequireProjectRole returns errtypes.Forbidden if the user's effective
// project role is below atLeast.
func RequireProjectRole(ctx context.Context, store MembershipStore, projectID, userID string, atLeast domain.ProjectRole) error {
	role, err := EffectiveProjectRole(ctx, store, projectID, userID)
	if err != nil {
		return err
	}
	if role < atLeast {
		return errtypes.Forbidden("project role " + atLeast.String() + " required")
	}
	return nil
}
