package persistence

import (
	"context"
	"database/sql"

	"github.com/octopus-bim/octopus/pkg/domain"
)

// UpsertWorkspaceMembership creates or updates the membership row for the
// (workspace, user) pair, replacing the role if one already exists.
func (s *Store) UpsertWorkspaceMembership(ctx context.Context, m *domain.WorkspaceMembership) error {
	existing, err := s.GetWorkspaceMembership(ctx, m.WorkspaceID, m.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		_, err := s.querier(ctx).ExecContext(ctx,
			`UPDATE workspace_memberships SET role = ? WHERE workspace_id = ? AND user_id = ?`,
			m.Role.String(), m.WorkspaceID, m.UserID)
		return err
	}
	_, err = s.querier(ctx).ExecContext(ctx,
		`INSERT INTO workspace_memberships (id, workspace_id, user_id, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.WorkspaceID, m.UserID, m.Role.String(), m.CreatedAt)
	return err
}

// GetWorkspaceMembership returns the membership for a (workspace, user)
// pair, or nil with no error if none exists.
func (s *Store) GetWorkspaceMembership(ctx context.Context, workspaceID, userID string) (*domain.WorkspaceMembership, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT id, workspace_id, user_id, role, created_at FROM workspace_memberships WHERE workspace_id = ? AND user_id = ?`,
		workspaceID, userID)
	m := &domain.WorkspaceMembership{}
	var role string
	err := row.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	parsed, _ := domain.ParseWorkspaceRole(role)
	m.Role = parsed
	return m, nil
}

// ListWorkspaceMemberships returns every membership for a workspace.
func (s *Store) ListWorkspaceMemberships(ctx context.Context, workspaceID string) ([]*domain.WorkspaceMembership, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT id, workspace_id, user_id, role, created_at FROM workspace_memberships WHERE workspace_id = ?`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.WorkspaceMembership
	for rows.Next() {
		m := &domain.WorkspaceMembership{}
		var role string
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &role, &m.CreatedAt); err != nil {
			return nil, err
		}
		parsed, _ := domain.ParseWorkspaceRole(role)
		m.Role = parsed
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertProjectMembership creates or updates the membership row for the
// (project, user) pair.
func (s *Store) UpsertProjectMembership(ctx context.Context, m *domain.ProjectMembership) error {
	existing, err := s.GetProjectMembership(ctx, m.ProjectID, m.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		_, err := s.querier(ctx).ExecContext(ctx,
			`UPDATE project_memberships SET role = ? WHERE project_id = ? AND user_id = ?`,
			m.Role.String(), m.ProjectID, m.UserID)
		return err
	}
	_, err = s.querier(ctx).ExecContext(ctx,
		`INSERT INTO project_memberships (id, project_id, user_id, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, m.UserID, m.Role.String(), m.CreatedAt)
	return err
}

// GetProjectMembership returns the membership for a (project, user) pair,
// or nil with no error if none exists.
func (s *Store) GetProjectMembership(ctx context.Context, projectID, userID string) (*domain.ProjectMembership, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT id, project_id, user_id, role, created_at FROM project_memberships WHERE project_id = ? AND user_id = ?`,
		projectID, userID)
	m := &domain.ProjectMembership{}
	var role string
	err := row.Scan(&m.ID, &m.ProjectID, &m.UserID, &role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	parsed, _ := domain.ParseProjectRole(role)
	m.Role = parsed
	return m, nil
}

// ListProjectMemberships returns every membership for a project.
func (s *Store) ListProjectMemberships(ctx context.Context, projectID string) ([]*domain.ProjectMembership, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT id, project_id, user_id, role, created_at FROM project_memberships WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ProjectMembership
	for rows.Next() {
		m := &domain.ProjectMembership{}
		var role string
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &role, &m.CreatedAt); err != nil {
			return nil, err
		}
		parsed, _ := domain.ParseProjectRole(role)
		m.Role = parsed
		out = append(out, m)
	}
	return out, rows.Err()
}
