package persistence

import (
	"context"
	"database/sql"

	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
)

// CreateProject inserts a new project row.
func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	_, err := s.querier(ctx).ExecContext(ctx,
		`INSERT INTO projects (id, workspace_id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.WorkspaceID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetProject loads a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT id, workspace_id, name, description, created_at, updated_at FROM projects WHERE id = ?`, id)
	p := &domain.Project{}
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errtypes.NotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProject persists mutable project fields.
func (s *Store) UpdateProject(ctx context.Context, p *domain.Project) error {
	res, err := s.querier(ctx).ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Description, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	return requireAffected(res, errtypes.NotFound(p.ID))
}

// ListProjectsByWorkspace returns every project under a workspace, ordered
// by creation time.
func (s *Store) ListProjectsByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Project, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT id, workspace_id, name, description, created_at, updated_at FROM projects WHERE workspace_id = ? ORDER BY created_at`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Project
	for rows.Next() {
		p := &domain.Project{}
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
