package persistence

import (
	"context"
	"database/sql"

	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
)

// CreateModel inserts a new model container.
func (s *Store) CreateModel(ctx context.Context, m *domain.Model) error {
	_, err := s.querier(ctx).ExecContext(ctx,
		`INSERT INTO models (id, project_id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, m.Name, m.Description, m.CreatedAt, m.UpdatedAt)
	return err
}

// GetModel loads a model by id.
func (s *Store) GetModel(ctx context.Context, id string) (*domain.Model, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT id, project_id, name, description, created_at, updated_at FROM models WHERE id = ?`, id)
	m := &domain.Model{}
	err := row.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Description, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errtypes.NotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListModelsByProject returns every model under a project.
func (s *Store) ListModelsByProject(ctx context.Context, projectID string) ([]*domain.Model, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT id, project_id, name, description, created_at, updated_at FROM models WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Model
	for rows.Next() {
		m := &domain.Model{}
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Description, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
