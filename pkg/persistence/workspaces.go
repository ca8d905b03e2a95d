package persistence

import (
	"context"
	"database/sql"

	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
)

// CreateWorkspace inserts a new workspace row.
func (s *Store) CreateWorkspace(ctx context.Context, w *domain.Workspace) error {
	_, err := s.querier(ctx).ExecContext(ctx,
		`INSERT INTO workspaces (id, name, description, quota_bytes, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, w.Description, w.QuotaBytes, w.CreatedAt, w.UpdatedAt)
	return err
}

// GetWorkspace loads a workspace by id.
func (s *Store) GetWorkspace(ctx context.Context, id string) (*domain.Workspace, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT id, name, description, quota_bytes, created_at, updated_at FROM workspaces WHERE id = ?`, id)
	return scanWorkspace(row)
}

// UpdateWorkspace persists mutable workspace fields.
func (s *Store) UpdateWorkspace(ctx context.Context, w *domain.Workspace) error {
	res, err := s.querier(ctx).ExecContext(ctx,
		`UPDATE workspaces SET name = ?, description = ?, quota_bytes = ?, updated_at = ? WHERE id = ?`,
		w.Name, w.Description, w.QuotaBytes, w.UpdatedAt, w.ID)
	if err != nil {
		return err
	}
	return requireAffected(res, errtypes.NotFound(w.ID))
}

// ListWorkspacesForUser returns every workspace the user holds a
// membership in, ordered by creation time.
func (s *Store) ListWorkspacesForUser(ctx context.Context, userID string) ([]*domain.Workspace, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT w.id, w.name, w.description, w.quota_bytes, w.created_at, w.updated_at
		 FROM workspaces w JOIN workspace_memberships m ON m.workspace_id = w.id
		 WHERE m.user_id = ? ORDER BY w.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Workspace
	for rows.Next() {
		w, err := scanWorkspaceRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListWorkspaces returns every workspace, ordered by creation time.
func (s *Store) ListWorkspaces(ctx context.Context) ([]*domain.Workspace, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT id, name, description, quota_bytes, created_at, updated_at FROM workspaces ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Workspace
	for rows.Next() {
		w, err := scanWorkspaceRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanWorkspace(row *sql.Row) (*domain.Workspace, error) {
	w := &domain.Workspace{}
	err := row.Scan(&w.ID, &w.Name, &w.Description, &w.QuotaBytes, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errtypes.NotFound("workspace")
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func scanWorkspaceRows(rows *sql.Rows) (*domain.Workspace, error) {
	w := &domain.Workspace{}
	if err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.QuotaBytes, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return w, nil
}

// requireAffected turns a zero-rows-affected Result into notFound, the
// idiom used throughout this package for update/delete operations where
// the caller already knows the id.
func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
