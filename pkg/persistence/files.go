package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
)

// CreateFile inserts a new file registry row.
func (s *Store) CreateFile(ctx context.Context, f *domain.File) error {
	_, err := s.querier(ctx).ExecContext(ctx,
		`INSERT INTO files (id, project_id, name, content_type, size_bytes, checksum, kind, category, storage_provider, storage_key, is_deleted, created_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ProjectID, f.Name, f.ContentType, f.SizeBytes, f.Checksum, f.Kind, f.Category,
		f.StorageProvider, f.StorageKey, f.IsDeleted, f.CreatedAt, f.DeletedAt)
	return err
}

// GetFile loads a file registry row by id.
func (s *Store) GetFile(ctx context.Context, id string) (*domain.File, error) {
	row := s.querier(ctx).QueryRowContext(ctx, fileSelectColumns+` FROM files WHERE id = ?`, id)
	return scanFile(row, id)
}

const fileSelectColumns = `SELECT id, project_id, name, content_type, size_bytes, checksum, kind, category, storage_provider, storage_key, is_deleted, created_at, deleted_at`

func scanFile(row *sql.Row, id string) (*domain.File, error) {
	f := &domain.File{}
	var kind, category string
	err := row.Scan(&f.ID, &f.ProjectID, &f.Name, &f.ContentType, &f.SizeBytes, &f.Checksum,
		&kind, &category, &f.StorageProvider, &f.StorageKey, &f.IsDeleted, &f.CreatedAt, &f.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, errtypes.NotFound(id)
	}
	if err != nil {
		return nil, err
	}
	f.Kind = domain.FileKind(kind)
	f.Category = domain.FileCategory(category)
	return f, nil
}

// ListFilesByProject returns non-deleted files in a project, newest first.
func (s *Store) ListFilesByProject(ctx context.Context, projectID string) ([]*domain.File, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		fileSelectColumns+` FROM files WHERE project_id = ? AND is_deleted = 0 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFileRows(rows)
}

func scanFileRows(rows *sql.Rows) ([]*domain.File, error) {
	var out []*domain.File
	for rows.Next() {
		f := &domain.File{}
		var kind, category string
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Name, &f.ContentType, &f.SizeBytes, &f.Checksum,
			&kind, &category, &f.StorageProvider, &f.StorageKey, &f.IsDeleted, &f.CreatedAt, &f.DeletedAt); err != nil {
			return nil, err
		}
		f.Kind = domain.FileKind(kind)
		f.Category = domain.FileCategory(category)
		out = append(out, f)
	}
	return out, rows.Err()
}

// MarkFileDeleted soft-deletes a file row.
func (s *Store) MarkFileDeleted(ctx context.Context, id string, deletedAt time.Time) error {
	res, err := s.querier(ctx).ExecContext(ctx,
		`UPDATE files SET is_deleted = 1, deleted_at = ? WHERE id = ?`, deletedAt, id)
	if err != nil {
		return err
	}
	return requireAffected(res, errtypes.NotFound(id))
}

// SumWorkspaceBytes returns total size_bytes of non-deleted files across
// every project in a workspace, used for quota enforcement.
func (s *Store) SumWorkspaceBytes(ctx context.Context, workspaceID string) (int64, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(f.size_bytes), 0) FROM files f JOIN projects p ON f.project_id = p.id WHERE p.workspace_id = ? AND f.is_deleted = 0`,
		workspaceID)
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// CreateFileLink inserts a lineage edge.
func (s *Store) CreateFileLink(ctx context.Context, l *domain.FileLink) error {
	_, err := s.querier(ctx).ExecContext(ctx,
		`INSERT INTO file_links (id, source_file_id, target_file_id, link_type, created_at) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.SourceFileID, l.TargetFileID, l.LinkType, l.CreatedAt)
	return err
}

// ListFileLinksBySource returns every lineage edge originating at a file.
func (s *Store) ListFileLinksBySource(ctx context.Context, sourceFileID string) ([]*domain.FileLink, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT id, source_file_id, target_file_id, link_type, created_at FROM file_links WHERE source_file_id = ?`, sourceFileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.FileLink
	for rows.Next() {
		l := &domain.FileLink{}
		var linkType string
		if err := rows.Scan(&l.ID, &l.SourceFileID, &l.TargetFileID, &linkType, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.LinkType = domain.FileLinkType(linkType)
		out = append(out, l)
	}
	return out, rows.Err()
}

// CountActiveLinksTargeting reports how many non-deleted-source links
// target a file, used to enforce the cascade-restrict invariant on delete.
func (s *Store) CountActiveLinksTargeting(ctx context.Context, targetFileID string) (int, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM file_links fl JOIN files f ON fl.source_file_id = f.id WHERE fl.target_file_id = ? AND f.is_deleted = 0`,
		targetFileID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
