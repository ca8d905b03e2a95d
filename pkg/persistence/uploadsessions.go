package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
)

const uploadSessionColumns = `SELECT id, project_id, file_name, content_type, expected_size_bytes, status, temp_storage_key, committed_file_id, created_at, expires_at`

// CreateUploadSession inserts a new Reserved session row.
func (s *Store) CreateUploadSession(ctx context.Context, u *domain.UploadSession) error {
	_, err := s.querier(ctx).ExecContext(ctx,
		`INSERT INTO upload_sessions (id, project_id, file_name, content_type, expected_size_bytes, status, temp_storage_key, committed_file_id, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.ProjectID, u.FileName, u.ContentType, u.ExpectedSizeBytes, u.Status, u.TempStorageKey, u.CommittedFileID, u.CreatedAt, u.ExpiresAt)
	return err
}

// GetUploadSession loads an upload session by id.
func (s *Store) GetUploadSession(ctx context.Context, id string) (*domain.UploadSession, error) {
	row := s.querier(ctx).QueryRowContext(ctx, uploadSessionColumns+` FROM upload_sessions WHERE id = ?`, id)
	return scanUploadSession(row, id)
}

func scanUploadSession(row *sql.Row, id string) (*domain.UploadSession, error) {
	u := &domain.UploadSession{}
	var status string
	err := row.Scan(&u.ID, &u.ProjectID, &u.FileName, &u.ContentType, &u.ExpectedSizeBytes, &status, &u.TempStorageKey, &u.CommittedFileID, &u.CreatedAt, &u.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, errtypes.NotFound(id)
	}
	if err != nil {
		return nil, err
	}
	u.Status = domain.UploadSessionStatus(status)
	return u, nil
}

// UpdateUploadSessionStatus performs a state-machine transition. expected
// is the status the row must currently hold; a mismatch means another
// caller already transitioned it and is reported as a conflict rather than
// silently overwritten.
func (s *Store) UpdateUploadSessionStatus(ctx context.Context, id string, expected, next domain.UploadSessionStatus) error {
	res, err := s.querier(ctx).ExecContext(ctx,
		`UPDATE upload_sessions SET status = ? WHERE id = ? AND status = ?`, next, id, expected)
	if err != nil {
		return err
	}
	return requireAffected(res, errtypes.Conflict(id))
}

// CommitUploadSession transitions a session to Committed and records the
// resulting file id, in one statement guarded by the expected prior
// status.
func (s *Store) CommitUploadSession(ctx context.Context, id string, expected domain.UploadSessionStatus, fileID string) error {
	res, err := s.querier(ctx).ExecContext(ctx,
		`UPDATE upload_sessions SET status = ?, committed_file_id = ? WHERE id = ? AND status = ?`,
		domain.UploadSessionCommitted, fileID, id, expected)
	if err != nil {
		return err
	}
	return requireAffected(res, errtypes.Conflict(id))
}

// ListExpiredUploadSessions returns non-terminal sessions past their
// expiry, the set the background sweeper transitions to Expired.
func (s *Store) ListExpiredUploadSessions(ctx context.Context, asOf time.Time) ([]*domain.UploadSession, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		uploadSessionColumns+` FROM upload_sessions WHERE status IN (?, ?) AND expires_at < ?`,
		domain.UploadSessionReserved, domain.UploadSessionUploading, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.UploadSession
	for rows.Next() {
		u := &domain.UploadSession{}
		var status string
		if err := rows.Scan(&u.ID, &u.ProjectID, &u.FileName, &u.ContentType, &u.ExpectedSizeBytes, &status, &u.TempStorageKey, &u.CommittedFileID, &u.CreatedAt, &u.ExpiresAt); err != nil {
			return nil, err
		}
		u.Status = domain.UploadSessionStatus(status)
		out = append(out, u)
	}
	return out, rows.Err()
}
