package persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
)

const modelVersionColumns = `SELECT id, model_id, version_number, ifc_file_id, wex_bim_file_id, properties_file_id, status, error_message, created_at, processed_at`

// NextVersionNumber returns one past the highest existing version number
// for a model, starting at 1.
func (s *Store) NextVersionNumber(ctx context.Context, modelID string) (int, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_number), 0) FROM model_versions WHERE model_id = ?`, modelID)
	var max int
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return max + 1, nil
}

// CreateModelVersion inserts a new version row. Callers that also need to
// enqueue a processing job should do so within the same Store.WithTx
// transaction as the outbox row insert.
func (s *Store) CreateModelVersion(ctx context.Context, v *domain.ModelVersion) error {
	_, err := s.querier(ctx).ExecContext(ctx,
		`INSERT INTO model_versions (id, model_id, version_number, ifc_file_id, wex_bim_file_id, properties_file_id, status, error_message, created_at, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.ModelID, v.VersionNumber, v.IfcFileID, v.WexBimFileID, v.PropertiesFileID, v.Status, v.ErrorMessage, v.CreatedAt, v.ProcessedAt)
	return err
}

// GetModelVersion loads a version by id.
func (s *Store) GetModelVersion(ctx context.Context, id string) (*domain.ModelVersion, error) {
	row := s.querier(ctx).QueryRowContext(ctx, modelVersionColumns+` FROM model_versions WHERE id = ?`, id)
	return scanModelVersion(row, id)
}

func scanModelVersion(row *sql.Row, id string) (*domain.ModelVersion, error) {
	v := &domain.ModelVersion{}
	var status string
	err := row.Scan(&v.ID, &v.ModelID, &v.VersionNumber, &v.IfcFileID, &v.WexBimFileID, &v.PropertiesFileID, &status, &v.ErrorMessage, &v.CreatedAt, &v.ProcessedAt)
	if err == sql.ErrNoRows {
		return nil, errtypes.NotFound(id)
	}
	if err != nil {
		return nil, err
	}
	v.Status = domain.ModelVersionStatus(status)
	return v, nil
}

// ListModelVersions returns every version of a model, newest first.
func (s *Store) ListModelVersions(ctx context.Context, modelID string) ([]*domain.ModelVersion, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		modelVersionColumns+` FROM model_versions WHERE model_id = ? ORDER BY version_number DESC`, modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ModelVersion
	for rows.Next() {
		v := &domain.ModelVersion{}
		var status string
		if err := rows.Scan(&v.ID, &v.ModelID, &v.VersionNumber, &v.IfcFileID, &v.WexBimFileID, &v.PropertiesFileID, &status, &v.ErrorMessage, &v.CreatedAt, &v.ProcessedAt); err != nil {
			return nil, err
		}
		v.Status = domain.ModelVersionStatus(status)
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateModelVersionStatus moves a version through the processing pipeline,
// optionally recording derived artifact file ids and an error message. When
// expected is non-empty the update only applies if the row's current
// status is one of them, the guarded-update idiom
// pkg/persistence/uploadsessions.go uses for session transitions; a guard
// miss is reported as errtypes.Conflict rather than silently overwriting a
// status a racing writer already set. With no expected statuses the write
// is unconditional and a missing row is errtypes.NotFound.
func (s *Store) UpdateModelVersionStatus(ctx context.Context, id string, status domain.ModelVersionStatus, wexBimFileID, propertiesFileID *string, errMsg string, processedAt *time.Time, expected ...domain.ModelVersionStatus) error {
	query := `UPDATE model_versions SET status = ?, wex_bim_file_id = COALESCE(?, wex_bim_file_id), properties_file_id = COALESCE(?, properties_file_id), error_message = ?, processed_at = ? WHERE id = ?`
	args := []interface{}{status, wexBimFileID, propertiesFileID, errMsg, processedAt, id}
	if len(expected) > 0 {
		placeholders := make([]string, len(expected))
		for i, st := range expected {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += ` AND status IN (` + strings.Join(placeholders, ",") + `)`
	}

	res, err := s.querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if len(expected) > 0 {
		return requireAffected(res, errtypes.Conflict(id))
	}
	return requireAffected(res, errtypes.NotFound(id))
}

// CompleteModelVersionArtifact records the artifact a pipeline handler just
// produced (the other file id argument is nil) and derives Ready from the
// row's resulting columns in the same statement, so ConvertWexBim and
// ExtractProperties - which run independently and may finish in either
// order - can't clobber each other's transition with a stale read. Guarded
// by status IN (Pending, Processing) so a version already Failed is not
// resurrected; a guard miss is reported as errtypes.Conflict.
func (s *Store) CompleteModelVersionArtifact(ctx context.Context, id string, wexBimFileID, propertiesFileID *string, processedAt time.Time) error {
	res, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE model_versions SET
			wex_bim_file_id = COALESCE(?, wex_bim_file_id),
			properties_file_id = COALESCE(?, properties_file_id),
			status = CASE
				WHEN COALESCE(?, wex_bim_file_id) IS NOT NULL AND COALESCE(?, properties_file_id) IS NOT NULL THEN ?
				ELSE ?
			END,
			processed_at = CASE
				WHEN COALESCE(?, wex_bim_file_id) IS NOT NULL AND COALESCE(?, properties_file_id) IS NOT NULL THEN ?
				ELSE processed_at
			END
		WHERE id = ? AND status IN (?, ?)`,
		wexBimFileID, propertiesFileID,
		wexBimFileID, propertiesFileID, domain.ModelVersionReady, domain.ModelVersionProcessing,
		wexBimFileID, propertiesFileID, processedAt,
		id, domain.ModelVersionPending, domain.ModelVersionProcessing)
	if err != nil {
		return err
	}
	return requireAffected(res, errtypes.Conflict(id))
}
