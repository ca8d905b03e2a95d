package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"time"

	"github.com/octopus-bim/octopus/pkg/appctx"
	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
)

// ReserveUpload opens a new upload session for a project, writing a stream
// to a temp storage key before it is linked into the registry.
func (s *Service) ReserveUpload(ctx context.Context, projectID, fileName, contentType string, expectedSize *int64) (*domain.UploadSession, error) {
	workspaceID, err := s.projectWorkspace(ctx, projectID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &domain.UploadSession{
		ID:                domain.NewID(),
		ProjectID:         projectID,
		FileName:          fileName,
		ContentType:       contentType,
		ExpectedSizeBytes: expectedSize,
		Status:            domain.UploadSessionReserved,
		TempStorageKey:    storageKey(workspaceID, projectID, "uploads"),
		CreatedAt:         now,
		ExpiresAt:         now.Add(time.Duration(s.reserveTTL) * time.Hour),
	}
	if err := s.store.CreateUploadSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// UploadContent streams r into the session's temp storage key, computing a
// sha256 checksum along the way, and transitions the session from Reserved
// to Uploading. Permitted from Reserved or Uploading: a retry overwrites
// the temp object rather than conflicting. Rejects a session that has
// already expired or reached a terminal status.
func (s *Service) UploadContent(ctx context.Context, sessionID string, r io.Reader) (written int64, checksum string, err error) {
	session, err := s.store.GetUploadSession(ctx, sessionID)
	if err != nil {
		return 0, "", err
	}
	if session.Status.IsTerminal() {
		return 0, "", errtypes.Conflict(sessionID)
	}
	if time.Now().UTC().After(session.ExpiresAt) {
		return 0, "", errtypes.Conflict(sessionID)
	}

	if session.Status == domain.UploadSessionReserved {
		if err := s.store.UpdateUploadSessionStatus(ctx, sessionID, domain.UploadSessionReserved, domain.UploadSessionUploading); err != nil {
			return 0, "", err
		}
	}

	hasher := sha256.New()
	counting := &countingReader{r: io.TeeReader(r, hasher)}

	provider, err := s.provider(s.defaultProvider)
	if err != nil {
		return 0, "", err
	}
	if err := provider.Put(ctx, session.TempStorageKey, counting, session.ContentType); err != nil {
		appctx.GetLogger(ctx).Error().Err(err).Str("session", sessionID).Msg("files: upload write failed")
		_ = s.store.UpdateUploadSessionStatus(ctx, sessionID, domain.UploadSessionUploading, domain.UploadSessionFailed)
		return 0, "", err
	}

	return counting.n, hex.EncodeToString(hasher.Sum(nil)), nil
}

// CommitUpload re-reads the session's written bytes to establish actual
// size and checksum, validates against expectedSizeBytes and the caller's
// optional checksum, registers a File row, and marks the session
// Committed. The temp storage key becomes the file's permanent key; no
// copy of the bytes is performed.
func (s *Service) CommitUpload(ctx context.Context, sessionID string, wantChecksum string) (*domain.File, error) {
	session, err := s.store.GetUploadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.UploadSessionUploading {
		return nil, errtypes.Conflict(sessionID)
	}

	provider, err := s.provider(s.defaultProvider)
	if err != nil {
		return nil, err
	}
	rc, err := provider.OpenRead(ctx, session.TempStorageKey)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return nil, errtypes.StorageInconsistency(session.TempStorageKey)
	}
	defer rc.Close()

	hasher := sha256.New()
	written, err := io.Copy(hasher, rc)
	if err != nil {
		return nil, err
	}
	checksum := hex.EncodeToString(hasher.Sum(nil))

	if wantChecksum != "" && wantChecksum != checksum {
		_ = s.store.UpdateUploadSessionStatus(ctx, sessionID, domain.UploadSessionUploading, domain.UploadSessionFailed)
		return nil, errtypes.Validation("checksum mismatch")
	}
	if session.ExpectedSizeBytes != nil && *session.ExpectedSizeBytes != written {
		_ = s.store.UpdateUploadSessionStatus(ctx, sessionID, domain.UploadSessionUploading, domain.UploadSessionFailed)
		return nil, errtypes.Validation("uploaded size does not match expectedSizeBytes")
	}

	workspaceID, err := s.projectWorkspace(ctx, session.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, workspaceID, written); err != nil {
		return nil, err
	}

	file := &domain.File{
		ID:              domain.NewID(),
		ProjectID:       session.ProjectID,
		Name:            session.FileName,
		ContentType:     session.ContentType,
		SizeBytes:       written,
		Checksum:        checksum,
		Kind:            domain.FileKindSource,
		Category:        CategoryFor(session.FileName, session.ContentType),
		StorageProvider: s.defaultProvider,
		StorageKey:      session.TempStorageKey,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateFile(ctx, file); err != nil {
		return nil, err
	}
	if err := s.store.CommitUploadSession(ctx, sessionID, domain.UploadSessionUploading, file.ID); err != nil {
		return nil, err
	}
	return file, nil
}

// CategoryFor classifies a newly committed file by extension, falling
// back to content type. Uploaded sources are almost always IFC models;
// anything else is tagged Other rather than guessed at.
func CategoryFor(name, contentType string) domain.FileCategory {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".ifc"), strings.HasSuffix(lower, ".ifcxml"), strings.HasSuffix(lower, ".ifczip"):
		return domain.FileCategoryIfc
	case strings.HasSuffix(lower, ".wexbim"):
		return domain.FileCategoryWexBim
	case contentType == "application/x-step" || contentType == "model/ifc":
		return domain.FileCategoryIfc
	default:
		return domain.FileCategoryOther
	}
}

// checkQuota rejects a commit that would push the workspace past its
// configured byte quota. A nil quota, on either the workspace row or the
// service default, means unlimited.
func (s *Service) checkQuota(ctx context.Context, workspaceID string, additional int64) error {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	limit := ws.QuotaBytes
	if limit == nil {
		limit = s.quota.WorkspaceBytes
	}
	if limit == nil {
		return nil
	}

	used, err := s.store.SumWorkspaceBytes(ctx, workspaceID)
	if err != nil {
		return err
	}
	if used+additional > *limit {
		return errtypes.QuotaExceeded(workspaceID)
	}
	return nil
}

// ExpireStaleSessions transitions every Reserved or Uploading session past
// its expiry to Expired. It runs only when called; the runtime's
// maintenance tick does not call it.
func (s *Service) ExpireStaleSessions(ctx context.Context) (int, error) {
	stale, err := s.store.ListExpiredUploadSessions(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, session := range stale {
		if err := s.store.UpdateUploadSessionStatus(ctx, session.ID, session.Status, domain.UploadSessionExpired); err != nil {
			if _, isConflict := err.(errtypes.IsConflict); isConflict {
				continue // another sweeper tick or caller already moved it on
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
