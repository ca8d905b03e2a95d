package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	"github.com/octopus-bim/octopus/pkg/domain"
)

// CreateArtifact writes a processor-produced stream directly under the
// artifacts pool and registers it as a File row, bypassing the client
// reserve -> upload -> commit session machinery that exists for untrusted
// uploads. Quota is enforced the same way CommitUpload enforces it.
func (s *Service) CreateArtifact(ctx context.Context, projectID, name, contentType string, kind domain.FileKind, category domain.FileCategory, r io.Reader) (*domain.File, error) {
	workspaceID, err := s.projectWorkspace(ctx, projectID)
	if err != nil {
		return nil, err
	}

	key := storageKey(workspaceID, projectID, "artifacts")
	hasher := sha256.New()
	counting := &countingReader{r: io.TeeReader(r, hasher)}

	provider, err := s.provider(s.defaultProvider)
	if err != nil {
		return nil, err
	}
	if err := provider.Put(ctx, key, counting, contentType); err != nil {
		return nil, err
	}

	if err := s.checkQuota(ctx, workspaceID, counting.n); err != nil {
		_ = provider.Delete(ctx, key)
		return nil, err
	}

	file := &domain.File{
		ID:              domain.NewID(),
		ProjectID:       projectID,
		Name:            name,
		ContentType:     contentType,
		SizeBytes:       counting.n,
		Checksum:        hex.EncodeToString(hasher.Sum(nil)),
		Kind:            kind,
		Category:        category,
		StorageProvider: s.defaultProvider,
		StorageKey:      key,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateFile(ctx, file); err != nil {
		_ = provider.Delete(ctx, key)
		return nil, err
	}
	return file, nil
}
