package files

import (
	"context"
	"io"
	"time"

	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
)

// GetFile loads a file registry row by id.
func (s *Service) GetFile(ctx context.Context, id string) (*domain.File, error) {
	return s.store.GetFile(ctx, id)
}

// ListFiles returns the non-deleted files registered under a project.
func (s *Service) ListFiles(ctx context.Context, projectID string) ([]*domain.File, error) {
	return s.store.ListFilesByProject(ctx, projectID)
}

// DownloadFile opens a stream of a file's bytes from its owning provider.
func (s *Service) DownloadFile(ctx context.Context, id string) (*domain.File, io.ReadCloser, error) {
	f, err := s.store.GetFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if f.IsDeleted {
		return nil, nil, errtypes.NotFound(id)
	}
	provider, err := s.provider(f.StorageProvider)
	if err != nil {
		return nil, nil, err
	}
	rc, err := provider.OpenRead(ctx, f.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	if rc == nil {
		return nil, nil, errtypes.StorageInconsistency(f.StorageKey)
	}
	return f, rc, nil
}

// LinkFiles records a lineage edge, e.g. a WexBIM artifact DerivedFrom its
// source IFC file. Refuses an edge that would close a cycle through the
// target, keeping the lineage graph a DAG.
func (s *Service) LinkFiles(ctx context.Context, sourceFileID, targetFileID string, linkType domain.FileLinkType) (*domain.FileLink, error) {
	if sourceFileID == targetFileID {
		return nil, errtypes.Validation("a file cannot link to itself")
	}
	closesCycle, err := s.reaches(ctx, targetFileID, sourceFileID, map[string]bool{})
	if err != nil {
		return nil, err
	}
	if closesCycle {
		return nil, errtypes.Validation("link would close a cycle in the lineage graph")
	}

	link := &domain.FileLink{
		ID: domain.NewID(), SourceFileID: sourceFileID, TargetFileID: targetFileID,
		LinkType: linkType, CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateFileLink(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// reaches reports whether a path of existing forward edges leads from from
// to to. Called with (targetFileID, sourceFileID) before inserting a new
// sourceFileID -> targetFileID edge: a path back to the would-be source
// means the new edge would close a cycle.
func (s *Service) reaches(ctx context.Context, from, to string, visited map[string]bool) (bool, error) {
	if from == to {
		return true, nil
	}
	if visited[from] {
		return false, nil
	}
	visited[from] = true

	edges, err := s.store.ListFileLinksBySource(ctx, from)
	if err != nil {
		return false, err
	}
	for _, e := range edges {
		found, err := s.reaches(ctx, e.TargetFileID, to, visited)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

// DeleteFile soft-deletes a file, enforcing the lineage DAG's
// cascade-restrict invariant: a file that is still the target of an active
// (non-deleted-source) link cannot be deleted out from under its
// derivatives.
func (s *Service) DeleteFile(ctx context.Context, id string) error {
	active, err := s.store.CountActiveLinksTargeting(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return errtypes.Conflict(id)
	}
	return s.store.MarkFileDeleted(ctx, id, time.Now().UTC())
}
