package modelsvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/persistence"
)

func newTestFixture(t *testing.T) (*Service, *persistence.Store, *domain.File) {
	t.Helper()
	store, err := persistence.Open(context.Background(), "sqlite3", "file::memory:?cache=shared&_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	now := time.Now().UTC()
	ws := &domain.Workspace{ID: domain.NewID(), Name: "acme", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.CreateWorkspace(ctx, ws))
	proj := &domain.Project{ID: domain.NewID(), WorkspaceID: ws.ID, Name: "tower", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.CreateProject(ctx, proj))

	file := &domain.File{
		ID: domain.NewID(), ProjectID: proj.ID, Name: "model.ifc", ContentType: "application/x-step",
		SizeBytes: 100, Checksum: "abc", Kind: domain.FileKindSource, Category: domain.FileCategoryIfc,
		StorageProvider: "memory", StorageKey: "k1", CreatedAt: now,
	}
	require.NoError(t, store.CreateFile(ctx, file))

	return New(store), store, file
}

func TestCreateModelVersionEnqueuesBothJobsAtomically(t *testing.T) {
	svc, store, file := newTestFixture(t)
	ctx := context.Background()

	model, err := svc.CreateModel(ctx, file.ProjectID, "Tower Model", "")
	require.NoError(t, err)

	version, err := svc.CreateModelVersion(ctx, model.ID, file.ID)
	require.NoError(t, err)
	require.Equal(t, 1, version.VersionNumber)
	require.Equal(t, domain.ModelVersionPending, version.Status)

	jobs, err := store.ListPendingOutboxJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	types := map[string]bool{}
	for _, j := range jobs {
		types[j.JobType] = true
	}
	require.True(t, types[JobConvertWexBim])
	require.True(t, types[JobExtractProperties])
}

func TestCreateModelVersionIncrementsVersionNumber(t *testing.T) {
	svc, _, file := newTestFixture(t)
	ctx := context.Background()

	model, err := svc.CreateModel(ctx, file.ProjectID, "Tower Model", "")
	require.NoError(t, err)

	v1, err := svc.CreateModelVersion(ctx, model.ID, file.ID)
	require.NoError(t, err)
	v2, err := svc.CreateModelVersion(ctx, model.ID, file.ID)
	require.NoError(t, err)
	require.Equal(t, v1.VersionNumber+1, v2.VersionNumber)
}

func TestCreateModelVersionRejectsNonSourceFile(t *testing.T) {
	svc, store, file := newTestFixture(t)
	ctx := context.Background()

	artifact := &domain.File{
		ID: domain.NewID(), ProjectID: file.ProjectID, Name: "out.wexbim", ContentType: "application/octet-stream",
		SizeBytes: 10, Checksum: "x", Kind: domain.FileKindArtifact, Category: domain.FileCategoryWexBim,
		StorageProvider: "memory", StorageKey: "k2", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateFile(ctx, artifact))

	model, err := svc.CreateModel(ctx, file.ProjectID, "Tower Model", "")
	require.NoError(t, err)

	_, err = svc.CreateModelVersion(ctx, model.ID, artifact.ID)
	require.Error(t, err)
}

func TestWexBimFileIDNotReadyUntilSet(t *testing.T) {
	svc, _, file := newTestFixture(t)
	ctx := context.Background()

	model, err := svc.CreateModel(ctx, file.ProjectID, "Tower Model", "")
	require.NoError(t, err)
	version, err := svc.CreateModelVersion(ctx, model.ID, file.ID)
	require.NoError(t, err)

	_, err = svc.WexBimFileID(ctx, version.ID)
	require.Error(t, err)
}
