package files

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/octopus-bim/octopus/pkg/config"
	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/persistence"
	"github.com/octopus-bim/octopus/pkg/storagedriver"
)

func newTestService(t *testing.T) (*Service, *persistence.Store, *domain.Project) {
	t.Helper()
	store, err := persistence.Open(context.Background(), "sqlite3", "file::memory:?cache=shared&_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ws := &domain.Workspace{ID: domain.NewID(), Name: "acme", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateWorkspace(context.Background(), ws))
	proj := &domain.Project{ID: domain.NewID(), WorkspaceID: ws.ID, Name: "tower", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateProject(context.Background(), proj))

	providers := map[string]storagedriver.Provider{"memory": storagedriver.NewMemory()}
	svc, err := New(store, providers, "memory", config.Quota{}, 24)
	require.NoError(t, err)
	return svc, store, proj
}

func TestReserveUploadCommitRoundTrip(t *testing.T) {
	svc, _, proj := newTestService(t)
	ctx := context.Background()

	session, err := svc.ReserveUpload(ctx, proj.ID, "model.ifc", "application/x-step", nil)
	require.NoError(t, err)
	require.Equal(t, domain.UploadSessionReserved, session.Status)

	content := []byte("IFC4 demo payload")
	written, checksum, err := svc.UploadContent(ctx, session.ID, bytes.NewReader(content))
	require.NoError(t, err)
	require.EqualValues(t, len(content), written)
	require.NotEmpty(t, checksum)

	file, err := svc.CommitUpload(ctx, session.ID, checksum)
	require.NoError(t, err)
	require.Equal(t, proj.ID, file.ProjectID)
	require.Equal(t, domain.FileCategoryIfc, file.Category)
	require.EqualValues(t, written, file.SizeBytes)

	committed, err := svc.store.GetUploadSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.UploadSessionCommitted, committed.Status)
	require.NotNil(t, committed.CommittedFileID)
	require.Equal(t, file.ID, *committed.CommittedFileID)

	_, rc, err := svc.DownloadFile(ctx, file.ID)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestUploadContentRejectsWrongState(t *testing.T) {
	svc, _, proj := newTestService(t)
	ctx := context.Background()

	session, err := svc.ReserveUpload(ctx, proj.ID, "model.ifc", "application/x-step", nil)
	require.NoError(t, err)
	_, _, err = svc.UploadContent(ctx, session.ID, bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	// A retry while Uploading is allowed and overwrites; once the session
	// is terminal (here Failed), further content must be rejected.
	require.NoError(t, svc.store.UpdateUploadSessionStatus(ctx, session.ID, domain.UploadSessionUploading, domain.UploadSessionFailed))
	_, _, err = svc.UploadContent(ctx, session.ID, bytes.NewReader([]byte("y")))
	require.Error(t, err)
}

func TestCommitUploadRejectsQuotaBreach(t *testing.T) {
	svc, _, proj := newTestService(t)
	ctx := context.Background()

	limit := int64(10)
	svc.quota = config.Quota{WorkspaceBytes: &limit}

	session, err := svc.ReserveUpload(ctx, proj.ID, "big.ifc", "application/x-step", nil)
	require.NoError(t, err)
	_, checksum, err := svc.UploadContent(ctx, session.ID, bytes.NewReader(bytes.Repeat([]byte("a"), 20)))
	require.NoError(t, err)

	_, err = svc.CommitUpload(ctx, session.ID, checksum)
	require.Error(t, err)
}

func TestDeleteFileBlockedByActiveLink(t *testing.T) {
	svc, _, proj := newTestService(t)
	ctx := context.Background()

	source := mustCommitFile(t, svc, proj.ID, domain.FileCategoryIfc)
	derived := mustCommitFile(t, svc, proj.ID, domain.FileCategoryWexBim)

	_, err := svc.LinkFiles(ctx, derived.ID, source.ID, domain.FileLinkDerivedFrom)
	require.NoError(t, err)

	err = svc.DeleteFile(ctx, source.ID)
	require.Error(t, err)

	require.NoError(t, svc.DeleteFile(ctx, derived.ID))
	require.NoError(t, svc.DeleteFile(ctx, source.ID))
}

func TestLinkFilesRejectsCycle(t *testing.T) {
	svc, _, proj := newTestService(t)
	ctx := context.Background()

	a := mustCommitFile(t, svc, proj.ID, domain.FileCategoryIfc)
	b := mustCommitFile(t, svc, proj.ID, domain.FileCategoryWexBim)

	_, err := svc.LinkFiles(ctx, b.ID, a.ID, domain.FileLinkDerivedFrom)
	require.NoError(t, err)

	_, err = svc.LinkFiles(ctx, a.ID, b.ID, domain.FileLinkDerivedFrom)
	require.Error(t, err)
}

func TestExpireStaleSessions(t *testing.T) {
	svc, store, proj := newTestService(t)
	ctx := context.Background()

	svc.reserveTTL = -1 // reserve already-expired sessions for this test
	session, err := svc.ReserveUpload(ctx, proj.ID, "stale.ifc", "application/x-step", nil)
	require.NoError(t, err)

	n, err := svc.ExpireStaleSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	updated, err := store.GetUploadSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.UploadSessionExpired, updated.Status)
}

func TestGetUsage(t *testing.T) {
	svc, _, proj := newTestService(t)
	ctx := context.Background()

	mustCommitFile(t, svc, proj.ID, domain.FileCategoryIfc)

	usage, err := svc.GetUsage(ctx, proj.WorkspaceID)
	require.NoError(t, err)
	require.Greater(t, usage.UsedBytes, int64(0))
}

// mustCommitFile registers a File row of the given category via
// CreateArtifact, the same path processing handlers use to write
// processor-produced bytes, since the client-facing commit flow now
// always classifies Source uploads itself.
func mustCommitFile(t *testing.T, svc *Service, projectID string, category domain.FileCategory) *domain.File {
	t.Helper()
	ctx := context.Background()
	file, err := svc.CreateArtifact(ctx, projectID, "file.bin", "application/octet-stream", domain.FileKindArtifact, category, bytes.NewReader([]byte("payload")))
	require.NoError(t, err)
	return file
}
