package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/octopus-bim/octopus/pkg/config"
	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/files"
	"github.com/octopus-bim/octopus/pkg/modelsvc"
	"github.com/octopus-bim/octopus/pkg/persistence"
	"github.com/octopus-bim/octopus/pkg/queue"
	"github.com/octopus-bim/octopus/pkg/storagedriver"
)

const sampleStep = `ISO-10303-21;
HEADER;
ENDSEC;
DATA;
#1=IFCOWNERHISTORY($,$,$,$,$,$,$,0);
#2=IFCWALL('1v76C$RmP0jvfgO_0$Ov7F',#1,'Wall-01',$,$,$,$,$);
ENDSEC;
END-ISO-10303-21;
`

type fixture struct {
	store     *persistence.Store
	files     *files.Service
	modelsvc  *modelsvc.Service
	version   *domain.ModelVersion
	ifcFileID string
}

func newFixture(t *testing.T) *fixture {
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

	providers := map[string]storagedriver.Provider{"memory": storagedriver.NewMemory()}
	filesSvc, err := files.New(store, providers, "memory", config.Quota{}, 24)
	require.NoError(t, err)

	session, err := filesSvc.ReserveUpload(ctx, proj.ID, "model.ifc", "application/x-step", nil)
	require.NoError(t, err)
	_, checksum, err := filesSvc.UploadContent(ctx, session.ID, bytes.NewReader([]byte(sampleStep)))
	require.NoError(t, err)
	ifcFile, err := filesSvc.CommitUpload(ctx, session.ID, checksum)
	require.NoError(t, err)

	msvc := modelsvc.New(store)
	model, err := msvc.CreateModel(ctx, proj.ID, "Tower", "")
	require.NoError(t, err)
	version, err := msvc.CreateModelVersion(ctx, model.ID, ifcFile.ID)
	require.NoError(t, err)

	return &fixture{store: store, files: filesSvc, modelsvc: msvc, version: version, ifcFileID: ifcFile.ID}
}

func envelopeFor(t *testing.T, jobType, modelVersionID string) queue.JobEnvelope {
	t.Helper()
	payload, err := json.Marshal(jobPayload{ModelVersionID: modelVersionID})
	require.NoError(t, err)
	return queue.JobEnvelope{JobID: domain.NewID(), JobType: jobType, Payload: payload, EnqueuedAt: time.Now().UTC()}
}

func TestConvertWexBimHandlerProducesArtifactAndLink(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	notifier := queue.NewProgressNotifier()
	h := NewConvertWexBimHandler(fx.store, fx.files, notifier, nil)

	err := h.Handle(ctx, envelopeFor(t, modelsvc.JobConvertWexBim, fx.version.ID))
	require.NoError(t, err)

	updated, err := fx.store.GetModelVersion(ctx, fx.version.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.WexBimFileID)
	require.Equal(t, domain.ModelVersionProcessing, updated.Status)

	artifact, err := fx.store.GetFile(ctx, *updated.WexBimFileID)
	require.NoError(t, err)
	require.Equal(t, domain.FileCategoryWexBim, artifact.Category)
}

func TestConvertWexBimHandlerIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	h := NewConvertWexBimHandler(fx.store, fx.files, nil, nil)

	require.NoError(t, h.Handle(ctx, envelopeFor(t, modelsvc.JobConvertWexBim, fx.version.ID)))
	first, err := fx.store.GetModelVersion(ctx, fx.version.ID)
	require.NoError(t, err)

	require.NoError(t, h.Handle(ctx, envelopeFor(t, modelsvc.JobConvertWexBim, fx.version.ID)))
	second, err := fx.store.GetModelVersion(ctx, fx.version.ID)
	require.NoError(t, err)

	require.Equal(t, *first.WexBimFileID, *second.WexBimFileID)
}

func TestExtractPropertiesHandlerProducesArtifactAndLink(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	h := NewExtractPropertiesHandler(fx.store, fx.files, nil)

	err := h.Handle(ctx, envelopeFor(t, modelsvc.JobExtractProperties, fx.version.ID))
	require.NoError(t, err)

	updated, err := fx.store.GetModelVersion(ctx, fx.version.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.PropertiesFileID)

	artifact, rc, err := fx.files.DownloadFile(ctx, *updated.PropertiesFileID)
	require.NoError(t, err)
	defer rc.Close()
	require.Equal(t, domain.FileCategoryProperties, artifact.Category)

	var doc propertiesDocument
	require.NoError(t, json.NewDecoder(rc).Decode(&doc))
	require.Equal(t, 1, doc.TotalElements)
	require.Equal(t, "IFCWALL", doc.Elements[0].TypeName)
}

func TestBothHandlersTogetherReachReady(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	convert := NewConvertWexBimHandler(fx.store, fx.files, nil, nil)
	extract := NewExtractPropertiesHandler(fx.store, fx.files, nil)

	require.NoError(t, convert.Handle(ctx, envelopeFor(t, modelsvc.JobConvertWexBim, fx.version.ID)))
	require.NoError(t, extract.Handle(ctx, envelopeFor(t, modelsvc.JobExtractProperties, fx.version.ID)))

	final, err := fx.store.GetModelVersion(ctx, fx.version.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ModelVersionReady, final.Status)
	require.NotNil(t, final.ProcessedAt)
}
