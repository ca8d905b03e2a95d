// Package modelsvc implements the Model/ModelVersion lifecycle: version
// creation enqueues its two processing jobs inside the same transaction as
// the version insert, following the transactional-outbox idiom
// pkg/persistence exposes (cf. pkg/notification/manager/sql's transaction
// usage) so that a Pending version is never observed without its jobs
// durably recorded, nor a job without its version.
package modelsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
	"github.com/octopus-bim/octopus/pkg/persistence"
)

// Job type names queue handlers register against; referenced here only as
// string constants so this package stays free of an import-cycle back to
// pkg/processing.
const (
	JobConvertWexBim     = "ConvertWexBim"
	JobExtractProperties = "ExtractProperties"
)

// jobPayload is the envelope body for both pipeline job types.
type jobPayload struct {
	ModelVersionID string `json:"modelVersionId"`
}

// Service implements model and model-version lifecycle operations.
type Service struct {
	store *persistence.Store
}

// New constructs a Service.
func New(store *persistence.Store) *Service {
	return &Service{store: store}
}

// CreateModel registers a new model container under a project.
func (s *Service) CreateModel(ctx context.Context, projectID, name, description string) (*domain.Model, error) {
	if name == "" {
		return nil, errtypes.Validation("name must not be empty")
	}
	now := time.Now().UTC()
	m := &domain.Model{
		ID: domain.NewID(), ProjectID: projectID, Name: name, Description: description,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.store.CreateModel(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetModel loads a model by id.
func (s *Service) GetModel(ctx context.Context, id string) (*domain.Model, error) {
	return s.store.GetModel(ctx, id)
}

// ListModels returns every model under a project.
func (s *Service) ListModels(ctx context.Context, projectID string) ([]*domain.Model, error) {
	return s.store.ListModelsByProject(ctx, projectID)
}

// CreateModelVersion validates the source file, inserts a Pending version at
// the next version number, and enqueues ConvertWexBim and ExtractProperties
// jobs in the same transaction, writing outbox rows a dispatcher later
// drains into pkg/queue.
func (s *Service) CreateModelVersion(ctx context.Context, modelID, ifcFileID string) (*domain.ModelVersion, error) {
	file, err := s.store.GetFile(ctx, ifcFileID)
	if err != nil {
		return nil, err
	}
	if file.IsDeleted {
		return nil, errtypes.Validation("ifc file is deleted")
	}
	if file.Kind != domain.FileKindSource {
		return nil, errtypes.Validation("ifc file must be a Source file")
	}
	if file.Category != domain.FileCategoryIfc && file.Category != domain.FileCategoryOther {
		return nil, errtypes.Validation("ifc file must be category Ifc or Other")
	}

	model, err := s.store.GetModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if model.ProjectID != file.ProjectID {
		return nil, errtypes.Validation("ifc file does not belong to the model's project")
	}

	var version *domain.ModelVersion
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		next, err := s.store.NextVersionNumber(ctx, modelID)
		if err != nil {
			return err
		}

		version = &domain.ModelVersion{
			ID: domain.NewID(), ModelID: modelID, VersionNumber: next,
			IfcFileID: ifcFileID, Status: domain.ModelVersionPending,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.CreateModelVersion(ctx, version); err != nil {
			return err
		}

		payload, err := json.Marshal(jobPayload{ModelVersionID: version.ID})
		if err != nil {
			return err
		}
		for _, jobType := range []string{JobConvertWexBim, JobExtractProperties} {
			job := &persistence.OutboxJob{
				ID: domain.NewID(), JobType: jobType, Payload: string(payload),
				EnqueuedAt: time.Now().UTC(),
			}
			if err := s.store.InsertOutboxJob(ctx, job); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// GetModelVersion loads a version by id.
func (s *Service) GetModelVersion(ctx context.Context, id string) (*domain.ModelVersion, error) {
	return s.store.GetModelVersion(ctx, id)
}

// ListModelVersions returns every version of a model, newest first.
func (s *Service) ListModelVersions(ctx context.Context, modelID string) ([]*domain.ModelVersion, error) {
	return s.store.ListModelVersions(ctx, modelID)
}

// WexBimFileID returns the version's WexBIM artifact id, or NotReady if the
// conversion hasn't produced one yet.
func (s *Service) WexBimFileID(ctx context.Context, versionID string) (string, error) {
	v, err := s.store.GetModelVersion(ctx, versionID)
	if err != nil {
		return "", err
	}
	if v.WexBimFileID == nil {
		return "", errtypes.NotReady(versionID)
	}
	return *v.WexBimFileID, nil
}

// PropertiesFileID returns the version's extracted-properties artifact id,
// or NotReady if extraction hasn't produced one yet.
func (s *Service) PropertiesFileID(ctx context.Context, versionID string) (string, error) {
	v, err := s.store.GetModelVersion(ctx, versionID)
	if err != nil {
		return "", err
	}
	if v.PropertiesFileID == nil {
		return "", errtypes.NotReady(versionID)
	}
	return *v.PropertiesFileID, nil
}
