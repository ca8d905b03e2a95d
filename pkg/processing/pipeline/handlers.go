// Package pipeline wires the ConvertWexBim and ExtractProperties job
// handlers: each loads its model version and source IFC file, drives the
// relevant opaque-converter seam (pkg/processing/ifc, pkg/processing/wexbim,
// pkg/processing/property), and writes the resulting artifact back through
// pkg/files before advancing the version's status. Both handlers are
// idempotent, re-running safely on at-least-once redelivery.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/octopus-bim/octopus/pkg/appctx"
	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
	"github.com/octopus-bim/octopus/pkg/files"
	"github.com/octopus-bim/octopus/pkg/persistence"
	"github.com/octopus-bim/octopus/pkg/processing/ifc"
	"github.com/octopus-bim/octopus/pkg/processing/wexbim"
	"github.com/octopus-bim/octopus/pkg/queue"
)

// jobPayload mirrors pkg/modelsvc's outbox payload shape; the two packages
// don't share a Go type to avoid an import back into modelsvc.
type jobPayload struct {
	ModelVersionID string `json:"modelVersionId"`
}

// ConvertWexBimHandler implements queue.Handler for the ConvertWexBim job
// type.
type ConvertWexBimHandler struct {
	Store     *persistence.Store
	Files     *files.Service
	Notifier  *queue.ProgressNotifier
	Converter wexbim.Converter
}

// NewConvertWexBimHandler constructs a handler with the default
// (geometry-less) converter if conv is nil.
func NewConvertWexBimHandler(store *persistence.Store, filesSvc *files.Service, notifier *queue.ProgressNotifier, conv wexbim.Converter) *ConvertWexBimHandler {
	if conv == nil {
		conv = wexbim.NoopConverter{}
	}
	return &ConvertWexBimHandler{Store: store, Files: filesSvc, Notifier: notifier, Converter: conv}
}

// Handle implements queue.Handler.
func (h *ConvertWexBimHandler) Handle(ctx context.Context, env queue.JobEnvelope) error {
	var payload jobPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return err
	}

	version, err := h.Store.GetModelVersion(ctx, payload.ModelVersionID)
	if err != nil {
		return err
	}
	if version.WexBimFileID != nil {
		return nil // already converted
	}

	if err := h.Store.UpdateModelVersionStatus(ctx, version.ID, domain.ModelVersionProcessing, nil, nil, "", nil,
		domain.ModelVersionPending, domain.ModelVersionProcessing); err != nil {
		if _, isConflict := err.(errtypes.IsConflict); isConflict {
			return nil // version already Failed or Ready by a racing handler
		}
		return err
	}
	h.notify(payload.ModelVersionID, env.JobID, "ConvertWexBim", 0, "downloading source", false, false)

	ifcFile, rc, err := h.Files.DownloadFile(ctx, version.IfcFileID)
	if err != nil {
		return h.fail(ctx, env, payload.ModelVersionID, err)
	}
	defer rc.Close()

	reader, err := ifc.New(rc)
	if err != nil {
		return h.fail(ctx, env, payload.ModelVersionID, err)
	}
	products := reader.Products()
	h.notify(payload.ModelVersionID, env.JobID, "ConvertWexBim", 40, "encoding mesh", false, false)

	var buf bytes.Buffer
	if _, err := wexbim.Encode(&buf, products, h.Converter); err != nil {
		return h.fail(ctx, env, payload.ModelVersionID, err)
	}

	artifact, err := h.Files.CreateArtifact(ctx, ifcFile.ProjectID, ifcFile.Name+".wexbim", "application/octet-stream",
		domain.FileKindArtifact, domain.FileCategoryWexBim, &buf)
	if err != nil {
		return h.fail(ctx, env, payload.ModelVersionID, err)
	}
	if _, err := h.Files.LinkFiles(ctx, artifact.ID, ifcFile.ID, domain.FileLinkDerivedFrom); err != nil {
		return h.fail(ctx, env, payload.ModelVersionID, err)
	}

	if err := h.Store.CompleteModelVersionArtifact(ctx, version.ID, &artifact.ID, nil, time.Now().UTC()); err != nil {
		if _, isConflict := err.(errtypes.IsConflict); !isConflict {
			return err
		}
	}

	h.notify(payload.ModelVersionID, env.JobID, "ConvertWexBim", 100, "converted", true, true)
	return nil
}

func (h *ConvertWexBimHandler) fail(ctx context.Context, env queue.JobEnvelope, modelVersionID string, cause error) error {
	appctx.GetLogger(ctx).Error().Err(cause).Str("modelVersion", modelVersionID).Msg("pipeline: ConvertWexBim failed")
	_ = h.Store.UpdateModelVersionStatus(ctx, modelVersionID, domain.ModelVersionFailed, nil, nil, cause.Error(), nil)
	h.notify(modelVersionID, env.JobID, "ConvertWexBim", 0, cause.Error(), true, false)
	return cause
}

func (h *ConvertWexBimHandler) notify(modelVersionID, jobID, stage string, pct int, message string, complete, success bool) {
	if h.Notifier == nil {
		return
	}
	h.Notifier.Notify(queue.Progress{
		JobID: jobID, ModelVersionID: modelVersionID, Stage: stage,
		PercentComplete: pct, Message: message, IsComplete: complete, IsSuccess: success,
	})
}
