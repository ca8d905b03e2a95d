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
	"github.com/octopus-bim/octopus/pkg/processing/property"
	"github.com/octopus-bim/octopus/pkg/queue"
)

const propertiesSchemaVersion = 1

// propertiesDocument is the root of the extracted-properties JSON artifact.
type propertiesDocument struct {
	SchemaVersion int           `json:"schemaVersion"`
	ExtractedAt   time.Time     `json:"extractedAt"`
	TotalElements int           `json:"totalElements"`
	Elements      []elementDoc  `json:"elements"`
}

type elementDoc struct {
	EntityLabel      int              `json:"entityLabel"`
	GlobalID         string           `json:"globalId"`
	Name             string           `json:"name,omitempty"`
	TypeName         string           `json:"typeName"`
	Description      string           `json:"description,omitempty"`
	ObjectType       string           `json:"objectType,omitempty"`
	TypeObjectName   string           `json:"typeObjectName,omitempty"`
	TypeObjectType   string           `json:"typeObjectType,omitempty"`
	PropertySets     []propertySetDoc `json:"propertySets"`
	QuantitySets     []quantitySetDoc `json:"quantitySets"`
	TypePropertySets []propertySetDoc `json:"typePropertySets"`
}

type propertySetDoc struct {
	Name           string          `json:"name"`
	GlobalID       string          `json:"globalId,omitempty"`
	IsTypeProperty bool            `json:"isTypeProperty"`
	Properties     []propertyValueDoc `json:"properties"`
}

type propertyValueDoc struct {
	Name      string             `json:"name"`
	Value     interface{}        `json:"value,omitempty"`
	ValueType property.ValueType `json:"valueType"`
	Unit      string             `json:"unit,omitempty"`
}

type quantitySetDoc struct {
	Name       string        `json:"name"`
	GlobalID   string        `json:"globalId,omitempty"`
	Quantities []quantityDoc `json:"quantities"`
}

type quantityDoc struct {
	Name      string             `json:"name"`
	Value     *float64           `json:"value,omitempty"`
	ValueType property.ValueType `json:"valueType"`
	Unit      string             `json:"unit,omitempty"`
}

// ExtractPropertiesHandler implements queue.Handler for the
// ExtractProperties job type.
type ExtractPropertiesHandler struct {
	Store    *persistence.Store
	Files    *files.Service
	Notifier *queue.ProgressNotifier
}

// NewExtractPropertiesHandler constructs a handler.
func NewExtractPropertiesHandler(store *persistence.Store, filesSvc *files.Service, notifier *queue.ProgressNotifier) *ExtractPropertiesHandler {
	return &ExtractPropertiesHandler{Store: store, Files: filesSvc, Notifier: notifier}
}

// Handle implements queue.Handler.
func (h *ExtractPropertiesHandler) Handle(ctx context.Context, env queue.JobEnvelope) error {
	var payload jobPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return err
	}

	version, err := h.Store.GetModelVersion(ctx, payload.ModelVersionID)
	if err != nil {
		return err
	}
	if version.PropertiesFileID != nil {
		return nil // already extracted
	}
	if version.Status == domain.ModelVersionPending {
		if err := h.Store.UpdateModelVersionStatus(ctx, version.ID, domain.ModelVersionProcessing, nil, nil, "", nil,
			domain.ModelVersionPending); err != nil {
			if _, isConflict := err.(errtypes.IsConflict); isConflict {
				return nil // version already moved on by a racing handler
			}
			return err
		}
	}

	h.notify(payload.ModelVersionID, env.JobID, "ExtractProperties", 0, "reading source", false, false)
	ifcFile, rc, err := h.Files.DownloadFile(ctx, version.IfcFileID)
	if err != nil {
		return h.fail(ctx, env, payload.ModelVersionID, err)
	}
	defer rc.Close()

	reader, err := ifc.New(rc)
	if err != nil {
		return h.fail(ctx, env, payload.ModelVersionID, err)
	}

	doc := buildDocument(reader.Products())
	h.notify(payload.ModelVersionID, env.JobID, "ExtractProperties", 60, "writing artifact", false, false)

	encoded, err := json.Marshal(doc)
	if err != nil {
		return h.fail(ctx, env, payload.ModelVersionID, err)
	}

	artifact, err := h.Files.CreateArtifact(ctx, ifcFile.ProjectID, ifcFile.Name+".properties.json", "application/json",
		domain.FileKindArtifact, domain.FileCategoryProperties, bytes.NewReader(encoded))
	if err != nil {
		return h.fail(ctx, env, payload.ModelVersionID, err)
	}
	if _, err := h.Files.LinkFiles(ctx, artifact.ID, ifcFile.ID, domain.FileLinkPropertiesOf); err != nil {
		return h.fail(ctx, env, payload.ModelVersionID, err)
	}

	if err := h.Store.CompleteModelVersionArtifact(ctx, version.ID, nil, &artifact.ID, time.Now().UTC()); err != nil {
		if _, isConflict := err.(errtypes.IsConflict); !isConflict {
			return err
		}
		// version already Failed; artifact is written and linked, status stays Failed
	}

	h.notify(payload.ModelVersionID, env.JobID, "ExtractProperties", 100, "extracted", true, true)
	return nil
}

// buildDocument converts parsed products into the wire schema. Every
// product is rendered: elementDocFromProduct has no failure path, so no
// product is skipped here.
func buildDocument(products []ifc.Product) propertiesDocument {
	doc := propertiesDocument{
		SchemaVersion: propertiesSchemaVersion,
		ExtractedAt:   time.Now().UTC(),
		Elements:      make([]elementDoc, 0, len(products)),
	}
	for _, p := range products {
		doc.Elements = append(doc.Elements, elementDocFromProduct(p))
	}
	doc.TotalElements = len(doc.Elements)
	return doc
}

func elementDocFromProduct(p ifc.Product) elementDoc {
	e := elementDoc{
		EntityLabel:    p.EntityLabel,
		GlobalID:       p.GlobalID,
		Name:           p.Name,
		TypeName:       p.TypeName,
		Description:    p.Description,
		ObjectType:     p.ObjectType,
		TypeObjectName: p.TypeObjectName,
		TypeObjectType: p.TypeObjectType,
		PropertySets:   make([]propertySetDoc, 0, len(p.PropertySets)),
		QuantitySets:   make([]quantitySetDoc, 0, len(p.QuantitySets)),
		TypePropertySets: make([]propertySetDoc, 0, len(p.TypePropertySets)),
	}
	for _, ps := range p.PropertySets {
		e.PropertySets = append(e.PropertySets, propertySetDocFrom(ps))
	}
	for _, ps := range p.TypePropertySets {
		e.TypePropertySets = append(e.TypePropertySets, propertySetDocFrom(ps))
	}
	for _, qs := range p.QuantitySets {
		e.QuantitySets = append(e.QuantitySets, quantitySetDocFrom(qs))
	}
	return e
}

func propertySetDocFrom(ps ifc.PropertySet) propertySetDoc {
	out := propertySetDoc{Name: ps.Name, GlobalID: ps.GlobalID, IsTypeProperty: ps.IsTypeProperty,
		Properties: make([]propertyValueDoc, 0, len(ps.Properties))}
	for _, nv := range ps.Properties {
		out.Properties = append(out.Properties, propertyValueDoc{
			Name: nv.Name, Value: jsonValueOf(nv.Value), ValueType: nv.Value.Type,
		})
	}
	return out
}

func quantitySetDocFrom(qs ifc.QuantitySet) quantitySetDoc {
	out := quantitySetDoc{Name: qs.Name, GlobalID: qs.GlobalID, Quantities: make([]quantityDoc, 0, len(qs.Quantities))}
	for _, q := range qs.Quantities {
		valueType := property.ValueTypeDouble
		if q.Value == nil {
			valueType = property.ValueTypeUnknown
		}
		out.Quantities = append(out.Quantities, quantityDoc{Name: q.Name, Value: q.Value, ValueType: valueType, Unit: q.Unit})
	}
	return out
}

// jsonValueVisitor renders a property.Value as a plain interface{} suitable for
// json.Marshal, via the tagged-variant's Visitor dispatch rather than a
// type switch over Value itself.
type jsonValueVisitor struct {
	result interface{}
}

func (v *jsonValueVisitor) VisitString(s string)      { v.result = s }
func (v *jsonValueVisitor) VisitInteger(i int64)      { v.result = i }
func (v *jsonValueVisitor) VisitDouble(d float64)     { v.result = d }
func (v *jsonValueVisitor) VisitBoolean(b bool)       { v.result = b }
func (v *jsonValueVisitor) VisitEnumeration(e string) { v.result = e }
func (v *jsonValueVisitor) VisitRange(lower, upper *float64) {
	v.result = map[string]*float64{"lower": lower, "upper": upper}
}
func (v *jsonValueVisitor) VisitList(items []property.Value) {
	out := make([]interface{}, len(items))
	for i, it := range items {
		out[i] = jsonValueOf(it)
	}
	v.result = out
}
func (v *jsonValueVisitor) VisitTable(rows []property.TableRow) {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = jsonValueOf(c)
		}
		out[i] = cells
	}
	v.result = out
}
func (v *jsonValueVisitor) VisitComplex(fields []property.NamedValue) {
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		out[f.Name] = jsonValueOf(f.Value)
	}
	v.result = out
}
func (v *jsonValueVisitor) VisitUnknown() { v.result = nil }

func jsonValueOf(val property.Value) interface{} {
	visitor := &jsonValueVisitor{}
	val.Accept(visitor)
	return visitor.result
}

func (h *ExtractPropertiesHandler) fail(ctx context.Context, env queue.JobEnvelope, modelVersionID string, cause error) error {
	appctx.GetLogger(ctx).Error().Err(cause).Str("modelVersion", modelVersionID).Msg("pipeline: ExtractProperties failed")
	_ = h.Store.UpdateModelVersionStatus(ctx, modelVersionID, domain.ModelVersionFailed, nil, nil, cause.Error(), nil)
	h.notify(modelVersionID, env.JobID, "ExtractProperties", 0, cause.Error(), true, false)
	return cause
}

func (h *ExtractPropertiesHandler) notify(modelVersionID, jobID, stage string, pct int, message string, complete, success bool) {
	if h.Notifier == nil {
		return
	}
	h.Notifier.Notify(queue.Progress{
		JobID: jobID, ModelVersionID: modelVersionID, Stage: stage,
		PercentComplete: pct, Message: message, IsComplete: complete, IsSuccess: success,
	})
}
