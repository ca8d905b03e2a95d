// Package wexbim is the opaque-converter seam for producing a WexBIM binary
// mesh stream from parsed IFC products. Encoder only frames whatever mesh
// bytes a Converter produces per product; it does not triangulate IFC
// geometry itself.
package wexbim

import (
	"encoding/binary"
	"io"

	"github.com/octopus-bim/octopus/pkg/processing/ifc"
)

// magic identifies the stream as WexBIM to a downstream viewer.
var magic = [4]byte{'W', 'e', 'x', 'B'}

const formatVersion uint16 = 1

// Mesh is the opaque per-product geometry payload a real IFC geometry
// engine would produce; this seam treats it as an uninterpreted byte blob.
type Mesh struct {
	EntityLabel int
	GlobalID    string
	Vertices    []float32
	Triangles   []int32
}

// Converter turns a parsed product into its mesh representation. The real
// implementation lives outside this module; tests supply a stub.
type Converter interface {
	Convert(p ifc.Product) (Mesh, error)
}

// NoopConverter is the default Converter: it emits an empty mesh per
// product rather than triangulating geometry. Wired until a real geometry
// engine is attached.
type NoopConverter struct{}

// Convert implements Converter.
func (NoopConverter) Convert(p ifc.Product) (Mesh, error) {
	return Mesh{EntityLabel: p.EntityLabel, GlobalID: p.GlobalID}, nil
}

// Encoder writes a framed WexBIM stream: a fixed header, followed by one
// length-prefixed record per product mesh.
type Encoder struct {
	w io.Writer
}

// NewEncoder wraps w for WexBIM output.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteHeader emits the magic, format version, and product count. Must be
// called exactly once, before any WriteMesh call.
func (e *Encoder) WriteHeader(productCount int) error {
	if _, err := e.w.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(e.w, binary.LittleEndian, formatVersion); err != nil {
		return err
	}
	return binary.Write(e.w, binary.LittleEndian, uint32(productCount))
}

// WriteMesh frames one product's mesh: entity label, vertex count,
// vertices, triangle-index count, triangle indices.
func (e *Encoder) WriteMesh(m Mesh) error {
	if err := binary.Write(e.w, binary.LittleEndian, int32(m.EntityLabel)); err != nil {
		return err
	}
	if err := binary.Write(e.w, binary.LittleEndian, uint32(len(m.Vertices))); err != nil {
		return err
	}
	if err := binary.Write(e.w, binary.LittleEndian, m.Vertices); err != nil {
		return err
	}
	if err := binary.Write(e.w, binary.LittleEndian, uint32(len(m.Triangles))); err != nil {
		return err
	}
	return binary.Write(e.w, binary.LittleEndian, m.Triangles)
}

// Encode triangulates every product via conv and writes the complete
// framed stream to w. A product whose conversion fails is skipped rather
// than aborting the whole stream, matching the pipeline's per-element
// fault isolation.
func Encode(w io.Writer, products []ifc.Product, conv Converter) ([]string, error) {
	meshes := make([]Mesh, 0, len(products))
	var skipped []string
	for _, p := range products {
		mesh, err := conv.Convert(p)
		if err != nil {
			skipped = append(skipped, p.GlobalID)
			continue
		}
		meshes = append(meshes, mesh)
	}

	enc := NewEncoder(w)
	if err := enc.WriteHeader(len(meshes)); err != nil {
		return skipped, err
	}
	for _, m := range meshes {
		if err := enc.WriteMesh(m); err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}
