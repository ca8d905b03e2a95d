package wexbim

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-bim/octopus/pkg/processing/ifc"
)

type stubConverter struct {
	fail map[string]bool
}

func (c stubConverter) Convert(p ifc.Product) (Mesh, error) {
	if c.fail[p.GlobalID] {
		return Mesh{}, errors.New("triangulation failed")
	}
	return Mesh{EntityLabel: p.EntityLabel, GlobalID: p.GlobalID, Vertices: []float32{0, 0, 0}, Triangles: []int32{0}}, nil
}

func TestEncodeWritesHeaderAndMeshes(t *testing.T) {
	products := []ifc.Product{
		{EntityLabel: 1, GlobalID: "a"},
		{EntityLabel: 2, GlobalID: "b"},
	}

	var buf bytes.Buffer
	skipped, err := Encode(&buf, products, stubConverter{})
	require.NoError(t, err)
	require.Empty(t, skipped)

	require.Equal(t, magic[:], buf.Bytes()[:4])
	var version uint16
	require.NoError(t, binary.Read(bytes.NewReader(buf.Bytes()[4:6]), binary.LittleEndian, &version))
	require.Equal(t, formatVersion, version)

	var count uint32
	require.NoError(t, binary.Read(bytes.NewReader(buf.Bytes()[6:10]), binary.LittleEndian, &count))
	require.EqualValues(t, 2, count)
}

func TestEncodeSkipsFailedConversions(t *testing.T) {
	products := []ifc.Product{
		{EntityLabel: 1, GlobalID: "a"},
		{EntityLabel: 2, GlobalID: "bad"},
	}

	var buf bytes.Buffer
	skipped, err := Encode(&buf, products, stubConverter{fail: map[string]bool{"bad": true}})
	require.NoError(t, err)
	require.Equal(t, []string{"bad"}, skipped)

	var count uint32
	require.NoError(t, binary.Read(bytes.NewReader(buf.Bytes()[6:10]), binary.LittleEndian, &count))
	require.EqualValues(t, 1, count)
}

func TestNoopConverterProducesEmptyMesh(t *testing.T) {
	mesh, err := NoopConverter{}.Convert(ifc.Product{EntityLabel: 7, GlobalID: "g"})
	require.NoError(t, err)
	require.Equal(t, 7, mesh.EntityLabel)
	require.Empty(t, mesh.Vertices)
}
