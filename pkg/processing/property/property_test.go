package property

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingVisitor struct {
	calls []string
}

func (r *recordingVisitor) VisitString(string)               { r.calls = append(r.calls, "string") }
func (r *recordingVisitor) VisitInteger(int64)                { r.calls = append(r.calls, "integer") }
func (r *recordingVisitor) VisitDouble(float64)                { r.calls = append(r.calls, "double") }
func (r *recordingVisitor) VisitBoolean(bool)                  { r.calls = append(r.calls, "boolean") }
func (r *recordingVisitor) VisitEnumeration(string)            { r.calls = append(r.calls, "enumeration") }
func (r *recordingVisitor) VisitRange(*float64, *float64)      { r.calls = append(r.calls, "range") }
func (r *recordingVisitor) VisitList([]Value)                  { r.calls = append(r.calls, "list") }
func (r *recordingVisitor) VisitTable([]TableRow)              { r.calls = append(r.calls, "table") }
func (r *recordingVisitor) VisitComplex([]NamedValue)          { r.calls = append(r.calls, "complex") }
func (r *recordingVisitor) VisitUnknown()                      { r.calls = append(r.calls, "unknown") }

func TestAcceptDispatchesToMatchingVisitorMethod(t *testing.T) {
	lower := 1.0
	upper := 2.0
	cases := []struct {
		name  string
		value Value
		want  string
	}{
		{"string", NewString("x"), "string"},
		{"integer", NewInteger(1), "integer"},
		{"double", NewDouble(1.5), "double"},
		{"boolean", NewBoolean(true), "boolean"},
		{"enumeration", NewEnumeration("FIRE"), "enumeration"},
		{"range", NewRange(&lower, &upper), "range"},
		{"list", NewList([]Value{NewInteger(1)}), "list"},
		{"table", NewTable([]TableRow{{Cells: []Value{NewInteger(1)}}}), "table"},
		{"complex", NewComplex([]NamedValue{{Name: "n", Value: NewInteger(1)}}), "complex"},
		{"unknown", NewUnknown(), "unknown"},
	}

	for _, tc := range cases {
		v := &recordingVisitor{}
		tc.value.Accept(v)
		require.Equal(t, []string{tc.want}, v.calls, tc.name)
	}
}
