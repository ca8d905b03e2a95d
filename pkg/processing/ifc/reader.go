// Package ifc is the opaque-converter seam for reading IFC STEP-physical
// files. It defines the minimal line-tokenizing reader needed to enumerate
// "product" entities and their property/quantity sets for
// ExtractProperties; a real geometry engine would replace the
// entity-attribute parsing with a full
// EXPRESS schema implementation.
package ifc

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/octopus-bim/octopus/pkg/processing/property"
)

// Quantity is one quantity entry inside a quantity set.
type Quantity struct {
	Name  string
	Value *float64
	Unit  string
}

// QuantitySet groups related quantities, e.g. IfcElementQuantity.
type QuantitySet struct {
	Name       string
	GlobalID   string
	Quantities []Quantity
}

// PropertySet groups related properties, e.g. IfcPropertySet.
type PropertySet struct {
	Name           string
	GlobalID       string
	IsTypeProperty bool
	Properties     []property.NamedValue
}

// Product is one IFC "product" entity (wall, door, space, ...) with its
// attached property/quantity sets.
type Product struct {
	EntityLabel      int
	GlobalID         string
	Name             string
	TypeName         string
	Description      string
	ObjectType       string
	TypeObjectName   string
	TypeObjectType   string
	PropertySets     []PropertySet
	QuantitySets     []QuantitySet
	TypePropertySets []PropertySet
}

// record is one parsed STEP entity instance line: "#<label>=<TYPE>(<attrs>);".
type record struct {
	label int
	typ   string
	attrs []string
}

// Reader enumerates the Product entities of an IFC STEP-physical file.
type Reader struct {
	records map[int]record
}

// New parses r's STEP DATA section into a Reader ready for Products.
// Failure inside the parse of a single line does not abort the read; the
// line is skipped, isolating a fault to the one element it affects.
func New(r io.Reader) (*Reader, error) {
	records := map[int]record{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	inData := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "DATA;":
			inData = true
			continue
		case line == "ENDSEC;":
			inData = false
			continue
		case !inData, line == "":
			continue
		}

		rec, ok := parseRecordLine(line)
		if !ok {
			continue
		}
		records[rec.label] = rec
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &Reader{records: records}, nil
}

// parseRecordLine parses "#123=IFCWALL('guid',#1,$,'Wall-1',...);".
func parseRecordLine(line string) (record, bool) {
	if !strings.HasPrefix(line, "#") {
		return record{}, false
	}
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return record{}, false
	}
	label, err := strconv.Atoi(line[1:eq])
	if err != nil {
		return record{}, false
	}

	rest := strings.TrimSuffix(strings.TrimSpace(line[eq+1:]), ";")
	open := strings.IndexByte(rest, '(')
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return record{}, false
	}
	typ := rest[:open]
	inner := rest[open+1 : len(rest)-1]
	return record{label: label, typ: strings.ToUpper(typ), attrs: splitAttrs(inner)}, true
}

// splitAttrs splits a STEP attribute list on top-level commas, respecting
// nested parentheses and quoted strings so "IFCTEXT('a,b')" doesn't split
// inside the quoted literal.
func splitAttrs(s string) []string {
	var out []string
	depth := 0
	inString := false
	start := 0
	for i, r := range s {
		switch r {
		case '\'':
			inString = !inString
		case '(':
			if !inString {
				depth++
			}
		case ')':
			if !inString {
				depth--
			}
		case ',':
			if !inString && depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(s[start:]))
	return out
}

// unquote strips a single layer of STEP string-literal quoting, or returns
// s unchanged if it isn't a quoted literal.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}

// Products enumerates every entity instance whose type name does not begin
// with one of the structural/relationship prefixes IFC reserves for
// non-product bookkeeping (IFCRELxxx, IFCOWNERHISTORY, ...), which is
// sufficient fidelity for this seam: a full implementation would instead
// walk the EXPRESS schema's IfcProduct subtype closure.
func (r *Reader) Products() []Product {
	var out []Product
	for label, rec := range r.records {
		if !isProductType(rec.typ) {
			continue
		}
		out = append(out, r.buildProduct(label, rec))
	}
	return out
}

func isProductType(typ string) bool {
	if strings.HasPrefix(typ, "IFCREL") || strings.HasPrefix(typ, "IFCOWNERHISTORY") ||
		strings.HasPrefix(typ, "IFCPROPERTYSET") || strings.HasPrefix(typ, "IFCELEMENTQUANTITY") ||
		strings.HasPrefix(typ, "IFCPROPERTY") || strings.HasPrefix(typ, "IFCQUANTITY") {
		return false
	}
	return strings.HasPrefix(typ, "IFC")
}

func (r *Reader) buildProduct(label int, rec record) Product {
	p := Product{EntityLabel: label, TypeName: rec.typ}
	if len(rec.attrs) > 0 {
		p.GlobalID = unquote(rec.attrs[0])
	}
	if len(rec.attrs) > 2 {
		p.Name = unquote(rec.attrs[2])
	}
	if len(rec.attrs) > 3 {
		p.Description = unquote(rec.attrs[3])
	}
	// Property/quantity set association (IfcRelDefinesByProperties) and
	// type association (IfcRelDefinesByType) resolution against
	// r.records is left to a full EXPRESS-aware implementation; this seam
	// returns the product's own direct attributes only.
	return p
}
