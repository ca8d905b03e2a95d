// Package property models extracted IFC property and quantity values as a
// tagged variant rather than a class hierarchy: Value is a closed set of
// variants switched on by a Visitor, not an interface implemented by
// per-kind types.
package property

// ValueType names which variant a Value holds, and is also the
// `valueType` field serialized onto the wire.
type ValueType string

const (
	ValueTypeString      ValueType = "string"
	ValueTypeInteger     ValueType = "integer"
	ValueTypeDouble      ValueType = "double"
	ValueTypeBoolean     ValueType = "boolean"
	ValueTypeEnumeration ValueType = "enumeration"
	ValueTypeRange       ValueType = "range"
	ValueTypeList        ValueType = "list"
	ValueTypeTable       ValueType = "table"
	ValueTypeComplex     ValueType = "complex"
	ValueTypeUnknown     ValueType = "unknown"
)

// Value is the tagged variant: exactly one of the typed fields below is
// meaningful, selected by Type. Constructed only via the New* helpers so a
// Value is never left with an inconsistent Type/payload pair.
type Value struct {
	Type ValueType

	String  string
	Integer int64
	Double  float64
	Boolean bool

	// Enumeration holds the single selected enumerant.
	Enumeration string

	// Range holds an (optional) lower and upper bound; either may be nil
	// for an open-ended range.
	RangeLower, RangeUpper *float64

	List  []Value
	Table []TableRow

	// Complex holds nested named sub-properties, the fallback for IFC
	// complex property constructs that don't fit the other variants.
	Complex []NamedValue
}

// NamedValue pairs a property/quantity name with its value, used inside
// Complex and as the element type property/quantity sets ultimately hold.
type NamedValue struct {
	Name  string
	Value Value
}

// TableRow is one row of a Table value.
type TableRow struct {
	Cells []Value
}

func NewString(s string) Value      { return Value{Type: ValueTypeString, String: s} }
func NewInteger(i int64) Value      { return Value{Type: ValueTypeInteger, Integer: i} }
func NewDouble(d float64) Value     { return Value{Type: ValueTypeDouble, Double: d} }
func NewBoolean(b bool) Value       { return Value{Type: ValueTypeBoolean, Boolean: b} }
func NewEnumeration(e string) Value { return Value{Type: ValueTypeEnumeration, Enumeration: e} }
func NewUnknown() Value             { return Value{Type: ValueTypeUnknown} }

func NewRange(lower, upper *float64) Value {
	return Value{Type: ValueTypeRange, RangeLower: lower, RangeUpper: upper}
}
func NewList(items []Value) Value          { return Value{Type: ValueTypeList, List: items} }
func NewTable(rows []TableRow) Value       { return Value{Type: ValueTypeTable, Table: rows} }
func NewComplex(fields []NamedValue) Value { return Value{Type: ValueTypeComplex, Complex: fields} }

// Visitor dispatches on a Value's Type, the tagged-variant analogue of a
// double-dispatch visitor over a class hierarchy.
type Visitor interface {
	VisitString(v string)
	VisitInteger(v int64)
	VisitDouble(v float64)
	VisitBoolean(v bool)
	VisitEnumeration(v string)
	VisitRange(lower, upper *float64)
	VisitList(items []Value)
	VisitTable(rows []TableRow)
	VisitComplex(fields []NamedValue)
	VisitUnknown()
}

// Accept dispatches v to the matching Visitor method.
func (v Value) Accept(visitor Visitor) {
	switch v.Type {
	case ValueTypeString:
		visitor.VisitString(v.String)
	case ValueTypeInteger:
		visitor.VisitInteger(v.Integer)
	case ValueTypeDouble:
		visitor.VisitDouble(v.Double)
	case ValueTypeBoolean:
		visitor.VisitBoolean(v.Boolean)
	case ValueTypeEnumeration:
		visitor.VisitEnumeration(v.Enumeration)
	case ValueTypeRange:
		visitor.VisitRange(v.RangeLower, v.RangeUpper)
	case ValueTypeList:
		visitor.VisitList(v.List)
	case ValueTypeTable:
		visitor.VisitTable(v.Table)
	case ValueTypeComplex:
		visitor.VisitComplex(v.Complex)
	default:
		visitor.VisitUnknown()
	}
}
