package domain

import "strings"

// ParsedColumn describes one output column of an analyzed statement.
type ParsedColumn struct {
	Name         string
	Type         ColumnType
	Nullable     bool
	PrimaryKey   bool
	OriginTable  string
	Structured   *StructuredType
	FunctionName string
}

// StructuredKind is the shape of a JSON-valued column.
type StructuredKind int

const (
	// StructScalar is a single JSON value.
	StructScalar StructuredKind = iota
	// StructObject is a JSON object with known fields.
	StructObject
	// StructArray is a JSON array with a known element type.
	StructArray
	// StructMap is a JSON object with dynamic keys and a known value type.
	StructMap
)

// StructuredType is the recursive type of a JSON-valued column.
type StructuredType struct {
	Kind     StructuredKind
	Type     ColumnType
	Nullable bool
	// Optional marks values sourced from an outer-joined table.
	Optional bool
	Fields   []StructuredField
	Elem     *StructuredType
	// Sorted arrays are ordered after decoding because
	// aggregate order is not guaranteed by the engine.
	Sorted bool
}

// StructuredField is a named member of an object type.
type StructuredField struct {
	Name string
	Type *StructuredType
}

// Scalar returns a scalar structured type.
func Scalar(t ColumnType, nullable bool) *StructuredType {
	return &StructuredType{Kind: StructScalar, Type: t, Nullable: nullable}
}

// Field returns the named field of an object type, or nil.
func (s *StructuredType) Field(name string) *StructuredType {
	if s == nil {
		return nil
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Type
		}
	}
	return nil
}

// NeedsConversion reports whether decoded JSON of this shape
// holds values the coercer has to convert or filter.
func (s *StructuredType) NeedsConversion() bool {
	if s == nil {
		return false
	}
	switch s.Kind {
	case StructScalar:
		return s.Type == TypeBoolean || s.Type == TypeDate || s.Type == TypeInteger
	case StructArray:
		return s.Sorted || s.Optional || s.Elem.NeedsConversion() || (s.Elem != nil && s.Elem.Kind == StructObject)
	case StructMap:
		return s.Elem.NeedsConversion()
	}
	return true
}

// String renders the type for reports, e.g. {name: text, wins: integer[]}.
// A trailing ? marks nullable values.
func (s *StructuredType) String() string {
	if s == nil {
		return string(TypeAny)
	}
	var out string
	switch s.Kind {
	case StructObject:
		fields := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = f.Name + ": " + f.Type.String()
		}
		out = "{" + strings.Join(fields, ", ") + "}"
	case StructArray:
		elem := s.Elem.String()
		if strings.HasSuffix(elem, "?") {
			elem = "(" + elem + ")"
		}
		out = elem + "[]"
	case StructMap:
		out = "map<" + s.Elem.String() + ">"
	default:
		out = string(s.Type)
	}
	if s.Nullable {
		out += "?"
	}
	return out
}

// TypeString renders the column type for reports.
func (c ParsedColumn) TypeString() string {
	out := string(c.Type)
	if c.Structured != nil {
		out = strings.TrimSuffix(c.Structured.String(), "?")
	}
	if c.Nullable {
		out += "?"
	}
	return out
}
