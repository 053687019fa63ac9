// Package mapper converts driver rows into typed Go values and result
// shapes.
package mapper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
)

// dateLayouts are tried in order when parsing date text.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ErrAmbiguousValue is returned when a single value is requested from
// untyped rows holding more than one column.
var ErrAmbiguousValue = errors.New("cannot pick a value from a row with several untyped columns")

// ResultMapper converts driver rows using the column metadata of a
// compiled or analyzed statement.
type ResultMapper struct{}

// NewResultMapper creates a new result mapper.
func NewResultMapper() *ResultMapper {
	return &ResultMapper{}
}

// Map converts rows and collapses them into shape. Without column
// metadata rows are returned as the driver produced them.
//
//   - ShapeNone returns nil.
//   - ShapeValue returns the first column of the first row, or nil.
//   - ShapeValues returns the first column of every row.
//
// Untyped rows read as values must have a single column.
//   - ShapeObject returns the first row, or nil.
//   - ShapeArray returns every row, never nil.
func (m *ResultMapper) Map(rows []map[string]any, columns []schemadomain.ParsedColumn, shape domain.ResultShape) (any, error) {
	if shape == domain.ShapeNone {
		return nil, nil
	}
	converted := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		r, err := m.Row(row, columns)
		if err != nil {
			return nil, err
		}
		converted = append(converted, r)
	}

	switch shape {
	case domain.ShapeValue:
		if len(converted) == 0 {
			return nil, nil
		}
		return first(converted[0], columns)
	case domain.ShapeValues:
		values := make([]any, len(converted))
		for i, row := range converted {
			v, err := first(row, columns)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return values, nil
	case domain.ShapeObject:
		if len(converted) == 0 {
			return nil, nil
		}
		return converted[0], nil
	}
	return converted, nil
}

// first returns the value of the first selected column. Untyped rows
// carry no column order, so they must hold exactly one column.
func first(row map[string]any, columns []schemadomain.ParsedColumn) (any, error) {
	if len(columns) > 0 {
		if v, ok := row[columns[0].Name]; ok {
			return v, nil
		}
	}
	if len(row) > 1 {
		return nil, ErrAmbiguousValue
	}
	for _, v := range row {
		return v, nil
	}
	return nil, nil
}

// Row converts every column of row that has metadata. Other values are
// copied unchanged.
func (m *ResultMapper) Row(row map[string]any, columns []schemadomain.ParsedColumn) (map[string]any, error) {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	for _, col := range columns {
		v, ok := row[col.Name]
		if !ok {
			continue
		}
		converted, err := m.Value(v, col)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column %s: %w", col.Name, err)
		}
		out[col.Name] = converted
	}
	return out, nil
}

// Value converts one driver value to the Go type of col.
func (m *ResultMapper) Value(v any, col schemadomain.ParsedColumn) (any, error) {
	if v == nil {
		return nil, nil
	}
	if col.Type == schemadomain.TypeJSON || col.Structured != nil {
		decoded, err := decode(v)
		if err != nil {
			return nil, err
		}
		if col.Structured == nil {
			return normalize(decoded), nil
		}
		return convert(decoded, col.Structured)
	}
	return scalar(v, col.Type)
}

// decode parses JSON text. Values that are not text were produced by a
// scalar expression and are returned as they are.
func decode(v any) (any, error) {
	var data []byte
	switch x := v.(type) {
	case string:
		data = []byte(x)
	case []byte:
		data = x
	default:
		return v, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return out, nil
}

// scalar converts a value of a known column type.
func scalar(v any, t schemadomain.ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case schemadomain.TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case float64:
			return x != 0, nil
		case json.Number:
			return x.String() != "0", nil
		}
	case schemadomain.TypeDate:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			return parseDate(x)
		case []byte:
			return parseDate(string(x))
		}
	case schemadomain.TypeInteger:
		switch x := v.(type) {
		case int64:
			return x, nil
		case float64:
			if x == float64(int64(x)) {
				return int64(x), nil
			}
			return x, nil
		case json.Number:
			return number(x), nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case schemadomain.TypeReal:
		switch x := v.(type) {
		case int64:
			return float64(x), nil
		case json.Number:
			return x.Float64()
		}
	case schemadomain.TypeText:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
	case schemadomain.TypeBlob:
		if s, ok := v.(string); ok {
			return []byte(s), nil
		}
	}
	return normalize(v), nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse %q as a date", s)
}

// number converts a JSON number to int64 when it is integral.
func number(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return f
}

// normalize replaces JSON numbers in decoded values.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		return number(x)
	case map[string]any:
		for k, item := range x {
			x[k] = normalize(item)
		}
		return x
	case []any:
		for i, item := range x {
			x[i] = normalize(item)
		}
		return x
	}
	return v
}

// convert walks decoded JSON along its structured type.
func convert(v any, st *schemadomain.StructuredType) (any, error) {
	if v == nil || st == nil {
		return normalize(v), nil
	}
	switch st.Kind {
	case schemadomain.StructScalar:
		if st.Type == schemadomain.TypeJSON || st.Type == schemadomain.TypeAny {
			return normalize(v), nil
		}
		return scalar(v, st.Type)
	case schemadomain.StructObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected a JSON object, got %T", v)
		}
		for _, f := range st.Fields {
			item, err := convert(obj[f.Name], f.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			if _, present := obj[f.Name]; present {
				obj[f.Name] = item
			}
		}
		for k, item := range obj {
			if st.Field(k) == nil {
				obj[k] = normalize(item)
			}
		}
		if allNull(obj) {
			return nil, nil
		}
		return obj, nil
	case schemadomain.StructMap:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected a JSON object, got %T", v)
		}
		for k, item := range obj {
			converted, err := convert(item, st.Elem)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", k, err)
			}
			obj[k] = converted
		}
		return obj, nil
	case schemadomain.StructArray:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a JSON array, got %T", v)
		}
		out := make([]any, 0, len(items))
		dropNulls := st.Optional || (st.Elem != nil && st.Elem.Optional)
		for i, item := range items {
			converted, err := convert(item, st.Elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			if converted == nil && (dropNulls || isObject(st.Elem)) {
				continue
			}
			out = append(out, converted)
		}
		if st.Sorted {
			sortValues(out)
		}
		return out, nil
	}
	return normalize(v), nil
}

func isObject(st *schemadomain.StructuredType) bool {
	return st != nil && st.Kind == schemadomain.StructObject
}

// allNull reports whether every leaf of obj is null. Such objects come
// from outer joins that matched nothing.
func allNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case map[string]any:
		if len(x) == 0 {
			return false
		}
		for _, item := range x {
			if !allNull(item) {
				return false
			}
		}
		return true
	}
	return false
}

// sortValues orders scalars: nulls first, then numbers, text and times.
func sortValues(values []any) {
	rank := func(v any) int {
		switch v.(type) {
		case nil:
			return 0
		case bool:
			return 1
		case int64, float64:
			return 2
		case string:
			return 3
		case time.Time:
			return 4
		}
		return 5
	}
	sort.SliceStable(values, func(i, j int) bool {
		a, b := values[i], values[j]
		ra, rb := rank(a), rank(b)
		if ra != rb {
			return ra < rb
		}
		switch x := a.(type) {
		case bool:
			return !x && b.(bool)
		case int64, float64:
			return toFloat(x) < toFloat(b)
		case string:
			return strings.Compare(x, b.(string)) < 0
		case time.Time:
			return x.Before(b.(time.Time))
		}
		return false
	})
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return 0
}
