package compiler

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
)

// timeLayout is the ISO-8601 form used for stored dates.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// BindValue converts a parameter of literal SQL the same way compiled
// parameters are bound.
func BindValue(v any) (any, error) {
	return bindValue(v)
}

// bindValue converts a Go value into a driver value. Booleans become
// 0 or 1, times become ISO-8601 text and composite values become JSON.
func bindValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case time.Time:
		return x.UTC().Format(timeLayout), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return x.UTC().Format(timeLayout), nil
	case string, []byte, int, int8, int16, int32, int64, uint8, uint16, uint32, float32, float64:
		return x, nil
	case uint:
		return unsigned(uint64(x))
	case uint64:
		return unsigned(x)
	case json.RawMessage:
		return string(x), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		return bindValue(rv.Elem().Interface())
	}
	data, err := json.Marshal(jsonValue(v))
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameter: %w", err)
	}
	return string(data), nil
}

// unsigned binds an unsigned integer as a signed 64-bit integer.
func unsigned(x uint64) (any, error) {
	if x > math.MaxInt64 {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("%d does not fit a 64-bit signed integer", x), Err: domain.ErrOutOfRange}
	}
	return int64(x), nil
}

// jsonValue rewrites values nested inside JSON so they read back the
// same way as bound scalars.
func jsonValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(timeLayout)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = jsonValue(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = jsonValue(item)
		}
		return out
	}
	return v
}

// isList reports whether v is a slice or array to be matched elementwise.
func isList(v any) bool {
	if v == nil {
		return false
	}
	switch v.(type) {
	case []byte, json.RawMessage:
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// jsonList encodes a list for json_each.
func jsonList(v any) (string, error) {
	rv := reflect.ValueOf(v)
	items := make([]any, rv.Len())
	for i := range items {
		item, err := bindValue(rv.Index(i).Interface())
		if err != nil {
			return "", err
		}
		items[i] = item
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

// literalType returns the column type of a bound Go value.
func literalType(v any) schemadomain.ColumnType {
	switch v.(type) {
	case nil:
		return schemadomain.TypeAny
	case string:
		return schemadomain.TypeText
	case bool:
		return schemadomain.TypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return schemadomain.TypeInteger
	case float32, float64:
		return schemadomain.TypeReal
	case time.Time, *time.Time:
		return schemadomain.TypeDate
	case []byte:
		return schemadomain.TypeBlob
	}
	return schemadomain.TypeJSON
}
