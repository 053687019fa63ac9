package mapper

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// Scan copies a mapped result into dest. Objects fill structs and maps,
// arrays fill slices and scalars fill basic types. A nil result leaves
// dest untouched.
func (m *ResultMapper) Scan(result any, dest any) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Pointer || destValue.IsNil() {
		return fmt.Errorf("dest must be a non-nil pointer, got %T", dest)
	}
	if result == nil {
		return nil
	}
	return m.setValue(destValue.Elem(), result)
}

// MapToStruct maps a single row to a struct.
func (m *ResultMapper) MapToStruct(row map[string]any, dest any) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Pointer || destValue.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dest must be a pointer to struct")
	}
	return m.setStruct(destValue.Elem(), row)
}

// MapToStructSlice maps multiple rows to a slice of structs.
func (m *ResultMapper) MapToStructSlice(rows []map[string]any, dest any) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Pointer || destValue.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("dest must be a pointer to slice")
	}
	items := make([]any, len(rows))
	for i, row := range rows {
		items[i] = row
	}
	return m.setValue(destValue.Elem(), items)
}

func (m *ResultMapper) setStruct(dest reflect.Value, row map[string]any) error {
	destType := dest.Type()
	for i := 0; i < destType.NumField(); i++ {
		field := destType.Field(i)
		fieldValue := dest.Field(i)
		if !fieldValue.CanSet() {
			continue
		}
		name := columnName(field)
		if name == "-" {
			continue
		}
		value, ok := row[name]
		if !ok {
			value, ok = findValue(row, name)
			if !ok {
				continue
			}
		}
		if err := m.setValue(fieldValue, value); err != nil {
			return fmt.Errorf("failed to set field %s: %w", field.Name, err)
		}
	}
	return nil
}

// columnName gets the column name for a struct field from its db or json
// tag, or the field name.
func columnName(field reflect.StructField) string {
	for _, key := range []string{"db", "json"} {
		if tag := field.Tag.Get(key); tag != "" {
			name, _, _ := strings.Cut(tag, ",")
			if name != "" {
				return name
			}
		}
	}
	return field.Name
}

// findValue matches keys ignoring case and underscores, so CoachID
// finds coach_id.
func findValue(row map[string]any, key string) (any, bool) {
	fold := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", ""))
	}
	want := fold(key)
	for k, v := range row {
		if fold(k) == want {
			return v, true
		}
	}
	return nil, false
}

// setValue sets a field value with type conversion.
func (m *ResultMapper) setValue(field reflect.Value, value any) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	valueReflect := reflect.ValueOf(value)
	fieldType := field.Type()

	if fieldType.Kind() == reflect.Pointer {
		ptr := reflect.New(fieldType.Elem())
		if err := m.setValue(ptr.Elem(), value); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}
	if fieldType.Kind() == reflect.Interface || valueReflect.Type().AssignableTo(fieldType) {
		field.Set(valueReflect)
		return nil
	}

	switch fieldType.Kind() {
	case reflect.String:
		switch v := value.(type) {
		case string:
			field.SetString(v)
		case []byte:
			field.SetString(string(v))
		default:
			field.SetString(fmt.Sprintf("%v", value))
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch v := value.(type) {
		case int64:
			field.SetInt(v)
		case float64:
			field.SetInt(int64(v))
		case bool:
			if v {
				field.SetInt(1)
			} else {
				field.SetInt(0)
			}
		default:
			return fmt.Errorf("cannot convert %T to int", value)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		switch v := value.(type) {
		case int64:
			if v < 0 {
				return fmt.Errorf("cannot convert negative %d to uint", v)
			}
			field.SetUint(uint64(v))
		case float64:
			field.SetUint(uint64(v))
		default:
			return fmt.Errorf("cannot convert %T to uint", value)
		}

	case reflect.Float32, reflect.Float64:
		switch v := value.(type) {
		case float64:
			field.SetFloat(v)
		case int64:
			field.SetFloat(float64(v))
		default:
			return fmt.Errorf("cannot convert %T to float", value)
		}

	case reflect.Bool:
		switch v := value.(type) {
		case bool:
			field.SetBool(v)
		case int64:
			field.SetBool(v != 0)
		default:
			return fmt.Errorf("cannot convert %T to bool", value)
		}

	case reflect.Struct:
		if fieldType == timeType {
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("cannot convert %T to time.Time", value)
			}
			t, err := parseDate(s)
			if err != nil {
				return err
			}
			field.Set(reflect.ValueOf(t))
			return nil
		}
		row, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot convert %T to %s", value, fieldType)
		}
		return m.setStruct(field, row)

	case reflect.Map:
		row, ok := value.(map[string]any)
		if !ok || fieldType.Key().Kind() != reflect.String {
			return fmt.Errorf("cannot convert %T to %s", value, fieldType)
		}
		out := reflect.MakeMapWithSize(fieldType, len(row))
		for k, item := range row {
			elem := reflect.New(fieldType.Elem()).Elem()
			if err := m.setValue(elem, item); err != nil {
				return fmt.Errorf("key %s: %w", k, err)
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(fieldType.Key()), elem)
		}
		field.Set(out)

	case reflect.Slice:
		if b, ok := value.([]byte); ok && fieldType.Elem().Kind() == reflect.Uint8 {
			field.SetBytes(b)
			return nil
		}
		items, ok := value.([]any)
		if !ok {
			if rows, isRows := value.([]map[string]any); isRows {
				items = make([]any, len(rows))
				for i, row := range rows {
					items[i] = row
				}
			} else {
				return fmt.Errorf("cannot convert %T to %s", value, fieldType)
			}
		}
		out := reflect.MakeSlice(fieldType, len(items), len(items))
		for i, item := range items {
			if err := m.setValue(out.Index(i), item); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		field.Set(out)

	default:
		return fmt.Errorf("unsupported field type: %s", fieldType)
	}
	return nil
}
