package mapper_test

import (
	"testing"
	"time"

	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	"github.com/satishbabariya/sqltyped/internal/core/query/mapper"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var coachColumns = []schemadomain.ParsedColumn{
	{Name: "id", Type: schemadomain.TypeInteger, PrimaryKey: true},
	{Name: "name", Type: schemadomain.TypeText},
	{Name: "city", Type: schemadomain.TypeText},
}

func TestMap_Shapes(t *testing.T) {
	m := mapper.NewResultMapper()
	row := map[string]any{"id": int64(1), "name": "Eugene", "city": "Auckland"}

	t.Run("object", func(t *testing.T) {
		got, err := m.Map([]map[string]any{row}, coachColumns, domain.ShapeObject)
		require.NoError(t, err)
		assert.Equal(t, row, got)
	})

	t.Run("object without rows", func(t *testing.T) {
		got, err := m.Map(nil, coachColumns, domain.ShapeObject)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("array is never nil", func(t *testing.T) {
		for _, rows := range [][]map[string]any{nil, {row}, {row, row}} {
			got, err := m.Map(rows, coachColumns, domain.ShapeArray)
			require.NoError(t, err)
			list, ok := got.([]map[string]any)
			require.True(t, ok)
			assert.NotNil(t, list)
			assert.Len(t, list, len(rows))
		}
	})

	t.Run("value", func(t *testing.T) {
		cols := []schemadomain.ParsedColumn{{Name: "sum", Type: schemadomain.TypeInteger}}
		got, err := m.Map([]map[string]any{{"sum": float64(0)}}, cols, domain.ShapeValue)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got)

		got, err = m.Map(nil, cols, domain.ShapeValue)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("values", func(t *testing.T) {
		cols := []schemadomain.ParsedColumn{{Name: "retired", Type: schemadomain.TypeBoolean}}
		got, err := m.Map([]map[string]any{{"retired": int64(1)}, {"retired": int64(0)}}, cols, domain.ShapeValues)
		require.NoError(t, err)
		assert.Equal(t, []any{true, false}, got)
	})

	t.Run("none", func(t *testing.T) {
		got, err := m.Map([]map[string]any{row}, nil, domain.ShapeNone)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("untyped value", func(t *testing.T) {
		got, err := m.Map([]map[string]any{{"n": int64(3)}}, nil, domain.ShapeValue)
		require.NoError(t, err)
		assert.Equal(t, int64(3), got)

		_, err = m.Map([]map[string]any{{"a": int64(1), "b": int64(2)}}, nil, domain.ShapeValue)
		assert.ErrorIs(t, err, mapper.ErrAmbiguousValue)

		_, err = m.Map([]map[string]any{{"a": int64(1), "b": int64(2)}}, nil, domain.ShapeValues)
		assert.ErrorIs(t, err, mapper.ErrAmbiguousValue)
	})

	t.Run("untyped rows pass through", func(t *testing.T) {
		raw := map[string]any{"flag": int64(1)}
		got, err := m.Map([]map[string]any{raw}, nil, domain.ShapeArray)
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{raw}, got)
	})
}

func TestValue_Scalars(t *testing.T) {
	m := mapper.NewResultMapper()
	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		typ  schemadomain.ColumnType
		want any
	}{
		{"bool from one", int64(1), schemadomain.TypeBoolean, true},
		{"bool from zero", int64(0), schemadomain.TypeBoolean, false},
		{"bool passthrough", true, schemadomain.TypeBoolean, true},
		{"iso date", "2024-03-01T10:00:00.000Z", schemadomain.TypeDate, when},
		{"sqlite datetime", "2024-03-01 10:00:00", schemadomain.TypeDate, when},
		{"driver time", when, schemadomain.TypeDate, when},
		{"integral real", float64(3), schemadomain.TypeInteger, int64(3)},
		{"real from int", int64(2), schemadomain.TypeReal, float64(2)},
		{"text from bytes", []byte("x"), schemadomain.TypeText, "x"},
		{"blob from text", "x", schemadomain.TypeBlob, []byte("x")},
		{"null", nil, schemadomain.TypeBoolean, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Value(tt.in, schemadomain.ParsedColumn{Name: "c", Type: tt.typ})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("bad date", func(t *testing.T) {
		_, err := m.Value("yesterday", schemadomain.ParsedColumn{Name: "c", Type: schemadomain.TypeDate})
		assert.Error(t, err)
	})
}

func TestValue_JSON(t *testing.T) {
	m := mapper.NewResultMapper()

	fighter := &schemadomain.StructuredType{
		Kind: schemadomain.StructObject,
		Type: schemadomain.TypeJSON,
		Fields: []schemadomain.StructuredField{
			{Name: "name", Type: schemadomain.Scalar(schemadomain.TypeText, true)},
			{Name: "retired", Type: schemadomain.Scalar(schemadomain.TypeBoolean, true)},
			{Name: "born", Type: schemadomain.Scalar(schemadomain.TypeDate, true)},
		},
	}

	t.Run("plain json", func(t *testing.T) {
		got, err := m.Value(`{"a":[1,2.5]}`, schemadomain.ParsedColumn{Type: schemadomain.TypeJSON})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": []any{int64(1), 2.5}}, got)
	})

	t.Run("nested conversion", func(t *testing.T) {
		col := schemadomain.ParsedColumn{
			Type: schemadomain.TypeJSON,
			Structured: &schemadomain.StructuredType{
				Kind: schemadomain.StructArray,
				Type: schemadomain.TypeJSON,
				Elem: fighter,
			},
		}
		got, err := m.Value(`[{"name":"Israel","retired":0,"born":"1989-07-14"},{"name":null,"retired":null,"born":null}]`, col)
		require.NoError(t, err)
		assert.Equal(t, []any{
			map[string]any{"name": "Israel", "retired": false, "born": time.Date(1989, 7, 14, 0, 0, 0, 0, time.UTC)},
		}, got)
	})

	t.Run("unmatched object is null", func(t *testing.T) {
		col := schemadomain.ParsedColumn{Type: schemadomain.TypeJSON, Structured: fighter}
		got, err := m.Value(`{"name":null,"retired":null,"born":null}`, col)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("sorted scalars drop optional nulls", func(t *testing.T) {
		col := schemadomain.ParsedColumn{
			Type: schemadomain.TypeJSON,
			Structured: &schemadomain.StructuredType{
				Kind:     schemadomain.StructArray,
				Type:     schemadomain.TypeJSON,
				Elem:     schemadomain.Scalar(schemadomain.TypeInteger, true),
				Optional: true,
				Sorted:   true,
			},
		}
		got, err := m.Value(`[3,null,1,2]`, col)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1), int64(2), int64(3)}, got)
	})

	t.Run("map values", func(t *testing.T) {
		col := schemadomain.ParsedColumn{
			Type: schemadomain.TypeJSON,
			Structured: &schemadomain.StructuredType{
				Kind: schemadomain.StructMap,
				Type: schemadomain.TypeJSON,
				Elem: schemadomain.Scalar(schemadomain.TypeBoolean, false),
			},
		}
		got, err := m.Value(`{"a":1,"b":0}`, col)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": true, "b": false}, got)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := m.Value(`{`, schemadomain.ParsedColumn{Type: schemadomain.TypeJSON})
		assert.Error(t, err)
	})
}

func TestScan(t *testing.T) {
	m := mapper.NewResultMapper()

	type Fight struct {
		Rounds int64
	}
	type Fighter struct {
		ID      int64  `db:"id"`
		Name    string `json:"name"`
		CoachID *int64
		Retired bool
		Tags    []string
		Fights  []Fight
		Skip    string `db:"-"`
	}

	rows := []map[string]any{
		{
			"id":       int64(1),
			"name":     "Israel",
			"coach_id": int64(3),
			"retired":  false,
			"tags":     []any{"southpaw"},
			"fights":   []map[string]any{{"rounds": int64(5)}},
			"Skip":     "x",
		},
		{"id": int64(2), "name": "Alex", "coach_id": nil, "retired": true},
	}

	var fighters []Fighter
	require.NoError(t, m.MapToStructSlice(rows, &fighters))
	require.Len(t, fighters, 2)
	assert.Equal(t, int64(1), fighters[0].ID)
	require.NotNil(t, fighters[0].CoachID)
	assert.Equal(t, int64(3), *fighters[0].CoachID)
	assert.Equal(t, []string{"southpaw"}, fighters[0].Tags)
	assert.Equal(t, []Fight{{Rounds: 5}}, fighters[0].Fights)
	assert.Empty(t, fighters[0].Skip)
	assert.Nil(t, fighters[1].CoachID)
	assert.True(t, fighters[1].Retired)

	var one Fighter
	require.NoError(t, m.MapToStruct(rows[1], &one))
	assert.Equal(t, "Alex", one.Name)

	var count int
	require.NoError(t, m.Scan(int64(7), &count))
	assert.Equal(t, 7, count)

	assert.Error(t, m.Scan(1, count))
}
