package compiler

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_Wraparound(t *testing.T) {
	p := newParams()
	p.next = 1 << 20
	assert.Equal(t, "$p_1", p.addBound("x"))
	assert.Equal(t, "$p_2", p.addBound("y"))
}

func TestBindValue(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("NZDT", 13*3600))
	name := "Israel"
	var missing *string

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"true", true, int64(1)},
		{"false", false, int64(0)},
		{"time in utc", when, "2024-02-29T23:30:00.000Z"},
		{"pointer", &name, "Israel"},
		{"nil pointer", missing, nil},
		{"uint64", uint64(9), int64(9)},
		{"largest uint64 that fits", uint64(math.MaxInt64), int64(math.MaxInt64)},
		{"raw json", json.RawMessage(`{"a":1}`), `{"a":1}`},
		{"map", map[string]any{"b": true, "a": []any{1}}, `{"a":[1],"b":true}`},
		{"blob", []byte{1, 2}, []byte{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bindValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBindValue_OutOfRange(t *testing.T) {
	_, err := bindValue(uint64(math.MaxInt64) + 1)
	assert.ErrorIs(t, err, domain.ErrOutOfRange)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "invalid parameter: 9223372036854775808 does not fit a 64-bit signed integer", ve.Error())

	_, err = BindValue(uint64(math.MaxUint64))
	assert.ErrorIs(t, err, domain.ErrOutOfRange)
}

func TestJSONList(t *testing.T) {
	got, err := jsonList([]any{true, "a", 2})
	require.NoError(t, err)
	assert.Equal(t, `[1,"a",2]`, got)

	assert.True(t, isList([]int{1}))
	assert.True(t, isList([2]string{}))
	assert.False(t, isList([]byte("x")))
	assert.False(t, isList("x"))
	assert.False(t, isList(nil))
}

func TestJSONPath(t *testing.T) {
	path, err := jsonPath([]string{"links", "0", "url"})
	require.NoError(t, err)
	assert.Equal(t, "'$.links[0].url'", path)

	_, err = jsonPath([]string{"bad key"})
	assert.Error(t, err)
}

func TestLiteralType(t *testing.T) {
	assert.Equal(t, schemadomain.TypeText, literalType("x"))
	assert.Equal(t, schemadomain.TypeInteger, literalType(int64(1)))
	assert.Equal(t, schemadomain.TypeReal, literalType(1.5))
	assert.Equal(t, schemadomain.TypeBoolean, literalType(false))
	assert.Equal(t, schemadomain.TypeBlob, literalType([]byte{}))
	assert.Equal(t, schemadomain.TypeJSON, literalType(map[string]any{}))
}

func TestKeywords(t *testing.T) {
	assert.Equal(t, "", keywords(nil, false, nil, nil))
	two, one := 2, 1
	assert.Equal(t, " order by a desc, b desc limit 2 offset 1", keywords([]string{"a", "b"}, true, &two, &one))
	assert.Equal(t, " limit -1 offset 1", keywords(nil, false, nil, &one))
}
