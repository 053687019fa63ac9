package formatter_test

import (
	"testing"

	"github.com/satishbabariya/sqltyped/internal/core/schema/domain"
	"github.com/satishbabariya/sqltyped/internal/core/schema/formatter"
	"github.com/satishbabariya/sqltyped/internal/core/schema/parser"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaDDL = `
create table coaches (
  id integer primary key,
  name text not null,
  city text not null default 'Auckland'
);

create table fighters (
  id integer primary key autoincrement,
  name text not null,
  nickname text,
  coach_id integer references coaches(id) on delete cascade,
  height real,
  reach real,
  ratio real as (reach / height)
);

create table fighter_tags (
  fighter_id integer not null,
  tag text not null,
  primary key (fighter_id, tag)
);

create table notes (body text);

create virtual table fighter_search using fts5(name, bio, content=fighters, content_rowid=id);
`

func parseTables(t *testing.T, ddl string) []*domain.Table {
	t.Helper()
	defs, err := parser.NewParser().Parse(ddl)
	require.NoError(t, err)
	tables := make([]*domain.Table, len(defs))
	for i, def := range defs {
		tables[i] = def.Table
	}
	return tables
}

func TestFormat(t *testing.T) {
	out := formatter.NewFormatter().Format(parseTables(t, schemaDDL))

	g := goldie.New(t)
	g.Assert(t, "schema", []byte(out))
}

func TestFormatRoundTrip(t *testing.T) {
	f := formatter.NewFormatter()

	first := parseTables(t, schemaDDL)
	second := parseTables(t, f.Format(first))

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Name, second[i].Name)
		assert.Equal(t, first[i].PrimaryKeys, second[i].PrimaryKeys)
		assert.Equal(t, first[i].ColumnNames(), second[i].ColumnNames())
		for j, col := range first[i].Columns {
			other := second[i].Columns[j]
			assert.Equal(t, col.Type, other.Type, col.Name)
			assert.Equal(t, col.Nullable, other.Nullable, col.Name)
			assert.Equal(t, col.PrimaryKey, other.PrimaryKey, col.Name)
			assert.Equal(t, col.ForeignTable, other.ForeignTable, col.Name)
			assert.Equal(t, col.Computed, other.Computed, col.Name)
		}
	}

	assert.Equal(t, f.Format(first), f.Format(second))
}
