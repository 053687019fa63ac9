package schema_test

import (
	"errors"
	"testing"

	"github.com/satishbabariya/sqltyped/internal/core/schema"
	"github.com/satishbabariya/sqltyped/internal/core/schema/domain"
	"github.com/satishbabariya/sqltyped/internal/core/sqltext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogDDL = `
create table coaches (id integer primary key, name text not null);
create table fighters (
  id integer primary key,
  name text not null,
  coach_id integer references coaches
);
create table fights (
  id integer primary key,
  winner_id integer not null,
  foreign key (winner_id) references fighters(id)
);
create view fighter_names (fighter, coach) as
  select f.name, c.name from fighters f left join coaches c on c.id = f.coach_id;
create table archived as select id, name from fighters;
`

func TestCatalogLoad(t *testing.T) {
	catalog, err := sqltext.LoadCatalog(catalogDDL)
	require.NoError(t, err)

	var names []string
	for _, table := range catalog.Tables() {
		names = append(names, table.Name)
	}
	assert.Equal(t, []string{"coaches", "fighters", "fights", "fighter_names", "archived"}, names)

	t.Run("lookup ignores case", func(t *testing.T) {
		table, ok := catalog.Table("FIGHTERS")
		require.True(t, ok)
		assert.Equal(t, "fighters", table.Name)
	})

	t.Run("view columns", func(t *testing.T) {
		view, ok := catalog.Table("fighter_names")
		require.True(t, ok)
		assert.True(t, view.View)
		assert.Equal(t, []string{"fighter", "coach"}, view.ColumnNames())
		assert.False(t, view.Column("fighter").Nullable)
		assert.True(t, view.Column("coach").Nullable)
	})

	t.Run("create table as select", func(t *testing.T) {
		table, ok := catalog.Table("archived")
		require.True(t, ok)
		assert.Equal(t, []string{"id", "name"}, table.ColumnNames())
		assert.Equal(t, domain.TypeText, table.Column("name").Type)
	})

	t.Run("column lookup", func(t *testing.T) {
		col, err := catalog.Column("fighters", "coach_id")
		require.NoError(t, err)
		assert.Equal(t, domain.TypeInteger, col.Type)

		_, err = catalog.Column("fighters", "nope")
		assert.Error(t, err)
		_, err = catalog.Column("nope", "id")
		assert.Error(t, err)
	})
}

func TestCatalogForeignKeys(t *testing.T) {
	catalog, err := sqltext.LoadCatalog(catalogDDL)
	require.NoError(t, err)

	keys := catalog.ForeignKeys("fighters")
	assert.Equal(t, []domain.ForeignKey{
		{Table: "fighters", Column: "coach_id", ForeignTable: "coaches", ForeignColumn: "id"},
		{Table: "fights", Column: "winner_id", ForeignTable: "fighters", ForeignColumn: "id"},
	}, keys)
}

func TestCatalogViewsNeedAnalyzer(t *testing.T) {
	catalog := schema.NewCatalog()
	err := catalog.Load("create view v as select 1 as one")
	require.Error(t, err)

	var se *domain.SchemaError
	assert.True(t, errors.As(err, &se))
}

func TestCatalogViewColumnMismatch(t *testing.T) {
	_, err := sqltext.LoadCatalog(`
		create table a (id integer primary key);
		create view v (x, y) as select id from a;`)
	require.Error(t, err)

	var se *domain.SchemaError
	assert.True(t, errors.As(err, &se))
}
