package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/satishbabariya/sqltyped/internal/adapters/database"
	"github.com/satishbabariya/sqltyped/internal/adapters/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) *sqlite.SQLiteAdapter {
	t.Helper()
	ctx := context.Background()
	db := sqlite.NewSQLiteAdapter(database.Config{URL: ":memory:", StatementCache: 8})
	require.NoError(t, db.Connect(ctx))
	t.Cleanup(func() { db.Disconnect(ctx) })

	_, err := db.Run(ctx, "create table coaches (id integer primary key, name text not null, photo blob)")
	require.NoError(t, err)
	return db
}

func TestSQLiteAdapter_RunAndAll(t *testing.T) {
	ctx := context.Background()
	db := connect(t)

	res, err := db.Run(ctx, "insert into coaches (name, photo) values ($p_1, $p_2)", sql.Named("p_1", "Eugene"), sql.Named("p_2", []byte{1}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, int64(1), res.LastInsertID)

	rows, err := db.All(ctx, "select id, name, photo from coaches where name = $p_1", sql.Named("p_1", "Eugene"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "Eugene", rows[0]["name"])
	assert.Equal(t, []byte{1}, rows[0]["photo"])

	rows, err = db.All(ctx, "select id from coaches where name = $p_1", sql.Named("p_1", "nobody"))
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestSQLiteAdapter_Engine(t *testing.T) {
	db := connect(t)
	engine := db.Engine()
	require.NotNil(t, engine.Version)
	assert.True(t, engine.Returning)
	assert.Equal(t, database.SQLite, db.GetDialect())
	assert.NoError(t, db.Ping(context.Background()))
}

func TestSQLiteAdapter_Transaction(t *testing.T) {
	ctx := context.Background()
	db := connect(t)

	insert := "insert into coaches (name) values ($p_1)"
	_, err := db.Run(ctx, insert, sql.Named("p_1", "cached"))
	require.NoError(t, err)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Run(ctx, insert, sql.Named("p_1", "rolled back"))
	require.NoError(t, err)
	rows, err := tx.All(ctx, "select count(*) as n from coaches")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows[0]["n"])
	require.NoError(t, tx.Rollback())

	rows, err = db.All(ctx, "select count(*) as n from coaches")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows[0]["n"])
}

func TestSQLiteAdapter_NotConnected(t *testing.T) {
	db := sqlite.NewSQLiteAdapter(database.Config{URL: ":memory:"})
	_, err := db.All(context.Background(), "select 1")
	assert.ErrorIs(t, err, sqlite.ErrNotConnected)
}

func TestNewEngine(t *testing.T) {
	old, err := database.NewEngine("3.31.1")
	require.NoError(t, err)
	assert.False(t, old.Returning)
	assert.False(t, old.JSONOperators)

	recent, err := database.NewEngine("3.45.0")
	require.NoError(t, err)
	assert.True(t, recent.Returning)
	assert.True(t, recent.JSONOperators)

	_, err = database.NewEngine("not a version")
	assert.Error(t, err)
}
