// Package sqlite implements the SQLite database adapter.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/satishbabariya/sqltyped/internal/adapters/database"
	"github.com/satishbabariya/sqltyped/internal/core/query/cache"
	"github.com/satishbabariya/sqltyped/internal/debug"
)

// ErrNotConnected is returned before Connect succeeds.
var ErrNotConnected = errors.New("database not connected")

// SQLiteAdapter implements the database.Adapter interface for SQLite.
type SQLiteAdapter struct {
	db     *sql.DB
	config database.Config
	engine database.Engine
	stmts  *cache.LRU[*sql.Stmt]
}

// NewSQLiteAdapter creates a new SQLite adapter.
func NewSQLiteAdapter(config database.Config) *SQLiteAdapter {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 5
	}
	return &SQLiteAdapter{config: config}
}

// Connect establishes a connection to the SQLite database.
func (a *SQLiteAdapter) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite3", a.config.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers and keeps in-memory databases
	// alive for the lifetime of the adapter.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(time.Duration(a.config.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(ctx, time.Duration(a.config.ConnectTimeout)*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable foreign keys (disabled by default in SQLite)
	if _, err := db.ExecContext(ctx, "pragma foreign_keys = on"); err != nil {
		db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	var v string
	if err := db.QueryRowContext(ctx, "select sqlite_version()").Scan(&v); err != nil {
		db.Close()
		return fmt.Errorf("failed to read engine version: %w", err)
	}
	engine, err := database.NewEngine(v)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to parse engine version %q: %w", v, err)
	}

	a.db = db
	a.engine = engine
	a.stmts = cache.New[*sql.Stmt](a.config.StatementCache, 0).OnEvict(func(_ string, stmt *sql.Stmt) {
		stmt.Close()
	})
	debug.Debug("Connected to SQLite", "url", a.config.URL, "version", v)
	return nil
}

// Disconnect closes the database connection.
func (a *SQLiteAdapter) Disconnect(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	a.stmts.Clear()
	err := a.db.Close()
	a.db = nil
	return err
}

// DB returns the underlying handle, or nil before Connect.
func (a *SQLiteAdapter) DB() *sql.DB {
	return a.db
}

// prepare returns a cached prepared statement for query.
func (a *SQLiteAdapter) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	return a.stmts.GetOrLoad(cache.Key("stmt", query), func() (*sql.Stmt, error) {
		stmt, err := a.db.PrepareContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare statement: %w", err)
		}
		return stmt, nil
	})
}

// Run executes a statement without returning rows.
func (a *SQLiteAdapter) Run(ctx context.Context, query string, params ...any) (database.Result, error) {
	if a.db == nil {
		return database.Result{}, ErrNotConnected
	}
	stmt, err := a.prepare(ctx, query)
	if err != nil {
		return database.Result{}, err
	}
	res, err := stmt.ExecContext(ctx, params...)
	if err != nil {
		return database.Result{}, err
	}
	return result(res)
}

// All executes a query and returns its rows.
func (a *SQLiteAdapter) All(ctx context.Context, query string, params ...any) ([]map[string]any, error) {
	if a.db == nil {
		return nil, ErrNotConnected
	}
	stmt, err := a.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, params...)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

// Begin starts a new transaction.
func (a *SQLiteAdapter) Begin(ctx context.Context) (database.Transaction, error) {
	if a.db == nil {
		return nil, ErrNotConnected
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &SQLiteTransaction{tx: tx, adapter: a}, nil
}

// Ping checks if the database connection is alive.
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return ErrNotConnected
	}
	return a.db.PingContext(ctx)
}

// Engine returns the capabilities read during Connect.
func (a *SQLiteAdapter) Engine() database.Engine {
	return a.engine
}

// GetDialect returns the SQL dialect.
func (a *SQLiteAdapter) GetDialect() database.SQLDialect {
	return database.SQLite
}

// SQLiteTransaction implements the database.Transaction interface.
type SQLiteTransaction struct {
	tx      *sql.Tx
	adapter *SQLiteAdapter
}

// Commit commits the transaction.
func (t *SQLiteTransaction) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *SQLiteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// stmt binds a cached statement to the transaction. Uncached statements
// are prepared on the transaction, since the pool's only connection is
// held by it.
func (t *SQLiteTransaction) stmt(ctx context.Context, query string) (*sql.Stmt, error) {
	if stmt, ok := t.adapter.stmts.Get(cache.Key("stmt", query)); ok {
		return t.tx.StmtContext(ctx, stmt), nil
	}
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	return stmt, nil
}

// Run executes a statement within the transaction.
func (t *SQLiteTransaction) Run(ctx context.Context, query string, params ...any) (database.Result, error) {
	stmt, err := t.stmt(ctx, query)
	if err != nil {
		return database.Result{}, err
	}
	defer stmt.Close()
	res, err := stmt.ExecContext(ctx, params...)
	if err != nil {
		return database.Result{}, err
	}
	return result(res)
}

// All executes a query within the transaction.
func (t *SQLiteTransaction) All(ctx context.Context, query string, params ...any) ([]map[string]any, error) {
	stmt, err := t.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	rows, err := stmt.QueryContext(ctx, params...)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

func result(res sql.Result) (database.Result, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return database.Result{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return database.Result{}, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return database.Result{RowsAffected: affected, LastInsertID: id}, nil
}

// scanRows reads every row into a map keyed by column name and closes
// rows.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

// Ensure SQLiteAdapter implements Adapter interface.
var _ database.Adapter = (*SQLiteAdapter)(nil)

// Ensure SQLiteTransaction implements Transaction interface.
var _ database.Transaction = (*SQLiteTransaction)(nil)
