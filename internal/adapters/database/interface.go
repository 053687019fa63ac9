// Package database defines database adapter interfaces.
package database

import (
	"context"

	"github.com/hashicorp/go-version"
)

// Runner is the execution contract the query core relies on. Params are
// driver arguments, usually sql.NamedArg values from a compiled query.
type Runner interface {
	// Run executes a statement that returns no rows.
	Run(ctx context.Context, query string, params ...any) (Result, error)

	// All executes a query and returns every row keyed by column name.
	All(ctx context.Context, query string, params ...any) ([]map[string]any, error)
}

// Adapter defines the database adapter interface.
type Adapter interface {
	Runner

	// Connect establishes a database connection.
	Connect(ctx context.Context) error

	// Disconnect closes the database connection.
	Disconnect(ctx context.Context) error

	// Begin starts a transaction.
	Begin(ctx context.Context) (Transaction, error)

	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Engine returns the capabilities of the connected engine.
	Engine() Engine

	// GetDialect returns the SQL dialect.
	GetDialect() SQLDialect
}

// Transaction defines the transaction interface.
type Transaction interface {
	Runner

	// Commit commits the transaction.
	Commit() error

	// Rollback rolls back the transaction.
	Rollback() error
}

// Result reports the effect of Run.
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// SQLDialect represents a SQL dialect.
type SQLDialect string

// SQLite dialect.
const SQLite SQLDialect = "sqlite"

var (
	// returningVersion is the first release with RETURNING.
	returningVersion = version.Must(version.NewVersion("3.35.0"))
	// jsonOperatorVersion is the first release with the -> and ->> operators.
	jsonOperatorVersion = version.Must(version.NewVersion("3.38.0"))
)

// Engine describes what the connected engine supports.
type Engine struct {
	Version       *version.Version
	Returning     bool
	JSONOperators bool
}

// NewEngine derives capabilities from an engine version string.
func NewEngine(v string) (Engine, error) {
	parsed, err := version.NewVersion(v)
	if err != nil {
		return Engine{}, err
	}
	return Engine{
		Version:       parsed,
		Returning:     parsed.GreaterThanOrEqual(returningVersion),
		JSONOperators: parsed.GreaterThanOrEqual(jsonOperatorVersion),
	}, nil
}

// Config holds database connection configuration.
type Config struct {
	URL            string
	MaxIdleTime    int // seconds
	ConnectTimeout int // seconds
	// StatementCache is the number of prepared statements kept open.
	StatementCache int
}
