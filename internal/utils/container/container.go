// Package container provides dependency injection for the CLI.
package container

import (
	"context"
	"fmt"

	"github.com/satishbabariya/sqltyped/internal/adapters/telemetry"
	"github.com/satishbabariya/sqltyped/internal/config"
	"github.com/satishbabariya/sqltyped/internal/core/schema"
	"github.com/satishbabariya/sqltyped/internal/core/schema/formatter"
	"github.com/satishbabariya/sqltyped/internal/core/sqltext"
	"github.com/satishbabariya/sqltyped/internal/debug"
	"github.com/satishbabariya/sqltyped/pkg/client"
)

// Container holds all application dependencies.
type Container struct {
	config *config.Config
	schema string

	catalog   *schema.Catalog
	formatter *formatter.Formatter
	telemetry telemetry.Telemetry
	client    *client.Client

	connected bool
}

// NewContainer reads the schema named by cfg and wires the catalog and
// client. The database is opened by Connect.
func NewContainer(cfg *config.Config) (*Container, error) {
	debug.Init(cfg.Debug)

	ddl, err := config.ReadSchema(cfg.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	catalog, err := sqltext.LoadCatalog(ddl)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(&telemetry.Config{Type: cfg.Telemetry})
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry: %w", err)
	}

	c, err := client.NewClient(ddl,
		client.WithDatabaseURL(cfg.DatabaseURL),
		client.WithCache(cfg.CacheSize, cfg.CacheTTL),
		client.WithTelemetry(tel),
	)
	if err != nil {
		return nil, err
	}

	debug.Debug("Container ready", "schema", cfg.SchemaPath, "tables", len(catalog.Tables()))
	return &Container{
		config:    cfg,
		schema:    ddl,
		catalog:   catalog,
		formatter: formatter.NewFormatter(),
		telemetry: tel,
		client:    c,
	}, nil
}

// Config returns the loaded configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Schema returns the DDL script the catalog was built from.
func (c *Container) Schema() string {
	return c.schema
}

// Catalog returns the schema catalog.
func (c *Container) Catalog() *schema.Catalog {
	return c.catalog
}

// Formatter returns the DDL formatter.
func (c *Container) Formatter() *formatter.Formatter {
	return c.formatter
}

// Telemetry returns the configured telemetry adapter.
func (c *Container) Telemetry() telemetry.Telemetry {
	return c.telemetry
}

// Client returns the query client. It analyzes SQL without a
// connection; running queries needs Connect.
func (c *Container) Client() *client.Client {
	return c.client
}

// Connect opens the configured database.
func (c *Container) Connect(ctx context.Context) error {
	if c.connected {
		return nil
	}
	if c.config.DatabaseURL == "" {
		return fmt.Errorf("no database configured, set database_url or DATABASE_URL")
	}
	if err := c.client.Connect(ctx); err != nil {
		return err
	}
	c.connected = true
	return nil
}

// Close cleans up resources.
func (c *Container) Close(ctx context.Context) error {
	if !c.connected {
		return c.telemetry.Close(ctx)
	}
	c.connected = false
	if err := c.client.Disconnect(ctx); err != nil {
		return err
	}
	return c.telemetry.Close(ctx)
}
