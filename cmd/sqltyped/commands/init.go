package commands

import (
	"fmt"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/satishbabariya/sqltyped/internal/config"
	"github.com/satishbabariya/sqltyped/internal/ui"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const defaultSchema = `create table users (
  id integer primary key,
  email text not null,
  name text,
  created_at date not null default current_timestamp
);
`

const defaultQuery = `select id, email, name from users where id = $id;
`

// initOptions are the answers of the init prompts.
type initOptions struct {
	SchemaPath  string
	QueriesPath string
	DatabaseURL string
	Telemetry   string
}

// NewInitCommand creates the init command.
func NewInitCommand(a *app) *cobra.Command {
	var yes bool
	opts := initOptions{
		SchemaPath:  "schema.sql",
		QueriesPath: "queries",
		DatabaseURL: "app.db",
		Telemetry:   "noop",
	}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new project",
		Long:  "Create a configuration file, a starter schema and a queries directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if err := ask(&opts); err != nil {
					return err
				}
			}
			return runInit(a.dir, opts)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept defaults without prompting")
	cmd.Flags().StringVar(&opts.SchemaPath, "schema", opts.SchemaPath, "Schema file or directory")
	cmd.Flags().StringVar(&opts.QueriesPath, "queries", opts.QueriesPath, "Query files directory")
	cmd.Flags().StringVar(&opts.DatabaseURL, "database", opts.DatabaseURL, "Database file")

	return cmd
}

func ask(opts *initOptions) error {
	questions := []*survey.Question{
		{
			Name:     "SchemaPath",
			Prompt:   &survey.Input{Message: "Schema file:", Default: opts.SchemaPath},
			Validate: survey.Required,
		},
		{
			Name:     "QueriesPath",
			Prompt:   &survey.Input{Message: "Query files directory:", Default: opts.QueriesPath},
			Validate: survey.Required,
		},
		{
			Name:   "DatabaseURL",
			Prompt: &survey.Input{Message: "Database file:", Default: opts.DatabaseURL},
		},
		{
			Name: "Telemetry",
			Prompt: &survey.Select{
				Message: "Query telemetry:",
				Options: []string{"noop", "logging", "stats"},
				Default: opts.Telemetry,
			},
		},
	}
	return survey.Ask(questions, opts)
}

func runInit(dir string, opts initOptions) error {
	ui.PrintHeader("sqltyped", "Initialize Project")

	cfg := &config.Config{
		SchemaPath:  opts.SchemaPath,
		QueriesPath: opts.QueriesPath,
		DatabaseURL: opts.DatabaseURL,
		CacheSize:   256,
		Telemetry:   opts.Telemetry,
	}
	path, err := config.SaveConfig(cfg, dir)
	if err != nil {
		return err
	}
	ui.PrintSuccess("Created %s", path)

	schemaPath := filepath.Join(dir, opts.SchemaPath)
	created, err := writeIfMissing(schemaPath, defaultSchema)
	if err != nil {
		return err
	}
	if created {
		ui.PrintSuccess("Created schema at %s", schemaPath)
	} else {
		ui.PrintWarning("Schema already exists: %s", schemaPath)
	}

	queriesDir := filepath.Join(dir, opts.QueriesPath)
	if err := config.AppFs.MkdirAll(queriesDir, 0755); err != nil {
		return fmt.Errorf("failed to create queries directory: %w", err)
	}
	if _, err := writeIfMissing(filepath.Join(queriesDir, "get_user.sql"), defaultQuery); err != nil {
		return err
	}

	ui.PrintSection("Next Steps")
	ui.PrintList([]string{
		"Describe your tables in " + opts.SchemaPath,
		"Add queries to " + opts.QueriesPath,
		"Run `sqltyped check` to type them",
	})
	return nil
}

func writeIfMissing(path, content string) (bool, error) {
	exists, err := afero.Exists(config.AppFs, path)
	if err != nil || exists {
		return false, err
	}
	if err := config.AppFs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, err
	}
	if err := afero.WriteFile(config.AppFs, path, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
