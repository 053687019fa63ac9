// Package commands implements CLI commands.
package commands

import (
	"context"

	"github.com/satishbabariya/sqltyped/internal/config"
	"github.com/satishbabariya/sqltyped/internal/ui"
	"github.com/satishbabariya/sqltyped/internal/utils/container"
	"github.com/satishbabariya/sqltyped/internal/version"
	"github.com/spf13/cobra"
)

// app carries global flags and builds the container on first use, so
// commands that need no schema run without one.
type app struct {
	dir     string
	debug   bool
	noColor bool

	container *container.Container
}

func (a *app) load() (*container.Container, error) {
	if a.container != nil {
		return a.container, nil
	}
	cfg, err := config.Load(a.dir)
	if err != nil {
		return nil, err
	}
	if a.debug {
		cfg.Debug = true
	}
	c, err := container.NewContainer(cfg)
	if err != nil {
		return nil, err
	}
	a.container = c
	return c, nil
}

func (a *app) close(ctx context.Context) error {
	if a.container == nil {
		return nil
	}
	err := a.container.Close(ctx)
	a.container = nil
	return err
}

// NewRootCommand creates the root command with every subcommand.
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "sqltyped",
		Short: "Typed SQL for SQLite",
		Long: "sqltyped infers result types of SQL statements from a schema, " +
			"compiles table queries and checks query files against it.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.noColor {
				ui.Plain()
			}
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVarP(&a.dir, "dir", "C", ".", "Project directory")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(NewInitCommand(a))
	cmd.AddCommand(NewSchemaCommand(a))
	cmd.AddCommand(NewAnalyzeCommand(a))
	cmd.AddCommand(NewCheckCommand(a))
	cmd.AddCommand(NewVersionCommand(a))

	return cmd
}
