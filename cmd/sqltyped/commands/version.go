package commands

import (
	"context"
	"fmt"

	"github.com/satishbabariya/sqltyped/internal/ui"
	"github.com/satishbabariya/sqltyped/internal/version"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(a *app) *cobra.Command {
	var engine bool
	var latest string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display version information for the sqltyped CLI and, with --engine, the connected SQLite engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(ui.Out, version.Get().FullString())
			if latest != "" {
				outdated, err := version.Outdated(version.Version, latest)
				if err != nil {
					return err
				}
				if outdated {
					ui.PrintWarning("A newer version is available: %s", latest)
				} else {
					ui.PrintSuccess("Up to date")
				}
			}
			if engine {
				return printEngine(cmd.Context(), a)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&engine, "engine", false, "Connect and print the engine version and capabilities")
	cmd.Flags().StringVar(&latest, "latest", "", "Compare against a released version")

	return cmd
}

func printEngine(ctx context.Context, a *app) error {
	c, err := a.load()
	if err != nil {
		return err
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	engine, err := c.Client().Engine()
	if err != nil {
		return err
	}
	ui.PrintSection("Engine")
	return ui.PrintTable([]string{"Property", "Value"}, [][]string{
		{"SQLite", engine.Version.String()},
		{"returning", ui.Status(engine.Returning)},
		{"-> and ->>", ui.Status(engine.JSONOperators)},
	})
}
