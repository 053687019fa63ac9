package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/satishbabariya/sqltyped/internal/ui"
	"github.com/spf13/cobra"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(a *app) *cobra.Command {
	var watchMode, live, showSQL bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check every query file against the schema",
		Long: "Analyze every query file below the queries directory and fail " +
			"when a statement cannot be typed. With --db each statement is " +
			"also prepared against the configured database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			run := func() error {
				return runCheck(cmd.Context(), a, live, showSQL)
			}
			if watchMode {
				return watchProject(cmd.Context(), a, run)
			}
			return run()
		},
	}

	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Check again when the schema or a query changes")
	cmd.Flags().BoolVar(&live, "db", false, "Also prepare each statement against the database")
	cmd.Flags().BoolVar(&showSQL, "sql", false, "Print the SQL of failing queries")

	return cmd
}

func runCheck(ctx context.Context, a *app, live, showSQL bool) error {
	c, err := a.load()
	if err != nil {
		return err
	}
	results, err := analyzeFiles(c.Client(), c.Config().QueriesPath)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		ui.PrintWarning("No query files in %s", c.Config().QueriesPath)
		return nil
	}
	if live {
		if err := c.Connect(ctx); err != nil {
			return err
		}
		for i, r := range results {
			if r.Err != nil {
				continue
			}
			if _, err := c.Client().Exec(ctx, "explain "+r.SQL); err != nil {
				results[i].Err = err
			}
		}
	}

	ui.PrintHeader("sqltyped", "Check")
	rows := make([][]string, len(results))
	failed := 0
	for i, r := range results {
		detail, columns := "", ""
		if r.Err != nil {
			failed++
			detail = r.Err.Error()
		} else {
			columns = strconv.Itoa(len(r.Result.Columns))
		}
		rows[i] = []string{r.Name, ui.Status(r.Err == nil), columns, detail}
	}
	if err := ui.PrintTable([]string{"Query", "Status", "Columns", "Detail"}, rows); err != nil {
		return err
	}

	if showSQL {
		for _, r := range results {
			if r.Err != nil {
				ui.PrintSection(r.Name)
				ui.PrintCodeBlock(r.SQL, "sql")
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(results))
	}
	ui.PrintSuccess("All %d queries are typed", len(results))
	return nil
}
