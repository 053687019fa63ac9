package commands

import (
	"strings"

	"github.com/satishbabariya/sqltyped/internal/ui"
	"github.com/spf13/cobra"
)

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(a *app) *cobra.Command {
	var watchMode, markdown bool

	cmd := &cobra.Command{
		Use:   "analyze [sql]",
		Short: "Infer the result types of SQL statements",
		Long: "Analyze the statement given as argument, or every query file " +
			"below the queries directory, and print its result columns",
		Example: `  sqltyped analyze "select id, name from users"
  sqltyped analyze --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			run := func() error {
				return runAnalyze(a, strings.Join(args, " "), markdown)
			}
			if watchMode {
				return watchProject(cmd.Context(), a, run)
			}
			return run()
		},
	}

	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Analyze again when the schema or a query changes")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render the report as markdown")

	return cmd
}

func runAnalyze(a *app, sql string, markdown bool) error {
	c, err := a.load()
	if err != nil {
		return err
	}

	var results []analysis
	if sql != "" {
		res, err := c.Client().Analyze(sql)
		results = []analysis{{Name: "statement", SQL: sql, Result: res, Err: err}}
	} else {
		results, err = analyzeFiles(c.Client(), c.Config().QueriesPath)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			ui.PrintWarning("No query files in %s", c.Config().QueriesPath)
			return nil
		}
	}

	if markdown {
		return ui.PrintMarkdown(analysisMarkdown(results))
	}
	ui.PrintHeader("sqltyped", "Analyze")
	for _, r := range results {
		if err := printAnalysis(r); err != nil {
			return err
		}
	}
	return nil
}
