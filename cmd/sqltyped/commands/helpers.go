package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/satishbabariya/sqltyped/internal/config"
	"github.com/satishbabariya/sqltyped/internal/ui"
	"github.com/satishbabariya/sqltyped/internal/watch"
	"github.com/satishbabariya/sqltyped/pkg/client"
)

// analysis is the outcome of analyzing one statement.
type analysis struct {
	Name   string
	SQL    string
	Result *client.Analysis
	Err    error
}

// analyzeFiles analyzes every query file below the queries directory.
func analyzeFiles(c *client.Client, dir string) ([]analysis, error) {
	files, err := config.QueryFiles(dir)
	if err != nil {
		return nil, err
	}
	out := make([]analysis, len(files))
	for i, f := range files {
		res, err := c.Analyze(f.SQL)
		out[i] = analysis{Name: f.Name, SQL: f.SQL, Result: res, Err: err}
	}
	return out, nil
}

func printAnalysis(a analysis) error {
	ui.PrintSection(a.Name)
	if a.Err != nil {
		ui.PrintError("%v", a.Err)
		return nil
	}
	res := a.Result
	if len(res.Columns) == 0 {
		ui.PrintInfo("%s statement returns no rows", res.Kind)
	} else {
		rows := make([][]string, len(res.Columns))
		for i, col := range res.Columns {
			rows[i] = []string{col.Name, col.TypeString(), col.OriginTable}
		}
		if err := ui.PrintTable([]string{"Column", "Type", "Table"}, rows); err != nil {
			return err
		}
	}
	if len(res.Params) > 0 {
		ui.PrintInfo("Parameters: %s", strings.Join(res.Params, ", "))
	}
	if res.Compound {
		ui.PrintWarning("Only the first branch of the compound select is typed")
	}
	return nil
}

func analysisMarkdown(results []analysis) string {
	var b strings.Builder
	b.WriteString("# Queries\n")
	for _, a := range results {
		fmt.Fprintf(&b, "\n## %s\n\n```sql\n%s\n```\n\n", a.Name, a.SQL)
		if a.Err != nil {
			fmt.Fprintf(&b, "**Untyped:** %v\n", a.Err)
			continue
		}
		if len(a.Result.Columns) == 0 {
			b.WriteString("Returns no rows.\n")
			continue
		}
		b.WriteString("| Column | Type |\n|---|---|\n")
		for _, col := range a.Result.Columns {
			fmt.Fprintf(&b, "| %s | `%s` |\n", col.Name, col.TypeString())
		}
	}
	return b.String()
}

// watchProject runs fn now and whenever the schema or a query file
// changes, reloading the container first. It returns on interrupt.
func watchProject(ctx context.Context, a *app, fn func() error) error {
	c, err := a.load()
	if err != nil {
		return err
	}
	cfg := c.Config()
	paths := []string{cfg.SchemaPath}
	if ok, _ := dirExists(cfg.QueriesPath); ok {
		paths = append(paths, cfg.QueriesPath)
	}

	first := true
	callback := func() error {
		if !first {
			if err := a.close(ctx); err != nil {
				return err
			}
			if _, err := a.load(); err != nil {
				ui.PrintError("%v", err)
				return nil
			}
		}
		first = false
		if err := fn(); err != nil {
			ui.PrintError("%v", err)
		}
		return nil
	}

	watcher, err := watch.NewWatcher(paths, callback)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	ui.PrintSuccess("Watching %s for changes... (Press Ctrl+C to stop)", strings.Join(paths, ", "))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	ui.PrintInfo("Stopping watch mode...")
	return nil
}

func dirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
