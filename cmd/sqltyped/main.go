// Package main is the entry point for the sqltyped CLI.
package main

import (
	"fmt"
	"os"

	"github.com/satishbabariya/sqltyped/cmd/sqltyped/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
