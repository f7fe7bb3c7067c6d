package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/XC0R/aide/internal/nav"
)

var symbolsFormat string

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "List the declarations of a Go file",
	Args:  cobra.ExactArgs(1),
	Run:   runSymbols,
}

func init() {
	symbolsCmd.Flags().StringVar(&symbolsFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(symbolsCmd)
}

func runSymbols(cmd *cobra.Command, args []string) {
	setup()

	if !nav.Available() {
		fail("symbol extraction requires a build with CGO enabled")
	}

	root := mustWorkspaceRoot()
	rel := args[0]
	if filepath.IsAbs(rel) {
		var err error
		if rel, err = filepath.Rel(root, rel); err != nil {
			fail("file %s is outside the workspace", args[0])
		}
	}

	decls, err := nav.ExtractFile(context.Background(), filepath.Join(root, rel))
	if err != nil {
		fail("extracting %s: %v", rel, err)
	}

	if symbolsFormat == "json" {
		printJSON(decls)
		return
	}
	for _, d := range decls {
		name := d.Name
		if d.Receiver != "" {
			name = d.Receiver + "." + name
		}
		fmt.Printf("%5d  %-9s %s\n", d.Line, d.Kind, name)
	}
}
