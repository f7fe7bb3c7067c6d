package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/XC0R/aide/internal/logging"
	"github.com/XC0R/aide/internal/nav"
)

var (
	defFrom   string
	defFormat string
)

var defCmd = &cobra.Command{
	Use:   "def <symbol>",
	Short: "Find the definition of a Go symbol",
	Long: `Resolve a symbol name to its most plausible declaration using
tree-sitter heuristics: same file first, then same package, then the
whole workspace. Qualified names (pkg.Name) prefer the matching package.

Examples:
  aide def Open
  aide def store.Open --from cmd/aide/main.go`,
	Args: cobra.ExactArgs(1),
	Run:  runDef,
}

func init() {
	defCmd.Flags().StringVar(&defFrom, "from", "", "Workspace-relative file the reference occurs in")
	defCmd.Flags().StringVar(&defFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(defCmd)
}

func runDef(cmd *cobra.Command, args []string) {
	cfg, logger := setup()

	if !nav.Available() {
		fail("definition navigation requires a build with CGO enabled")
	}

	ix := nav.NewIndex(mustWorkspaceRoot(), nav.Options{
		IncludeTests: cfg.Nav.IncludeTests,
		Ignore:       cfg.Nav.Ignore,
	})
	if err := ix.Scan(context.Background()); err != nil {
		fail("scanning workspace: %v", err)
	}
	logger.Debug("Workspace scanned", logging.Fields{
		"files": ix.Files(),
	})

	decl, err := ix.Definition(args[0], defFrom)
	if err != nil {
		fail("%v", err)
	}

	if defFormat == "json" {
		printJSON(decl)
		return
	}
	fmt.Printf("%s:%d\t%s %s", decl.Path, decl.Line, decl.Kind, decl.Name)
	if decl.Signature != "" {
		fmt.Printf("\t%s", decl.Signature)
	}
	fmt.Println()
}
