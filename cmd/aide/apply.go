package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/XC0R/aide/internal/edits"
)

var applyFormat string

var applyCmd = &cobra.Command{
	Use:   "apply [stream-file]",
	Short: "Apply a streamed edit session to the workspace",
	Long: `Read an edit event stream (JSON lines) from a file or stdin and apply
its hunks to workspace files. Hunks for one document apply in stream order;
distinct documents proceed in parallel up to edits.maxParallelApplies.

Examples:
  aide apply session.jsonl
  assistant-stream | aide apply`,
	Args: cobra.MaximumNArgs(1),
	Run:  runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applyFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) {
	cfg, logger := setup()

	var input io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			fail("opening stream: %v", err)
		}
		defer f.Close()
		input = f
	}

	session := edits.NewSession(mustWorkspaceRoot(), edits.SessionConfig{
		MaxParallelApplies: cfg.Edits.MaxParallelApplies,
		FlushDebounce:      time.Duration(cfg.Edits.FlushDebounceMs) * time.Millisecond,
	}, logger)
	defer session.Close()

	summary, err := session.Run(context.Background(), input)
	if err != nil {
		fail("%v", err)
	}

	if applyFormat == "json" {
		printJSON(summary)
	} else {
		fmt.Printf("Applied %d hunks across %d documents\n", summary.Applied, summary.Documents)
		for _, f := range summary.Failures {
			fmt.Printf("  failed: %s:%d  %s\n", f.Doc, f.Start, f.Error)
		}
	}

	if len(summary.Failures) > 0 {
		os.Exit(1)
	}
}
