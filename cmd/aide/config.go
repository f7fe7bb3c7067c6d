package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/XC0R/aide/internal/config"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage aide settings",
	Long:  "View and edit the aide settings stored in .aide/settings.json",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	Long: `Display the effective aide settings after defaults and environment
overrides.

Examples:
  aide config show                 # Pretty-printed JSON
  aide config show --format yaml   # YAML output`,
	Run: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set one settings value",
	Long: `Write a single value into the settings document. The path is dotted;
the value is parsed as JSON when possible and stored as a string otherwise.

Examples:
  aide config set edits.maxParallelApplies 2
  aide config set logging.level debug`,
	Args: cobra.ExactArgs(2),
	Run:  runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <path>",
	Short: "Remove one settings value",
	Args:  cobra.ExactArgs(1),
	Run:   runConfigUnset,
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "json", "Output format (json, yaml)")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, _ := setup()

	switch configFormat {
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fail("formatting settings: %v", err)
		}
		fmt.Print(string(data))
	case "json":
		printJSON(cfg)
	default:
		fail("unknown format %q", configFormat)
	}
}

func runConfigSet(cmd *cobra.Command, args []string) {
	_, logger := setup()

	// Numbers, booleans, and structured values arrive as JSON; anything
	// that does not parse is stored verbatim as a string.
	var value interface{}
	if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
		value = args[1]
	}

	editor := config.NewEditor(mustWorkspaceRoot(), logger)
	defer editor.Close()

	if err := editor.SetValue(context.Background(), args[0], value); err != nil {
		fail("%v", err)
	}
	fmt.Fprintf(os.Stdout, "Set %s\n", args[0])
}

func runConfigUnset(cmd *cobra.Command, args []string) {
	_, logger := setup()

	editor := config.NewEditor(mustWorkspaceRoot(), logger)
	defer editor.Close()

	if err := editor.RemoveValue(context.Background(), args[0]); err != nil {
		fail("%v", err)
	}
	fmt.Fprintf(os.Stdout, "Unset %s\n", args[0])
}
