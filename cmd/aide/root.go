package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/XC0R/aide/internal/config"
	"github.com/XC0R/aide/internal/logging"
	"github.com/XC0R/aide/internal/version"
)

var (
	// workspaceFlag is the CLI --workspace flag value
	workspaceFlag string
	logLevelFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "aide",
	Short: "aide - editor assistant services",
	Long: `aide provides the non-UI services behind the AI editor assistant:
streamed edit application, definition navigation over Go source, probe
(code exploration) sessions, and the shared settings document.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("aide version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", ".",
		"Workspace root directory")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error (default: from settings)")
}

// mustWorkspaceRoot resolves the --workspace flag to an absolute path.
func mustWorkspaceRoot() string {
	abs, err := filepath.Abs(workspaceFlag)
	if err != nil {
		fail("resolving workspace root: %v", err)
	}
	return abs
}

// setup loads settings and builds the logger. Precedence for the log level:
// CLI flag > AIDE_LOGGING_LEVEL env (via config) > settings file.
func setup() (*config.Config, *logging.Logger) {
	root := mustWorkspaceRoot()

	cfg, err := config.Load(root)
	if err != nil {
		fail("loading settings: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fail("invalid settings: %v", err)
	}

	level := cfg.Logging.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	logger := logging.New(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.ParseLevel(level),
	})
	return cfg, logger
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail("formatting output: %v", err)
	}
	fmt.Println(string(data))
}
