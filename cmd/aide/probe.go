package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/XC0R/aide/internal/config"
	"github.com/XC0R/aide/internal/logging"
	"github.com/XC0R/aide/internal/nav"
	"github.com/XC0R/aide/internal/probe"
)

var (
	probeListLimit  int
	probeExportOut  string
	probeExportRaw  bool
	probeShowFormat string
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run and inspect code-exploration sessions",
	Long: `Probes are declared exploration targets (probes.toml in the workspace
root). Running a probe scans the declared files under a bounded degree of
parallelism and records each observation as a session step.`,
}

var probeRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a declared probe",
	Args:  cobra.ExactArgs(1),
	Run:   runProbeRun,
}

var probeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent probe sessions",
	Run:   runProbeList,
}

var probeShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a probe session transcript",
	Args:  cobra.ExactArgs(1),
	Run:   runProbeShow,
}

var probeExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a probe session transcript",
	Long: `Write a session transcript as JSON. With probe.exportCompression set
to zstd (the default) the output is zstd-compressed unless --raw is given.`,
	Args: cobra.ExactArgs(1),
	Run:  runProbeExport,
}

func init() {
	probeListCmd.Flags().IntVar(&probeListLimit, "limit", 20, "Maximum sessions to list")
	probeShowCmd.Flags().StringVar(&probeShowFormat, "format", "human", "Output format (json, human)")
	probeExportCmd.Flags().StringVarP(&probeExportOut, "output", "o", "", "Output file (default: stdout)")
	probeExportCmd.Flags().BoolVar(&probeExportRaw, "raw", false, "Disable compression regardless of settings")

	probeCmd.AddCommand(probeRunCmd)
	probeCmd.AddCommand(probeListCmd)
	probeCmd.AddCommand(probeShowCmd)
	probeCmd.AddCommand(probeExportCmd)
	rootCmd.AddCommand(probeCmd)
}

func openProbeStore(logger *logging.Logger) *probe.Store {
	dir := filepath.Join(mustWorkspaceRoot(), config.SettingsDir)
	store, err := probe.OpenStore(dir, logger)
	if err != nil {
		fail("opening probe store: %v", err)
	}
	return store
}

// goScan summarizes a file for the probe transcript: declaration names for
// Go files when tree-sitter is available, a size observation otherwise.
func goScan(ctx context.Context, absPath string) (string, error) {
	if nav.Available() && strings.HasSuffix(absPath, ".go") {
		decls, err := nav.ExtractFile(ctx, absPath)
		if err != nil {
			return "", err
		}
		names := make([]string, 0, len(decls))
		for _, d := range decls {
			names = append(names, d.Name)
		}
		return fmt.Sprintf("%d declarations: %s", len(decls), strings.Join(names, ", ")), nil
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d bytes", info.Size()), nil
}

func runProbeRun(cmd *cobra.Command, args []string) {
	cfg, logger := setup()
	root := mustWorkspaceRoot()

	declared, err := config.LoadDeclaredProbes(root)
	if err != nil {
		fail("%v", err)
	}

	var decl *config.ProbeDeclaration
	for i := range declared {
		if declared[i].Name == args[0] {
			decl = &declared[i]
			break
		}
	}
	if decl == nil {
		fail("no probe named %q in %s", args[0], config.ProbesDeclarationFile)
	}

	store := openProbeStore(logger)
	defer store.Close()

	runner := probe.NewRunner(root, store, goScan, probe.RunnerConfig{
		MaxParallelScans: cfg.Probe.MaxParallelScans,
		MaxSteps:         cfg.Probe.MaxSteps,
	}, logger)
	defer runner.Close()

	session, err := runner.Run(context.Background(), *decl)
	if err != nil {
		fail("%v", err)
	}
	fmt.Printf("Session %s %s\n", session.ID, session.Status)
}

func runProbeList(cmd *cobra.Command, args []string) {
	_, logger := setup()

	store := openProbeStore(logger)
	defer store.Close()

	sessions, err := store.ListRecent(probeListLimit)
	if err != nil {
		fail("%v", err)
	}

	for _, s := range sessions {
		fmt.Printf("%s  %-10s %-20s %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"), s.Status, s.Name, s.ID)
	}
}

func runProbeShow(cmd *cobra.Command, args []string) {
	_, logger := setup()

	store := openProbeStore(logger)
	defer store.Close()

	session, err := store.GetSession(args[0])
	if err != nil {
		fail("%v", err)
	}
	steps, err := store.Steps(session.ID)
	if err != nil {
		fail("%v", err)
	}

	if probeShowFormat == "json" {
		printJSON(probe.Transcript{Session: session, Steps: steps})
		return
	}

	fmt.Printf("%s (%s)\n", session.Name, session.Status)
	if session.Goal != "" {
		fmt.Printf("goal: %s\n", session.Goal)
	}
	for _, step := range steps {
		fmt.Printf("%4d  %-8s %-40s %s\n", step.Seq, step.Kind, step.Input, step.Output)
	}
}

func runProbeExport(cmd *cobra.Command, args []string) {
	cfg, logger := setup()

	store := openProbeStore(logger)
	defer store.Close()

	session, err := store.GetSession(args[0])
	if err != nil {
		fail("%v", err)
	}
	steps, err := store.Steps(session.ID)
	if err != nil {
		fail("%v", err)
	}

	compress := cfg.Probe.ExportCompression == "zstd" && !probeExportRaw

	out := os.Stdout
	if probeExportOut != "" {
		f, err := os.Create(probeExportOut)
		if err != nil {
			fail("creating output: %v", err)
		}
		defer f.Close()
		out = f
	}

	if err := probe.Export(out, session, steps, compress); err != nil {
		fail("%v", err)
	}
}
