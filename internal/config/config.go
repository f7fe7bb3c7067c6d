// Package config loads and edits aide settings stored in .aide/settings.json.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// SettingsDir is the per-workspace directory holding aide state.
const SettingsDir = ".aide"

// SettingsFile is the JSON settings document inside SettingsDir.
const SettingsFile = "settings.json"

// Config represents the complete aide configuration.
type Config struct {
	Version       int    `json:"version" mapstructure:"version"`
	WorkspaceRoot string `json:"workspaceRoot" mapstructure:"workspaceRoot"`

	Edits   EditsConfig   `json:"edits" mapstructure:"edits"`
	Probe   ProbeConfig   `json:"probe" mapstructure:"probe"`
	Nav     NavConfig     `json:"nav" mapstructure:"nav"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// EditsConfig controls streamed edit application.
type EditsConfig struct {
	// MaxParallelApplies bounds how many documents receive streamed edits
	// concurrently. Application within one document is always serialized.
	MaxParallelApplies int `json:"maxParallelApplies" mapstructure:"maxParallelApplies"`
	FlushDebounceMs    int `json:"flushDebounceMs" mapstructure:"flushDebounceMs"`
}

// ProbeConfig controls agentic exploration sessions.
type ProbeConfig struct {
	MaxParallelScans int    `json:"maxParallelScans" mapstructure:"maxParallelScans"`
	MaxSteps         int    `json:"maxSteps" mapstructure:"maxSteps"`
	ExportCompression string `json:"exportCompression" mapstructure:"exportCompression"` // "none" or "zstd"
}

// NavConfig controls definition navigation.
type NavConfig struct {
	IncludeTests bool     `json:"includeTests" mapstructure:"includeTests"`
	Ignore       []string `json:"ignore" mapstructure:"ignore"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version:       1,
		WorkspaceRoot: ".",
		Edits: EditsConfig{
			MaxParallelApplies: 4,
			FlushDebounceMs:    75,
		},
		Probe: ProbeConfig{
			MaxParallelScans:  8,
			MaxSteps:          200,
			ExportCompression: "zstd",
		},
		Nav: NavConfig{
			IncludeTests: true,
			Ignore:       []string{"vendor", "node_modules"},
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Load reads configuration from <workspaceRoot>/.aide/settings.json.
// A missing file yields the defaults; environment variables prefixed with
// AIDE_ override individual keys (AIDE_LOGGING_LEVEL=debug).
func Load(workspaceRoot string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("version", defaults.Version)
	v.SetDefault("workspaceRoot", defaults.WorkspaceRoot)
	v.SetDefault("edits.maxParallelApplies", defaults.Edits.MaxParallelApplies)
	v.SetDefault("edits.flushDebounceMs", defaults.Edits.FlushDebounceMs)
	v.SetDefault("probe.maxParallelScans", defaults.Probe.MaxParallelScans)
	v.SetDefault("probe.maxSteps", defaults.Probe.MaxSteps)
	v.SetDefault("probe.exportCompression", defaults.Probe.ExportCompression)
	v.SetDefault("nav.includeTests", defaults.Nav.IncludeTests)
	v.SetDefault("nav.ignore", defaults.Nav.Ignore)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.level", defaults.Logging.Level)

	v.SetConfigName("settings")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(workspaceRoot, SettingsDir))

	v.SetEnvPrefix("AIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Path returns the settings file path for a workspace root.
func Path(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, SettingsDir, SettingsFile)
}

// Save writes the configuration to .aide/settings.json.
func (c *Config) Save(workspaceRoot string) error {
	dir := filepath.Join(workspaceRoot, SettingsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, SettingsFile), append(data, '\n'), 0644)
}

// Validate checks invariants that would break the services at runtime.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &FieldError{Field: "version", Message: "unsupported settings version"}
	}
	if c.Edits.MaxParallelApplies < 1 {
		return &FieldError{Field: "edits.maxParallelApplies", Message: "must be at least 1"}
	}
	if c.Probe.MaxParallelScans < 1 {
		return &FieldError{Field: "probe.maxParallelScans", Message: "must be at least 1"}
	}
	switch c.Probe.ExportCompression {
	case "none", "zstd":
	default:
		return &FieldError{Field: "probe.exportCompression", Message: "must be none or zstd"}
	}
	return nil
}

// FieldError describes an invalid settings field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("settings field %q: %s", e.Field, e.Message)
}
