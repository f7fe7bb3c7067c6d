package config

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// ProbesDeclarationFile is the default filename for probe target declarations.
const ProbesDeclarationFile = "probes.toml"

// ProbeDeclaration describes a declared exploration target in probes.toml.
type ProbeDeclaration struct {
	// Name is the human-readable probe name.
	Name string `toml:"name"`

	// Goal is a one-line statement of what the probe should find out.
	Goal string `toml:"goal"`

	// Roots are workspace-relative directories the probe may scan.
	Roots []string `toml:"roots"`

	// Include restricts scanning to matching file globs (optional).
	Include []string `toml:"include,omitempty"`

	// MaxFiles caps how many files the probe visits (0 = use settings).
	MaxFiles int `toml:"max_files,omitempty"`
}

// ProbesFile represents the root structure of probes.toml.
type ProbesFile struct {
	Version int                `toml:"version"`
	Probes  []ProbeDeclaration `toml:"probe"`
}

// ParseProbesFile parses a probes.toml file from the given path.
func ParseProbesFile(filePath string) (*ProbesFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read probes.toml: %w", err)
	}

	var probesFile ProbesFile
	if err := toml.Unmarshal(data, &probesFile); err != nil {
		return nil, fmt.Errorf("failed to parse probes.toml: %w", err)
	}

	if probesFile.Version < 1 {
		probesFile.Version = 1
	}

	for i, p := range probesFile.Probes {
		if p.Name == "" {
			return nil, fmt.Errorf("probe %d in probes.toml has no name", i)
		}
		if len(p.Roots) == 0 {
			probesFile.Probes[i].Roots = []string{"."}
		}
	}

	return &probesFile, nil
}

// LoadDeclaredProbes loads probe declarations from the workspace if the
// declaration file exists. A missing file is not an error.
func LoadDeclaredProbes(workspaceRoot string) ([]ProbeDeclaration, error) {
	path := filepath.Join(workspaceRoot, ProbesDeclarationFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	file, err := ParseProbesFile(path)
	if err != nil {
		return nil, err
	}
	return file.Probes, nil
}
