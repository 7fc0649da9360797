// Package config loads the optional .catlua.yaml file that carries
// compiler-wide defaults, overridden by whatever CLI flags the user passes
// explicitly.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file's name, looked up by walking upward from the
// input file's directory.
const FileName = ".catlua.yaml"

// Config carries compiler-wide defaults. Its absence is not an error: a
// run with no .catlua.yaml anywhere above the input file just uses these
// zero-value defaults.
type Config struct {
	OptLevel  int    `yaml:"optLevel"`
	CatalogDB string `yaml:"catalogDB"`
	OutputDir string `yaml:"outputDir"`
}

// Decode parses data (a .catlua.yaml document's contents) into a Config,
// for callers that already have an explicit file path and want to skip
// Discover's upward walk.
func Decode(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Discover walks upward from startDir looking for FileName, loading the
// first one it finds. It returns a zero-value Config (not an error) if
// none exists anywhere up to the filesystem root.
func Discover(startDir string) (Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolving %q: %w", startDir, err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if data, err := os.ReadFile(candidate); err == nil {
			var cfg Config
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing %s: %w", candidate, err)
			}
			return cfg, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Config{}, nil
		}
		dir = parent
	}
}
