// Package config loads an optional deva.toml project file: the module
// search path for import (spec.md §6 "An optional module-search-path for
// import") and default debug-info/verbosity flags, read by cmd/devac and
// cmd/devai before falling back to CLI flags.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the project config file devac/devai look for in the
// current directory (and walk upward from) before falling back to CLI
// flags.
const FileName = "deva.toml"

// Config is the decoded shape of deva.toml.
type Config struct {
	// ModulePath lists directories searched, in order, for a sibling
	// .dv/.dvc file named after an unresolved import.
	ModulePath []string `toml:"module_path"`
	// DebugInfo holds the debug_info setting. Nothing reads it: the
	// compiler emits no line-number map either way.
	DebugInfo bool `toml:"debug_info"`
	// Verbosity controls how much cmd/* log via arbor: "quiet", "info"
	// (default), or "debug".
	Verbosity string `toml:"verbosity"`
}

// Default returns the configuration used when no deva.toml is found.
func Default() *Config {
	return &Config{Verbosity: "info"}
}

// Load reads FileName from dir, returning Default() (not an error) if no
// such file exists there.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find walks upward from dir looking for FileName, stopping at the first
// directory that has one (and returning Default() if none do). This lets
// devac/devai be invoked from a subdirectory of a deva project.
func Find(dir string) (*Config, error) {
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}
