// Package config loads the optional .unitytool.yaml project config file
// described in SPEC_FULL.md §6.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the optional project-level configuration file. Every field
// is optional; its absence is never an error, per §6.
type Config struct {
	Scope          string   `yaml:"scope"`
	Exclude        []string `yaml:"exclude"`
	IgnoreGUIDFile string   `yaml:"ignore_guid_file"`
	MaxDiagnostics int      `yaml:"max_diagnostics"`
}

// FileName is the fixed filename resolved relative to the project root,
// mirroring the teacher's fixed-filename discovery of wave.yaml.
const FileName = ".unitytool.yaml"

// Load reads FileName from dir. A missing file returns a zero Config
// and no error.
func Load(dir string) (Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ResolveString returns the CLI flag value if non-empty, else the
// config file's value, else the fallback default — the precedence rule
// in §6 (CLI flag > config file > built-in default).
func ResolveString(flagValue, configValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if configValue != "" {
		return configValue
	}
	return fallback
}

// ResolveStrings applies the same precedence to a string slice — used
// for --exclude globs.
func ResolveStrings(flagValue, configValue []string) []string {
	if len(flagValue) > 0 {
		return flagValue
	}
	return configValue
}

// ResolveInt applies the same precedence to an integer, treating 0 in
// flagValue/configValue as "unset".
func ResolveInt(flagValue, configValue, fallback int) int {
	if flagValue != 0 {
		return flagValue
	}
	if configValue != 0 {
		return configValue
	}
	return fallback
}
