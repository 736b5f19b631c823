// Package config loads devctx configuration: built-in defaults,
// overridden by an optional YAML file, overridden by environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Display holds presentation toggles consumed by the CLI front end.
type Display struct {
	Color bool `yaml:"color"`
	Emoji bool `yaml:"emoji"`
}

// Config holds the resolved configuration. The lifecycle core consumes
// only Model; everything else belongs to the front ends.
type Config struct {
	// Model is the generative backend model identifier.
	Model string `yaml:"model"`
	// OllamaURL is the base URL of the local generative backend.
	OllamaURL string `yaml:"ollama_url"`
	// AutoStart makes `note` open a session when none is active.
	AutoStart bool `yaml:"auto_start"`
	// DataDir is where the database lives.
	DataDir string `yaml:"data_dir"`
	Display Display `yaml:"display"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Model:     "llama3.1",
		OllamaURL: "http://localhost:11434",
		AutoStart: true,
		DataDir:   defaultDataDir(),
		Display:   Display{Color: true, Emoji: true},
	}
}

// Load resolves the configuration: defaults, then the YAML file at
// path (or the default location when path is empty; a missing file is
// fine), then DEVCTX_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = getEnv("DEVCTX_CONFIG", defaultConfigFile())
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Unmarshaling over the defaults keeps absent keys at their
		// default values.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// No config file; defaults apply.
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg.Model = getEnv("DEVCTX_MODEL", cfg.Model)
	cfg.OllamaURL = getEnv("DEVCTX_OLLAMA_URL", cfg.OllamaURL)
	cfg.DataDir = getEnv("DEVCTX_DATA_DIR", cfg.DataDir)
	return cfg, nil
}

func defaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "devctx", "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".local", "share", "devctx")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
