// Package config loads moor's tool configuration: which container engine to
// use, how to invoke the devcontainer CLI, and where the editor's control
// socket lives.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Engines supported as the container runtime.
const (
	EngineDocker = "docker"
	EnginePodman = "podman"
)

// ErrUnknownEngine is returned when the configured engine is not docker or podman.
var ErrUnknownEngine = errors.New("unknown container engine")

// Config holds moor's global configuration, normally loaded from
// ~/.config/moor/config.toml. A zero value is not usable; use Default()
// or Load().
type Config struct {
	// Engine is the container engine binary: "docker" or "podman".
	Engine string `toml:"engine"`

	// Command is the devcontainer CLI invocation prefix,
	// e.g. ["devcontainer"] or ["npx", "@devcontainers/cli"].
	Command []string `toml:"command"`

	// DotfilesRepository is an optional dotfiles repo URL passed to the
	// devcontainer CLI on up.
	DotfilesRepository string `toml:"dotfiles_repository"`

	// EditorSocket is the path to the editor's control socket. Empty means
	// no editor integration: document tracking and browsers become no-ops.
	EditorSocket string `toml:"editor_socket"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine:  EngineDocker,
		Command: []string{"devcontainer"},
	}
}

// DefaultPath returns the default config file location, honoring
// XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "moor", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "moor", "config.toml"), nil
}

// Load reads the config file at path, applying defaults for unset fields.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	} else if err != nil {
		return nil, fmt.Errorf("checking config file: %w", err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(cfg.Command) == 0 {
		cfg.Command = []string{"devcontainer"}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineDocker, EnginePodman:
	default:
		return fmt.Errorf("%w: %q (use %s or %s)", ErrUnknownEngine, c.Engine, EngineDocker, EnginePodman)
	}
	if len(c.Command) == 0 {
		return errors.New("devcontainer command must not be empty")
	}
	return nil
}
