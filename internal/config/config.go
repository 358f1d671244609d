// Package config loads promptline's own settings file. This is distinct
// from ~/.claude/settings.json, which belongs to the host tool and is only
// read (credentials) or surgically edited (install).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/macfox/promptline/internal/render"
)

const (
	defaultConfigPath = "~/.claude/promptline.toml"
	defaultDBPath     = "~/.claude/promptline.db"
	defaultLogPath    = "~/.claude/promptline.log"
)

type DisplayConfig struct {
	Separator string `toml:"separator"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	DBPath  string `toml:"db_path"`
}

type DiagConfig struct {
	Enabled bool   `toml:"enabled"`
	LogPath string `toml:"log_path"`
}

type Config struct {
	Display DisplayConfig `toml:"display"`
	History HistoryConfig `toml:"history"`
	Diag    DiagConfig    `toml:"diag"`
}

func Default() Config {
	return Config{
		Display: DisplayConfig{Separator: render.Separator},
		History: HistoryConfig{Enabled: true, DBPath: defaultDBPath},
		Diag:    DiagConfig{Enabled: false, LogPath: defaultLogPath},
	}
}

func DefaultConfigPath() string {
	return defaultConfigPath
}

// DefaultExpanded is Default with the ~ paths resolved; the render path uses
// it when the config file is unreadable and must not error.
func DefaultExpanded() Config {
	cfg, err := expandPaths(Default())
	if err != nil {
		return Default()
	}
	return cfg
}

// ExpandPath resolves a leading ~ against the user's home directory and
// cleans the result.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is empty")
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Clean(path), nil
}

// Load reads the config at path, overlaying present keys on the defaults.
// A missing file yields the defaults; a malformed one is an error so that
// subcommands can report it (the render path falls back to Default itself).
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultConfigPath()
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return cfg, fmt.Errorf("expand config path: %w", err)
	}
	if _, err := os.Stat(expanded); err != nil {
		if os.IsNotExist(err) {
			return expandPaths(cfg)
		}
		return cfg, fmt.Errorf("stat config: %w", err)
	}
	if _, err := toml.DecodeFile(expanded, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Display.Separator == "" {
		cfg.Display.Separator = render.Separator
	}
	return expandPaths(cfg)
}

func expandPaths(cfg Config) (Config, error) {
	var err error
	if cfg.History.DBPath != "" {
		if cfg.History.DBPath, err = ExpandPath(cfg.History.DBPath); err != nil {
			return cfg, fmt.Errorf("expand db path: %w", err)
		}
	}
	if cfg.Diag.LogPath != "" {
		if cfg.Diag.LogPath, err = ExpandPath(cfg.Diag.LogPath); err != nil {
			return cfg, fmt.Errorf("expand log path: %w", err)
		}
	}
	return cfg, nil
}
