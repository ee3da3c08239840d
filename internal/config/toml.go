// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Console ConsoleConfig `toml:"console"`
	Log     LogConfig     `toml:"log"`
	History HistoryConfig `toml:"history"`
}

// ConsoleConfig maps backend connection and display settings.
type ConsoleConfig struct {
	Server       *string `toml:"server"`
	PollInterval *string `toml:"poll-interval"`
	Timezone     *string `toml:"timezone"`
	Output       *string `toml:"output"`
}

// LogConfig maps logger settings.
type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
	File   *string `toml:"file"`
}

// HistoryConfig maps the local action journal settings.
type HistoryConfig struct {
	Enabled *bool   `toml:"enabled"`
	Path    *string `toml:"path"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if cfg.Console.PollInterval != nil {
		if _, err := ParsePollInterval(*cfg.Console.PollInterval); err != nil {
			return FileConfig{}, err
		}
	}
	return cfg, nil
}

// ParsePollInterval parses a positive duration such as "5s" or "1m30s".
func ParsePollInterval(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid poll-interval %q: %w", raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("poll-interval must be > 0, got %q", raw)
	}
	return d, nil
}

// LoadLocation resolves an IANA zone name. Empty and "Local" map to time.Local.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return loc, nil
}
