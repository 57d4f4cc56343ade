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
	Fetch     FetchConfig     `toml:"fetch"`
	Assess    AssessConfig    `toml:"assess"`
	Dashboard DashboardConfig `toml:"dashboard"`
}

// FetchConfig maps source provider settings.
type FetchConfig struct {
	Count   *int      `toml:"count"`
	Topic   *string   `toml:"topic"`
	Rate    *Duration `toml:"rate"`
	Retries *int      `toml:"retries"`
}

// AssessConfig maps assessment engine settings.
type AssessConfig struct {
	Provider   *string  `toml:"provider"`
	Model      *string  `toml:"model"`
	APIKeyEnv  *string  `toml:"api-key-env"`
	Workers    *int     `toml:"workers"`
	Categories []string `toml:"categories"`
}

// DashboardConfig maps report and dashboard settings.
type DashboardConfig struct {
	MinConfidence  *float64 `toml:"min-confidence"`
	IssueThreshold *int     `toml:"issue-threshold"`
	CurveWindow    *int     `toml:"curve-window"`
}

// Duration decodes TOML strings such as "3s" or "1m30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
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
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
