// Package config loads and saves the nuqql config file.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// UI holds pane geometry ratios and display toggles.
type UI struct {
	// ListRatio is the fraction of the screen width given to the
	// conversation list pane, in percent.
	ListRatio int `toml:"list_ratio"`
	// LogRatio is the fraction of the right-hand column height given to
	// the log pane, in percent. The input pane gets the rest.
	LogRatio   int  `toml:"log_ratio"`
	ShowTitles bool `toml:"show_titles"`
}

// Colors maps UI elements to tcell color names.
type Colors struct {
	ListFg    string `toml:"list_fg"`
	ListBg    string `toml:"list_bg"`
	LogOwnFg  string `toml:"log_own_fg"`
	LogPeerFg string `toml:"log_peer_fg"`
	LogNewFg  string `toml:"log_new_fg"`
	BorderFg  string `toml:"border_fg"`
}

// Backends holds backend discovery overrides.
type Backends struct {
	Disabled []string `toml:"disabled"`
}

// Config represents ~/.config/nuqql/config.toml.
type Config struct {
	// Sort selects the statistic driving recency sort: "last_send",
	// "last_used" or "num_send".
	Sort     string            `toml:"sort"`
	UI       UI                `toml:"ui"`
	Colors   Colors            `toml:"colors"`
	Keys     map[string]string `toml:"keys"`
	Backends Backends          `toml:"backends"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Sort: "last_send",
		UI: UI{
			ListRatio:  20,
			LogRatio:   80,
			ShowTitles: true,
		},
		Colors: Colors{
			ListFg:    "white",
			ListBg:    "black",
			LogOwnFg:  "green",
			LogPeerFg: "white",
			LogNewFg:  "yellow",
			BorderFg:  "blue",
		},
		Keys: map[string]string{},
	}
}

// Load reads config from the given path. A missing file is not an error:
// defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.Sort == "" {
		cfg.Sort = "last_send"
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// IsDisabled reports whether a backend name is disabled in the config.
func (c *Config) IsDisabled(backend string) bool {
	for _, d := range c.Backends.Disabled {
		if d == backend {
			return true
		}
	}
	return false
}
