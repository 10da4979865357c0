package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultClientID is the public OAuth App client ID used when none is configured.
const DefaultClientID = "a945f87ad537bfddb109"

// UI modes for the authorization prompt.
const (
	UIPlain = "plain"
	UITUI   = "tui"
)

const (
	defaultMaxPollInterval = 60
	defaultRequestTimeout  = 15
)

// GitHubConfig holds the OAuth client and endpoint configuration for GitHub.
type GitHubConfig struct {
	ClientID string `toml:"client_id"`
	Scope    string `toml:"scope"`
	BaseURL  string `toml:"base_url"`
	APIURL   string `toml:"api_url"`
}

// Config holds all devicelogin configuration.
type Config struct {
	GitHub          GitHubConfig `toml:"github"`
	UI              string       `toml:"ui"`
	NoBrowser       bool         `toml:"no_browser"`
	Debug           bool         `toml:"debug"`
	MaxPollInterval int          `toml:"max_poll_interval"` // seconds
	RequestTimeout  int          `toml:"request_timeout"`   // seconds
}

// ClientIDOrDefault returns GitHub.ClientID if set, otherwise DefaultClientID.
func (c Config) ClientIDOrDefault() string {
	if c.GitHub.ClientID != "" {
		return c.GitHub.ClientID
	}
	return DefaultClientID
}

// UIOrDefault returns UI if set, otherwise UIPlain.
func (c Config) UIOrDefault() string {
	if c.UI != "" {
		return c.UI
	}
	return UIPlain
}

// MaxPollIntervalOrDefault returns MaxPollInterval if set, otherwise 60 seconds.
func (c Config) MaxPollIntervalOrDefault() int {
	if c.MaxPollInterval > 0 {
		return c.MaxPollInterval
	}
	return defaultMaxPollInterval
}

// RequestTimeoutOrDefault returns the per-request HTTP timeout.
func (c Config) RequestTimeoutOrDefault() time.Duration {
	if c.RequestTimeout > 0 {
		return time.Duration(c.RequestTimeout) * time.Second
	}
	return defaultRequestTimeout * time.Second
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	switch c.UIOrDefault() {
	case UIPlain, UITUI:
	default:
		return fmt.Errorf("unknown ui %q: want %q or %q", c.UI, UIPlain, UITUI)
	}
	if c.MaxPollInterval < 0 {
		return fmt.Errorf("max_poll_interval must not be negative, got %d", c.MaxPollInterval)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %d", c.RequestTimeout)
	}
	return nil
}

// LoadFrom reads configuration from the given TOML file path and dotenv file.
// Missing files are not an error; pass an empty envFile to skip the dotenv layer.
// Environment variables always take precedence over file values, and the process
// environment takes precedence over the dotenv file:
//   - GITHUB_CLIENT_ID        overrides github.client_id
//   - GITHUB_SCOPE            overrides github.scope
//   - DEVICELOGIN_UI          overrides ui
//   - DEVICELOGIN_NO_BROWSER  overrides no_browser
//   - DEVICELOGIN_DEBUG       overrides debug
func LoadFrom(path string, envFile string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decoding %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("reading %s: %w", envFile, err)
		}
		if values != nil {
			dotenv = values
		}
	}

	applyEnvOverrides(&cfg, func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
	return cfg, nil
}

// DefaultConfigPath returns the default path for the devicelogin config file.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "devicelogin", "config.toml")
}

// GITHUB_SCOPE is applied even when empty so an explicit empty value clears a file setting.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("GITHUB_CLIENT_ID"); ok && v != "" {
		cfg.GitHub.ClientID = v
	}
	if v, ok := lookup("GITHUB_SCOPE"); ok {
		cfg.GitHub.Scope = v
	}
	if v, ok := lookup("DEVICELOGIN_UI"); ok && v != "" {
		cfg.UI = v
	}
	if v, ok := lookup("DEVICELOGIN_NO_BROWSER"); ok && v != "" {
		cfg.NoBrowser = isTrue(v)
	}
	if v, ok := lookup("DEVICELOGIN_DEBUG"); ok && v != "" {
		cfg.Debug = isTrue(v)
	}
}

func isTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Save writes cfg to the given TOML file path, creating parent directories as needed.
// Existing file contents are overwritten. Permissions on the written file are 0600.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	if encErr := toml.NewEncoder(f).Encode(cfg); encErr != nil {
		f.Close()
		return encErr
	}
	return f.Close()
}

// Defaults returns a Config with every setting spelled out, suitable for a starter file.
func Defaults() Config {
	return Config{
		GitHub:          GitHubConfig{ClientID: DefaultClientID},
		UI:              UIPlain,
		MaxPollInterval: defaultMaxPollInterval,
		RequestTimeout:  defaultRequestTimeout,
	}
}
