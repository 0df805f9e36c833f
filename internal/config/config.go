// Package config resolves the settings of a probe run from a .env file,
// the environment and an optional YAML profile, in that order of
// increasing precedence. Command-line flags are applied by the caller on
// top of the result.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvURL           = "MS05_NCP_URL"
	EnvSpecPaths     = "MS05_SPEC_PATHS"
	EnvSpecBranch    = "MS05_SPEC_BRANCH"
	EnvDatabase      = "MS05_DB"
	EnvTimeout       = "MS05_TIMEOUT"
	EnvPromptTimeout = "MS05_PROMPT_TIMEOUT"
	EnvInteractive   = "MS05_INTERACTIVE"
)

// Config holds the settings of one run.
type Config struct {
	// URL is the device's IS-12 control endpoint (ws:// or wss://).
	URL string `json:"url"`
	// SpecPaths are MS-05 spec checkouts holding the reference models.
	SpecPaths []string `json:"spec_paths"`
	// SpecBranch selects the MS-05-02 documentation branch in result links.
	SpecBranch string `json:"spec_branch"`
	// Timeout bounds the wait for each device response.
	Timeout time.Duration `json:"timeout"`
	// PromptTimeout bounds the wait for an operator answer. Zero waits
	// indefinitely.
	PromptTimeout time.Duration `json:"prompt_timeout"`
	// Interactive enables operator prompts.
	Interactive bool `json:"interactive"`
	// ExcludedRoles are object roles the constraint probe must not write.
	ExcludedRoles []string `json:"excluded_roles"`
	// Database is the SQLite file runs are recorded in.
	Database string `json:"database"`
	// Seed seeds pattern string generation.
	Seed int64 `json:"seed"`
}

// Defaults.
const (
	DefaultSpecBranch    = "v1.0.x"
	DefaultTimeout       = 10 * time.Second
	DefaultPromptTimeout = 5 * time.Minute
	DefaultDatabase      = "ms05probe.db"
)

// Default returns a config with every default applied.
func Default() *Config {
	return &Config{
		SpecBranch:    DefaultSpecBranch,
		Timeout:       DefaultTimeout,
		PromptTimeout: DefaultPromptTimeout,
		Database:      DefaultDatabase,
		Seed:          1,
	}
}

// Load builds a config from envFile (skipped when missing), the
// environment and the profile at profilePath (skipped when empty).
func Load(envFile, profilePath string) (*Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if profilePath != "" {
		if err := cfg.applyProfile(profilePath); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvURL)); v != "" {
		c.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSpecPaths)); v != "" {
		c.SpecPaths = filepath.SplitList(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvSpecBranch)); v != "" {
		c.SpecBranch = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabase)); v != "" {
		c.Database = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v := strings.TrimSpace(os.Getenv(EnvPromptTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPromptTimeout, err)
		}
		c.PromptTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv(EnvInteractive)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvInteractive, err)
		}
		c.Interactive = b
	}
	return nil
}

// profile is the YAML form of a config. Unset fields leave the current
// value alone.
type profile struct {
	URL           string   `yaml:"url"`
	SpecPaths     []string `yaml:"spec_paths"`
	SpecBranch    string   `yaml:"spec_branch"`
	Timeout       string   `yaml:"timeout"`
	PromptTimeout string   `yaml:"prompt_timeout"`
	Interactive   *bool    `yaml:"interactive"`
	ExcludedRoles []string `yaml:"excluded_roles"`
	Database      string   `yaml:"database"`
	Seed          *int64   `yaml:"seed"`
}

func (c *Config) applyProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}

	var p profile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	if p.URL != "" {
		c.URL = p.URL
	}
	if len(p.SpecPaths) > 0 {
		// Relative spec paths are relative to the profile.
		base := filepath.Dir(path)
		c.SpecPaths = make([]string, len(p.SpecPaths))
		for i, sp := range p.SpecPaths {
			if !filepath.IsAbs(sp) {
				sp = filepath.Join(base, sp)
			}
			c.SpecPaths[i] = sp
		}
	}
	if p.SpecBranch != "" {
		c.SpecBranch = p.SpecBranch
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return fmt.Errorf("profile timeout: %w", err)
		}
		c.Timeout = d
	}
	if p.PromptTimeout != "" {
		d, err := time.ParseDuration(p.PromptTimeout)
		if err != nil {
			return fmt.Errorf("profile prompt_timeout: %w", err)
		}
		c.PromptTimeout = d
	}
	if p.Interactive != nil {
		c.Interactive = *p.Interactive
	}
	if len(p.ExcludedRoles) > 0 {
		c.ExcludedRoles = p.ExcludedRoles
	}
	if p.Database != "" {
		c.Database = p.Database
	}
	if p.Seed != nil {
		c.Seed = *p.Seed
	}
	return nil
}

// Validate checks the settings a suite run needs.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("device URL is required (set %s, url in the profile, or --url)", EnvURL)
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("device URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("device URL must use ws or wss, got %q", c.URL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.PromptTimeout < 0 {
		return fmt.Errorf("prompt timeout must not be negative, got %s", c.PromptTimeout)
	}
	return nil
}
