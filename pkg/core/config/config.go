// Package config loads the Iguana TOML configuration
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"
)

// EnvConfig names the environment variable holding the config path
const EnvConfig = "IGUANA_CONFIG"

// Store types
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds the complete application configuration
type Config struct {
	General GeneralConfig `toml:"general"`
	Search  SearchConfig  `toml:"search"`
	Olea    OleaConfig    `toml:"olea"`
	Server  ServerConfig  `toml:"server"`
	Store   StoreConfig   `toml:"store"`
}

// GeneralConfig holds general application settings
type GeneralConfig struct {
	Name        string `toml:"name"`
	Environment string `toml:"environment"`
	DataDir     string `toml:"data_dir"`
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
}

// SearchConfig holds search language settings
type SearchConfig struct {
	MinLength       int      `toml:"min_length"`
	MaxLength       int      `toml:"max_length"`
	SavedSearchKeep int      `toml:"saved_search_keep"`
	Timeout         Duration `toml:"timeout"`
}

// OleaConfig holds quick-add language settings
type OleaConfig struct {
	MaxLength        int  `toml:"max_length"`
	ReplaceAssignees bool `toml:"replace_assignees"`
}

// ServerConfig holds the listen addresses of `iguana serve`
type ServerConfig struct {
	Host            string   `toml:"host"`
	GRPCPort        int      `toml:"grpc_port"`
	HTTPPort        int      `toml:"http_port"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	AllowedOrigins  []string `toml:"allowed_origins"`
}

// StoreConfig selects the record store
type StoreConfig struct {
	Type     string `toml:"type"`
	Path     string `toml:"path"`
	Fixtures string `toml:"fixtures"`
}

// Duration wraps time.Duration for TOML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a TOML file. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	cfg.applyDefaults()
	cfg.expandEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads the file named by IGUANA_CONFIG or the first file
// found at a default location. Without any file the defaults apply.
func LoadFromEnv() (*Config, error) {
	if path := os.Getenv(EnvConfig); path != "" {
		return Load(path)
	}
	for _, p := range DefaultPaths() {
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return Default(), nil
}

// DefaultPaths lists the locations searched for a config file
func DefaultPaths() []string {
	paths := []string{"./iguana.toml", "./configs/iguana.toml"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "iguana", "config.toml"))
	}
	return paths
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// General
	if c.General.Name == "" {
		c.General.Name = "iguana"
	}
	if c.General.Environment == "" {
		c.General.Environment = "development"
	}
	if c.General.DataDir == "" {
		c.General.DataDir = "./data"
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	if c.General.LogFormat == "" {
		c.General.LogFormat = "text"
	}

	// Search
	if c.Search.MinLength == 0 {
		c.Search.MinLength = 3
	}
	if c.Search.MaxLength == 0 {
		c.Search.MaxLength = 4096
	}
	if c.Search.SavedSearchKeep == 0 {
		c.Search.SavedSearchKeep = 10
	}
	if c.Search.Timeout.Duration == 0 {
		c.Search.Timeout.Duration = 10 * time.Second
	}

	// Olea
	if c.Olea.MaxLength == 0 {
		c.Olea.MaxLength = 1024
	}

	// Server
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = 9300
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 9380
	}
	if c.Server.ReadTimeout.Duration == 0 {
		c.Server.ReadTimeout.Duration = 30 * time.Second
	}
	if c.Server.WriteTimeout.Duration == 0 {
		c.Server.WriteTimeout.Duration = 30 * time.Second
	}
	if c.Server.ShutdownTimeout.Duration == 0 {
		c.Server.ShutdownTimeout.Duration = 10 * time.Second
	}

	// Store
	if c.Store.Type == "" {
		c.Store.Type = StoreMemory
	}
	if c.Store.Type == StoreSQLite && c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.General.DataDir, "iguana.db")
	}
}

// expandEnvVars expands environment variables in path values
func (c *Config) expandEnvVars() {
	c.General.DataDir = os.ExpandEnv(c.General.DataDir)
	c.Store.Path = os.ExpandEnv(c.Store.Path)
	c.Store.Fixtures = os.ExpandEnv(c.Store.Fixtures)
}

// Validate checks values the defaults cannot repair
func (c *Config) Validate() error {
	switch c.Store.Type {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("invalid store type %q, expected %s or %s", c.Store.Type, StoreMemory, StoreSQLite)
	}
	if c.Search.MinLength < 1 {
		return fmt.Errorf("search.min_length must be positive, got %d", c.Search.MinLength)
	}
	if c.Search.MaxLength < c.Search.MinLength {
		return fmt.Errorf("search.max_length %d is below search.min_length %d", c.Search.MaxLength, c.Search.MinLength)
	}
	if c.Search.SavedSearchKeep < 0 {
		return fmt.Errorf("search.saved_search_keep must not be negative, got %d", c.Search.SavedSearchKeep)
	}
	for name, port := range map[string]int{"server.grpc_port": c.Server.GRPCPort, "server.http_port": c.Server.HTTPPort} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s out of range: %d", name, port)
		}
	}
	return nil
}

// Encode renders the configuration as TOML
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes the configuration to path atomically. An existing
// file is only replaced when overwrite is set.
func (c *Config) WriteFile(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}
	data, err := c.Encode()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GRPCAddress returns the gRPC listen address
func (c *Config) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}
