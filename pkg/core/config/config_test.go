package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"seconds", "30s", 30 * time.Second, false},
		{"minutes", "5m", 5 * time.Minute, false},
		{"hours", "2h", 2 * time.Hour, false},
		{"complex", "1h30m", 90 * time.Minute, false},
		{"milliseconds", "100ms", 100 * time.Millisecond, false},
		{"invalid", "invalid", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))

			if (err != nil) != tt.wantErr {
				t.Errorf("UnmarshalText() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && d.Duration != tt.expected {
				t.Errorf("UnmarshalText() = %v, want %v", d.Duration, tt.expected)
			}
		})
	}
}

func TestDuration_MarshalText(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"seconds", 30 * time.Second, "30s"},
		{"minutes", 5 * time.Minute, "5m0s"},
		{"hours", 2 * time.Hour, "2h0m0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Duration{tt.duration}
			result, err := d.MarshalText()

			if err != nil {
				t.Errorf("MarshalText() error = %v", err)
				return
			}

			if string(result) != tt.expected {
				t.Errorf("MarshalText() = %v, want %v", string(result), tt.expected)
			}
		})
	}
}

func TestConfig_applyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	// General defaults
	if cfg.General.Name != "iguana" {
		t.Errorf("General.Name = %v, want iguana", cfg.General.Name)
	}
	if cfg.General.LogLevel != "info" {
		t.Errorf("General.LogLevel = %v, want info", cfg.General.LogLevel)
	}

	// Search defaults
	if cfg.Search.MinLength != 3 {
		t.Errorf("Search.MinLength = %v, want 3", cfg.Search.MinLength)
	}
	if cfg.Search.SavedSearchKeep != 10 {
		t.Errorf("Search.SavedSearchKeep = %v, want 10", cfg.Search.SavedSearchKeep)
	}
	if cfg.Search.Timeout.Duration != 10*time.Second {
		t.Errorf("Search.Timeout = %v, want 10s", cfg.Search.Timeout.Duration)
	}

	// Server defaults
	if cfg.Server.GRPCPort != 9300 {
		t.Errorf("Server.GRPCPort = %v, want 9300", cfg.Server.GRPCPort)
	}
	if cfg.Server.HTTPPort != 9380 {
		t.Errorf("Server.HTTPPort = %v, want 9380", cfg.Server.HTTPPort)
	}

	// Store defaults
	if cfg.Store.Type != StoreMemory {
		t.Errorf("Store.Type = %v, want %v", cfg.Store.Type, StoreMemory)
	}
	if cfg.Store.Path != "" {
		t.Errorf("Store.Path = %v, want empty for the memory store", cfg.Store.Path)
	}
}

func TestConfig_sqliteDefaultPath(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Type: StoreSQLite}, General: GeneralConfig{DataDir: "/var/lib/iguana"}}
	cfg.applyDefaults()
	if cfg.Store.Path != "/var/lib/iguana/iguana.db" {
		t.Errorf("Store.Path = %v, want /var/lib/iguana/iguana.db", cfg.Store.Path)
	}
}

func TestConfig_GRPCAddress(t *testing.T) {
	if got := Default().GRPCAddress(); got != "127.0.0.1:9300" {
		t.Errorf("GRPCAddress() = %v, want 127.0.0.1:9300", got)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("Load() expected error for non-existent file")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iguana.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("IGUANA_TEST_DATA", "/srv/iguana")
	path := writeConfig(t, `
[general]
name = "tracker"
environment = "test"

[search]
min_length = 4
timeout = "2s"

[olea]
replace_assignees = true

[server]
http_port = 8088
allowed_origins = ["https://tracker.example"]

[store]
type = "sqlite"
path = "$IGUANA_TEST_DATA/records.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.General.Name != "tracker" {
		t.Errorf("General.Name = %v, want tracker", cfg.General.Name)
	}
	if cfg.Search.MinLength != 4 {
		t.Errorf("Search.MinLength = %v, want 4", cfg.Search.MinLength)
	}
	if cfg.Search.Timeout.Duration != 2*time.Second {
		t.Errorf("Search.Timeout = %v, want 2s", cfg.Search.Timeout.Duration)
	}
	if !cfg.Olea.ReplaceAssignees {
		t.Error("Olea.ReplaceAssignees = false, want true")
	}
	if cfg.Server.HTTPPort != 8088 {
		t.Errorf("Server.HTTPPort = %v, want 8088", cfg.Server.HTTPPort)
	}
	if diff := cmp.Diff([]string{"https://tracker.example"}, cfg.Server.AllowedOrigins); diff != "" {
		t.Errorf("AllowedOrigins mismatch (-want +got):\n%s", diff)
	}
	if cfg.Store.Path != "/srv/iguana/records.db" {
		t.Errorf("Store.Path = %v, want /srv/iguana/records.db", cfg.Store.Path)
	}

	// Check defaults were applied for missing values
	if cfg.Server.GRPCPort != 9300 {
		t.Errorf("Server.GRPCPort = %v, want 9300 (default)", cfg.Server.GRPCPort)
	}
}

func TestLoad_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "[search]\nmin_len = 3\n", "unknown config keys"},
		{"unknown store", "[store]\ntype = \"redis\"\n", "invalid store type"},
		{"port out of range", "[server]\ngrpc_port = 70000\n", "server.grpc_port out of range"},
		{"max below min", "[search]\nmin_length = 5\nmax_length = 4\n", "below search.min_length"},
		{"bad duration", "[search]\ntimeout = \"soon\"\n", "failed to parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "iguana.toml")
	cfg := Default()
	cfg.Search.MinLength = 5

	if err := cfg.WriteFile(path, false); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(cfg, loaded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	if err := cfg.WriteFile(path, false); err == nil {
		t.Error("WriteFile() replaced an existing file without overwrite")
	}
	if err := cfg.WriteFile(path, true); err != nil {
		t.Errorf("WriteFile(overwrite) error = %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))

	t.Setenv(EnvConfig, "")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() without files error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}

	if err := os.WriteFile(filepath.Join(dir, "iguana.toml"), []byte("[general]\nname = \"local\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.General.Name != "local" {
		t.Errorf("General.Name = %v, want local", cfg.General.Name)
	}

	t.Setenv(EnvConfig, filepath.Join(dir, "missing.toml"))
	if _, err := LoadFromEnv(); err == nil {
		t.Error("LoadFromEnv() expected error for a missing IGUANA_CONFIG file")
	}
}
