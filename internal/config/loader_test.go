package config

import (
	"os"
	"path/filepath"
	"testing"
)

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mailxd.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}

	// Should return defaults
	expected := Default()
	if cfg.Hostname != expected.Hostname {
		t.Errorf("expected hostname %q, got %q", expected.Hostname, cfg.Hostname)
	}
}

func TestLoadValidTOML(t *testing.T) {
	content := `
[mailxd]
hostname = "example.org"
listen = ":2626"
data_dir = "/var/mail/exchange"
log_level = "debug"

[mailxd.limits]
max_connections = 50

[mailxd.metrics]
enabled = true
address = ":9200"
path = "/m"
`

	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hostname != "example.org" {
		t.Errorf("hostname = %q, want 'example.org'", cfg.Hostname)
	}

	if cfg.Listen != ":2626" {
		t.Errorf("listen = %q, want ':2626'", cfg.Listen)
	}

	if cfg.DataDir != "/var/mail/exchange" {
		t.Errorf("data_dir = %q, want '/var/mail/exchange'", cfg.DataDir)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want 'debug'", cfg.LogLevel)
	}

	if cfg.Limits.MaxConnections != 50 {
		t.Errorf("limits.max_connections = %d, want 50", cfg.Limits.MaxConnections)
	}

	if !cfg.Metrics.Enabled {
		t.Error("metrics.enabled = false, want true")
	}

	if cfg.Metrics.Address != ":9200" {
		t.Errorf("metrics.address = %q, want ':9200'", cfg.Metrics.Address)
	}

	if cfg.Metrics.Path != "/m" {
		t.Errorf("metrics.path = %q, want '/m'", cfg.Metrics.Path)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	content := `
[mailxd
hostname = "broken
`

	path := createTempConfig(t, content)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid TOML, got nil")
	}
}

func TestLoadSharedServerSection(t *testing.T) {
	content := `
[server]
hostname = "shared.example.org"
data_dir = "/srv/mail"

[mailxd]
log_level = "warn"
`

	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hostname != "shared.example.org" {
		t.Errorf("hostname = %q, want 'shared.example.org'", cfg.Hostname)
	}

	if cfg.DataDir != "/srv/mail" {
		t.Errorf("data_dir = %q, want '/srv/mail'", cfg.DataDir)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("log_level = %q, want 'warn'", cfg.LogLevel)
	}
}

func TestMailxdSectionOverridesServer(t *testing.T) {
	content := `
[server]
hostname = "shared.example.org"
data_dir = "/srv/mail"

[mailxd]
hostname = "mx.example.org"
data_dir = "/srv/mailxd"
`

	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hostname != "mx.example.org" {
		t.Errorf("hostname = %q, want 'mx.example.org'", cfg.Hostname)
	}

	if cfg.DataDir != "/srv/mailxd" {
		t.Errorf("data_dir = %q, want '/srv/mailxd'", cfg.DataDir)
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()

	f := &Flags{
		Hostname:       "flag.example.org",
		Listen:         ":3000",
		DataDir:        "/tmp/mail",
		LogLevel:       "error",
		MaxConnections: 7,
	}

	got := ApplyFlags(cfg, f)

	if got.Hostname != "flag.example.org" {
		t.Errorf("hostname = %q, want 'flag.example.org'", got.Hostname)
	}

	if got.Listen != ":3000" {
		t.Errorf("listen = %q, want ':3000'", got.Listen)
	}

	if got.DataDir != "/tmp/mail" {
		t.Errorf("data_dir = %q, want '/tmp/mail'", got.DataDir)
	}

	if got.LogLevel != "error" {
		t.Errorf("log_level = %q, want 'error'", got.LogLevel)
	}

	if got.Limits.MaxConnections != 7 {
		t.Errorf("max_connections = %d, want 7", got.Limits.MaxConnections)
	}
}

func TestApplyFlagsEmptyKeepsConfig(t *testing.T) {
	cfg := Default()
	cfg.Hostname = "file.example.org"

	got := ApplyFlags(cfg, &Flags{})

	if got.Hostname != "file.example.org" {
		t.Errorf("hostname = %q, want 'file.example.org'", got.Hostname)
	}

	if got.Limits.MaxConnections != 100 {
		t.Errorf("max_connections = %d, want 100", got.Limits.MaxConnections)
	}
}
