package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Database.Driver != "sqlite3" {
		t.Fatalf("unexpected default driver: %q", cfg.Database.Driver)
	}
	if !cfg.Reminders.Enabled || cfg.Reminders.Buffer != 64 || cfg.Reminders.Desktop {
		t.Fatalf("unexpected reminder defaults: %+v", cfg.Reminders)
	}
	if cfg.Sync.Tenant != "consumers" || cfg.Sync.GraphURL != "https://graph.microsoft.com/v1.0" {
		t.Fatalf("unexpected sync defaults: %+v", cfg.Sync)
	}
	if d, err := cfg.Engine.TimeoutDuration(); err != nil || d != 5*time.Second {
		t.Fatalf("unexpected engine timeout: %v %v", d, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: /tmp/plan.db
  driver: sqlite
reminders:
  buffer: 8
  desktop: true
engine:
  timeout: 2s
sync:
  folder_id: ABC123
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Path != "/tmp/plan.db" || cfg.Database.Driver != "sqlite" {
		t.Fatalf("unexpected database config: %+v", cfg.Database)
	}
	if cfg.Reminders.Buffer != 8 || !cfg.Reminders.Desktop || !cfg.Reminders.Enabled {
		t.Fatalf("unexpected reminder config: %+v", cfg.Reminders)
	}
	if cfg.Sync.FolderID != "ABC123" || cfg.Sync.Tenant != "consumers" {
		t.Fatalf("unexpected sync config: %+v", cfg.Sync)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected default log level, got %q", cfg.Log.Level)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DAYPLAN_REMINDERS_DESKTOP", "true")
	t.Setenv("DAYPLAN_REMINDERS_BUFFER", "128")
	t.Setenv("DAYPLAN_LOG_LEVEL", "debug")
	t.Setenv("DAYPLAN_SYNC_CLIENT_ID", "client-xyz")
	t.Setenv("DAYPLAN_DATABASE_PATH", "state/custom.db")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("reminders:\n  buffer: 4\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Reminders.Desktop || cfg.Reminders.Buffer != 128 {
		t.Fatalf("env should win over file and defaults: %+v", cfg.Reminders)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Fatalf("unexpected log level: %v", cfg.Log.SlogLevel())
	}
	if cfg.Sync.ClientID != "client-xyz" || cfg.Database.Path != "state/custom.db" {
		t.Fatalf("unexpected env overrides: %+v %+v", cfg.Sync, cfg.Database)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"driver":  "database:\n  driver: postgres\n",
		"buffer":  "reminders:\n  buffer: 0\n",
		"timeout": "engine:\n  timeout: soon\n",
		"level":   "log:\n  level: loud\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("write default: %v", err)
	}
	if err := WriteDefault(path, false); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if err := WriteDefault(path, true); err != nil {
		t.Fatalf("forced write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load written default: %v", err)
	}
	want := Default()
	if *cfg != *want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", cfg, want)
	}
}
