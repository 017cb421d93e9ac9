// Package config loads dayplan settings from YAML, DAYPLAN_* environment
// variables, and built-in defaults, in falling order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "DAYPLAN"

var (
	ErrInvalid = errors.New("config: invalid value")
	ErrExists  = errors.New("config: file already exists")
)

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Reminders RemindersConfig `mapstructure:"reminders" yaml:"reminders"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Sync      SyncConfig      `mapstructure:"sync" yaml:"sync"`
}

type DatabaseConfig struct {
	Path   string `mapstructure:"path" yaml:"path"`
	Driver string `mapstructure:"driver" yaml:"driver"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

type RemindersConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Buffer  int  `mapstructure:"buffer" yaml:"buffer"`
	Desktop bool `mapstructure:"desktop" yaml:"desktop"`
}

type EngineConfig struct {
	// Timeout bounds how long a caller waits for an engine call to start.
	Timeout string `mapstructure:"timeout" yaml:"timeout"`
}

type SyncConfig struct {
	ClientID   string `mapstructure:"client_id" yaml:"client_id"`
	Tenant     string `mapstructure:"tenant" yaml:"tenant"`
	FolderID   string `mapstructure:"folder_id" yaml:"folder_id"`
	TokenCache string `mapstructure:"token_cache" yaml:"token_cache"`
	GraphURL   string `mapstructure:"graph_url" yaml:"graph_url"`
}

// Dir is the per-user directory holding the database, log, token cache and
// config file.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".dayplan"
	}
	return filepath.Join(base, "dayplan")
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func Default() *Config {
	dir := Dir()
	return &Config{
		Database: DatabaseConfig{
			Path:   filepath.Join(dir, "dayplan.db"),
			Driver: "sqlite3",
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "dayplan.log"),
		},
		Reminders: RemindersConfig{
			Enabled: true,
			Buffer:  64,
			Desktop: false,
		},
		Engine: EngineConfig{
			Timeout: "5s",
		},
		Sync: SyncConfig{
			Tenant:     "consumers",
			TokenCache: filepath.Join(dir, "token.json"),
			GraphURL:   "https://graph.microsoft.com/v1.0",
		},
	}
}

// Load reads path, or DefaultPath when path is empty. A missing default file
// is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("reminders.enabled", d.Reminders.Enabled)
	v.SetDefault("reminders.buffer", d.Reminders.Buffer)
	v.SetDefault("reminders.desktop", d.Reminders.Desktop)
	v.SetDefault("engine.timeout", d.Engine.Timeout)
	v.SetDefault("sync.client_id", d.Sync.ClientID)
	v.SetDefault("sync.tenant", d.Sync.Tenant)
	v.SetDefault("sync.folder_id", d.Sync.FolderID)
	v.SetDefault("sync.token_cache", d.Sync.TokenCache)
	v.SetDefault("sync.graph_url", d.Sync.GraphURL)
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("%w: database.driver %q (want sqlite3 or sqlite)", ErrInvalid, c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("%w: database.path is empty", ErrInvalid)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Reminders.Buffer <= 0 {
		return fmt.Errorf("%w: reminders.buffer must be positive, got %d", ErrInvalid, c.Reminders.Buffer)
	}
	if _, err := c.Engine.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

func (e EngineConfig) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(e.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: engine.timeout %q", ErrInvalid, e.Timeout)
	}
	return d, nil
}

// SlogLevel returns the configured level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	lvl, err := parseLevel(l.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(raw string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log.level %q", ErrInvalid, raw)
	}
	return lvl, nil
}

// WriteDefault writes the default configuration to path. It refuses to
// replace an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	body, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	content := "# dayplan configuration\n# Every key can be overridden with DAYPLAN_<SECTION>_<KEY>.\n" + string(body)
	return os.WriteFile(path, []byte(content), 0o644)
}

// YAML renders c the way WriteDefault lays out a file.
func (c *Config) YAML() (string, error) {
	body, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(body), nil
}
