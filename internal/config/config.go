package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/milkcrate/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Logging       LoggingConfig       `yaml:"logging"`
	Sync          SyncConfig          `yaml:"sync"`
	Roon          RoonConfig          `yaml:"roon"`
	Discogs       DiscogsConfig       `yaml:"discogs"`
	Match         MatchConfig         `yaml:"match"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Watch         WatchConfig         `yaml:"watch"`
	Backup        BackupConfig        `yaml:"backup"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// SyncConfig holds sync coordinator settings.
type SyncConfig struct {
	// SkipDays is the recency window: API sources synced more recently
	// than this many days ago are skipped unless forced.
	SkipDays          int    `yaml:"skip_days"`
	LockDir           string `yaml:"lock_dir"`
	AutoIntervalHours int    `yaml:"auto_interval_hours"`
}

// RoonConfig holds paths to the Roon export files.
type RoonConfig struct {
	AlbumsCSV       string `yaml:"albums_csv"`
	TagsCSV         string `yaml:"tags_csv"`
	TracksCSV       string `yaml:"tracks_csv"`
	PlayHistoryJSON string `yaml:"play_history_json"`
}

// DiscogsConfig holds Discogs API credentials and options.
type DiscogsConfig struct {
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	BaseURL  string `yaml:"base_url"`
	PerPage  int    `yaml:"per_page"`
}

// MatchConfig holds the physical-duplicate tag policy and live-show
// matching thresholds.
type MatchConfig struct {
	// TagCodes maps a source tag (compared after normalization) to the
	// stored duplicate code.
	TagCodes map[string]string `yaml:"tag_codes"`
	// TagPriority is the deterministic tie-break order applied when an
	// album carries more than one recognized tag.
	TagPriority      []string `yaml:"tag_priority"`
	PartialThreshold float64  `yaml:"partial_threshold"`
}

// WebhookTarget is one notification endpoint.
type WebhookTarget struct {
	Name   string   `yaml:"name"`
	URL    string   `yaml:"url"`
	Type   string   `yaml:"type"`
	Events []string `yaml:"events"`
}

// NotificationsConfig holds webhook notification settings.
type NotificationsConfig struct {
	Webhooks []WebhookTarget `yaml:"webhooks"`
}

// WatchConfig holds export-file watcher settings.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// BackupConfig holds database snapshot settings. An empty Dir places
// snapshots in a backups directory next to the database file.
type BackupConfig struct {
	Dir        string `yaml:"dir"`
	Keep       int    `yaml:"keep"`
	MaxAgeDays int    `yaml:"max_age_days"`
	// IntervalHours of zero disables the snapshot scheduler.
	IntervalHours int `yaml:"interval_hours"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: "/data/milkcrate.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
		Sync: SyncConfig{
			SkipDays:          7,
			LockDir:           "/data/locks",
			AutoIntervalHours: 24,
		},
		Discogs: DiscogsConfig{
			BaseURL: "https://api.discogs.com",
			PerPage: 100,
		},
		Match: MatchConfig{
			TagCodes: map[string]string{
				"mycds": "CD",
				"mylps": "LP",
			},
			TagPriority:      []string{"CD", "LP"},
			PartialThreshold: 0.6,
		},
		Backup: BackupConfig{
			Keep: 7,
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("MC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("MC_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("MC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MC_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("MC_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("MC_LOCK_DIR"); v != "" {
		c.Sync.LockDir = v
	}
	if v := os.Getenv("MC_SKIP_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			c.Sync.SkipDays = days
		}
	}
	if v := os.Getenv("MC_DISCOGS_TOKEN"); v != "" {
		c.Discogs.Token = v
	}
	if v := os.Getenv("MC_DISCOGS_USERNAME"); v != "" {
		c.Discogs.Username = v
	}
	if v := os.Getenv("MC_BACKUP_DIR"); v != "" {
		c.Backup.Dir = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	if c.Sync.SkipDays < 0 {
		return fmt.Errorf("sync skip_days cannot be negative: %d", c.Sync.SkipDays)
	}
	if c.Discogs.PerPage <= 0 {
		c.Discogs.PerPage = 100
	}
	if c.Discogs.PerPage > 100 {
		return fmt.Errorf("discogs per_page cannot exceed 100: %d", c.Discogs.PerPage)
	}
	if c.Match.PartialThreshold == 0 {
		c.Match.PartialThreshold = 0.6
	}
	if c.Match.PartialThreshold < 0 || c.Match.PartialThreshold > 1 {
		return fmt.Errorf("match partial_threshold must be within (0, 1]: %v", c.Match.PartialThreshold)
	}
	if len(c.Match.TagCodes) == 0 {
		return fmt.Errorf("match tag_codes cannot be empty")
	}
	for i, hook := range c.Notifications.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("notifications webhook %d: url is required", i)
		}
		switch hook.Type {
		case "", "generic", "discord", "slack", "gotify":
		default:
			return fmt.Errorf("notifications webhook %d: unknown type %q", i, hook.Type)
		}
	}
	if c.Backup.Keep < 0 {
		return fmt.Errorf("backup keep cannot be negative: %d", c.Backup.Keep)
	}
	if c.Backup.MaxAgeDays < 0 {
		return fmt.Errorf("backup max_age_days cannot be negative: %d", c.Backup.MaxAgeDays)
	}
	return nil
}

// LoggingOptions converts the YAML logging section into the logging
// package's configuration.
func (c *Config) LoggingOptions() logging.Config {
	return logging.Config{
		Level:          c.Logging.Level,
		Format:         c.Logging.Format,
		FilePath:       c.Logging.File,
		FileMaxSizeMB:  c.Logging.MaxSizeMB,
		FileMaxFiles:   c.Logging.MaxBackups,
		FileMaxAgeDays: c.Logging.MaxAgeDays,
	}
}

// BackupDir resolves the snapshot directory, defaulting to a backups
// directory beside the database file.
func (c *Config) BackupDir() string {
	if c.Backup.Dir != "" {
		return c.Backup.Dir
	}
	return filepath.Join(filepath.Dir(c.Database.Path), "backups")
}
