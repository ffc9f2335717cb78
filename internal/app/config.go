package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/meditationbot/core/config"
	coredatabase "github.com/m3rciful/meditationbot/core/database"
	"github.com/m3rciful/meditationbot/core/telegram/keyboard"
	tgsender "github.com/m3rciful/meditationbot/core/telegram/sender"
)

// Storage drivers.
const (
	StorageFile     = "file"
	StoragePostgres = coredatabase.DriverPostgres
	StorageSQLite   = coredatabase.DriverSQLite
	StorageRedis    = "redis"
)

// StorageConfig selects where snapshot documents are kept.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	// Dir holds JSON documents for the file driver and the default sqlite file.
	Dir   string      `yaml:"dir" envconfig:"STORAGE_DIR"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis driver.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Prefix   string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
}

// MeditationConfig tunes the meditation flows.
type MeditationConfig struct {
	// Categories offered after the title step. An explicit empty list skips the step.
	Categories []string `yaml:"categories" envconfig:"MEDITATION_CATEGORIES"`
	// Placeholder titles attachments that carry no file name.
	Placeholder string `yaml:"placeholder" envconfig:"MEDITATION_PLACEHOLDER"`
	// Timezone interprets reminder times; empty means the server zone.
	Timezone string `yaml:"timezone" envconfig:"REMINDER_TZ"`
}

// SenderConfig sizes the outbound Telegram queue.
type SenderConfig struct {
	QueueSize  int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	Workers    int `yaml:"workers" envconfig:"SENDER_WORKERS"`
	MaxRetries int `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Storage    StorageConfig       `yaml:"storage"`
	Database   coredatabase.Config `yaml:"database"`
	Meditation MeditationConfig    `yaml:"meditation"`
	Sender     SenderConfig        `yaml:"sender"`

	location *time.Location
}

var defaultCategories = []string{"sleep", "focus"}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// DatabaseConfig returns the SQL settings, or nil when storage is not SQL backed.
func (c *Config) DatabaseConfig() *coredatabase.Config {
	switch c.Storage.Driver {
	case StoragePostgres, StorageSQLite:
		db := c.Database
		return &db
	default:
		return nil
	}
}

// Location is the zone reminders fire in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// DispatcherOptions converts sender settings for the core runtime.
func (c *Config) DispatcherOptions() tgsender.Options {
	return tgsender.Options{
		QueueSize:  c.Sender.QueueSize,
		Workers:    c.Sender.Workers,
		MaxRetries: c.Sender.MaxRetries,
	}
}

// LoadConfig reads the YAML file at path, applies the environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	st := &cfg.Storage
	st.Driver = strings.ToLower(strings.TrimSpace(st.Driver))
	if st.Driver == "" {
		st.Driver = StorageFile
	}
	if strings.TrimSpace(st.Dir) == "" {
		st.Dir = "data"
	}
	switch st.Driver {
	case StorageFile:
	case StoragePostgres, "postgresql":
		st.Driver = StoragePostgres
		cfg.Database.Driver = coredatabase.DriverPostgres
		if strings.TrimSpace(cfg.Database.Host) == "" || strings.TrimSpace(cfg.Database.Name) == "" {
			return fmt.Errorf("database.host and database.name are required for storage.driver %q", st.Driver)
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
	case StorageSQLite, "sqlite3":
		st.Driver = StorageSQLite
		cfg.Database.Driver = coredatabase.DriverSQLite
		if strings.TrimSpace(cfg.Database.Path) == "" {
			cfg.Database.Path = filepath.Join(st.Dir, "meditationbot.db")
		}
	case StorageRedis:
		if strings.TrimSpace(st.Redis.Addr) == "" {
			return fmt.Errorf("storage.redis.addr is required for storage.driver %q", st.Driver)
		}
		if st.Redis.DB < 0 {
			return fmt.Errorf("storage.redis.db must be >= 0")
		}
		if st.Redis.Prefix == "" {
			st.Redis.Prefix = "meditationbot:"
		}
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: file, postgres, sqlite, redis", cfg.Storage.Driver)
	}

	med := &cfg.Meditation
	if med.Categories == nil {
		med.Categories = append([]string(nil), defaultCategories...)
	}
	cleaned := med.Categories[:0]
	for _, c := range med.Categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if strings.ContainsAny(c, "|\f") || len(c)+len("list_") > keyboard.MaxDataLen {
			return fmt.Errorf("invalid meditation category %q", c)
		}
		cleaned = append(cleaned, c)
	}
	med.Categories = cleaned
	med.Placeholder = strings.TrimSpace(med.Placeholder)

	if tz := strings.TrimSpace(med.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid meditation.timezone %q: %w", tz, err)
		}
		cfg.location = loc
	}

	if cfg.Sender.QueueSize < 0 || cfg.Sender.Workers < 0 || cfg.Sender.MaxRetries < 0 {
		return fmt.Errorf("sender settings must be >= 0")
	}
	return nil
}
