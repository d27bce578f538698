// Package config loads process configuration from defaults, an optional config file
// and ACTIVATABLE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"activatable/internal/activation"
	"activatable/internal/core/entity"
	"activatable/internal/infrastructure/storage/postgres"
	"activatable/pkg/logger"
)

// EnvPrefix is prepended to every environment variable, e.g. ACTIVATABLE_DATABASE_DSN.
const EnvPrefix = "ACTIVATABLE"

// Config is the full process configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Activation ActivationConfig `mapstructure:"activation"`
	Worker     WorkerConfig     `mapstructure:"worker"`
}

// DatabaseConfig configures the PostgreSQL pool. An empty DSN selects in-memory storage.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
}

type HTTPConfig struct {
	Port               string        `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	IdempotencyEnabled bool          `mapstructure:"idempotency_enabled"`
	IdempotencyTTL     time.Duration `mapstructure:"idempotency_ttl"`
}

// ActivationConfig controls event delivery and start-up checks.
type ActivationConfig struct {
	// FieldName is the flag column types use when they do not name their own.
	FieldName string `mapstructure:"field_name"`
	// OutboxEnabled records every event in sys_outbox inside the mutating transaction.
	OutboxEnabled bool `mapstructure:"outbox_enabled"`
	// OutboxFilter is a CEL expression; only matching events are recorded.
	OutboxFilter string `mapstructure:"outbox_filter"`
	// AuditEnabled stores events in sys_audit.
	AuditEnabled bool `mapstructure:"audit_enabled"`
	// StrictDBCheck also inspects database foreign keys at start-up.
	StrictDBCheck bool `mapstructure:"strict_db_check"`
}

type WorkerConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	BatchSize       int           `mapstructure:"batch_size"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.encoding", "")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("http.idempotency_enabled", false)
	v.SetDefault("http.idempotency_ttl", 10*time.Minute)

	v.SetDefault("activation.field_name", entity.DefaultActivatableField)
	v.SetDefault("activation.outbox_enabled", false)
	v.SetDefault("activation.outbox_filter", "")
	v.SetDefault("activation.audit_enabled", false)
	v.SetDefault("activation.strict_db_check", false)

	v.SetDefault("worker.poll_interval", 500*time.Millisecond)
	v.SetDefault("worker.batch_size", 100)
	v.SetDefault("worker.cleanup_interval", time.Hour)
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration. path may be empty; a missing file is an error only when
// path was given explicitly.
func Load(path string) (*Config, error) {
	v := New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("activatable")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/activatable")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Activation.FieldName) == "" {
		return errors.New("activation.field_name must not be empty")
	}
	if c.Activation.OutboxFilter != "" {
		if _, err := activation.CompileCondition(c.Activation.OutboxFilter); err != nil {
			return fmt.Errorf("activation.outbox_filter: %w", err)
		}
	}
	if c.Worker.BatchSize <= 0 {
		return fmt.Errorf("worker.batch_size must be positive, got %d", c.Worker.BatchSize)
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker.poll_interval must be positive, got %s", c.Worker.PollInterval)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) exceeds database.max_conns (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}

// InMemory reports whether no database is configured.
func (c *Config) InMemory() bool {
	return c.Database.DSN == ""
}

// PoolConfig maps the database section onto the pool settings.
func (c *Config) PoolConfig() postgres.PoolConfig {
	pc := postgres.DefaultPoolConfig(c.Database.DSN)
	pc.MaxConns = c.Database.MaxConns
	pc.MinConns = c.Database.MinConns
	pc.MaxConnLifetime = c.Database.MaxConnLifetime
	pc.MaxConnIdleTime = c.Database.MaxConnIdleTime
	return pc
}

// LoggerConfig maps the log section onto the logger settings.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       c.Log.Level,
		Development: c.Log.Development,
		Encoding:    c.Log.Encoding,
	}
}
