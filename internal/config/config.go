// Package config loads harvester settings from defaults, an optional YAML file,
// a .env file and HARVESTER_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. HARVESTER_STORE_DRIVER.
const EnvPrefix = "HARVESTER"

const (
	StoreDriverPostgres = "postgres"
	StoreDriverBolt     = "bolt"
)

var (
	ErrUnknownStoreDriver = errors.New("store.driver must be postgres or bolt")
	ErrMissingPostgresDSN = errors.New("store.postgres_dsn is required for the postgres driver")
	ErrMissingBoltPath    = errors.New("store.bolt_path is required for the bolt driver")
	ErrNegativeEarlyExit  = errors.New("ingest.early_exit_threshold must not be negative")
	ErrInvalidTimezone    = errors.New("ingest.timezone is not a known location")
	ErrInvalidLogFormat   = errors.New("log.format must be json or console")
)

// Config is the full harvester configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Keywords   KeywordsConfig   `mapstructure:"keywords"`
	Store      StoreConfig      `mapstructure:"store"`
	Publishers PublishersConfig `mapstructure:"publishers"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// KeywordsConfig points at a rule file replacing the embedded defaults. Empty keeps the defaults.
type KeywordsConfig struct {
	File string `mapstructure:"file"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	BoltPath    string `mapstructure:"bolt_path"`
}

// PublishersConfig points at the publishers file. Empty disables publishing.
type PublishersConfig struct {
	File string `mapstructure:"file"`
}

type IngestConfig struct {
	EarlyExitThreshold int    `mapstructure:"early_exit_threshold"`
	Timezone           string `mapstructure:"timezone"`
}

// MetricsConfig.Addr enables the /metrics listener when set, e.g. ":9090".
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("keywords.file", "")
	v.SetDefault("store.driver", StoreDriverBolt)
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.bolt_path", "berita.db")
	v.SetDefault("publishers.file", "")
	v.SetDefault("ingest.early_exit_threshold", 0)
	v.SetDefault("ingest.timezone", "Asia/Jakarta")
	v.SetDefault("metrics.addr", "")
}

// Load reads configuration. file may be empty, in which case ./config.yaml is used when present.
func Load(file string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) sanitize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Keywords.File = strings.TrimSpace(c.Keywords.File)
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Store.PostgresDSN = strings.TrimSpace(c.Store.PostgresDSN)
	c.Store.BoltPath = strings.TrimSpace(c.Store.BoltPath)
	c.Publishers.File = strings.TrimSpace(c.Publishers.File)
	c.Ingest.Timezone = strings.TrimSpace(c.Ingest.Timezone)
	c.Metrics.Addr = strings.TrimSpace(c.Metrics.Addr)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Store.PostgresDSN == "" {
			return ErrMissingPostgresDSN
		}
	case StoreDriverBolt:
		if c.Store.BoltPath == "" {
			return ErrMissingBoltPath
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStoreDriver, c.Store.Driver)
	}

	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}
	if c.Ingest.EarlyExitThreshold < 0 {
		return ErrNegativeEarlyExit
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves ingest.timezone. Empty means Asia/Jakarta.
func (c *Config) Location() (*time.Location, error) {
	name := c.Ingest.Timezone
	if name == "" {
		name = "Asia/Jakarta"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}
