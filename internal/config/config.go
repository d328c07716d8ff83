// Package config loads the application configuration from a TOML file
// and APP_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/agnostech/event-gateway/internal/publisher"
	"github.com/agnostech/event-gateway/internal/store"
)

// Database backend selectors.
const (
	DatabaseFile     = "file"
	DatabaseInMemory = "inMemory"
	DatabasePostgres = "postgres"
)

// Publisher selectors.
const (
	PublisherNoOp  = "noOp"
	PublisherKafka = "kafka"
	PublisherMQTT  = "mqtt"
)

type AppConfig struct {
	DebugMode bool           `mapstructure:"debug_mode"`
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"database"`
	Gateway   GatewayConfig  `mapstructure:"gateway"`
	API       APIConfig      `mapstructure:"api"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig is a tagged union on Type; the remaining fields belong
// to the selected backend.
type DatabaseConfig struct {
	Type string `mapstructure:"type"`

	// file
	Path string `mapstructure:"path"`

	// inMemory
	InitialDataJSON string `mapstructure:"initial_data_json"`

	// postgres
	Username                 string `mapstructure:"username"`
	Password                 string `mapstructure:"password"`
	Endpoint                 string `mapstructure:"endpoint"`
	DBName                   string `mapstructure:"dbname"`
	CacheRefreshIntervalSecs int64  `mapstructure:"cache_refresh_interval_secs"`
}

// Postgres converts the postgres fields into the store's config type.
func (c DatabaseConfig) Postgres() store.PostgresConfig {
	return store.PostgresConfig{
		Username: c.Username,
		Password: c.Password,
		Endpoint: c.Endpoint,
		DBName:   c.DBName,
	}
}

// CacheRefreshInterval returns the cache refresh interval as a duration.
func (c DatabaseConfig) CacheRefreshInterval() time.Duration {
	return time.Duration(c.CacheRefreshIntervalSecs) * time.Second
}

type GatewayConfig struct {
	MetricsEnabled    bool            `mapstructure:"metrics_enabled"`
	SamplingEnabled   bool            `mapstructure:"sampling_enabled"`
	SamplingThreshold float64         `mapstructure:"sampling_threshold"`
	Publisher         PublisherConfig `mapstructure:"publisher"`
}

// PublisherConfig is a tagged union on Type; the variant fields live
// flat in the same [gateway.publisher] table.
type PublisherConfig struct {
	Type string `mapstructure:"type"`

	Kafka publisher.KafkaConfig `mapstructure:",squash"`
	MQTT  publisher.MQTTConfig  `mapstructure:",squash"`
}

type JWTAuthConfig struct {
	JwksURL             string `mapstructure:"jwks_url"`
	RefreshIntervalSecs int64  `mapstructure:"refresh_interval_secs"`
}

func (c JWTAuthConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSecs) * time.Second
}

type APIConfig struct {
	Prefix  string         `mapstructure:"prefix"`
	JWTAuth *JWTAuthConfig `mapstructure:"jwt_auth"`
}

// Load reads the configuration. When path is empty it searches for
// config.toml in the working directory and /etc/event-gateway; a missing
// file is fine as long as the environment provides what is needed.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/event-gateway")
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.prefix", "/")
	v.SetDefault("gateway.sampling_threshold", 100.0)
	v.SetDefault("database.dbname", "event_gateway")
	v.SetDefault("database.cache_refresh_interval_secs", 300)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.Database.Type {
	case DatabaseFile, DatabaseInMemory, DatabasePostgres:
	default:
		return fmt.Errorf("unknown database type %q", c.Database.Type)
	}
	switch c.Gateway.Publisher.Type {
	case PublisherNoOp, PublisherKafka, PublisherMQTT:
	default:
		return fmt.Errorf("unknown publisher type %q", c.Gateway.Publisher.Type)
	}
	if t := c.Gateway.SamplingThreshold; t < 0 || t > 100 {
		return fmt.Errorf("sampling_threshold must be in [0, 100], got %v", t)
	}
	return nil
}
