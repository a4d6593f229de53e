package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage and ledger drivers
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Ledger    LedgerConfig
	SMS       SMSConfig
	Dispatch  DispatchConfig
	AMQP      AMQPConfig
	Metrics   MetricsConfig
	LogLevel  string
	LogFormat string
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	AllowedHosts []string
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// PostgresConfig configures the optional Postgres delivery ledger
type PostgresConfig struct {
	URL      string
	MaxConns int32
}

// RedisConfig configures the template cache. An empty Address disables it.
type RedisConfig struct {
	Address    string
	Password   string
	DB         int
	TTLSeconds int
}

// TTL returns the cache entry lifetime
func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// JWTConfig holds JWT-specific configuration
type JWTConfig struct {
	Secret    string
	ExpiresIn int
}

// StorageConfig selects where templates, settings and operators live
type StorageConfig struct {
	Driver string
}

// LedgerConfig selects where delivery entries live
type LedgerConfig struct {
	Driver string
}

// SMSConfig holds SMS gateway configuration
type SMSConfig struct {
	DefaultBackend string
	TimeoutSeconds int
	Demo           DemoGatewayConfig
}

// Timeout returns the per-call gateway timeout
func (s SMSConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// DemoGatewayConfig tunes the simulated backend
type DemoGatewayConfig struct {
	SuccessRate float64
	DelayMillis int
}

// DispatchConfig bounds batch sends
type DispatchConfig struct {
	Concurrency int
	MaxRetries  int
}

// AMQPConfig configures batch event publishing. An empty URL disables it.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read configuration
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Unmarshal configuration
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "4000")
	v.SetDefault("Server.AllowedHosts", []string{"localhost:3000"})
	v.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	v.SetDefault("MongoDB.Database", "edunotify")
	v.SetDefault("Postgres.URL", "")
	v.SetDefault("Postgres.MaxConns", 10)
	v.SetDefault("Redis.Address", "")
	v.SetDefault("Redis.Password", "")
	v.SetDefault("Redis.DB", 0)
	v.SetDefault("Redis.TTLSeconds", 300)
	v.SetDefault("JWT.Secret", "")
	v.SetDefault("JWT.ExpiresIn", 24*60*60) // 24 hours
	v.SetDefault("Storage.Driver", DriverMongo)
	v.SetDefault("Ledger.Driver", DriverMongo)
	v.SetDefault("SMS.DefaultBackend", "demo")
	v.SetDefault("SMS.TimeoutSeconds", 10)
	v.SetDefault("SMS.Demo.SuccessRate", 0.9)
	v.SetDefault("SMS.Demo.DelayMillis", 300)
	v.SetDefault("Dispatch.Concurrency", 10)
	v.SetDefault("Dispatch.MaxRetries", 3)
	v.SetDefault("AMQP.URL", "")
	v.SetDefault("AMQP.Exchange", "edunotify.events")
	v.SetDefault("Metrics.Enabled", true)
	v.SetDefault("Metrics.Path", "/metrics")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "text")
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT.Secret is required"))
	}
	if c.Dispatch.Concurrency <= 0 {
		errs = append(errs, errors.New("Dispatch.Concurrency must be positive"))
	}
	if c.Dispatch.MaxRetries < 0 {
		errs = append(errs, errors.New("Dispatch.MaxRetries must not be negative"))
	}
	if c.SMS.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("SMS.TimeoutSeconds must be positive"))
	}
	if c.SMS.Demo.SuccessRate < 0 || c.SMS.Demo.SuccessRate > 1 {
		errs = append(errs, errors.New("SMS.Demo.SuccessRate must be between 0 and 1"))
	}
	switch c.Storage.Driver {
	case DriverMongo, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("Storage.Driver %q is not one of mongo, memory", c.Storage.Driver))
	}
	switch c.Ledger.Driver {
	case DriverMongo, DriverMemory:
	case DriverPostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("Postgres.URL is required for the postgres ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("Ledger.Driver %q is not one of mongo, postgres, memory", c.Ledger.Driver))
	}
	return errors.Join(errs...)
}

// UsesMongo reports whether any store needs a MongoDB connection
func (c *Config) UsesMongo() bool {
	return c.Storage.Driver == DriverMongo || c.Ledger.Driver == DriverMongo
}
