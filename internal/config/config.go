// Package config loads runtime settings from defaults, an optional config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/repository"
	"github.com/spf13/viper"
)

const (
	SessionBackendRedis  = "redis"
	SessionBackendMongo  = "mongo"
	SessionBackendMemory = "memory"
)

type Config struct {
	HTTPPort        string        `mapstructure:"http_port"`
	GRPCPort        string        `mapstructure:"grpc_port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level"`

	DBDriver       string `mapstructure:"db_driver"`
	DBHost         string `mapstructure:"db_host"`
	DBPort         int    `mapstructure:"db_port"`
	DBUser         string `mapstructure:"db_user"`
	DBPassword     string `mapstructure:"db_password"`
	DBName         string `mapstructure:"db_name"`
	DBPath         string `mapstructure:"db_path"`
	MigrationsPath string `mapstructure:"migrations_path"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`

	SessionBackend string        `mapstructure:"session_backend"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	MongoURI       string        `mapstructure:"mongo_uri"`
	MongoDBName    string        `mapstructure:"mongo_db_name"`

	KafkaBrokers string `mapstructure:"kafka_brokers"`
	KafkaTopic   string `mapstructure:"kafka_topic"`

	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
	MailFrom       string `mapstructure:"mail_from"`
	MailFromName   string `mapstructure:"mail_from_name"`

	OTelEndpoint string `mapstructure:"otel_exporter_otlp_endpoint"`
}

var defaults = map[string]any{
	"http_port":        "8080",
	"grpc_port":        "50050",
	"request_timeout":  5 * time.Second,
	"shutdown_timeout": 10 * time.Second,
	"log_level":        "info",

	"db_driver":       repository.DriverSQLite,
	"db_host":         "localhost",
	"db_port":         5432,
	"db_user":         "postgres",
	"db_password":     "postgres",
	"db_name":         "storefront",
	"db_path":         "storefront.db",
	"migrations_path": "./internal/repository/migrations",

	"redis_addr":     "localhost:6379",
	"redis_password": "",

	"session_backend": SessionBackendRedis,
	"session_ttl":     24 * time.Hour,
	"mongo_uri":       "mongodb://localhost:27017",
	"mongo_db_name":   "storefront",

	"kafka_brokers": "",
	"kafka_topic":   "storefront.orders",

	"sendgrid_api_key": "",
	"mail_from":        "noreply@storefront.local",
	"mail_from_name":   "Storefront",

	"otel_exporter_otlp_endpoint": "",
}

// Load reads config.yaml from the given paths (when present) and lets
// environment variables such as DB_DRIVER or SESSION_BACKEND override it.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AutomaticEnv()

	if len(paths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case repository.DriverPostgres, repository.DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.SessionBackend {
	case SessionBackendRedis, SessionBackendMongo, SessionBackendMemory:
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND %q", c.SessionBackend)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) Credentials() *repository.Credentials {
	return &repository.Credentials{
		Driver:            c.DBDriver,
		Host:              c.DBHost,
		Port:              c.DBPort,
		User:              c.DBUser,
		Password:          c.DBPassword,
		DBName:            c.DBName,
		Path:              c.DBPath,
		MigrationsDirPath: c.MigrationsPath,
	}
}

// Brokers splits KAFKA_BROKERS on commas. Empty means the outbox poller is off.
func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
