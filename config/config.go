// Package config loads service configuration from the environment and
// optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppName                       string        `mapstructure:"app_name"`
	Port                          int           `mapstructure:"port"`
	LogLevel                      string        `mapstructure:"log_level"`
	PrettyLogs                    bool          `mapstructure:"pretty_logs"`
	HTTPServerWriteTimeoutSeconds int           `mapstructure:"http_server_write_timeout_seconds"`
	HTTPServerReadTimeoutSeconds  int           `mapstructure:"http_server_read_timeout_seconds"`
	HTTPServerIdleTimeoutSeconds  int           `mapstructure:"http_server_idle_timeout_seconds"`
	AllowOrigins                  []string      `mapstructure:"allow_origins"`
	AllowMethods                  []string      `mapstructure:"allow_methods"`
	StartupMaxAttempts            int           `mapstructure:"startup_max_attempts"`
	ShutdownTimeout               time.Duration `mapstructure:"shutdown_timeout"`

	// Manifest
	ServiceDisplayName string `mapstructure:"service_display_name"`
	IdentifierSpace    string `mapstructure:"identifier_space"`
	SchemaSpace        string `mapstructure:"schema_space"`

	// PostgreSQL (catalogue storage)
	DatabaseHost                  string        `mapstructure:"db_host"`
	DatabasePort                  string        `mapstructure:"db_port"`
	DatabaseUserName              string        `mapstructure:"db_user_name"`
	DatabasePassword              string        `mapstructure:"db_password"`
	DatabaseName                  string        `mapstructure:"db_name"`
	DatabaseSSLMode               string        `mapstructure:"db_ssl_mode"`
	DatabaseMaxOpenConns          int           `mapstructure:"db_max_open_conns"`
	DatabaseMaxIdleConns          int           `mapstructure:"db_max_idle_conns"`
	DatabaseConnMaxLifetime       time.Duration `mapstructure:"db_conn_max_lifetime"`
	DatabaseMigrationFolderPath   string        `mapstructure:"db_migration_folder_path"`
	DatabaseMigrationVersion      int           `mapstructure:"db_migration_version"`
	DatabaseMigrationForce        int           `mapstructure:"db_migration_force"`
	DatabaseMigrationAutoRollback bool          `mapstructure:"db_migration_auto_rollback"`

	// Engine
	MatchThreshold float64 `mapstructure:"match_threshold"`
	DefaultLimit   int     `mapstructure:"default_limit"`
	MaxLimit       int     `mapstructure:"max_limit"`

	// Tracing
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`

	// Kafka producer (batch completion events)
	KafkaEnabled      bool     `mapstructure:"kafka_enabled"`
	KafkaBrokers      []string `mapstructure:"kafka_brokers"`
	KafkaOutputTopic  string   `mapstructure:"kafka_output_topic"`
	KafkaBatchSize    int      `mapstructure:"kafka_batch_size"`
	KafkaBatchTimeout int      `mapstructure:"kafka_batch_timeout_ms"`
	KafkaRequiredAcks int      `mapstructure:"kafka_required_acks"`
	KafkaCompression  string   `mapstructure:"kafka_compression"`
}

// Load reads configuration from an optional config file and the
// environment. Environment variables use the RECON_ prefix.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("RECON")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// DSN builds the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost, c.DatabasePort, c.DatabaseUserName, c.DatabasePassword, c.DatabaseName, c.DatabaseSSLMode,
	)
}

func setDefaults() {
	viper.SetDefault("app_name", "repd-reconcile-api")
	viper.SetDefault("port", 8000)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("pretty_logs", false)
	viper.SetDefault("http_server_write_timeout_seconds", 10)
	viper.SetDefault("http_server_read_timeout_seconds", 10)
	viper.SetDefault("http_server_idle_timeout_seconds", 10)
	viper.SetDefault("allow_origins", []string{"http://127.0.0.1:3333", "http://localhost:3333"})
	viper.SetDefault("allow_methods", []string{"GET", "POST"})
	viper.SetDefault("startup_max_attempts", 5)
	viper.SetDefault("shutdown_timeout", 10*time.Second)

	viper.SetDefault("service_display_name", "REPD x NESO TEC Reconciliation")
	viper.SetDefault("identifier_space", "https://example.org/renewables/id")
	viper.SetDefault("schema_space", "https://example.org/renewables/schema")

	viper.SetDefault("db_host", "localhost")
	viper.SetDefault("db_port", "5432")
	viper.SetDefault("db_user_name", "postgres")
	viper.SetDefault("db_password", "")
	viper.SetDefault("db_name", "repd")
	viper.SetDefault("db_ssl_mode", "disable")
	viper.SetDefault("db_max_open_conns", 25)
	viper.SetDefault("db_max_idle_conns", 10)
	viper.SetDefault("db_conn_max_lifetime", 10*time.Second)
	viper.SetDefault("db_migration_folder_path", "db/pg")
	viper.SetDefault("db_migration_version", 0)
	viper.SetDefault("db_migration_force", 0)
	viper.SetDefault("db_migration_auto_rollback", true)

	viper.SetDefault("match_threshold", 90.0)
	viper.SetDefault("default_limit", 3)
	viper.SetDefault("max_limit", 100)

	viper.SetDefault("tracing_enabled", false)
	viper.SetDefault("otlp_endpoint", "localhost:4317")
	viper.SetDefault("otlp_protocol", "grpc")

	viper.SetDefault("kafka_enabled", false)
	viper.SetDefault("kafka_brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka_output_topic", "reconcile-events")
	viper.SetDefault("kafka_batch_size", 100)
	viper.SetDefault("kafka_batch_timeout_ms", 100)
	viper.SetDefault("kafka_required_acks", 1)
	viper.SetDefault("kafka_compression", "snappy")
}
