package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Data     DataConfig
	Kafka    KafkaConfig
	Import   ImportConfig
	Logging  LoggingConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database specific configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DataConfig holds time-series storage configuration
type DataConfig struct {
	Dir          string
	FlushOnApply bool
}

// KafkaConfig holds ingestion transport configuration
type KafkaConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string
	CodePrefixes   []string
	ConnectTimeout time.Duration
	MaxRetries     int
	DrainTimeout   time.Duration
}

// ImportConfig holds bulk import configuration
type ImportConfig struct {
	SourceDir    string
	Workers      int
	SessionStart string
	SessionEnd   string
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads the configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "10s")
	v.SetDefault("server.idleTimeout", "120s")

	// Database defaults
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", "30m")

	// Time-series storage defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.flushOnApply", false)

	// Kafka defaults
	v.SetDefault("kafka.topic", "market-quotes")
	v.SetDefault("kafka.groupId", "market-data-service")
	v.SetDefault("kafka.connectTimeout", "10s")
	v.SetDefault("kafka.maxRetries", 5)
	v.SetDefault("kafka.drainTimeout", "5s")

	// Import defaults
	v.SetDefault("import.workers", 4)
	v.SetDefault("import.sessionStart", "09:15")
	v.SetDefault("import.sessionEnd", "15:45")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
