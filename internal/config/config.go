// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full service configuration.
type Config struct {
	LogLevel  string          `env:"LOG_LEVEL" envDefault:"info"`
	Service   ServiceConfig   `envPrefix:"SERVICE_"`
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Database  DatabaseConfig  `envPrefix:"DB_"`
	Directory DirectoryConfig `envPrefix:"DIRECTORY_"`
	NATS      NATSConfig      `envPrefix:"NATS_"`
}

// ServiceConfig identifies the running service in logs.
type ServiceConfig struct {
	Name        string `env:"NAME" envDefault:"approval-policy"`
	Version     string `env:"VERSION" envDefault:"dev"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// ServerConfig holds HTTP and gRPC listener settings.
type ServerConfig struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	GRPCPort        int           `env:"GRPC_PORT" envDefault:"9090"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

// DatabaseConfig holds the rule store connection settings.
type DatabaseConfig struct {
	Driver         string        `env:"DRIVER" envDefault:"postgres"`
	Host           string        `env:"HOST" envDefault:"localhost"`
	Port           int           `env:"PORT" envDefault:"5432"`
	User           string        `env:"USER" envDefault:"postgres"`
	Password       string        `env:"PASSWORD"`
	Database       string        `env:"NAME" envDefault:"approvals"`
	SSLMode        string        `env:"SSLMODE" envDefault:"disable"`
	MaxConns       int32         `env:"MAX_CONNS" envDefault:"10"`
	MinConns       int32         `env:"MIN_CONNS" envDefault:"1"`
	MaxConnTime    time.Duration `env:"MAX_CONN_TIME" envDefault:"1h"`
	MaxIdleTime    time.Duration `env:"MAX_IDLE_TIME" envDefault:"30m"`
	HealthCheck    time.Duration `env:"HEALTH_CHECK" envDefault:"1m"`
	MigrateOnStart bool          `env:"MIGRATE_ON_START" envDefault:"true"`
	SeedFile       string        `env:"SEED_FILE"`
}

// DirectoryConfig selects the people directory. An empty URL means people
// are read from the database.
type DirectoryConfig struct {
	URL           string        `env:"URL"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"5s"`
	Attempts      uint          `env:"ATTEMPTS" envDefault:"3"`
	RetryDelay    time.Duration `env:"RETRY_DELAY" envDefault:"200ms"`
	RatePerSecond float64       `env:"RATE_PER_SECOND" envDefault:"20"`
}

// NATSConfig enables rule-change notifications when URL is set.
type NATSConfig struct {
	URL           string `env:"URL"`
	SubjectPrefix string `env:"SUBJECT_PREFIX" envDefault:"notifications.approvals"`
}

// Load parses environment variables into Config and validates it.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the env tags cannot express.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want %q or %q)", c.Database.Driver, DriverPostgres, DriverMemory)
	}
	if c.Server.Port <= 0 || c.Server.GRPCPort <= 0 {
		return fmt.Errorf("server ports must be positive")
	}
	if c.Server.Port == c.Server.GRPCPort {
		return fmt.Errorf("SERVER_PORT and SERVER_GRPC_PORT must differ")
	}
	if c.Directory.Attempts == 0 {
		return fmt.Errorf("DIRECTORY_ATTEMPTS must be at least 1")
	}
	return nil
}
