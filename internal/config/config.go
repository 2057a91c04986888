package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the full runtime configuration of the server and the CLI.
type Config struct {
	Store  StoreConfig
	Server ServerConfig
	Log    LogConfig
	Events EventsConfig
	Audit  AuditConfig
}

// StoreConfig selects and locates the database.
type StoreConfig struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
}

// ServerConfig holds HTTP server options.
type ServerConfig struct {
	Port           string
	AllowedOrigins string
}

// LogConfig holds the minimum log level (debug, info, warn, error).
type LogConfig struct {
	Level string
}

// EventsConfig points the ledger event publisher at Kafka. An empty broker list disables it.
type EventsConfig struct {
	Brokers []string
	Topic   string
}

// AuditConfig holds the conservation audit schedule. An empty schedule disables it.
type AuditConfig struct {
	CronSchedule string
}

// Load reads environment variables, optionally from envFile, and validates the result.
// A missing .env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Store: StoreConfig{
			Driver:      strings.ToLower(getenvWithDefault("STORE_DRIVER", DriverPostgres)),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			SQLitePath:  getenvWithDefault("SQLITE_PATH", "inventory.db"),
		},
		Server: ServerConfig{
			Port:           getenvWithDefault("SERVER_PORT", "8080"),
			AllowedOrigins: getenvWithDefault("ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Events: EventsConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getenvWithDefault("KAFKA_TOPIC", "inventory-ledger.events"),
		},
		Audit: AuditConfig{
			CronSchedule: os.Getenv("AUDIT_CRON"),
		},
	}
	if _, ok := os.LookupEnv("AUDIT_CRON"); !ok {
		cfg.Audit.CronSchedule = "0 * * * *"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be provided when STORE_DRIVER=postgres")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("SQLITE_PATH must not be empty")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Store.Driver)
	}

	if c.Server.Port == "" {
		return errors.New("SERVER_PORT must be provided")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.Log.Level)
	}

	if len(c.Events.Brokers) > 0 && c.Events.Topic == "" {
		return errors.New("KAFKA_TOPIC must not be empty when KAFKA_BROKERS is set")
	}
	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
