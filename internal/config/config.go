package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name      string `envconfig:"APP_NAME" default:"Roriri Cafe"`
		Port      int    `envconfig:"PORT" default:"8080"`
		LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
		LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
		// Comma-separated list of origins allowed to call the API.
		CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`
		DevMode     bool     `envconfig:"DEV_MODE" default:"false"`
	}

	DB struct {
		Driver     string `envconfig:"DB_DRIVER" default:"postgres"`
		Host       string `envconfig:"DB_HOST" default:"localhost"`
		Port       int    `envconfig:"DB_PORT" default:"5432"`
		User       string `envconfig:"DB_USER" default:"postgres"`
		Password   string `envconfig:"DB_PASSWORD" default:""`
		Name       string `envconfig:"DB_NAME" default:"canteen"`
		SSLMode    string `envconfig:"DB_SSLMODE" default:"disable"`
		SQLitePath string `envconfig:"DB_SQLITE_PATH" default:"canteen.db"`
		Migrate    bool   `envconfig:"DB_MIGRATE" default:"true"`
	}

	Server struct {
		Timeout         time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
		// Attempts for a balance operation whose transaction aborted.
		RetryAttempts int           `envconfig:"SERVER_RETRY_ATTEMPTS" default:"3"`
		RetryBackoff  time.Duration `envconfig:"SERVER_RETRY_BACKOFF" default:"50ms"`
	}

	Kiosk struct {
		RequireSession   bool          `envconfig:"KIOSK_REQUIRE_SESSION" default:"false"`
		SessionSecret    string        `envconfig:"KIOSK_SESSION_SECRET"`
		SessionTTL       time.Duration `envconfig:"KIOSK_SESSION_TTL" default:"10m"`
		PINMaxAttempts   int           `envconfig:"KIOSK_PIN_MAX_ATTEMPTS" default:"5"`
		PINLockout       time.Duration `envconfig:"KIOSK_PIN_LOCKOUT" default:"15m"`
		PINRatePerMinute int           `envconfig:"KIOSK_PIN_RATE_PER_MINUTE" default:"10"`
	}

	Redis struct {
		Addr     string `envconfig:"REDIS_ADDR"`
		Password string `envconfig:"REDIS_PASSWORD"`
		DB       int    `envconfig:"REDIS_DB" default:"0"`
	}

	Notify struct {
		// log or queue. queue requires Redis.
		Mode        string `envconfig:"NOTIFY_MODE" default:"log"`
		Concurrency int    `envconfig:"NOTIFY_CONCURRENCY" default:"5"`
	}

	SMTP struct {
		Host     string `envconfig:"SMTP_HOST"`
		Port     int    `envconfig:"SMTP_PORT" default:"587"`
		User     string `envconfig:"SMTP_USER"`
		Password string `envconfig:"SMTP_PASSWORD"`
		From     string `envconfig:"SMTP_FROM" default:"canteen@roriri.local"`
	}

	Kafka struct {
		Brokers []string `envconfig:"KAFKA_BROKERS"`
		Topic   string   `envconfig:"KAFKA_TOPIC" default:"canteen.ledger"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

// DSN returns what database.New expects for the configured driver.
func (c *Config) DSN() string {
	if c.DB.Driver == "sqlite" {
		return c.DB.SQLitePath
	}

	return c.ConnectionString()
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DB.Driver))
	}

	if c.Kiosk.RequireSession && c.Kiosk.SessionSecret == "" {
		errs = append(errs, errors.New("KIOSK_SESSION_SECRET is required when sessions are enabled"))
	}

	if c.Kiosk.PINMaxAttempts <= 0 {
		errs = append(errs, errors.New("KIOSK_PIN_MAX_ATTEMPTS must be positive"))
	}

	if c.Server.RetryAttempts <= 0 {
		errs = append(errs, errors.New("SERVER_RETRY_ATTEMPTS must be positive"))
	}

	switch strings.ToLower(c.Notify.Mode) {
	case "log":
	case "queue":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("NOTIFY_MODE=queue requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFY_MODE %q", c.Notify.Mode))
	}

	return errors.Join(errs...)
}
