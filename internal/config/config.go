package config

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// devSecret signs sessions in development when JWT_SECRET is unset. It is
// rejected in every other environment.
const devSecret = "fallback-secret-key-for-dev-only"

// Config holds application configuration
type Config struct {
	// Server
	Port              string `env:"PORT" envDefault:"8080"`
	Env               string `env:"ENV" envDefault:"development"`
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:5173"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	// Metrics scrape key; /metrics is open when empty
	MetricsAPIKey string `env:"METRICS_API_KEY"`

	// Database
	DBDriver     string        `env:"DB_DRIVER" envDefault:"postgres"`
	DBHost       string        `env:"DB_HOST" envDefault:"localhost"`
	DBPort       string        `env:"DB_PORT" envDefault:"5432"`
	DBUser       string        `env:"DB_USER" envDefault:"coffeeshop"`
	DBPassword   string        `env:"DB_PASSWORD" envDefault:"coffeeshop"`
	DBName       string        `env:"DB_NAME" envDefault:"coffeeshop"`
	DBSSLMode    string        `env:"DB_SSLMODE" envDefault:"disable"`
	DBSQLitePath string        `env:"DB_SQLITE_PATH" envDefault:"coffeeshop.db"`
	DBTimeout    time.Duration `env:"DB_TIMEOUT" envDefault:"5s"`

	// Session
	JWTSecret      string        `env:"JWT_SECRET"`
	JWTIssuer      string        `env:"JWT_ISSUER" envDefault:"coffeeshop-api"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	CookieSecure   bool          `env:"COOKIE_SECURE" envDefault:"false"`
	CookieSameSite string        `env:"COOKIE_SAMESITE"`

	// Lockout policy
	LockMaxAttempts int           `env:"LOCK_MAX_ATTEMPTS" envDefault:"5"`
	LockDuration    time.Duration `env:"LOCK_DURATION" envDefault:"15m"`
}

var (
	appConfig *Config
	mu        sync.Mutex
)

// Load loads configuration from the environment, reading an optional .env first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	mu.Lock()
	appConfig = cfg
	mu.Unlock()
	return cfg, nil
}

// Get returns the application configuration, loading it on first use.
func Get() *Config {
	mu.Lock()
	cfg := appConfig
	mu.Unlock()
	if cfg != nil {
		return cfg
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SameSite maps COOKIE_SAMESITE to an http.SameSite mode. Unset defaults to
// strict in production and lax elsewhere.
func (c *Config) SameSite() http.SameSite {
	switch strings.ToLower(c.CookieSameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	}
	if c.IsProduction() {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}

func (c *Config) validate() error {
	if c.Env == "development" {
		if c.JWTSecret == "" {
			c.JWTSecret = devSecret
		}
	} else if c.JWTSecret == "" || c.JWTSecret == devSecret {
		return fmt.Errorf("JWT_SECRET must be set when ENV=%s", c.Env)
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.LockMaxAttempts < 1 {
		return fmt.Errorf("LOCK_MAX_ATTEMPTS must be positive, got %d", c.LockMaxAttempts)
	}
	if c.LockDuration <= 0 {
		return fmt.Errorf("LOCK_DURATION must be positive, got %s", c.LockDuration)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	return nil
}
