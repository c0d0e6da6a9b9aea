package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000"`

	// Database
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"ers"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// Sessions
	JWTSecret     string        `env:"JWT_SECRET"`
	JWTTTL        time.Duration `env:"JWT_TTL" envDefault:"168h"`
	CookieSecure  bool          `env:"COOKIE_SECURE"`
	BcryptCost    int           `env:"BCRYPT_COST" envDefault:"10"`
	LoginRedirect string        `env:"LOGIN_REDIRECT" envDefault:"/dashboard"`

	// Google OAuth
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8080/auth/google/callback"`

	// Sign in with Apple
	AppleClientIDs []string `env:"APPLE_CLIENT_IDS" envSeparator:","`
	AppleJWKSURL   string   `env:"APPLE_JWKS_URL" envDefault:"https://appleid.apple.com/auth/keys"`

	// Redis (OAuth state); disabled when the address is empty
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// RabbitMQ (auth events); disabled when the URL is empty
	AMQPURL         string `env:"AMQP_URL"`
	AuthEventsQueue string `env:"AUTH_EVENTS_QUEUE" envDefault:"auth.events"`

	// Observability
	LogRetention time.Duration `env:"LOG_RETENTION" envDefault:"720h"`
	SentryDSN    string        `env:"SENTRY_DSN"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if c.DBPassword == "" {
		return errors.New("DB_PASSWORD environment variable is required")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SecureCookies is forced on in production.
func (c *Config) SecureCookies() bool {
	return c.CookieSecure || c.IsProduction()
}

func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func (c *Config) AppleEnabled() bool {
	return len(c.AppleClientIDs) > 0
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}
