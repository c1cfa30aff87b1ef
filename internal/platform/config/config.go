package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// StoreDriver selects the backing data store.
type StoreDriver string

const (
	StoreDriverMemory   StoreDriver = "memory"
	StoreDriverPostgres StoreDriver = "postgres"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Server captures process level configuration.
type Server struct {
	Addr     string `env:"PORTAL_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StoreDriver StoreDriver `env:"STORE_DRIVER" envDefault:"memory"`
	Database    DatabaseConfig
	Redis       RedisConfig
	Session     SessionConfig
	Audit       AuditConfig
	Lockout     LockoutConfig
	Seed        SeedConfig
}

// DatabaseConfig configures the Postgres connection pool and the role that
// row-level security policies are written against.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	RLSRole         string        `env:"DB_RLS_ROLE" envDefault:"portal_app"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// RedisConfig configures the token revocation list backend. An empty URL
// keeps revocations in process memory.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// SessionConfig configures signed session tokens and their cookie.
type SessionConfig struct {
	SigningKey   string        `env:"SESSION_SIGNING_KEY"`
	TTL          time.Duration `env:"SESSION_TTL" envDefault:"8h"`
	Issuer       string        `env:"SESSION_ISSUER" envDefault:"incorp-portal"`
	CookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"portal_session"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
}

// AuditConfig configures where audit events go besides the log.
type AuditConfig struct {
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"portal.audit"`
	BufferSize   int      `env:"AUDIT_BUFFER_SIZE" envDefault:"256"`
}

// LockoutConfig throttles repeated sign-in failures for one email from one
// client address. Attempts of zero turns the lockout off.
type LockoutConfig struct {
	Attempts int           `env:"LOCKOUT_ATTEMPTS" envDefault:"5"`
	Window   time.Duration `env:"LOCKOUT_WINDOW" envDefault:"15m"`
	Duration time.Duration `env:"LOCKOUT_DURATION" envDefault:"15m"`
}

// SeedConfig optionally provisions an admin principal at startup.
type SeedConfig struct {
	AdminEmail    string `env:"SEED_ADMIN_EMAIL"`
	AdminPassword string `env:"SEED_ADMIN_PASSWORD"`
}

// Load reads an optional .env file and then the environment.
func Load() (Server, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Server{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Session.SigningKey == "" {
		// Development default; production deployments must override it.
		cfg.Session.SigningKey = devSigningKey
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// UsesDevSigningKey reports whether the built-in development key is active.
func (c Server) UsesDevSigningKey() bool {
	return c.Session.SigningKey == devSigningKey
}

func (c Server) validate() error {
	switch c.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.Session.TTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.Lockout.Attempts < 0 {
		return errors.New("LOCKOUT_ATTEMPTS must not be negative")
	}
	if c.Lockout.Attempts > 0 && (c.Lockout.Window <= 0 || c.Lockout.Duration <= 0) {
		return errors.New("LOCKOUT_WINDOW and LOCKOUT_DURATION must be positive")
	}
	if (c.Seed.AdminEmail == "") != (c.Seed.AdminPassword == "") {
		return errors.New("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD must be set together")
	}
	return nil
}
