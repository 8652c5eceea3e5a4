// Package config builds the process configuration from the environment so
// main stays lean. Secrets have no fallback values: a missing required
// variable is a startup error, never a silent insecure default.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// TenantCacheTTL bounds how long resolved tenants may be served from cache.
var TenantCacheTTL = 5 * time.Minute

// Config captures everything the server needs at startup.
type Config struct {
	Addr          string
	DatabaseURL   string
	JWTSecret     string
	HydraAdminURL string
	Redis         RedisConfig

	LogLevel string

	// AdminTokenTTL bounds back-office credentials; user TTLs apply to the
	// subject credential issued during the login challenge flow.
	AdminTokenTTL        time.Duration
	UserTokenTTL         time.Duration
	UserTokenRememberTTL time.Duration

	// ResolveInactiveTenants lets branding-only lookups resolve inactive
	// tenants for unauthenticated browser flows. Mutating operations never
	// honor it.
	ResolveInactiveTenants bool

	// LogoutSkipConfirm accepts logout challenges without rendering a
	// confirmation page.
	LogoutSkipConfirm bool
}

// RedisConfig holds optional cache settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv loads .env when present, then builds the config from environment
// variables. It returns an error for any missing required value so main can
// refuse to start.
func FromEnv() (Config, error) {
	// Ignore a missing .env; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		Addr:                   getEnv("PORTAL_ADDR", ":8080"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		HydraAdminURL:          getEnv("HYDRA_ADMIN_URL", "http://localhost:4445"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		AdminTokenTTL:          getDuration("ADMIN_TOKEN_TTL", 7*24*time.Hour),
		UserTokenTTL:           getDuration("USER_TOKEN_TTL", 30*24*time.Hour),
		UserTokenRememberTTL:   getDuration("USER_TOKEN_REMEMBER_TTL", 60*24*time.Hour),
		ResolveInactiveTenants: getBool("RESOLVE_INACTIVE_TENANTS", false),
		LogoutSkipConfirm:      getBool("LOGOUT_SKIP_CONFIRM", true),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the mandatory settings.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if len(c.JWTSecret) > 0 && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	if c.HydraAdminURL == "" {
		errs = append(errs, errors.New("HYDRA_ADMIN_URL cannot be empty"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: invalid duration for %s: %v, using default\n", key, err)
		return fallback
	}
	return d
}
