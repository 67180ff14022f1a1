package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment names
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Audit sink backends
const (
	AuditBackendSlog     = "slog"
	AuditBackendPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Environment   string
	Server        ServerConfig
	Upstream      UpstreamConfig
	Session       SessionConfig
	Tenancy       TenancyConfig
	Cache         CacheConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// UpstreamConfig holds the admin API connection configuration
type UpstreamConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SessionConfig holds session token and cookie configuration
type SessionConfig struct {
	Secret     string
	CookieName string
	MaxAge     time.Duration
	UpdateAge  time.Duration
}

// TenancyConfig holds hostname resolution configuration
type TenancyConfig struct {
	RootDomain      string
	PreviewSuffix   string
	AdminPathPrefix string
	TenantPathSeg   string
}

// CacheConfig holds tenant record cache configuration
type CacheConfig struct {
	FreshTTL time.Duration
	StaleTTL time.Duration
}

// AuditConfig holds audit sink configuration
type AuditConfig struct {
	Backend  string // slog, postgres
	Database DatabaseConfig
}

// DatabaseConfig holds database configuration for the postgres audit sink
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", EnvDevelopment),
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "3000"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Upstream: UpstreamConfig{
			BaseURL: getEnv("UPSTREAM_BASE_URL", "http://localhost:3002"),
			Timeout: parseDuration("UPSTREAM_TIMEOUT", "10s"),
		},
		Session: SessionConfig{
			Secret:     getEnv("SESSION_SECRET", ""),
			CookieName: getEnv("SESSION_COOKIE_NAME", "classdeck_session"),
			MaxAge:     parseDuration("SESSION_MAX_AGE", "168h"),
			UpdateAge:  parseDuration("SESSION_UPDATE_AGE", "24h"),
		},
		Tenancy: TenancyConfig{
			RootDomain:      getEnv("ROOT_DOMAIN", "lvh.me:3000"),
			PreviewSuffix:   getEnv("PREVIEW_SUFFIX", "vercel.app"),
			AdminPathPrefix: getEnv("ADMIN_PATH_PREFIX", "/admin"),
			TenantPathSeg:   getEnv("TENANT_PATH_SEGMENT", "s"),
		},
		Cache: CacheConfig{
			FreshTTL: parseDuration("TENANT_CACHE_FRESH_TTL", "5m"),
			StaleTTL: parseDuration("TENANT_CACHE_STALE_TTL", "10m"),
		},
		Audit: AuditConfig{
			Backend: getEnv("AUDIT_BACKEND", AuditBackendSlog),
			Database: DatabaseConfig{
				Host:         getEnv("DB_HOST", "localhost"),
				Port:         getEnv("DB_PORT", "5432"),
				User:         getEnv("DB_USER", "classdeck"),
				Password:     getEnv("DB_PASSWORD", ""),
				Database:     getEnv("DB_NAME", "classdeck"),
				SSLMode:      getEnv("DB_SSLMODE", "disable"),
				MaxOpenConns: parseInt("DB_MAX_OPEN_CONNS", 25),
				MaxIdleConns: parseInt("DB_MAX_IDLE_CONNS", 5),
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "classdeck-gateway"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 20)),
			Burst:             parseInt("RATELIMIT_BURST", 40),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return fmt.Errorf("ENVIRONMENT must be %q or %q", EnvDevelopment, EnvProduction)
	}
	if c.Tenancy.RootDomain == "" {
		return fmt.Errorf("ROOT_DOMAIN is required")
	}
	if c.Audit.Backend != AuditBackendSlog && c.Audit.Backend != AuditBackendPostgres {
		return fmt.Errorf("AUDIT_BACKEND must be %q or %q", AuditBackendSlog, AuditBackendPostgres)
	}
	if c.Audit.Backend == AuditBackendPostgres && c.Audit.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required when AUDIT_BACKEND=postgres")
	}
	if c.Cache.StaleTTL < c.Cache.FreshTTL {
		return fmt.Errorf("TENANT_CACHE_STALE_TTL must not be shorter than TENANT_CACHE_FRESH_TTL")
	}
	return nil
}

// IsProduction reports whether the gateway runs in the production tier.
// Cookie security (Secure flag, __Secure- name prefix) keys off this.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Protocol returns the scheme used when building absolute tenant URLs.
func (c *Config) Protocol() string {
	if c.IsProduction() {
		return "https"
	}
	return "http"
}

// CookieDomain returns the parent domain the session cookie is scoped to.
// Scoping to the parent is what makes one login valid on every subdomain.
func (c *Config) CookieDomain() string {
	host := c.Tenancy.RootDomain
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return "." + host
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
