package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"opsdeck"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"opsdeck"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"opsdeck"`

	// Redis (optional shared rate-limit counters)
	RedisURL           string `env:"REDIS_URL"`
	RateLimitBackend   string `env:"RATE_LIMIT_BACKEND" envDefault:"memory"` // memory | redis
	RateLimitSweepSecs int    `env:"RATE_LIMIT_SWEEP_SECONDS" envDefault:"60"`

	// Rate-limit tiers. Defaults are the fixed base budgets; operators
	// override per deployment instead of editing code.
	GeneralMaxRequests int `env:"RATE_GENERAL_MAX" envDefault:"100"`
	GeneralWindowSecs  int `env:"RATE_GENERAL_WINDOW_SECONDS" envDefault:"60"`
	AIMaxRequests      int `env:"RATE_AI_MAX" envDefault:"20"`
	AIWindowSecs       int `env:"RATE_AI_WINDOW_SECONDS" envDefault:"60"`
	AuthMaxRequests    int `env:"RATE_AUTH_MAX" envDefault:"5"`
	AuthWindowSecs     int `env:"RATE_AUTH_WINDOW_SECONDS" envDefault:"60"`

	// Global ingress throttle (requests/sec across all callers; 0 disables)
	IngressRPS   float64 `env:"INGRESS_RPS" envDefault:"0"`
	IngressBurst int     `env:"INGRESS_BURST" envDefault:"50"`

	// JWT
	JWTSecret string `env:"JWT_SECRET" envDefault:"change-me-in-production"`

	// Service API keys, comma-separated "id:role:bcrypt-hash" entries.
	ServiceAPIKeys string `env:"SERVICE_API_KEYS"`

	// Verifier call budget; a hung identity provider must not hang requests.
	VerifyTimeout time.Duration `env:"VERIFY_TIMEOUT" envDefault:"5s"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3100"`

	// Kafka audit mirror
	KafkaBrokers    string        `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled    bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	AuditTopic      string        `env:"AUDIT_TOPIC" envDefault:"security.audit"`
	AuditSinkBudget time.Duration `env:"AUDIT_WRITE_TIMEOUT" envDefault:"3s"`

	// Environment tag stamped on audit events; also controls error detail
	// exposure (development leaks raw messages, anything else does not).
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	if c.RateLimitBackend == "redis" && c.RedisURL == "" {
		return fmt.Errorf("RATE_LIMIT_BACKEND=redis requires REDIS_URL")
	}
	return nil
}

// DevMode reports whether the deployment runs with development error detail.
func (c *Config) DevMode() bool { return c.Environment == "development" }

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
