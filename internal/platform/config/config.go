package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	pstrings "landtrust/pkg/platform/strings"
)

// Server captures process-wide configuration. It is loaded once in main and
// handed to constructors; nothing below main reads the environment.
type Server struct {
	Addr        string        `envconfig:"ADDR" default:":8080"`
	Env         string        `envconfig:"ENV" default:"development"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL string        `envconfig:"DATABASE_URL"`
	TxTimeout   time.Duration `envconfig:"TX_TIMEOUT" default:"5s"`
	CORSOrigins string        `envconfig:"CORS_ORIGINS"`

	// AdminEmails is the comma-separated staff allowlist.
	AdminEmails string `envconfig:"ADMIN_EMAILS"`
	SignInURL   string `envconfig:"SIGN_IN_URL" default:"/sign-in"`

	// ApplicantRequestsPerMinute caps signed-in applicant requests per user.
	ApplicantRequestsPerMinute int `envconfig:"APPLICANT_REQUESTS_PER_MINUTE" default:"60"`

	// Sub-configs share the flat LANDTRUST_ namespace; FromEnv loads each one
	// separately because envconfig would otherwise prefix their keys with the
	// field name (LANDTRUST_AUTH_JWT_SECRET).
	Auth     AuthConfig     `ignored:"true"`
	Redis    RedisConfig    `ignored:"true"`
	Blob     BlobConfig     `ignored:"true"`
	Settings SettingsConfig `ignored:"true"`
}

// AuthConfig selects how bearer tokens are verified. OIDC wins when an
// issuer is configured; JWTSecret enables HS256 tokens for local development.
type AuthConfig struct {
	IssuerURL string `envconfig:"OIDC_ISSUER_URL"`
	ClientID  string `envconfig:"OIDC_CLIENT_ID"`
	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"landtrust-dev"`
}

func (a AuthConfig) OIDCEnabled() bool {
	return a.IssuerURL != ""
}

type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"2s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"1s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"1s"`
}

// BlobConfig points at an S3-compatible bucket. When Bucket is empty uploads
// are kept in memory, which only suits local development.
type BlobConfig struct {
	Bucket        string `envconfig:"S3_BUCKET"`
	Region        string `envconfig:"S3_REGION" default:"us-east-1"`
	Endpoint      string `envconfig:"S3_ENDPOINT"`
	AccessKeyID   string `envconfig:"S3_ACCESS_KEY_ID"`
	SecretKey     string `envconfig:"S3_SECRET_ACCESS_KEY"`
	PublicBaseURL string `envconfig:"S3_PUBLIC_BASE_URL"`
	MaxUploadMB   int64  `envconfig:"MAX_UPLOAD_MB" default:"15"`

	// Uploads fail fast after BreakerFailures consecutive errors and probe
	// again every BreakerCooldown.
	BreakerFailures int           `envconfig:"S3_BREAKER_FAILURES" default:"5"`
	BreakerCooldown time.Duration `envconfig:"S3_BREAKER_COOLDOWN" default:"30s"`
}

type SettingsConfig struct {
	CacheTTL time.Duration `envconfig:"SETTINGS_CACHE_TTL" default:"30s"`
}

const envPrefix = "LANDTRUST"

// FromEnv loads configuration from LANDTRUST_* environment variables.
func FromEnv() (Server, error) {
	var cfg Server
	for _, spec := range []any{&cfg, &cfg.Auth, &cfg.Redis, &cfg.Blob, &cfg.Settings} {
		if err := envconfig.Process(envPrefix, spec); err != nil {
			return Server{}, fmt.Errorf("process environment: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Server) Validate() error {
	if c.IsProduction() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("%s_DATABASE_URL is required in production", envPrefix)
		}
		if !c.Auth.OIDCEnabled() {
			return fmt.Errorf("%s_OIDC_ISSUER_URL is required in production", envPrefix)
		}
	}
	if c.Auth.OIDCEnabled() && c.Auth.ClientID == "" {
		return fmt.Errorf("%s_OIDC_CLIENT_ID is required when an issuer is set", envPrefix)
	}
	if !c.Auth.OIDCEnabled() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("either %s_OIDC_ISSUER_URL or %s_JWT_SECRET must be set", envPrefix, envPrefix)
	}
	if c.ApplicantRequestsPerMinute <= 0 {
		return fmt.Errorf("%s_APPLICANT_REQUESTS_PER_MINUTE must be positive", envPrefix)
	}
	if c.Blob.MaxUploadMB <= 0 {
		return fmt.Errorf("%s_MAX_UPLOAD_MB must be positive", envPrefix)
	}
	return nil
}

// AdminAllowlist returns the normalized staff allowlist.
func (c Server) AdminAllowlist() []string {
	return pstrings.SplitCSVLower(c.AdminEmails)
}

// AllowedOrigins returns the CORS origins; empty disables CORS handling.
func (c Server) AllowedOrigins() []string {
	return pstrings.SplitCSV(c.CORSOrigins)
}

func (c Server) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SlogLevel maps LogLevel to an slog.Level.
func (c Server) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
