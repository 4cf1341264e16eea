package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Backends de sesion soportados.
const (
	SessionBackendPostgres = "postgres"
	SessionBackendRedis    = "redis"
	SessionBackendMemory   = "memory"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	AppEnv        string `env:"APP_ENV" envDefault:"production"`
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	SessionBackend       string        `env:"SESSION_BACKEND" envDefault:"postgres"`
	SessionTTLSeconds    int           `env:"SESSION_TTL_SECONDS" envDefault:"86400"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`
	PasswordHasher       string        `env:"PASSWORD_HASHER" envDefault:"argon2id"`
	BcryptCost           int           `env:"BCRYPT_COST" envDefault:"12"`
	TokenBytes           int           `env:"TOKEN_BYTES" envDefault:"32"`
	JWTSecret            string        `env:"JWT_SECRET,required,notEmpty"`
	MfaIssuer            string        `env:"MFA_ISSUER" envDefault:"authsuite"`
	FailedLoginWindow    time.Duration `env:"FAILED_LOGIN_WINDOW" envDefault:"15m"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string `env:"GOOGLE_REDIRECT_URI"`
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURI  string `env:"GITHUB_REDIRECT_URI"`
	MsalClientID       string `env:"MSAL_CLIENT_ID"`
	MsalClientSecret   string `env:"MSAL_CLIENT_SECRET"`
	MsalRedirectURI    string `env:"MSAL_REDIRECT_URI"`
	MsalTenantID       string `env:"MSAL_TENANT_ID" envDefault:"common"`
	MsalTrustEmail     bool   `env:"MSAL_TRUST_EMAIL" envDefault:"false"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rechaza valores fuera de rango que env no puede expresar.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.SessionBackend) {
	case SessionBackendPostgres, SessionBackendMemory:
	case SessionBackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("SESSION_BACKEND=redis requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend))
	}
	switch strings.ToLower(c.PasswordHasher) {
	case "argon2id", "bcrypt":
	default:
		errs = append(errs, fmt.Errorf("unknown PASSWORD_HASHER %q", c.PasswordHasher))
	}
	if c.SessionTTLSeconds <= 0 {
		errs = append(errs, errors.New("SESSION_TTL_SECONDS must be positive"))
	}
	if c.SessionSweepInterval <= 0 {
		errs = append(errs, errors.New("SESSION_SWEEP_INTERVAL must be positive"))
	}
	if c.TokenBytes < 16 {
		errs = append(errs, errors.New("TOKEN_BYTES must be at least 16"))
	}
	if c.FailedLoginWindow <= 0 {
		errs = append(errs, errors.New("FAILED_LOGIN_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

func (c *Config) GoogleEnabled() bool { return c.GoogleClientID != "" && c.GoogleClientSecret != "" }
func (c *Config) GitHubEnabled() bool { return c.GitHubClientID != "" && c.GitHubClientSecret != "" }
func (c *Config) MsalEnabled() bool   { return c.MsalClientID != "" && c.MsalClientSecret != "" }
