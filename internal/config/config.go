package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Task dispatch modes.
const (
	TaskModeLocal = "local"
	TaskModeHTTP  = "http"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer      string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL     string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience    string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey  string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
	AnthropicAPIKey string        `mapstructure:"ANTHROPIC_API_KEY"`
	LLMModel        string        `mapstructure:"LLM_MODEL"`
	LLMMaxTokens    int64         `mapstructure:"LLM_MAX_TOKENS"`
	LLMTimeout      time.Duration `mapstructure:"LLM_TIMEOUT"`
	TaskMode        string        `mapstructure:"TASK_MODE"`
	TaskWorkers     int           `mapstructure:"TASK_WORKERS"`
	TaskQueueSize   int           `mapstructure:"TASK_QUEUE_SIZE"`
	BackendURL      string        `mapstructure:"BACKEND_URL"`
	TaskSigningKey  string        `mapstructure:"TASK_SIGNING_SECRET"`
	AlertRecipients []string      `mapstructure:"ALERT_RECIPIENTS"`
	NotifyFrom      string        `mapstructure:"NOTIFY_FROM"`
	ReportInterval  time.Duration `mapstructure:"REPORT_SCHEDULER_INTERVAL"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"ANTHROPIC_API_KEY", "LLM_MODEL", "LLM_MAX_TOKENS", "LLM_TIMEOUT",
	"TASK_MODE", "TASK_WORKERS", "TASK_QUEUE_SIZE", "BACKEND_URL",
	"TASK_SIGNING_SECRET", "ALERT_RECIPIENTS", "NOTIFY_FROM",
	"REPORT_SCHEDULER_INTERVAL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("LLM_MODEL", "claude-sonnet-4-5")
	v.SetDefault("LLM_MAX_TOKENS", 1024)
	v.SetDefault("LLM_TIMEOUT", "60s")
	v.SetDefault("TASK_MODE", TaskModeLocal)
	v.SetDefault("TASK_WORKERS", 4)
	v.SetDefault("TASK_QUEUE_SIZE", 100)
	v.SetDefault("BACKEND_URL", "http://localhost:8000")
	v.SetDefault("NOTIFY_FROM", "noreply@mednotes.local")
	v.SetDefault("REPORT_SCHEDULER_INTERVAL", "1m")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.AlertRecipients = splitList(cfg.AlertRecipients, v.GetString("ALERT_RECIPIENTS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// splitList normalizes a comma separated value, dropping blanks.
func splitList(parsed []string, raw string) []string {
	if len(parsed) == 0 && raw != "" {
		parsed = strings.Split(raw, ",")
	}
	var out []string
	for _, s := range parsed {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LLMEnabled reports whether an Anthropic key is configured.
func (c *Config) LLMEnabled() bool {
	return c.AnthropicAPIKey != ""
}

// Validate checks that the configuration is safe to run. Outside
// development either AUTH_ISSUER with a JWKS URL or AUTH_SIGNING_KEY must
// be set so that real JWT authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" && (c.AuthIssuer == "" || c.AuthJWKSURL == "") {
		return fmt.Errorf(
			"AUTH_ISSUER and AUTH_JWKS_URL, or AUTH_SIGNING_KEY, must be set when ENV=%q. "+
				"Refusing to start without authentication configuration", c.Env)
	}

	switch c.TaskMode {
	case TaskModeLocal:
		if c.TaskWorkers < 1 {
			return fmt.Errorf("TASK_WORKERS must be at least 1, got %d", c.TaskWorkers)
		}
		if c.TaskQueueSize < 1 {
			return fmt.Errorf("TASK_QUEUE_SIZE must be at least 1, got %d", c.TaskQueueSize)
		}
	case TaskModeHTTP:
		if c.BackendURL == "" {
			return fmt.Errorf("BACKEND_URL is required when TASK_MODE is %q", TaskModeHTTP)
		}
		if c.TaskSigningKey == "" {
			return fmt.Errorf("TASK_SIGNING_SECRET is required when TASK_MODE is %q", TaskModeHTTP)
		}
	default:
		return fmt.Errorf("TASK_MODE must be %q or %q, got %q", TaskModeLocal, TaskModeHTTP, c.TaskMode)
	}

	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %v", c.RateLimitRPS)
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("REPORT_SCHEDULER_INTERVAL must be positive, got %s", c.ReportInterval)
	}

	return nil
}
