// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	AllowedOrigin  string        `yaml:"allowed_origin"` // CORS origin; "*" when empty
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres | sqlite
	URL      string `yaml:"url"`
	Path     string `yaml:"path"` // sqlite file
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty disables claims and rate limiting
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	OpenAIKey       string        `yaml:"openai_key"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	DefaultModel    string        `yaml:"default_model"`
	SpeakingModel   string        `yaml:"speaking_model"` // must accept audio
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	MaxInputTokens  int           `yaml:"max_input_tokens"` // writing submissions above this are rejected
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
	Timeout         time.Duration `yaml:"timeout"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"` // optional; signature checked only when set
	PriceMonthly  string `yaml:"price_monthly"`
	PriceYearly   string `yaml:"price_yearly"`
	PriceLifetime string `yaml:"price_lifetime"`
	FrontendURL   string `yaml:"frontend_url"`
}

type PaymentConfig struct {
	Stripe StripeConfig `yaml:"stripe"`
}

type LimitsConfig struct {
	AIRequestsPerMinute    int `yaml:"ai_requests_per_minute"`
	LoginRequestsPerMinute int `yaml:"login_requests_per_minute"` // per client address
}

type SchedulerConfig struct {
	ExpirySweepInterval time.Duration `yaml:"expiry_sweep_interval"` // 0 disables
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Payment   PaymentConfig   `yaml:"payment"`
	Limits    LimitsConfig    `yaml:"limits"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. A .env file next to the working
// directory is loaded first and ${VAR} references in the YAML are expanded.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load() // optional

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes raw YAML, applies defaults and validates.
func Parse(raw []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.Runtime.Dev = dev
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 3001
	}
	if cfg.HTTP.AllowedOrigin == "" {
		cfg.HTTP.AllowedOrigin = "*"
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 2 * time.Minute
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = 10 << 20 // speaking answers arrive base64-encoded
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 7 * 24 * time.Hour
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gemini-2.0-flash"
	}
	if cfg.AI.SpeakingModel == "" {
		cfg.AI.SpeakingModel = "gemini-2.0-flash"
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 2048
	}
	if cfg.AI.MaxInputTokens <= 0 {
		cfg.AI.MaxInputTokens = 4000
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 60 * time.Second
	}
	if cfg.Limits.AIRequestsPerMinute <= 0 {
		cfg.Limits.AIRequestsPerMinute = 10
	}
	if cfg.Limits.LoginRequestsPerMinute <= 0 {
		cfg.Limits.LoginRequestsPerMinute = 20
	}
}

func (cfg *Config) validate() error {
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.URL == "" {
			return errors.New("database.url is required")
		}
	case "sqlite":
		if cfg.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("database.driver %q not supported", cfg.Database.Driver)
	}
	if cfg.AI.GeminiKey == "" && cfg.AI.OpenAIKey == "" && !cfg.Runtime.Dev {
		return errors.New("ai.gemini_key or ai.openai_key is required")
	}
	return nil
}

// PaymentsEnabled reports whether a processor secret key is configured.
func (cfg *Config) PaymentsEnabled() bool { return cfg.Payment.Stripe.SecretKey != "" }
