// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/synera-br/splennet-backend/internal/firebase"
	"github.com/synera-br/splennet-backend/internal/notify"
)

// Store drivers.
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Port            string            `mapstructure:"port"`
	GinMode         string            `mapstructure:"gin_mode"`
	ClientURL       string            `mapstructure:"client_url"`
	PlanCatalogPath string            `mapstructure:"plan_catalog_path"`
	Store           StoreConfig       `mapstructure:"store"`
	Firebase        firebase.Config   `mapstructure:"firebase"`
	LLM             LLMConfig         `mapstructure:"llm"`
	RateLimit       RateLimitConfig   `mapstructure:"rate_limit"`
	Redis           RedisConfig       `mapstructure:"redis"`
	Stripe          StripeConfig      `mapstructure:"stripe"`
	AMQP            AMQPConfig        `mapstructure:"amqp"`
	SMTP            notify.SMTPConfig `mapstructure:"smtp"`
	Scheduler       SchedulerConfig   `mapstructure:"scheduler"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// LLMConfig selects the text generation provider. When both API keys are set the
// provider that is not selected is used as a fallback.
type LLMConfig struct {
	Provider          string  `mapstructure:"provider"`
	OpenAIAPIKey      string  `mapstructure:"openai_api_key"`
	OpenAIModel       string  `mapstructure:"openai_model"`
	OpenAIBaseURL     string  `mapstructure:"openai_base_url"`
	GeminiAPIKey      string  `mapstructure:"gemini_api_key"`
	GeminiModel       string  `mapstructure:"gemini_model"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RateLimitConfig configures the per-user generation limit.
type RateLimitConfig struct {
	Backend string        `mapstructure:"backend"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// RedisConfig is used by the redis rate limit backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StripeConfig holds the payment provider keys. Price IDs override the plan catalog.
type StripeConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	MonthlyPriceID string `mapstructure:"monthly_price_id"`
	YearlyPriceID  string `mapstructure:"yearly_price_id"`
}

// AMQPConfig points at the notification broker. Notifications are sent inline when URL is empty.
type AMQPConfig struct {
	URL string `mapstructure:"url"`
}

// SchedulerConfig configures the background jobs of the server.
type SchedulerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	ReminderSchedule string `mapstructure:"reminder_schedule"`
}

var defaults = map[string]interface{}{
	"port":                             "8080",
	"gin_mode":                         "debug",
	"client_url":                       "",
	"plan_catalog_path":                "",
	"store.driver":                     StoreFirestore,
	"store.postgres_dsn":               "",
	"store.auto_migrate":               true,
	"firebase.project_id":              "",
	"firebase.credentials_file":        "",
	"firebase.credentials_json_base64": "",
	"llm.provider":                     "openai",
	"llm.openai_api_key":               "",
	"llm.openai_model":                 "",
	"llm.openai_base_url":              "",
	"llm.gemini_api_key":               "",
	"llm.gemini_model":                 "",
	"llm.requests_per_second":          2.0,
	"llm.burst":                        4,
	"rate_limit.backend":               "memory",
	"rate_limit.limit":                 5,
	"rate_limit.window":                time.Minute,
	"redis.addr":                       "",
	"redis.password":                   "",
	"redis.db":                         0,
	"stripe.secret_key":                "",
	"stripe.webhook_secret":            "",
	"stripe.monthly_price_id":          "",
	"stripe.yearly_price_id":           "",
	"amqp.url":                         "",
	"smtp.host":                        "",
	"smtp.port":                        587,
	"smtp.username":                    "",
	"smtp.password":                    "",
	"smtp.from":                        "",
	"scheduler.enabled":                true,
	"scheduler.reminder_schedule":      "0 9 * * *",
}

// Environment variable names kept from earlier deployments, in addition to the derived
// names (store.postgres_dsn reads STORE_POSTGRES_DSN).
var aliases = map[string][]string{
	"firebase.credentials_file":        {"GOOGLE_APPLICATION_CREDENTIALS"},
	"firebase.credentials_json_base64": {"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"},
	"store.postgres_dsn":               {"DATABASE_URL"},
	"llm.openai_api_key":               {"OPENAI_API_KEY"},
	"llm.gemini_api_key":               {"GEMINI_API_KEY"},
	"amqp.url":                         {"RABBITMQ_URL"},
}

// Load reads the configuration from the environment. Outside release mode a .env file in
// the working directory is loaded first when present. Load does not validate; call
// Validate or ValidateNotifier for the binary being started.
func Load() (*Config, error) {
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
		envNames := append([]string{strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases[key]...)
		if err := v.BindEnv(append([]string{key}, envNames...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	cfg.RateLimit.Backend = strings.ToLower(cfg.RateLimit.Backend)
	return &cfg, nil
}

// Validate checks the settings required by the API server.
func (c *Config) Validate() error {
	var errs []error
	if c.ClientURL == "" {
		errs = append(errs, errors.New("CLIENT_URL is required"))
	}
	if c.Firebase.ProjectID == "" {
		errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required"))
	}

	switch c.Store.Driver {
	case StoreFirestore, StoreMemory:
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("STORE_POSTGRES_DSN is required when STORE_DRIVER is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER '%s'", c.Store.Driver))
	}

	switch c.LLM.Provider {
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("LLM_OPENAI_API_KEY is required when LLM_PROVIDER is openai"))
		}
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			errs = append(errs, errors.New("LLM_GEMINI_API_KEY is required when LLM_PROVIDER is gemini"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER '%s'", c.LLM.Provider))
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when RATE_LIMIT_BACKEND is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND '%s'", c.RateLimit.Backend))
	}
	if c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_LIMIT and RATE_LIMIT_WINDOW must be positive"))
	}

	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}
	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	return errors.Join(errs...)
}

// ValidateNotifier checks the settings required by the notification worker.
func (c *Config) ValidateNotifier() error {
	var errs []error
	if c.AMQP.URL == "" {
		errs = append(errs, errors.New("AMQP_URL is required"))
	}
	if c.SMTP.Host == "" || c.SMTP.From == "" {
		errs = append(errs, errors.New("SMTP_HOST and SMTP_FROM are required"))
	}
	if c.ClientURL == "" {
		errs = append(errs, errors.New("CLIENT_URL is required"))
	}
	return errors.Join(errs...)
}

// Release reports whether gin runs in release mode.
func (c *Config) Release() bool {
	return strings.EqualFold(c.GinMode, "release")
}
