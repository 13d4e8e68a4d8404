package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort     string        `mapstructure:"APP_PORT"`
	Env         string        `mapstructure:"ENV"`
	LogLevel    string        `mapstructure:"LOG_LEVEL"`
	StoreDriver string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL string        `mapstructure:"DATABASE_URL"`
	JWTSecret   string        `mapstructure:"JWT_SECRET"`
	JWTTTL      time.Duration `mapstructure:"JWT_TTL"`

	// Booking engine.
	GracePeriod        time.Duration `mapstructure:"GRACE_PERIOD"`
	SweepSchedule      string        `mapstructure:"SWEEP_SCHEDULE"`
	CompletionSchedule string        `mapstructure:"COMPLETION_SCHEDULE"`
	SweepBatchSize     int           `mapstructure:"SWEEP_BATCH_SIZE"`
	AllocationTimeout  time.Duration `mapstructure:"ALLOCATION_TIMEOUT"`
	AllocationRetries  int           `mapstructure:"ALLOCATION_RETRIES"`
	PriceTolerance     float64       `mapstructure:"PRICE_TOLERANCE"`
	DefaultPickupHour  int           `mapstructure:"DEFAULT_PICKUP_HOUR"`

	// Redis: calendar cache and notification queue.
	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword    string        `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB     int           `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB     int           `mapstructure:"REDIS_QUEUE_DB"`
	CalendarCacheTTL time.Duration `mapstructure:"CALENDAR_CACHE_TTL"`

	NotificationsEnabled bool     `mapstructure:"NOTIFICATIONS_ENABLED"`
	KafkaBrokers         []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic           string   `mapstructure:"KAFKA_TOPIC"`

	StripeKey           string `mapstructure:"STRIPE_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`

	SendgridAPIKey    string `mapstructure:"SENDGRID_API_KEY"`
	SendgridFromEmail string `mapstructure:"SENDGRID_FROM_EMAIL"`
	SendgridFromName  string `mapstructure:"SENDGRID_FROM_NAME"`

	TwilioAccountSID string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `mapstructure:"TWILIO_FROM_NUMBER"`

	RateLimitPerMin int      `mapstructure:"RATE_LIMIT_PER_MIN"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
}

var defaults = map[string]interface{}{
	"APP_PORT":              "8080",
	"ENV":                   "development",
	"LOG_LEVEL":             "info",
	"STORE_DRIVER":          "postgres",
	"DATABASE_URL":          "postgres://localhost:5432/fleetbook?sslmode=disable",
	"JWT_SECRET":            "",
	"JWT_TTL":               "1h",
	"GRACE_PERIOD":          "2h",
	"SWEEP_SCHEDULE":        "@every 5m",
	"COMPLETION_SCHEDULE":   "@hourly",
	"SWEEP_BATCH_SIZE":      50,
	"ALLOCATION_TIMEOUT":    "5s",
	"ALLOCATION_RETRIES":    3,
	"PRICE_TOLERANCE":       0.01,
	"DEFAULT_PICKUP_HOUR":   10,
	"REDIS_ADDR":            "",
	"REDIS_PASSWORD":        "",
	"REDIS_CACHE_DB":        0,
	"REDIS_QUEUE_DB":        1,
	"CALENDAR_CACHE_TTL":    "10m",
	"NOTIFICATIONS_ENABLED": true,
	"KAFKA_BROKERS":         "",
	"KAFKA_TOPIC":           "reservation-events",
	"STRIPE_KEY":            "",
	"STRIPE_WEBHOOK_SECRET": "",
	"SENDGRID_API_KEY":      "",
	"SENDGRID_FROM_EMAIL":   "",
	"SENDGRID_FROM_NAME":    "Fleetbook",
	"TWILIO_ACCOUNT_SID":    "",
	"TWILIO_AUTH_TOKEN":     "",
	"TWILIO_FROM_NUMBER":    "",
	"RATE_LIMIT_PER_MIN":    120,
	"CORS_ORIGINS":          "*",
}

// Load reads .env (if any), an optional config.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables only")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	cfg.CORSOrigins = compact(cfg.CORSOrigins)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("GRACE_PERIOD must not be negative")
	}
	if c.SweepBatchSize <= 0 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be positive")
	}
	if c.DefaultPickupHour < 0 || c.DefaultPickupHour > 23 {
		return fmt.Errorf("DEFAULT_PICKUP_HOUR must be between 0 and 23")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
