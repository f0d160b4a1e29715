package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
	ConnectRetries  int
}

type AuthConfig struct {
	AccessSecret string
}

type BillingConfig struct {
	// CurrencyDecimals is the number of minor-unit digits dues are rounded to.
	CurrencyDecimals int32
}

type BookingConfig struct {
	// RequiresApproval is the policy assigned to newly created buildings.
	RequiresApproval bool
}

type NotifyConfig struct {
	Driver       string
	AMQPURL      string
	AMQPExchange string
	RedisURL     string
	RedisStream  string
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

type SweepConfig struct {
	Cron    string
	Timeout time.Duration
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Billing     BillingConfig
	Booking     BookingConfig
	Notify      NotifyConfig
	Sweep       SweepConfig
}

const (
	NotifyDriverLog   = "log"
	NotifyDriverAMQP  = "amqp"
	NotifyDriverRedis = "redis"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	v.SetDefault("BILLING_CURRENCY_DECIMALS", 0)
	v.SetDefault("DB_CONNECT_RETRIES", 5)
	v.SetDefault("OUTBOX_POLL_INTERVAL", "5s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 100)
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 10)
	v.SetDefault("SWEEP_CRON", "0 * * * *")
	v.SetDefault("SWEEP_TIMEOUT", "2m")

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
			ConnectRetries:  v.GetInt("DB_CONNECT_RETRIES"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Billing: BillingConfig{
			CurrencyDecimals: v.GetInt32("BILLING_CURRENCY_DECIMALS"),
		},
		Booking: BookingConfig{
			RequiresApproval: v.GetBool("BOOKING_REQUIRES_APPROVAL"),
		},
		Notify: NotifyConfig{
			Driver:       strings.ToLower(strings.TrimSpace(v.GetString("NOTIFY_DRIVER"))),
			AMQPURL:      v.GetString("AMQP_URL"),
			AMQPExchange: v.GetString("AMQP_EXCHANGE"),
			RedisURL:     v.GetString("REDIS_URL"),
			RedisStream:  v.GetString("REDIS_STREAM"),
			PollInterval: v.GetDuration("OUTBOX_POLL_INTERVAL"),
			BatchSize:    v.GetInt("OUTBOX_BATCH_SIZE"),
			MaxAttempts:  v.GetInt("OUTBOX_MAX_ATTEMPTS"),
		},
		Sweep: SweepConfig{
			Cron:    v.GetString("SWEEP_CRON"),
			Timeout: v.GetDuration("SWEEP_TIMEOUT"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}
	if cfg.Notify.Driver == "" {
		cfg.Notify.Driver = NotifyDriverLog
	}
	if cfg.Notify.AMQPExchange == "" {
		cfg.Notify.AMQPExchange = "condo.events"
	}
	if cfg.Notify.RedisStream == "" {
		cfg.Notify.RedisStream = "condo:events"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateAPI checks the settings only the HTTP service needs.
func (c *Config) ValidateAPI() error {
	if c.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Billing.CurrencyDecimals < 0 || cfg.Billing.CurrencyDecimals > 4 {
		return fmt.Errorf("BILLING_CURRENCY_DECIMALS must be between 0 and 4")
	}
	switch cfg.Notify.Driver {
	case NotifyDriverLog:
	case NotifyDriverAMQP:
		if cfg.Notify.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required for NOTIFY_DRIVER=amqp")
		}
	case NotifyDriverRedis:
		if cfg.Notify.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for NOTIFY_DRIVER=redis")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_DRIVER %q", cfg.Notify.Driver)
	}
	if cfg.Notify.BatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
