package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

type Config struct {
	Env            string `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort     int    `env:"SERVER_PORT" envDefault:"8080"`
	BasicAuthCreds string `env:"BASIC_AUTH_CREDS"`

	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`
	TickTimeout       time.Duration `env:"TICK_TIMEOUT" envDefault:"20s"`
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	NotifyConcurrency int           `env:"NOTIFY_CONCURRENCY" envDefault:"5"`

	Finnhub struct {
		APIKey   string `env:"FINNHUB_API_KEY"`
		BaseURL  string `env:"FINNHUB_BASE_URL" envDefault:"https://finnhub.io/api/v1"`
		Category string `env:"FINNHUB_CATEGORY" envDefault:"general"`
		MaxItems int    `env:"FINNHUB_MAX_ITEMS" envDefault:"3"`
	}

	Reddit struct {
		Enabled   bool   `env:"REDDIT_ENABLED" envDefault:"true"`
		BaseURL   string `env:"REDDIT_BASE_URL" envDefault:"https://www.reddit.com"`
		Subreddit string `env:"REDDIT_SUBREDDIT" envDefault:"wallstreetbets"`
		Query     string `env:"REDDIT_QUERY" envDefault:"flair:DD"`
		Limit     int    `env:"REDDIT_LIMIT" envDefault:"5"`
		UserAgent string `env:"REDDIT_USER_AGENT" envDefault:"tickerwatch/1.0"`
	}

	Database struct {
		Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
		DSN    string `env:"DATABASE_DSN" envDefault:"tickerwatch.sqlite"`
	}

	Redis struct {
		Addr     string        `env:"REDIS_ADDR"`
		Password string        `env:"REDIS_PASSWORD"`
		DB       int           `env:"REDIS_DB" envDefault:"0"`
		SeenTTL  time.Duration `env:"SEEN_TTL" envDefault:"72h"`
	}

	Discord struct {
		WebhookURL string `env:"DISCORD_WEBHOOK_URL"`
	}

	Mailgun struct {
		Domain      string `env:"MAILGUN_DOMAIN"`
		APIKey      string `env:"MAILGUN_API_KEY"`
		SenderFrom  string `env:"MAILGUN_SENDER" envDefault:"tickerwatch@localhost"`
		TimeoutSecs int    `env:"MAILGUN_TIMEOUT_SECS" envDefault:"10"`
		APIBase     string `env:"MAILGUN_API_BASE"` // e.g. https://api.eu.mailgun.net/v3
	}

	log   *zap.Logger
	creds map[string]string
}

// NewConfig reads the configuration from the environment.
func NewConfig(log *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	cfg.log = log

	creds, err := cfg.parseCreds()
	if err != nil {
		if cfg.Env != EnvProduction {
			log.Sugar().Infof("%s (credentials will be set to default outside production)", err)
			creds = map[string]string{"admin": "password"}
		} else {
			return nil, err
		}
	}
	cfg.creds = creds

	return cfg, nil
}

// Load parses and validates the environment without resolving credentials.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", cfg.ServerPort)
	}
	if cfg.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	if cfg.TickTimeout <= 0 {
		return errors.New("TICK_TIMEOUT must be positive")
	}
	if cfg.NotifyConcurrency <= 0 {
		return errors.New("NOTIFY_CONCURRENCY must be positive")
	}
	if cfg.Finnhub.MaxItems <= 0 {
		return errors.New("FINNHUB_MAX_ITEMS must be positive")
	}
	if cfg.Reddit.Limit <= 0 || cfg.Reddit.Limit > 100 {
		return fmt.Errorf("REDDIT_LIMIT must be between 1 and 100, got %d", cfg.Reddit.Limit)
	}
	switch cfg.Database.Driver {
	case DriverSQLite, DriverPostgres, DriverBolt:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be one of sqlite, postgres, bolt, got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return errors.New("DATABASE_DSN is required")
	}
	return nil
}

func (cfg *Config) IsProduction() bool {
	return cfg.Env == EnvProduction
}

func (cfg *Config) MailgunEnabled() bool {
	return cfg.Mailgun.Domain != "" && cfg.Mailgun.APIKey != ""
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

func (cfg *Config) parseCreds() (map[string]string, error) {
	if cfg.BasicAuthCreds == "" {
		return nil, errors.New("BASIC_AUTH_CREDS envvar must be populated")
	}

	creds := strings.Split(cfg.BasicAuthCreds, ",")
	if len(creds) == 0 {
		return nil, errors.New("BASIC_AUTH_CREDS envvar should be filled with comma-separated values -- user1:pass1,user2:pass2")
	}

	result := make(map[string]string)
	for _, cred := range creds {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
