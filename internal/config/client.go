package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig configures the CuraMind client kernel: where the backend lives
// and how aggressively the polling loops run.
type ClientConfig struct {
	APIURL             string        `mapstructure:"CURAMIND_API_URL"`
	StatusPollInterval time.Duration `mapstructure:"STATUS_POLL_INTERVAL"`
	QueuePollInterval  time.Duration `mapstructure:"QUEUE_POLL_INTERVAL"`
	ChatPollInterval   time.Duration `mapstructure:"CHAT_POLL_INTERVAL"`
	MaxPollDuration    time.Duration `mapstructure:"MAX_POLL_DURATION"`
	TriageCacheTTL     time.Duration `mapstructure:"TRIAGE_CACHE_TTL"`
	HTTPTimeout        time.Duration `mapstructure:"HTTP_TIMEOUT"`
	MaxRPS             float64       `mapstructure:"CLIENT_MAX_RPS"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
}

var clientKeys = []string{
	"CURAMIND_API_URL", "STATUS_POLL_INTERVAL", "QUEUE_POLL_INTERVAL",
	"CHAT_POLL_INTERVAL", "MAX_POLL_DURATION", "TRIAGE_CACHE_TTL",
	"HTTP_TIMEOUT", "CLIENT_MAX_RPS", "LOG_LEVEL",
}

// LoadClient reads the client configuration from the environment and an
// optional .env file.
func LoadClient() (*ClientConfig, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("CURAMIND_API_URL", "http://localhost:8000")
	v.SetDefault("STATUS_POLL_INTERVAL", "3s")
	v.SetDefault("QUEUE_POLL_INTERVAL", "5s")
	v.SetDefault("CHAT_POLL_INTERVAL", "2500ms")
	v.SetDefault("MAX_POLL_DURATION", "30m")
	v.SetDefault("TRIAGE_CACHE_TTL", "30m")
	v.SetDefault("HTTP_TIMEOUT", "10s")
	v.SetDefault("CLIENT_MAX_RPS", 10)
	v.SetDefault("LOG_LEVEL", "info")

	for _, key := range clientKeys {
		_ = v.BindEnv(key)
	}

	_ = v.ReadInConfig()

	cfg := &ClientConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal client config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CURAMIND_API_URL must be an absolute URL, got %q", c.APIURL)
	}
	for name, d := range map[string]time.Duration{
		"STATUS_POLL_INTERVAL": c.StatusPollInterval,
		"QUEUE_POLL_INTERVAL":  c.QueuePollInterval,
		"CHAT_POLL_INTERVAL":   c.ChatPollInterval,
		"HTTP_TIMEOUT":         c.HTTPTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.MaxPollDuration < 0 {
		return fmt.Errorf("MAX_POLL_DURATION must not be negative")
	}
	if c.MaxRPS < 0 {
		return fmt.Errorf("CLIENT_MAX_RPS must not be negative")
	}
	return nil
}
