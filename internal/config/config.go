package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileEnv names an optional YAML file whose values sit under the environment.
const FileEnv = "PAYSYNC_CONFIG"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	APIURL         string
	APITimeout     time.Duration
	PaymentTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	AppURL         string
	Port           string
	StoreDSN       string
	AccessTokenKey string
	LogLevel       slog.Level
	Env            string
}

// keys maps each setting to the environment variables that can supply it.
var keys = map[string][]string{
	"api_url":          {"API_URL", "NEXT_PUBLIC_API_URL"},
	"api_timeout":      {"API_TIMEOUT"},
	"payment_timeout":  {"PAYMENT_TIMEOUT"},
	"retry_attempts":   {"RETRY_ATTEMPTS"},
	"retry_delay":      {"RETRY_DELAY"},
	"app_url":          {"APP_URL", "NEXT_PUBLIC_APP_URL"},
	"server_port":      {"SERVER_PORT"},
	"store_dsn":        {"STORE_DSN"},
	"access_token_key": {"ACCESS_TOKEN_KEY"},
	"log_level":        {"LOG_LEVEL"},
	"environment":      {"ENVIRONMENT"},
}

func defaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:3001")
	v.SetDefault("api_timeout", "10s")
	v.SetDefault("payment_timeout", "30s")
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("retry_delay", "1s")
	v.SetDefault("app_url", "https://starling-pay.com")
	v.SetDefault("server_port", "8080")
	v.SetDefault("store_dsn", "")
	v.SetDefault("access_token_key", "starling_access_token")
	v.SetDefault("log_level", "info")
	v.SetDefault("environment", "development")
}

// Load reads defaults, then the optional file named by PAYSYNC_CONFIG, then
// the environment.
func Load() (*Config, error) {
	v := viper.New()
	defaults(v)

	for key, envs := range keys {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path := os.Getenv(FileEnv); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}

	var durations [3]time.Duration
	for i, key := range []string{"api_timeout", "payment_timeout", "retry_delay"} {
		d, err := duration(v, key)
		if err != nil {
			return nil, err
		}
		durations[i] = d
	}

	cfg := &Config{
		APIURL:         strings.TrimRight(v.GetString("api_url"), "/"),
		APITimeout:     durations[0],
		PaymentTimeout: durations[1],
		RetryAttempts:  v.GetInt("retry_attempts"),
		RetryDelay:     durations[2],
		AppURL:         strings.TrimRight(v.GetString("app_url"), "/"),
		Port:           v.GetString("server_port"),
		StoreDSN:       v.GetString("store_dsn"),
		AccessTokenKey: v.GetString("access_token_key"),
		LogLevel:       level,
		Env:            v.GetString("environment"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// duration reads a Go duration string such as "250ms" or "10s". A bare
// integer is taken as milliseconds.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	return d, nil
}

func (c *Config) Validate() error {
	for name, raw := range map[string]string{"api_url": c.APIURL, "app_url": c.AppURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s must be an absolute URL, got %q", ErrInvalid, name, raw)
		}
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("%w: retry_attempts must be at least 1", ErrInvalid)
	}
	if c.APITimeout <= 0 || c.PaymentTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalid)
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("%w: retry_delay must be positive", ErrInvalid)
	}
	if c.Port == "" {
		return fmt.Errorf("%w: server_port is required", ErrInvalid)
	}
	return nil
}
