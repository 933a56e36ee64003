package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"hospops/internal/apiclient"
	"hospops/internal/ratelimit"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no path is given.
const DefaultPath = "configs/config.yaml"

// Environment overrides for the two API bases.
const (
	EnvReceptionBase = "HOSPOPS_RECEPTION_API_BASE"
	EnvAdminBase     = "HOSPOPS_ADMIN_API_BASE"
	EnvConfigPath    = "HOSPOPS_CONFIG_PATH"
)

// API is one backend origin.
type API struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RetryCount     int     `yaml:"retry_count"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
}

type Config struct {
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	ReceptionAPI API `yaml:"reception_api"`
	AdminAPI     API `yaml:"admin_api"`

	Cache struct {
		TTLSeconds    int `yaml:"ttl_seconds"`
		GuardWindowMS int `yaml:"guard_window_ms"`
	} `yaml:"cache"`

	Autocomplete struct {
		DebounceMS int `yaml:"debounce_ms"`
	} `yaml:"autocomplete"`

	Redis struct {
		Address        string `yaml:"address"`
		Password       string `yaml:"password"`
		DB             int    `yaml:"db"`
		RecheckSeconds int    `yaml:"recheck_seconds"`
	} `yaml:"redis"`

	Telegram struct {
		BotToken    string `yaml:"bot_token"`
		ChatID      int64  `yaml:"chat_id"`
		IncludeInfo bool   `yaml:"include_info"`
	} `yaml:"telegram"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Reminders struct {
		Enabled              bool `yaml:"enabled"`
		CheckIntervalMinutes int  `yaml:"check_interval_minutes"`
		LeadHours            int  `yaml:"lead_hours"`
	} `yaml:"reminders"`

	MockServer struct {
		Address string `yaml:"address"`
		Seed    bool   `yaml:"seed"`
	} `yaml:"mock_server"`
}

// Load reads .env (if present), then the YAML file with ${ENV} placeholders
// expanded, then applies environment overrides and defaults. A missing
// config file is not an error; defaults and the environment still apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultPath
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Support ${ENV_VAR} placeholders in YAML config.
		data = []byte(os.ExpandEnv(string(data)))
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	if v := os.Getenv(EnvReceptionBase); v != "" {
		cfg.ReceptionAPI.BaseURL = v
	}
	if v := os.Getenv(EnvAdminBase); v != "" {
		cfg.AdminAPI.BaseURL = v
	}
	cfg.applyDefaults()
	return &cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.MockServer.Address == "" {
		c.MockServer.Address = ":8080"
	}
	for _, api := range []*API{&c.ReceptionAPI, &c.AdminAPI} {
		api.BaseURL = strings.TrimRight(api.BaseURL, "/")
		if api.TimeoutSeconds <= 0 {
			api.TimeoutSeconds = 10
		}
	}
}

// Validate checks what cannot be defaulted.
func (c *Config) Validate() error {
	if c.ReceptionAPI.BaseURL == "" {
		return fmt.Errorf("reception_api.base_url is required (or set %s)", EnvReceptionBase)
	}
	if c.AdminAPI.BaseURL == "" {
		return fmt.Errorf("admin_api.base_url is required (or set %s)", EnvAdminBase)
	}
	if c.Reminders.Enabled && c.Telegram.BotToken == "" {
		return errors.New("reminders need telegram.bot_token")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required when bot_token is set")
	}
	return nil
}

func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func (c *Config) GuardWindow() time.Duration {
	if c.Cache.GuardWindowMS <= 0 {
		return ratelimit.DefaultWindow
	}
	return time.Duration(c.Cache.GuardWindowMS) * time.Millisecond
}

func (c *Config) Debounce() time.Duration {
	if c.Autocomplete.DebounceMS <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(c.Autocomplete.DebounceMS) * time.Millisecond
}

func (c *Config) RedisRecheck() time.Duration {
	if c.Redis.RecheckSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Redis.RecheckSeconds) * time.Second
}

// Client builds the apiclient configuration of one backend.
func (c *Config) Client(name string, api API) apiclient.Config {
	return apiclient.Config{
		Name:        name,
		BaseURL:     api.BaseURL,
		APIKey:      api.APIKey,
		Timeout:     time.Duration(api.TimeoutSeconds) * time.Second,
		CacheTTL:    c.CacheTTL(),
		GuardWindow: c.GuardWindow(),
		RetryCount:  api.RetryCount,
		Throttle:    ratelimit.ThrottleConfig{Rate: api.RatePerSecond, Burst: api.Burst},
	}
}
