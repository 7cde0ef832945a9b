// Package config loads application configuration from file and
// environment, and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Search SearchConfig `yaml:"search" mapstructure:"search"`
	Render RenderConfig `yaml:"render" mapstructure:"render"`
	Assets AssetsConfig `yaml:"assets" mapstructure:"assets"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// FetchConfig configures the HTTP client used for portal traffic.
type FetchConfig struct {
	BaseURL       string   `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs   int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries       int      `yaml:"retries" mapstructure:"retries"`
	UserAgents    []string `yaml:"user_agents" mapstructure:"user_agents"`
	CookiesFile   string   `yaml:"cookies_file" mapstructure:"cookies_file"`
	Proxies       []string `yaml:"proxies" mapstructure:"proxies"`
	PerHostRPS    float64  `yaml:"per_host_rps" mapstructure:"per_host_rps"`
	Burst         int      `yaml:"burst" mapstructure:"burst"`
	MaxBodyBytes  int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// SearchConfig configures search pagination.
type SearchConfig struct {
	MaxResults    int `yaml:"max_results" mapstructure:"max_results"`
	MaxPages      int `yaml:"max_pages" mapstructure:"max_pages"`
	PageDelaySecs int `yaml:"page_delay_secs" mapstructure:"page_delay_secs"`
}

// RenderConfig configures the headless browser fallback.
type RenderConfig struct {
	Headless    bool `yaml:"headless" mapstructure:"headless"`
	TimeoutSecs int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	IdleMillis  int  `yaml:"idle_millis" mapstructure:"idle_millis"`
}

// AssetsConfig configures creative downloads.
type AssetsConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ADSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("fetch.base_url", "https://www.linkedin.com")
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("fetch.cookies_file", "cookies.json")
	v.SetDefault("fetch.per_host_rps", 1.0)
	v.SetDefault("fetch.burst", 2)
	v.SetDefault("search.max_results", 100)
	v.SetDefault("search.max_pages", 100)
	v.SetDefault("search.page_delay_secs", 2)
	v.SetDefault("render.headless", true)
	v.SetDefault("render.timeout_secs", 60)
	v.SetDefault("render.idle_millis", 2000)
	v.SetDefault("assets.dir", "downloaded_assets")
	v.SetDefault("assets.concurrency", 4)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "adscout.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
