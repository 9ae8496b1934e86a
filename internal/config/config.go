// Package config handles configuration loading for StockLeague.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	API         APIConfig         `mapstructure:"api"         yaml:"api"`
	Market      MarketConfig      `mapstructure:"market"      yaml:"market"`
	Mongo       MongoConfig       `mapstructure:"mongo"       yaml:"mongo"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard" yaml:"leaderboard"`
	News        NewsConfig        `mapstructure:"news"        yaml:"news"`
	Logging     LoggingConfig     `mapstructure:"logging"     yaml:"logging"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host           string   `mapstructure:"host"             yaml:"host"`
	Port           int      `mapstructure:"port"             yaml:"port"`
	CORSOrigins    []string `mapstructure:"cors_origins"     yaml:"cors_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"   yaml:"rate_limit_rps"` // per-client requests/second
	RateLimitBurst int      `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// MarketConfig holds market-data provider settings.
type MarketConfig struct {
	BaseURL          string `mapstructure:"base_url"           yaml:"base_url"`
	APIKey           string `mapstructure:"api_key"            yaml:"api_key"`
	TimeoutSec       int    `mapstructure:"timeout_sec"        yaml:"timeout_sec"`
	CurrentTTLSec    int    `mapstructure:"current_ttl_sec"    yaml:"current_ttl_sec"`    // live quote cache
	HistoricalTTLSec int    `mapstructure:"historical_ttl_sec" yaml:"historical_ttl_sec"` // past closes are immutable
	BatchSize        int    `mapstructure:"batch_size"         yaml:"batch_size"`         // max symbols per snapshot request
	BatchDelayMs     int    `mapstructure:"batch_delay_ms"     yaml:"batch_delay_ms"`     // pause between chunks
	RateLimit        int    `mapstructure:"rate_limit"         yaml:"rate_limit"`         // provider requests per window
	RateWindowSec    int    `mapstructure:"rate_window_sec"    yaml:"rate_window_sec"`
	QuotePushSec     int    `mapstructure:"quote_push_sec"     yaml:"quote_push_sec"` // websocket refresh period
}

// MongoConfig holds document store settings. An empty URI selects the
// in-memory store, which is useful for local development and tests.
type MongoConfig struct {
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// LeaderboardConfig holds tier threshold settings. Thresholds are inclusive
// lower bounds on return percentage; anything below B is tier C.
type LeaderboardConfig struct {
	TierS float64 `mapstructure:"tier_s" yaml:"tier_s"`
	TierA float64 `mapstructure:"tier_a" yaml:"tier_a"`
	TierB float64 `mapstructure:"tier_b" yaml:"tier_b"`
}

// NewsConfig holds RSS news feed settings.
type NewsConfig struct {
	Sources     []NewsSourceConfig `mapstructure:"sources"       yaml:"sources"`
	CacheTTLSec int                `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec"`
}

// NewsSourceConfig describes one RSS feed.
type NewsSourceConfig struct {
	Name   string `mapstructure:"name"    yaml:"name"`
	RSSURL string `mapstructure:"rss_url" yaml:"rss_url"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.stockleague/config.yaml (home directory)
//  3. /etc/stockleague/config.yaml (system)
//
// Environment variables override config file values.
// Format: STOCKLEAGUE_<SECTION>_<KEY>, e.g., STOCKLEAGUE_MARKET_API_KEY
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".stockleague"))
	v.AddConfigPath("/etc/stockleague")

	// Environment variable settings
	v.SetEnvPrefix("STOCKLEAGUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override sensitive values from environment
	overrideFromEnv(&cfg)

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("STOCKLEAGUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.rate_limit_rps", 20.0)
	v.SetDefault("api.rate_limit_burst", 40)

	// Market data defaults
	v.SetDefault("market.base_url", "https://api.polygon.io")
	v.SetDefault("market.timeout_sec", 10)
	v.SetDefault("market.current_ttl_sec", 60)        // live quotes
	v.SetDefault("market.historical_ttl_sec", 86400)  // past closes never change
	v.SetDefault("market.batch_size", 10)
	v.SetDefault("market.batch_delay_ms", 200)
	v.SetDefault("market.rate_limit", 5)
	v.SetDefault("market.rate_window_sec", 1)
	v.SetDefault("market.quote_push_sec", 30)

	// Mongo defaults (empty URI selects the in-memory store)
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "stockleague")
	v.SetDefault("mongo.collection", "portfolios")

	// Leaderboard tier defaults
	v.SetDefault("leaderboard.tier_s", 30.0)
	v.SetDefault("leaderboard.tier_a", 15.0)
	v.SetDefault("leaderboard.tier_b", 10.0)

	// News defaults
	v.SetDefault("news.cache_ttl_sec", 600)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("STOCKLEAGUE_MARKET_API_KEY"); key != "" {
		cfg.Market.APIKey = key
	}
	if uri := os.Getenv("STOCKLEAGUE_MONGO_URI"); uri != "" {
		cfg.Mongo.URI = uri
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
