package config

import (
	"os"
	"path/filepath"
	"testing"
)

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	// Unset any env vars that would interfere
	os.Unsetenv("STOCKLEAGUE_MARKET_API_KEY")
	os.Unsetenv("STOCKLEAGUE_MONGO_URI")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// API defaults
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host: got %q, want %q", cfg.API.Host, "0.0.0.0")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port: got %d, want 8080", cfg.API.Port)
	}
	if cfg.API.RateLimitRPS != 20.0 {
		t.Errorf("API.RateLimitRPS: got %f, want 20.0", cfg.API.RateLimitRPS)
	}
	if cfg.API.RateLimitBurst != 40 {
		t.Errorf("API.RateLimitBurst: got %d, want 40", cfg.API.RateLimitBurst)
	}

	// Market defaults
	if cfg.Market.BaseURL != "https://api.polygon.io" {
		t.Errorf("Market.BaseURL: got %q", cfg.Market.BaseURL)
	}
	if cfg.Market.CurrentTTLSec != 60 {
		t.Errorf("Market.CurrentTTLSec: got %d, want 60", cfg.Market.CurrentTTLSec)
	}
	if cfg.Market.HistoricalTTLSec != 86400 {
		t.Errorf("Market.HistoricalTTLSec: got %d, want 86400", cfg.Market.HistoricalTTLSec)
	}
	if cfg.Market.BatchSize != 10 {
		t.Errorf("Market.BatchSize: got %d, want 10", cfg.Market.BatchSize)
	}
	if cfg.Market.BatchDelayMs != 200 {
		t.Errorf("Market.BatchDelayMs: got %d, want 200", cfg.Market.BatchDelayMs)
	}
	if cfg.Market.RateLimit != 5 {
		t.Errorf("Market.RateLimit: got %d, want 5", cfg.Market.RateLimit)
	}

	// Mongo defaults
	if cfg.Mongo.URI != "" {
		t.Errorf("Mongo.URI: got %q, want empty (in-memory store)", cfg.Mongo.URI)
	}
	if cfg.Mongo.Database != "stockleague" {
		t.Errorf("Mongo.Database: got %q, want %q", cfg.Mongo.Database, "stockleague")
	}
	if cfg.Mongo.Collection != "portfolios" {
		t.Errorf("Mongo.Collection: got %q, want %q", cfg.Mongo.Collection, "portfolios")
	}

	// Leaderboard tier defaults
	if cfg.Leaderboard.TierS != 30.0 {
		t.Errorf("Leaderboard.TierS: got %f, want 30.0", cfg.Leaderboard.TierS)
	}
	if cfg.Leaderboard.TierA != 15.0 {
		t.Errorf("Leaderboard.TierA: got %f, want 15.0", cfg.Leaderboard.TierA)
	}
	if cfg.Leaderboard.TierB != 10.0 {
		t.Errorf("Leaderboard.TierB: got %f, want 10.0", cfg.Leaderboard.TierB)
	}

	// News defaults
	if cfg.News.CacheTTLSec != 600 {
		t.Errorf("News.CacheTTLSec: got %d, want 600", cfg.News.CacheTTLSec)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "text")
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	// Create a temp config file
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "test_config.yaml")
	content := []byte(`
api:
  port: 9090
market:
  base_url: "https://example.test"
  api_key: "pk_test_1234567890abcdef"
  batch_size: 25
  current_ttl_sec: 30
leaderboard:
  tier_s: 40.0
  tier_a: 30.0
  tier_b: 20.0
news:
  sources:
    - name: "Example Feed"
      rss_url: "https://example.test/rss"
logging:
  level: "debug"
  format: "json"
`)
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	os.Unsetenv("STOCKLEAGUE_MARKET_API_KEY")
	os.Unsetenv("STOCKLEAGUE_MONGO_URI")

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	if cfg.Market.BaseURL != "https://example.test" {
		t.Errorf("Market.BaseURL: got %q", cfg.Market.BaseURL)
	}
	if cfg.Market.APIKey != "pk_test_1234567890abcdef" {
		t.Errorf("Market.APIKey: got %q", cfg.Market.APIKey)
	}
	if cfg.Market.BatchSize != 25 {
		t.Errorf("Market.BatchSize: got %d, want 25", cfg.Market.BatchSize)
	}
	if cfg.Market.CurrentTTLSec != 30 {
		t.Errorf("Market.CurrentTTLSec: got %d, want 30", cfg.Market.CurrentTTLSec)
	}
	// The alternate tier scheme can be selected purely through config.
	if cfg.Leaderboard.TierS != 40.0 {
		t.Errorf("Leaderboard.TierS: got %f, want 40.0", cfg.Leaderboard.TierS)
	}
	if len(cfg.News.Sources) != 1 || cfg.News.Sources[0].Name != "Example Feed" {
		t.Errorf("News.Sources: got %+v", cfg.News.Sources)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "json")
	}
	// Unset keys keep their defaults.
	if cfg.Market.BatchDelayMs != 200 {
		t.Errorf("Market.BatchDelayMs: got %d, want default 200", cfg.Market.BatchDelayMs)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("LoadFromFile() with nonexistent path should return error")
	}
}

// ── overrideFromEnv ──

func TestOverrideFromEnv(t *testing.T) {
	cfg := &Config{}

	os.Setenv("STOCKLEAGUE_MARKET_API_KEY", "pk_env_key_123456")
	os.Setenv("STOCKLEAGUE_MONGO_URI", "mongodb://localhost:27017")
	defer func() {
		os.Unsetenv("STOCKLEAGUE_MARKET_API_KEY")
		os.Unsetenv("STOCKLEAGUE_MONGO_URI")
	}()

	overrideFromEnv(cfg)

	if cfg.Market.APIKey != "pk_env_key_123456" {
		t.Errorf("Market.APIKey: got %q", cfg.Market.APIKey)
	}
	if cfg.Mongo.URI != "mongodb://localhost:27017" {
		t.Errorf("Mongo.URI: got %q", cfg.Mongo.URI)
	}
}

func TestOverrideFromEnvNoEnvSet(t *testing.T) {
	os.Unsetenv("STOCKLEAGUE_MARKET_API_KEY")
	os.Unsetenv("STOCKLEAGUE_MONGO_URI")

	cfg := &Config{
		Market: MarketConfig{APIKey: "from-config"},
	}
	overrideFromEnv(cfg)

	// Should retain the original value when env is not set
	if cfg.Market.APIKey != "from-config" {
		t.Errorf("Market.APIKey should stay as 'from-config' when env is unset, got %q", cfg.Market.APIKey)
	}
}

// ── maskKey ──

func TestMaskKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "***"},
		{"abcd", "***"},
		{"12345678", "***"},
		{"123456789", "123...789"},
		{"pk_abcdef1234567890xyz", "pk_...xyz"},
	}
	for _, tc := range tests {
		got := maskKey(tc.input)
		if got != tc.want {
			t.Errorf("maskKey(%q): got %q, want %q", tc.input, got, tc.want)
		}
	}
}

// ── CheckAPIKeys / checkKey ──

func TestCheckAPIKeysAllEmpty(t *testing.T) {
	os.Unsetenv("STOCKLEAGUE_MARKET_API_KEY")
	os.Unsetenv("STOCKLEAGUE_MONGO_URI")

	cfg := &Config{}
	statuses := CheckAPIKeys(cfg)

	if len(statuses) != 2 {
		t.Fatalf("CheckAPIKeys: got %d statuses, want 2", len(statuses))
	}
	for _, s := range statuses {
		if s.IsSet {
			t.Errorf("Key %q should not be set", s.Name)
		}
		if s.Source != KeySourceNone {
			t.Errorf("Key %q source: got %q, want %q", s.Name, s.Source, KeySourceNone)
		}
	}
}

func TestCheckAPIKeysFromConfig(t *testing.T) {
	os.Unsetenv("STOCKLEAGUE_MARKET_API_KEY")

	cfg := &Config{
		Market: MarketConfig{APIKey: "pk_test_very_long_key_value"},
	}
	statuses := CheckAPIKeys(cfg)

	found := false
	for _, s := range statuses {
		if s.Name == "Market Data API Key" {
			found = true
			if !s.IsSet {
				t.Error("market key should be set")
			}
			if s.Source != KeySourceConfig {
				t.Errorf("Source: got %q, want %q", s.Source, KeySourceConfig)
			}
			if s.Masked != "pk_...lue" {
				t.Errorf("Masked: got %q, want %q", s.Masked, "pk_...lue")
			}
		}
	}
	if !found {
		t.Error("Market Data API Key status not found")
	}
}

func TestCheckKeySourceDetection(t *testing.T) {
	// No env, no value
	os.Unsetenv("TEST_VAR")
	s := checkKey("Test", "", "TEST_VAR")
	if s.Source != KeySourceNone {
		t.Errorf("empty value: got source %q, want %q", s.Source, KeySourceNone)
	}
	if s.IsSet {
		t.Error("empty value should not be set")
	}

	// Value from config (no env)
	s = checkKey("Test", "config-value-long-enough", "TEST_VAR")
	if s.Source != KeySourceConfig {
		t.Errorf("config value: got source %q, want %q", s.Source, KeySourceConfig)
	}

	// Value from env
	os.Setenv("TEST_VAR", "env-value-long-enough")
	defer os.Unsetenv("TEST_VAR")
	s = checkKey("Test", "env-value-long-enough", "TEST_VAR")
	if s.Source != KeySourceEnv {
		t.Errorf("env value: got source %q, want %q", s.Source, KeySourceEnv)
	}
}

// ── homeDir ──

func TestHomeDirReturnsNonEmpty(t *testing.T) {
	h := homeDir()
	if h == "" {
		t.Error("homeDir() should not return empty string")
	}
}
