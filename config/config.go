package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Ollama     OllamaConfig
	Scraper    ScraperConfig
	Cache      CacheConfig
	Providers  ProvidersConfig
	Aggregator AggregatorConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// OllamaConfig holds the local LLM connection settings
type OllamaConfig struct {
	Host           string        `mapstructure:"host"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxQueryLength int           `mapstructure:"max_query_length"`
}

// ScraperConfig holds the listing client settings
type ScraperConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	MaxItems   int           `mapstructure:"max_items"`
	UserAgent  string        `mapstructure:"user_agent"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

// ProvidersConfig selects which product providers are active
type ProvidersConfig struct {
	Enabled []string `mapstructure:"enabled"`
}

// AggregatorConfig holds fan-out tuning for the aggregation pipeline
type AggregatorConfig struct {
	MaxConcurrentProviders int           `mapstructure:"max_concurrent_providers"`
	ProviderTimeout        time.Duration `mapstructure:"provider_timeout"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/giftfinder/")

	// Environment variable settings
	v.SetEnvPrefix("GIFTFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads a local .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func loadEnvFile() error {
	file, err := os.Open(".env")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" || os.Getenv(key) != "" {
			continue
		}
		os.Setenv(key, strings.TrimSpace(value))
	}
	return scanner.Err()
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Ollama defaults
	v.SetDefault("ollama.host", "http://localhost:11434")
	v.SetDefault("ollama.model", "qwen2.5:1.5b")
	v.SetDefault("ollama.timeout", "15s")
	v.SetDefault("ollama.max_query_length", 500)

	// Scraper defaults
	v.SetDefault("scraper.base_url", "https://listado.mercadolibre.com.ar")
	v.SetDefault("scraper.timeout", "12s")
	v.SetDefault("scraper.max_retries", 2)
	v.SetDefault("scraper.max_items", 20)
	v.SetDefault("scraper.user_agent", "")

	// Cache defaults
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.max_size", 500)

	// Provider defaults
	v.SetDefault("providers.enabled", []string{"reference", "scraping"})

	// Aggregator defaults
	v.SetDefault("aggregator.max_concurrent_providers", 3)
	v.SetDefault("aggregator.provider_timeout", "15s")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_minute", 60)
	v.SetDefault("ratelimit.burst", 10)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Aggregator.MaxConcurrentProviders <= 0 {
		return fmt.Errorf("aggregator max_concurrent_providers must be positive, got: %d", config.Aggregator.MaxConcurrentProviders)
	}

	if config.Aggregator.ProviderTimeout <= 0 {
		return fmt.Errorf("aggregator provider_timeout must be positive, got: %s", config.Aggregator.ProviderTimeout)
	}

	if config.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache max_size must be positive, got: %d", config.Cache.MaxSize)
	}

	if len(config.Providers.Enabled) == 0 {
		return fmt.Errorf("at least one provider must be enabled")
	}

	for _, name := range config.Providers.Enabled {
		if name != "reference" && name != "scraping" {
			return fmt.Errorf("unknown provider: %s (valid: reference, scraping)", name)
		}
	}

	if config.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("ratelimit per_minute must be positive, got: %d", config.RateLimit.PerMinute)
	}

	return nil
}
