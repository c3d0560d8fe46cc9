package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the search agent.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Reader    ReaderConfig    `mapstructure:"reader"`
	Searcher  SearcherConfig  `mapstructure:"searcher"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// LLMConfig contains the text-generation provider configuration. The same
// provider serves the planner, searcher and reader roles; sampling parameters
// may differ per role.
type LLMConfig struct {
	Provider string                   `mapstructure:"provider"` // openai
	APIKey   string                   `mapstructure:"api_key"`
	BaseURL  string                   `mapstructure:"base_url"`
	Timeout  time.Duration            `mapstructure:"timeout"`
	Roles    map[string]LLMRoleConfig `mapstructure:"roles"`
}

// LLMRoleConfig holds the model and sampling parameters for one agent role.
type LLMRoleConfig struct {
	Model             string  `mapstructure:"model"`
	Temperature       float64 `mapstructure:"temperature"`
	TopP              float64 `mapstructure:"top_p"`
	TopK              int     `mapstructure:"top_k"`
	RepetitionPenalty float64 `mapstructure:"repetition_penalty"`
	MaxTokens         int     `mapstructure:"max_tokens"`
}

// SearchConfig contains web search provider settings.
type SearchConfig struct {
	Provider   string        `mapstructure:"provider"` // serper, brave
	APIKeys    []string      `mapstructure:"api_keys"`
	TopK       int           `mapstructure:"top_k"`
	MaxRetries int           `mapstructure:"max_retries"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	CacheStore string        `mapstructure:"cache_store"` // inmemory, redis
	Blacklist  []string      `mapstructure:"blacklist"`
}

// FetchConfig contains page fetching settings.
type FetchConfig struct {
	Fetcher     string        `mapstructure:"fetcher"` // chromedp
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	ChunkSize   int           `mapstructure:"chunk_size"`
	MaxChars    int           `mapstructure:"max_chars"`
}

// ReaderConfig bounds the summarize/extract pipeline.
type ReaderConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	SummTimeout    time.Duration `mapstructure:"summ_timeout"`
	ExtractWindow  int           `mapstructure:"extract_window"`
	TruncateAbove  int           `mapstructure:"truncate_above"`
	TruncateTo     int           `mapstructure:"truncate_to"`
}

// SearcherConfig bounds the per-sub-question tool loop.
type SearcherConfig struct {
	MaxTurns     int `mapstructure:"max_turns"`
	ContextLimit int `mapstructure:"context_limit"`
}

// PlannerConfig bounds the decomposition loop.
type PlannerConfig struct {
	MaxTurns int `mapstructure:"max_turns"`
}

// CacheConfig contains the on-disk content cache settings.
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// RedisConfig contains Redis connection settings for the query cache.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("searchagent")
	viper.SetConfigType("json")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("SEARCHAGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("llm.roles.planner.model", "gpt-5")
	viper.SetDefault("llm.roles.planner.temperature", 0.2)
	viper.SetDefault("llm.roles.planner.max_tokens", 8192)
	viper.SetDefault("llm.roles.searcher.model", "gpt-5")
	viper.SetDefault("llm.roles.searcher.temperature", 0.6)
	viper.SetDefault("llm.roles.searcher.top_p", 0.95)
	viper.SetDefault("llm.roles.searcher.max_tokens", 8192)
	viper.SetDefault("llm.roles.reader.model", "gpt-5-nano")
	viper.SetDefault("llm.roles.reader.temperature", 0.6)
	viper.SetDefault("llm.roles.reader.top_p", 0.95)
	viper.SetDefault("llm.roles.reader.max_tokens", 8192)

	viper.SetDefault("search.provider", "serper")
	viper.SetDefault("search.top_k", 5)
	viper.SetDefault("search.max_retries", 3)
	viper.SetDefault("search.cache_ttl", "600s")
	viper.SetDefault("search.cache_store", "inmemory")
	viper.SetDefault("search.blacklist", []string{"youtube.com", "researchgate.net"})

	viper.SetDefault("fetch.fetcher", "chromedp")
	viper.SetDefault("fetch.timeout", "15s")
	viper.SetDefault("fetch.concurrency", 20)
	viper.SetDefault("fetch.chunk_size", 512)
	viper.SetDefault("fetch.max_chars", 128000)

	viper.SetDefault("reader.concurrency", 20)
	viper.SetDefault("reader.summ_timeout", "10s")
	viper.SetDefault("reader.extract_window", 16192)
	viper.SetDefault("reader.truncate_above", 128000)
	viper.SetDefault("reader.truncate_to", 64000)

	viper.SetDefault("searcher.max_turns", 10)
	viper.SetDefault("searcher.context_limit", 128000)

	viper.SetDefault("planner.max_turns", 10)

	viper.SetDefault("cache.dir", "./cache")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("server.address", ":8484")

	viper.SetDefault("telemetry.enabled", true)
}

func overrideFromEnv() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		viper.Set("llm.api_key", apiKey)
	}
	if keys := os.Getenv("SERPER_API_KEYS"); keys != "" {
		viper.Set("search.api_keys", strings.Split(keys, ","))
	}
	if keys := os.Getenv("BRAVE_API_KEYS"); keys != "" {
		viper.Set("search.provider", "brave")
		viper.Set("search.api_keys", strings.Split(keys, ","))
	}
	if dir := os.Getenv("CACHE_DIR"); dir != "" {
		viper.Set("cache.dir", dir)
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		viper.Set("redis.host", host)
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		viper.Set("redis.password", password)
	}
}

func validateConfig(config *Config) error {
	if config.LLM.APIKey == "" {
		return fmt.Errorf("llm api key must be configured")
	}
	if len(config.Search.APIKeys) == 0 {
		return fmt.Errorf("at least one search api key must be configured")
	}
	if config.Searcher.MaxTurns <= 0 {
		return fmt.Errorf("searcher.max_turns must be positive")
	}
	return nil
}
