package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

// Config represents the complete application configuration
type Config struct {
	Ollama        OllamaConfig        `yaml:"ollama"`
	Research      ResearchConfig      `yaml:"research"`
	Browser       BrowserConfig       `yaml:"browser"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// OllamaConfig contains Ollama-specific configuration
type OllamaConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TopP        float64 `yaml:"top_p,omitempty"`
	TopK        int     `yaml:"top_k,omitempty"`
	Timeout     string  `yaml:"timeout"`
}

// ResearchConfig bounds and tunes one research run
type ResearchConfig struct {
	MaxSubQuestions        int `yaml:"max_sub_questions"`
	MaxSearchesPerQuestion int `yaml:"max_searches_per_question"`
	MaxPagesToFetch        int `yaml:"max_pages_to_fetch"`
	MaxFollowUpSearches    int `yaml:"max_follow_up_searches"`

	SearchConcurrency int    `yaml:"search_concurrency"`
	SearchResults     int    `yaml:"search_results"`
	FetchConcurrency  int    `yaml:"fetch_concurrency"`
	EvalBatchSize     int    `yaml:"eval_batch_size"`
	PageTimeout       string `yaml:"page_timeout"`
	SettleDelay       string `yaml:"settle_delay"`
	RetryDelay        string `yaml:"retry_delay"`
	MaxAttempts       int    `yaml:"max_attempts"`
	Timeout           string `yaml:"timeout"`

	// AuthorityTable is an optional YAML file merged over the built-in domain scores
	AuthorityTable string `yaml:"authority_table,omitempty"`
}

// BrowserConfig controls the Chrome instance driven for search and retrieval
type BrowserConfig struct {
	RemoteURL         string   `yaml:"remote_url,omitempty"`
	Headless          bool     `yaml:"headless"`
	Stealth           bool     `yaml:"stealth"`
	SearchURL         string   `yaml:"search_url"`
	Region            string   `yaml:"region,omitempty"`
	BackgroundTabs    bool     `yaml:"background_tabs"`
	ResourceBlocking  []string `yaml:"resource_blocking,omitempty"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
}

// CacheConfig selects the page content cache
type CacheConfig struct {
	Type  string      `yaml:"type"` // "memory", "redis"
	TTL   string      `yaml:"ttl"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// ObservabilityConfig contains observability configuration
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	config.overrideFromEnv()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads configuration from a file or returns default config
// with environment overrides applied
func LoadOrDefault(path string) *Config {
	config, err := Load(path)
	if err != nil {
		config = Default()
		config.overrideFromEnv()
	}
	return config
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.1",
			Temperature: 0.3,
			MaxTokens:   2048,
			Timeout:     "2m",
		},
		Research: ResearchConfig{
			MaxSubQuestions:        5,
			MaxSearchesPerQuestion: 2,
			MaxPagesToFetch:        10,
			MaxFollowUpSearches:    3,
			SearchConcurrency:      5,
			SearchResults:          8,
			FetchConcurrency:       5,
			EvalBatchSize:          5,
			PageTimeout:            "8s",
			SettleDelay:            "1.5s",
			RetryDelay:             "1s",
			MaxAttempts:            3,
			Timeout:                "10m",
		},
		Browser: BrowserConfig{
			Headless:          true,
			Stealth:           true,
			SearchURL:         "https://html.duckduckgo.com/html/",
			Region:            "us-en",
			BackgroundTabs:    true,
			ResourceBlocking:  []string{"images", "fonts", "media"},
			NavigationTimeout: "15s",
		},
		Cache: CacheConfig{
			Type: "memory",
			TTL:  "5m",
			Redis: RedisConfig{
				Address: "localhost:6379",
			},
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:      false,
				Endpoint:     "localhost:4318",
				SamplingRate: 1.0,
			},
			Metrics: MetricsConfig{
				Enabled: true,
			},
			Logging: LoggingConfig{
				Level: "info",
			},
		},
	}
}

// applyDefaults applies default values to missing fields
func (c *Config) applyDefaults() {
	defaults := Default()

	setString := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	setInt := func(dst *int, def int) {
		if *dst == 0 {
			*dst = def
		}
	}

	// Ollama
	setString(&c.Ollama.BaseURL, defaults.Ollama.BaseURL)
	setString(&c.Ollama.Model, defaults.Ollama.Model)
	setString(&c.Ollama.Timeout, defaults.Ollama.Timeout)
	setInt(&c.Ollama.MaxTokens, defaults.Ollama.MaxTokens)
	if c.Ollama.Temperature == 0 {
		c.Ollama.Temperature = defaults.Ollama.Temperature
	}

	// Research
	r, d := &c.Research, defaults.Research
	setInt(&r.MaxSubQuestions, d.MaxSubQuestions)
	setInt(&r.MaxSearchesPerQuestion, d.MaxSearchesPerQuestion)
	setInt(&r.MaxPagesToFetch, d.MaxPagesToFetch)
	setInt(&r.MaxFollowUpSearches, d.MaxFollowUpSearches)
	setInt(&r.SearchConcurrency, d.SearchConcurrency)
	setInt(&r.SearchResults, d.SearchResults)
	setInt(&r.FetchConcurrency, d.FetchConcurrency)
	setInt(&r.EvalBatchSize, d.EvalBatchSize)
	setInt(&r.MaxAttempts, d.MaxAttempts)
	setString(&r.PageTimeout, d.PageTimeout)
	setString(&r.SettleDelay, d.SettleDelay)
	setString(&r.RetryDelay, d.RetryDelay)
	setString(&r.Timeout, d.Timeout)

	// Browser
	setString(&c.Browser.SearchURL, defaults.Browser.SearchURL)
	setString(&c.Browser.NavigationTimeout, defaults.Browser.NavigationTimeout)

	// Cache
	setString(&c.Cache.Type, defaults.Cache.Type)
	setString(&c.Cache.TTL, defaults.Cache.TTL)
	setString(&c.Cache.Redis.Address, defaults.Cache.Redis.Address)

	// Observability
	setString(&c.Observability.Tracing.Endpoint, defaults.Observability.Tracing.Endpoint)
	if c.Observability.Tracing.SamplingRate == 0 {
		c.Observability.Tracing.SamplingRate = defaults.Observability.Tracing.SamplingRate
	}
	setString(&c.Observability.Logging.Level, defaults.Observability.Logging.Level)
}

// overrideFromEnv overrides configuration from environment variables
func (c *Config) overrideFromEnv() {
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		c.Ollama.BaseURL = url
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		c.Ollama.Model = model
	}

	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		c.Cache.Redis.Address = addr
		c.Cache.Type = "redis"
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			log.Printf("Invalid REDIS_DB value: %s, using default: %d", db, c.Cache.Redis.DB)
		} else {
			c.Cache.Redis.DB = n
		}
	}

	if remote := os.Getenv("BROWSER_REMOTE_URL"); remote != "" {
		c.Browser.RemoteURL = remote
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		c.Observability.Tracing.Endpoint = endpoint
		c.Observability.Tracing.Enabled = true
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama base_url is required")
	}
	if c.Ollama.Model == "" {
		return fmt.Errorf("ollama model is required")
	}

	limits := []struct {
		name  string
		value int
	}{
		{"research max_sub_questions", c.Research.MaxSubQuestions},
		{"research max_searches_per_question", c.Research.MaxSearchesPerQuestion},
		{"research max_pages_to_fetch", c.Research.MaxPagesToFetch},
		{"research search_concurrency", c.Research.SearchConcurrency},
		{"research fetch_concurrency", c.Research.FetchConcurrency},
		{"research eval_batch_size", c.Research.EvalBatchSize},
		{"research max_attempts", c.Research.MaxAttempts},
	}
	for _, l := range limits {
		if l.value < 1 {
			return fmt.Errorf("%s must be at least 1", l.name)
		}
	}
	if c.Research.MaxFollowUpSearches < 0 {
		return fmt.Errorf("research max_follow_up_searches must not be negative")
	}

	durations := map[string]string{
		"ollama timeout":             c.Ollama.Timeout,
		"research page_timeout":      c.Research.PageTimeout,
		"research settle_delay":      c.Research.SettleDelay,
		"research retry_delay":       c.Research.RetryDelay,
		"research timeout":           c.Research.Timeout,
		"browser navigation_timeout": c.Browser.NavigationTimeout,
		"cache ttl":                  c.Cache.TTL,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	switch c.Cache.Type {
	case "memory":
	case "redis":
		if c.Cache.Redis.Address == "" {
			return fmt.Errorf("cache redis address is required")
		}
	default:
		return fmt.Errorf("unsupported cache type: %s", c.Cache.Type)
	}

	if rate := c.Observability.Tracing.SamplingRate; rate < 0 || rate > 1 {
		return fmt.Errorf("tracing sampling_rate must be between 0 and 1")
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDuration parses a duration string from config, returning fallback when
// the value is empty or malformed
func (c *Config) GetDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// ToDeepResearchConfig returns the per-run volume bounds
func (r ResearchConfig) ToDeepResearchConfig() domain.DeepResearchConfig {
	return domain.DeepResearchConfig{
		MaxSubQuestions:        r.MaxSubQuestions,
		MaxSearchesPerQuestion: r.MaxSearchesPerQuestion,
		MaxPagesToFetch:        r.MaxPagesToFetch,
		MaxFollowUpSearches:    r.MaxFollowUpSearches,
	}
}
