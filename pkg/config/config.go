package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		BaseURL string        `yaml:"base_url" json:"base_url" jsonschema:"default=http://localhost:8080,description=Public base URL used in generated feeds"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:newsleak.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Schedule struct {
		UpdateInterval int `yaml:"update_interval" json:"update_interval" jsonschema:"default=30,description=Feed update interval in minutes"`
		MaxWorkers     int `yaml:"max_workers" json:"max_workers" jsonschema:"default=5,description=Maximum concurrent feed workers"`
	} `yaml:"schedule" json:"schedule" jsonschema:"description=Scheduler configuration"`

	Fetch FetchConfig `yaml:"fetch" json:"fetch" jsonschema:"description=Feed fetch transport configuration"`

	Image ImageConfig `yaml:"image" json:"image" jsonschema:"description=Article image resolution configuration"`

	Articles struct {
		MaxSummaryLength int `yaml:"max_summary_length" json:"max_summary_length" jsonschema:"default=500,description=Maximum article summary length in characters"`
	} `yaml:"articles" json:"articles" jsonschema:"description=Article normalization configuration"`

	Classify ClassifyConfig `yaml:"classify" json:"classify" jsonschema:"description=Category classification configuration"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=LLM configuration for category classification"`

	Notify NotifyConfig `yaml:"notify" json:"notify" jsonschema:"description=New article webhook configuration"`
}

// FetchConfig holds feed fetch transport settings
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Fetch timeout per feed"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Newsleak RSS Fetcher/1.0,description=User agent for feed requests"`
	RelayURL  string        `yaml:"relay_url" json:"relay_url" jsonschema:"description=Optional CORS relay prefix for feed requests"`
	Retries   int           `yaml:"retries" json:"retries" jsonschema:"default=1,description=Fetch attempts per feed"`
}

// ImageConfig holds article image resolution settings
type ImageConfig struct {
	ScrapeEnabled  bool          `yaml:"scrape_enabled" json:"scrape_enabled" jsonschema:"default=false,description=Scrape article pages when the feed has no image"`
	ScrapeTimeout  time.Duration `yaml:"scrape_timeout" json:"scrape_timeout" jsonschema:"default=10s,description=Page scrape timeout"`
	ScrapeInterval time.Duration `yaml:"scrape_interval" json:"scrape_interval" jsonschema:"default=1s,description=Minimum interval between page scrapes"`
}

// ClassifyRule is one keyword rule in the classifier config
type ClassifyRule struct {
	Category string   `yaml:"category" json:"category" jsonschema:"required,description=Category assigned on match"`
	Keywords []string `yaml:"keywords" json:"keywords" jsonschema:"required,description=Keywords matched on word boundaries"`
}

// ClassifyConfig holds category classification settings
type ClassifyConfig struct {
	Mode  string         `yaml:"mode" json:"mode" jsonschema:"default=auto,enum=trust,enum=auto,enum=llm,description=Classification mode"`
	Rules []ClassifyRule `yaml:"rules" json:"rules" jsonschema:"description=Keyword rules evaluated in order (built-in defaults when empty)"`
}

// LLMConfig holds LLM settings, used only in llm classification mode
type LLMConfig struct {
	Endpoint    string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey      string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model       string        `yaml:"model" json:"model" jsonschema:"description=Model name (e.g. gpt-4o-mini or llama3)"`
	Temperature float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.1,description=Temperature for response generation"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=16,description=Maximum tokens in response"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Request timeout"`
}

// NotifyConfig holds new-article webhook settings
type NotifyConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable webhook notifications"`
	Endpoint string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=Webhook endpoint URL"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=10s,description=Webhook request timeout"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// setDefaults fills zero values with production defaults
func setDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:newsleak.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	if cfg.Schedule.UpdateInterval == 0 {
		cfg.Schedule.UpdateInterval = 30
	}
	if cfg.Schedule.MaxWorkers == 0 {
		cfg.Schedule.MaxWorkers = 5
	}

	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 30 * time.Second
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "Newsleak RSS Fetcher/1.0"
	}
	if cfg.Fetch.Retries == 0 {
		cfg.Fetch.Retries = 1
	}

	if cfg.Image.ScrapeTimeout == 0 {
		cfg.Image.ScrapeTimeout = 10 * time.Second
	}
	if cfg.Image.ScrapeInterval == 0 {
		cfg.Image.ScrapeInterval = time.Second
	}

	if cfg.Articles.MaxSummaryLength == 0 {
		cfg.Articles.MaxSummaryLength = 500
	}

	if cfg.Classify.Mode == "" {
		cfg.Classify.Mode = "auto"
	}

	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.1
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 16
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}

	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = 10 * time.Second
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	switch cfg.Classify.Mode {
	case "trust", "auto":
	case "llm":
		if cfg.LLM.Endpoint == "" {
			return fmt.Errorf("llm.endpoint is required in llm classification mode")
		}
		if cfg.LLM.Model == "" {
			return fmt.Errorf("llm.model is required in llm classification mode")
		}
	default:
		return fmt.Errorf("classify.mode must be one of trust, auto, llm")
	}

	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}

	if cfg.Fetch.Retries < 1 {
		return fmt.Errorf("fetch.retries must be at least 1")
	}

	if cfg.Notify.Enabled && cfg.Notify.Endpoint == "" {
		return fmt.Errorf("notify.endpoint is required when notifications are enabled")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen, baseURL string, timeout time.Duration) {
	return c.Server.Listen, c.Server.BaseURL, c.Server.Timeout
}
