package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the prescreen service
type Config struct {
	General      GeneralConfig      `mapstructure:"general"`
	Server       ServerConfig       `mapstructure:"server"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Tools        ToolsConfig        `mapstructure:"tools"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string   `mapstructure:"address"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type       string              `mapstructure:"type"` // openai, compatible gateways
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Models     map[string]LLMModel `mapstructure:"models"`
	MaxRetries int                 `mapstructure:"max_retries"`
	Timeout    time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name        string  `mapstructure:"name"`
	APIName     string  `mapstructure:"api_name"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// LLMRoutingConfig defines which model to use for different steps
type LLMRoutingConfig struct {
	Synthesis string `mapstructure:"synthesis"` // final answer/report generation
	Fallback  string `mapstructure:"fallback"`
}

// OrchestratorConfig contains engine timing and concurrency settings
type OrchestratorConfig struct {
	RunTimeout        time.Duration `mapstructure:"run_timeout"`
	ToolTimeout       time.Duration `mapstructure:"tool_timeout"`
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs"`
}

// ToolsConfig contains settings for the tool adapters
type ToolsConfig struct {
	Extract   ExtractConfig   `mapstructure:"extract"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	Report    ReportConfig    `mapstructure:"report"`
}

// ExtractConfig contains the document-extraction service settings
type ExtractConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RetrievalConfig contains comparable-deal retrieval settings.
// Mode "remote" queries the retrieval service; mode "local" serves
// matches from an in-process index seeded from SeedFile.
type RetrievalConfig struct {
	Mode     string        `mapstructure:"mode"` // remote or local
	Endpoint string        `mapstructure:"endpoint"`
	SeedFile string        `mapstructure:"seed_file"`
	TopK     int           `mapstructure:"top_k"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WebSearchConfig contains web search settings
type WebSearchConfig struct {
	TavilyAPIKey string        `mapstructure:"tavily_api_key"`
	Endpoint     string        `mapstructure:"endpoint"`
	MaxResults   int           `mapstructure:"max_results"`
	FetchPages   bool          `mapstructure:"fetch_pages"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ReportConfig contains the report-builder service settings
type ReportConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Title    string        `mapstructure:"title"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// PostgresConfig contains Postgres connection settings for the run-audit store
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RedisConfig contains Redis connection settings for the upload store
type RedisConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	UploadTTL time.Duration `mapstructure:"upload_ttl"`
}

// RetentionConfig controls pruning of old run-audit rows
type RetentionConfig struct {
	Cron   string        `mapstructure:"cron"` // @daily, @hourly or 5-field cron
	MaxAge time.Duration `mapstructure:"max_age"`
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("prescreen")
	viper.SetConfigType("yaml")
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("PRESCREEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Config file is optional; defaults plus env are enough to boot
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

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.allow_origins", []string{"*"})

	viper.SetDefault("llm.routing.synthesis", "gpt-4o")
	viper.SetDefault("llm.routing.fallback", "gpt-4o-mini")

	viper.SetDefault("orchestrator.run_timeout", "5m")
	viper.SetDefault("orchestrator.tool_timeout", "90s")
	viper.SetDefault("orchestrator.max_concurrent_runs", 8)

	viper.SetDefault("tools.extract.endpoint", "http://localhost:8091/extract")
	viper.SetDefault("tools.extract.timeout", "120s")
	viper.SetDefault("tools.retrieval.mode", "local")
	viper.SetDefault("tools.retrieval.top_k", 5)
	viper.SetDefault("tools.retrieval.timeout", "30s")
	viper.SetDefault("tools.web_search.endpoint", "https://api.tavily.com/search")
	viper.SetDefault("tools.web_search.max_results", 5)
	viper.SetDefault("tools.web_search.fetch_pages", false)
	viper.SetDefault("tools.web_search.timeout", "30s")
	viper.SetDefault("tools.report.endpoint", "http://localhost:8093/report")
	viper.SetDefault("tools.report.title", "Pre-Screening Analysis")
	viper.SetDefault("tools.report.timeout", "60s")

	viper.SetDefault("storage.postgres.port", 5432)
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.postgres.timeout", "5s")
	viper.SetDefault("storage.redis.host", "")
	viper.SetDefault("storage.redis.port", 6379)
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.redis.upload_ttl", "48h")
	viper.SetDefault("storage.retention.cron", "@daily")
	viper.SetDefault("storage.retention.max_age", "720h")

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.cost_tracking", true)
}

// overrideFromEnv overrides configuration with well-known environment variables
func overrideFromEnv() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		viper.Set("llm.providers.openai.type", "openai")
		viper.Set("llm.providers.openai.api_key", apiKey)
	}
	if apiKey := os.Getenv("TAVILY_API_KEY"); apiKey != "" {
		viper.Set("tools.web_search.tavily_api_key", apiKey)
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		viper.Set("storage.postgres.url", url)
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		viper.Set("storage.postgres.host", host)
	}
	if port := os.Getenv("POSTGRES_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("storage.postgres.port", p)
		}
	}
	if user := os.Getenv("POSTGRES_USER"); user != "" {
		viper.Set("storage.postgres.user", user)
	}
	if pass := os.Getenv("POSTGRES_PASSWORD"); pass != "" {
		viper.Set("storage.postgres.password", pass)
	}
	if db := os.Getenv("POSTGRES_DB"); db != "" {
		viper.Set("storage.postgres.dbname", db)
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		viper.Set("storage.redis.host", host)
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("storage.redis.port", p)
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		viper.Set("storage.redis.password", password)
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Orchestrator.RunTimeout <= 0 {
		return fmt.Errorf("orchestrator.run_timeout must be positive")
	}
	if config.Orchestrator.ToolTimeout <= 0 {
		return fmt.Errorf("orchestrator.tool_timeout must be positive")
	}

	switch config.Tools.Retrieval.Mode {
	case "local":
	case "remote":
		if config.Tools.Retrieval.Endpoint == "" {
			return fmt.Errorf("tools.retrieval.endpoint required in remote mode")
		}
	default:
		return fmt.Errorf("tools.retrieval.mode must be local or remote, got %q", config.Tools.Retrieval.Mode)
	}

	// Routing models must exist in a configured provider when any provider is set
	if len(config.LLM.Providers) > 0 {
		for _, model := range []string{config.LLM.Routing.Synthesis, config.LLM.Routing.Fallback} {
			if model == "" {
				continue
			}
			found := false
		providers:
			for _, provider := range config.LLM.Providers {
				if len(provider.Models) == 0 {
					// provider without an explicit model list accepts any model name
					found = true
					break providers
				}
				for _, providerModel := range provider.Models {
					if providerModel.Name == model {
						found = true
						break providers
					}
				}
			}
			if !found {
				return fmt.Errorf("routing model %q not found in any provider", model)
			}
		}
	}

	return nil
}

// PostgresDSN builds a lib/pq DSN from the postgres block. Empty when
// postgres is not configured.
func (c *Config) PostgresDSN() string {
	pg := c.Storage.Postgres
	if pg.URL != "" {
		return pg.URL
	}
	if pg.Host == "" || pg.DBName == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pg.User, pg.Password, pg.Host, pg.Port, pg.DBName, pg.SSLMode)
}
