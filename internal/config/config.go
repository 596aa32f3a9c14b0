package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	PostgREST PostgRESTConfig `yaml:"postgrest" mapstructure:"postgrest"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Dedupe    DedupeConfig    `yaml:"dedupe" mapstructure:"dedupe"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the lead store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PostgRESTConfig holds connection settings for a hosted PostgREST endpoint
// (e.g. Supabase). The key is sent as both apikey and bearer token.
type PostgRESTConfig struct {
	URL   string `yaml:"url" mapstructure:"url"`
	Key   string `yaml:"key" mapstructure:"key"`
	Table string `yaml:"table" mapstructure:"table"`
}

// IngestConfig configures paged lead retrieval.
type IngestConfig struct {
	PageSize    int     `yaml:"page_size" mapstructure:"page_size"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryCount  int     `yaml:"retry_count" mapstructure:"retry_count"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// WatchedCategory is an emerging category with its externally supplied growth weight.
type WatchedCategory struct {
	Name         string  `yaml:"name" mapstructure:"name"`
	GrowthWeight float64 `yaml:"growth_weight" mapstructure:"growth_weight"`
}

// AnalysisConfig configures the coverage and opportunity analyses.
type AnalysisConfig struct {
	TaxonomyPath       string            `yaml:"taxonomy_path" mapstructure:"taxonomy_path"`
	NormalizeMarkets   bool              `yaml:"normalize_markets" mapstructure:"normalize_markets"`
	MinMarketSize      int               `yaml:"min_market_size" mapstructure:"min_market_size"`
	MaxCoveragePercent float64           `yaml:"max_coverage_percent" mapstructure:"max_coverage_percent"`
	VeryLowPercent     float64           `yaml:"very_low_percent" mapstructure:"very_low_percent"`
	LowPercent         float64           `yaml:"low_percent" mapstructure:"low_percent"`
	PrioritizeEmerging bool              `yaml:"prioritize_emerging" mapstructure:"prioritize_emerging"`
	Hot                []string          `yaml:"hot" mapstructure:"hot"`
	Watched            []WatchedCategory `yaml:"watched" mapstructure:"watched"`
	Regions            map[string]string `yaml:"regions" mapstructure:"regions"`
	RegionGapPercent   float64           `yaml:"region_gap_percent" mapstructure:"region_gap_percent"`
	TopN               int               `yaml:"top_n" mapstructure:"top_n"`
}

// AnthropicConfig holds settings for the category legitimacy classifier.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// DedupeConfig configures duplicate lead detection.
type DedupeConfig struct {
	NameSimilarity float64  `yaml:"name_similarity" mapstructure:"name_similarity"`
	FranchiseNames []string `yaml:"franchise_names" mapstructure:"franchise_names"`
}

// ServerConfig configures the dashboard API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// defaultWatched is the emerging-category list used when config.yaml does
// not set analysis.watched. Names must exist in the taxonomy.
func defaultWatched() []map[string]any {
	return []map[string]any{
		{"name": "EV Charging Installation", "growth_weight": 27.11},
		{"name": "Home Battery Storage", "growth_weight": 21.4},
		{"name": "Heat Pump Installation", "growth_weight": 18.6},
		{"name": "Solar Panel Installation", "growth_weight": 12.5},
		{"name": "Smart Home Installation", "growth_weight": 9.8},
		{"name": "Water Treatment", "growth_weight": 6.2},
	}
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// Connection parameters usually live in .env next to the binary.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so AutomaticEnv can still bind them.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("postgrest.url", "")
	v.SetDefault("postgrest.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("analysis.taxonomy_path", "")
	v.SetDefault("store.sqlite_path", "leadmap.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("postgrest.table", "leads")
	v.SetDefault("ingest.page_size", 1000)
	v.SetDefault("ingest.timeout_secs", 300)
	v.SetDefault("ingest.retry_count", 2)
	v.SetDefault("ingest.rate_limit", 0)
	v.SetDefault("analysis.normalize_markets", true)
	v.SetDefault("analysis.min_market_size", 10)
	v.SetDefault("analysis.max_coverage_percent", 5.0)
	v.SetDefault("analysis.very_low_percent", 1.0)
	v.SetDefault("analysis.low_percent", 3.0)
	v.SetDefault("analysis.prioritize_emerging", false)
	v.SetDefault("analysis.watched", defaultWatched())
	v.SetDefault("analysis.hot", []string{"EV Charging Installation", "Home Battery Storage"})
	v.SetDefault("analysis.region_gap_percent", 1.0)
	v.SetDefault("analysis.top_n", 25)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.concurrency", 4)
	v.SetDefault("anthropic.rate_limit", 2.0)
	v.SetDefault("dedupe.name_similarity", 0.85)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

// Validate checks the settings a command needs before it touches the network.
// Scope selects which sections are checked: "store", "anthropic" or "serve".
func (c *Config) Validate(scope string) error {
	var problems []string
	switch scope {
	case "store":
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
			if c.Store.SQLitePath == "" {
				problems = append(problems, "store.sqlite_path is required for the sqlite driver")
			}
		case "postgrest":
			if c.PostgREST.URL == "" {
				problems = append(problems, "postgrest.url is required for the postgrest driver")
			}
			if c.PostgREST.Table == "" {
				problems = append(problems, "postgrest.table must not be empty")
			}
		default:
			problems = append(problems, "store.driver must be postgres, sqlite or postgrest")
		}
	case "anthropic":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Anthropic.Concurrency <= 0 {
			problems = append(problems, "anthropic.concurrency must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	}
	if c.Ingest.PageSize <= 0 {
		problems = append(problems, "ingest.page_size must be > 0")
	}
	if c.Ingest.RetryCount < 0 {
		problems = append(problems, "ingest.retry_count must be >= 0")
	}
	if len(problems) > 0 {
		return &ValidationError{Section: scope, Problems: problems}
	}
	return nil
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
