// Package config loads application configuration from file and
// environment and owns global logger setup.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/draftzen/internal/enrich"
	"github.com/sells-group/draftzen/internal/ledger"
	"github.com/sells-group/draftzen/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	WriterZen WriterZenConfig `yaml:"writerzen" mapstructure:"writerzen"`
	Outline   OutlineConfig   `yaml:"outline" mapstructure:"outline"`
	Credits   CreditsConfig   `yaml:"credits" mapstructure:"credits"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend shared by the draft store
// and the credit ledger.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        ledger.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// WriterZenConfig holds the session credential pair and poll budgets for
// the keyword task service. Credentials rotate by restarting with new
// values; nothing mutates them at runtime.
type WriterZenConfig struct {
	Cookie    string `yaml:"cookie" mapstructure:"cookie"`
	XSRFToken string `yaml:"xsrf_token" mapstructure:"xsrf_token"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`

	KeywordPollAttempts int `yaml:"keyword_poll_attempts" mapstructure:"keyword_poll_attempts"`
	KeywordPollSecs     int `yaml:"keyword_poll_secs" mapstructure:"keyword_poll_secs"`
	ContentPollAttempts int `yaml:"content_poll_attempts" mapstructure:"content_poll_attempts"`
	ContentPollSecs     int `yaml:"content_poll_secs" mapstructure:"content_poll_secs"`
}

// OutlineConfig tunes the outline resolver. The heading length bounds are
// heuristic filters, not contracts.
type OutlineConfig struct {
	MinHeadingRunes int `yaml:"min_heading_runes" mapstructure:"min_heading_runes"`
	MaxHeadingRunes int `yaml:"max_heading_runes" mapstructure:"max_heading_runes"`
	CallTimeoutSecs int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
}

// CreditsConfig prices the billable operations and sets the signup grant.
type CreditsConfig struct {
	InitialGrant int64        `yaml:"initial_grant" mapstructure:"initial_grant"`
	Costs        enrich.Costs `yaml:"costs" mapstructure:"costs"`
}

// DiscoveryConfig lists competitor domains promoted in search ordering.
type DiscoveryConfig struct {
	Competitors   []string `yaml:"competitors" mapstructure:"competitors"`
	MaxCandidates int      `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// ScrapeConfig throttles candidate document fetches.
type ScrapeConfig struct {
	PerHostRPS   float64 `yaml:"per_host_rps" mapstructure:"per_host_rps"`
	PerHostBurst int     `yaml:"per_host_burst" mapstructure:"per_host_burst"`
}

// BatchConfig configures batch enrichment fan-out.
type BatchConfig struct {
	MaxConcurrentAccounts int `yaml:"max_concurrent_accounts" mapstructure:"max_concurrent_accounts"`
}

// ServerConfig configures the HTTP server.
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
	v.SetEnvPrefix("DRAFTZEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "draftzen.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2000)
	v.SetDefault("writerzen.base_url", "https://app.writerzen.net")
	v.SetDefault("writerzen.keyword_poll_attempts", 36)
	v.SetDefault("writerzen.keyword_poll_secs", 5)
	v.SetDefault("writerzen.content_poll_attempts", 15)
	v.SetDefault("writerzen.content_poll_secs", 3)
	v.SetDefault("outline.min_heading_runes", 4)
	v.SetDefault("outline.max_heading_runes", 120)
	v.SetDefault("outline.call_timeout_secs", 45)
	v.SetDefault("credits.initial_grant", 2)
	v.SetDefault("credits.costs.outline", 1)
	v.SetDefault("credits.costs.description", 1)
	v.SetDefault("credits.costs.keywords", 1)
	v.SetDefault("credits.costs.include_terms", 1)
	v.SetDefault("discovery.max_candidates", 5)
	v.SetDefault("scrape.per_host_rps", 2.0)
	v.SetDefault("scrape.per_host_burst", 2)
	v.SetDefault("batch.max_concurrent_accounts", 5)

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

// PollBudgets converts the configured attempt counts and intervals into
// the orchestrator's budgets. The wall-clock cap matches the worst case
// of attempts times interval.
func (c WriterZenConfig) PollBudgets() enrich.PollBudgets {
	budgets := enrich.DefaultPollBudgets()
	if c.KeywordPollAttempts > 0 && c.KeywordPollSecs > 0 {
		interval := time.Duration(c.KeywordPollSecs) * time.Second
		budgets.Keywords.MaxAttempts = c.KeywordPollAttempts
		budgets.Keywords.Interval = interval
		budgets.Keywords.MaxElapsed = time.Duration(c.KeywordPollAttempts) * interval
	}
	if c.ContentPollAttempts > 0 && c.ContentPollSecs > 0 {
		interval := time.Duration(c.ContentPollSecs) * time.Second
		budgets.IncludeTerms.MaxAttempts = c.ContentPollAttempts
		budgets.IncludeTerms.Interval = interval
		budgets.IncludeTerms.MaxElapsed = time.Duration(c.ContentPollAttempts) * interval
	}
	return budgets
}

// StorePool adapts the shared pool settings for the draft store.
func (c StoreConfig) StorePool() *store.PoolConfig {
	return &store.PoolConfig{MaxConns: c.Pool.MaxConns, MinConns: c.Pool.MinConns}
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
