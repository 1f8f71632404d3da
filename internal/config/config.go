// Package config loads settings from config files and OUTREACH_*
// environment variables.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"github.com/sells-group/outreach-cli/internal/crawler"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/scorer"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Brave     BraveConfig     `mapstructure:"brave"`
	Apollo    ApolloConfig    `mapstructure:"apollo"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Store     StoreConfig     `mapstructure:"store"`
	Crawler   crawler.Config  `mapstructure:"crawler"`
	Scorer    scorer.Weights  `mapstructure:"scorer"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Outreach  OutreachConfig  `mapstructure:"outreach"`
	Retry     RetryConfig     `mapstructure:"retry"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

type BraveConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type ApolloConfig struct {
	APIKey string `mapstructure:"api_key"`
	// Enabled gates verification; discovery works without it.
	Enabled bool `mapstructure:"enabled"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type StoreConfig struct {
	// Backend is "sqlite" or "postgres".
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

type PipelineConfig struct {
	Concurrency   int     `mapstructure:"concurrency"`
	PerHostRPS    float64 `mapstructure:"per_host_rps"`
	SkipProcessed bool    `mapstructure:"skip_processed"`
}

type OutreachConfig struct {
	SMTPHost     string  `mapstructure:"smtp_host"`
	SMTPPort     int     `mapstructure:"smtp_port"`
	SMTPUser     string  `mapstructure:"smtp_user"`
	SMTPPassword string  `mapstructure:"smtp_password"`
	From         string  `mapstructure:"from"`
	FromName     string  `mapstructure:"from_name"`
	// SendsPerMinute throttles sending across all workers.
	SendsPerMinute float64 `mapstructure:"sends_per_minute"`
	// DailyLimit caps sends per rolling 24h window. 0 means no cap.
	DailyLimit int  `mapstructure:"daily_limit"`
	DryRun     bool `mapstructure:"dry_run"`
}

type RetryConfig struct {
	MaxAttempts      int     `mapstructure:"max_attempts"`
	InitialBackoffMs int     `mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `mapstructure:"max_backoff_ms"`
	Multiplier       float64 `mapstructure:"multiplier"`
	JitterFraction   float64 `mapstructure:"jitter_fraction"`
}

// ToResilience converts the file representation into a retry config.
func (r RetryConfig) ToResilience() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if r.MaxAttempts > 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(r.InitialBackoffMs) * time.Millisecond
	}
	if r.MaxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(r.MaxBackoffMs) * time.Millisecond
	}
	if r.Multiplier > 0 {
		cfg.Multiplier = r.Multiplier
	}
	if r.JitterFraction >= 0 {
		cfg.JitterFraction = r.JitterFraction
	}
	return cfg
}

// Load reads outreach.yaml from the working directory or
// ~/.config/outreach-cli, then applies OUTREACH_* env overrides
// (OUTREACH_BRAVE_API_KEY and so on). A missing config file is fine;
// env and defaults carry it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("outreach")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/outreach-cli")

	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "unmarshaling config")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// empty defaults register the keys so AutomaticEnv can fill them
	v.SetDefault("brave.api_key", "")
	v.SetDefault("apollo.api_key", "")
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("apollo.enabled", false)

	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", "outreach.db")
	v.SetDefault("store.dsn", "")
	v.SetDefault("outreach.smtp_host", "")
	v.SetDefault("outreach.smtp_user", "")
	v.SetDefault("outreach.smtp_password", "")
	v.SetDefault("outreach.from", "")
	v.SetDefault("outreach.from_name", "")

	cw := crawler.DefaultConfig()
	v.SetDefault("crawler.max_pages", cw.MaxPages)
	v.SetDefault("crawler.max_failures", cw.MaxFailures)
	v.SetDefault("crawler.early_exit_emails", cw.EarlyExitEmails)

	sw := scorer.DefaultWeights()
	v.SetDefault("scorer.email_keyword", sw.EmailKeyword)
	v.SetDefault("scorer.title_keyword", sw.TitleKeyword)
	v.SetDefault("scorer.context_keyword", sw.ContextKeyword)
	v.SetDefault("scorer.context_cap", sw.ContextCap)
	v.SetDefault("scorer.url_keyword", sw.URLKeyword)
	v.SetDefault("scorer.negative_strong", sw.NegativeStrong)
	v.SetDefault("scorer.negative_weak", sw.NegativeWeak)
	v.SetDefault("scorer.functional", sw.Functional)
	v.SetDefault("scorer.observed", sw.Observed)
	v.SetDefault("scorer.pattern_base", sw.PatternBase)
	v.SetDefault("scorer.pattern_decay", sw.PatternDecay)

	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.per_host_rps", 1.0)
	v.SetDefault("pipeline.skip_processed", false)

	v.SetDefault("outreach.smtp_port", 587)
	v.SetDefault("outreach.sends_per_minute", 2.0)
	v.SetDefault("outreach.daily_limit", 100)
	v.SetDefault("outreach.dry_run", true)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
}
