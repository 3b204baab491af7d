// Package config loads newsforge configuration from a YAML file, environment
// variables (spec-level option names), and an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App     App     `mapstructure:"app"`
	LLM     LLM     `mapstructure:"llm"`
	Embed   Embed   `mapstructure:"embed"`
	Dedup   Dedup   `mapstructure:"dedup"`
	Ingest  Ingest  `mapstructure:"ingest"`
	Search  Search  `mapstructure:"search"`
	TTS     TTS     `mapstructure:"tts"`
	Site    Site    `mapstructure:"site"`
	Twitter Twitter `mapstructure:"twitter"`
	Media   Media   `mapstructure:"media"`
	Retry   Retry   `mapstructure:"retry"`
}

// App holds general application configuration.
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
	SiteDir  string `mapstructure:"site_dir"`
	Workers  int    `mapstructure:"workers"`
	// RecordBudget is the per-record wall clock budget for a full pipeline
	// traversal. Zero disables the budget.
	RecordBudget time.Duration `mapstructure:"record_budget"`
}

// LLM holds the LLM gateway configuration.
type LLM struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// Per-profile model names. Resolved by the gateway from the caller's
	// model profile; temperature is a property of the profile itself.
	ModelDeterministic string `mapstructure:"model_deterministic"`
	ModelAnalytical    string `mapstructure:"model_analytical"`
	ModelCreative      string `mapstructure:"model_creative"`
}

// Embed holds embedding service configuration.
type Embed struct {
	APIKey    string `mapstructure:"api_key"`
	ModelName string `mapstructure:"model_name"`
	MinLength int    `mapstructure:"min_length"`
}

// Dedup holds duplicate-store thresholds.
type Dedup struct {
	ThresholdDuplicate     float64 `mapstructure:"threshold_duplicate"`
	ThresholdNearDuplicate float64 `mapstructure:"threshold_nearduplicate"`
	MinTextLength          int     `mapstructure:"min_text_length"`
	MaxTextSnippet         int     `mapstructure:"max_text_snippet"`
}

// Ingest holds candidate ingestion configuration.
type Ingest struct {
	MaxArticleAgeHours int    `mapstructure:"max_article_age_hours"`
	UserAgent          string `mapstructure:"user_agent"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
}

// Search holds corroboration search configuration.
type Search struct {
	Provider       string `mapstructure:"provider"` // mock or google
	GoogleAPIKey   string `mapstructure:"google_api_key"`
	GoogleSearchID string `mapstructure:"google_search_id"`
	MaxResults     int    `mapstructure:"max_results"`
}

// TTS holds the external TTS service configuration.
type TTS struct {
	Enabled         bool          `mapstructure:"enabled"`
	APIKey          string        `mapstructure:"api_key"`
	Endpoint        string        `mapstructure:"endpoint"`
	VoiceID         string        `mapstructure:"voice_id"`
	LanguageID      string        `mapstructure:"language_id"`
	Gender          string        `mapstructure:"gender"`
	Age             string        `mapstructure:"age"`
	// PollIntervalSec is the documented knob (bare seconds, TTS_POLL_INTERVAL_SEC);
	// PollInterval takes precedence when set directly with a unit.
	PollIntervalSec int           `mapstructure:"poll_interval_sec"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts"`
}

// Site holds static-site identity configuration.
type Site struct {
	BaseURL          string `mapstructure:"base_url"`
	Name             string `mapstructure:"name"`
	LogoURL          string `mapstructure:"logo_url"`
	AuthorName       string `mapstructure:"author_name"`
	FaviconURL       string `mapstructure:"favicon_url"`
	MaxHomeArticles  int    `mapstructure:"max_home_articles"`
}

// Twitter holds social poster credentials.
type Twitter struct {
	APIKey       string `mapstructure:"api_key"`
	APISecret    string `mapstructure:"api_secret"`
	AccessToken  string `mapstructure:"access_token"`
	AccessSecret string `mapstructure:"access_secret"`
}

// Media holds image placeholder integration configuration.
type Media struct {
	CaptionStyle string `mapstructure:"caption_style"` // markdown_italic, html_figcaption, plain
	MaxReuse     int    `mapstructure:"max_reuse"`
}

// Retry holds retry/backoff knobs shared by outbound HTTP callers.
type Retry struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

var globalConfig *Config

// Load loads the configuration from .env, the config file, and the
// environment. It is safe to call repeatedly; the first successful load wins.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".newsforge")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.TTS.PollInterval <= 0 && config.TTS.PollIntervalSec > 0 {
		config.TTS.PollInterval = time.Duration(config.TTS.PollIntervalSec) * time.Second
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached global configuration. Intended for tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", "data")
	viper.SetDefault("app.site_dir", "public")
	viper.SetDefault("app.workers", 3)
	viper.SetDefault("app.record_budget", 20*time.Minute)

	viper.SetDefault("llm.timeout", 90*time.Second)
	viper.SetDefault("llm.model_deterministic", "gpt-4o-mini")
	viper.SetDefault("llm.model_analytical", "gpt-4o-mini")
	viper.SetDefault("llm.model_creative", "gpt-4o")

	viper.SetDefault("embed.model_name", "gemini-embedding-001")
	viper.SetDefault("embed.min_length", 75)

	viper.SetDefault("dedup.threshold_duplicate", 0.92)
	viper.SetDefault("dedup.threshold_nearduplicate", 0.82)
	viper.SetDefault("dedup.min_text_length", 75)
	viper.SetDefault("dedup.max_text_snippet", 2000)

	viper.SetDefault("ingest.max_article_age_hours", 40)
	viper.SetDefault("ingest.user_agent", "newsforge/1.0 (+https://newsforge.dev)")
	viper.SetDefault("ingest.fetch_timeout", 30*time.Second)
	viper.SetDefault("ingest.cache_ttl", 24*time.Hour)

	viper.SetDefault("search.provider", "mock")
	viper.SetDefault("search.max_results", 10)

	viper.SetDefault("tts.enabled", false)
	viper.SetDefault("tts.poll_interval_sec", 3)
	viper.SetDefault("tts.max_poll_attempts", 60)

	viper.SetDefault("site.name", "Newsforge")
	viper.SetDefault("site.author_name", "Newsforge Editorial")
	viper.SetDefault("site.max_home_articles", 20)

	viper.SetDefault("media.caption_style", "markdown_italic")
	viper.SetDefault("media.max_reuse", 2)

	viper.SetDefault("retry.max_retries", 3)
	viper.SetDefault("retry.base_delay", time.Second)
}

// bindEnvironmentVariables maps the documented environment option names onto
// viper keys so either spelling works.
func bindEnvironmentVariables() {
	bindings := map[string]string{
		"llm.api_key":   "LLM_API_KEY",
		"llm.endpoint":  "LLM_ENDPOINT",
		"embed.api_key": "EMBEDDING_API_KEY",
		"embed.model_name": "EMBEDDING_MODEL_NAME",

		"dedup.threshold_duplicate":     "DEDUP_THRESHOLD_DUPLICATE",
		"dedup.threshold_nearduplicate": "DEDUP_THRESHOLD_NEARDUPLICATE",
		"dedup.min_text_length":         "DEDUP_MIN_TEXT_LENGTH",
		"dedup.max_text_snippet":        "DEDUP_MAX_TEXT_SNIPPET",

		"ingest.max_article_age_hours": "MAX_ARTICLE_AGE_HOURS",

		"tts.api_key":           "TTS_API_KEY",
		"tts.endpoint":          "TTS_ENDPOINT",
		"tts.voice_id":          "TTS_VOICE_ID",
		"tts.language_id":       "TTS_LANGUAGE_ID",
		"tts.gender":            "TTS_VOICE_GENDER",
		"tts.age":               "TTS_VOICE_AGE",
		"tts.poll_interval_sec": "TTS_POLL_INTERVAL_SEC",
		"tts.max_poll_attempts": "TTS_MAX_POLL_ATTEMPTS",

		"site.base_url":          "SITE_BASE_URL",
		"site.name":              "SITE_NAME",
		"site.logo_url":          "SITE_LOGO_URL",
		"site.author_name":       "AUTHOR_NAME_DEFAULT",
		"site.favicon_url":       "FAVICON_URL",
		"site.max_home_articles": "MAX_HOME_PAGE_ARTICLES",

		"twitter.api_key":       "TWITTER_API_KEY",
		"twitter.api_secret":    "TWITTER_API_SECRET",
		"twitter.access_token":  "TWITTER_ACCESS_TOKEN",
		"twitter.access_secret": "TWITTER_ACCESS_SECRET",

		"media.caption_style": "IMAGE_CAPTION_STYLE",

		"retry.max_retries": "MAX_RETRIES_API",
		"retry.base_delay":  "BASE_RETRY_DELAY",
	}
	for key, env := range bindings {
		_ = viper.BindEnv(key, env)
	}
}

func validate(c *Config) error {
	switch c.Media.CaptionStyle {
	case "markdown_italic", "html_figcaption", "plain":
	default:
		return fmt.Errorf("invalid IMAGE_CAPTION_STYLE %q (valid: markdown_italic, html_figcaption, plain)", c.Media.CaptionStyle)
	}
	if c.Dedup.ThresholdDuplicate < c.Dedup.ThresholdNearDuplicate {
		return fmt.Errorf("DEDUP_THRESHOLD_DUPLICATE (%.2f) must be >= DEDUP_THRESHOLD_NEARDUPLICATE (%.2f)",
			c.Dedup.ThresholdDuplicate, c.Dedup.ThresholdNearDuplicate)
	}
	if c.App.Workers < 1 {
		return fmt.Errorf("app.workers must be >= 1")
	}
	return nil
}

// Persisted state layout. The exact names are interface: other tooling reads
// these paths.
func (c *Config) ProcessedDir() string   { return filepath.Join(c.App.DataDir, "processed_json") }
func (c *Config) DedupStorePath() string { return filepath.Join(c.App.DataDir, "historical_embeddings.json") }
func (c *Config) RawResearchDir() string { return filepath.Join(c.App.DataDir, "raw_web_research") }
func (c *Config) MasterIndexPath() string { return filepath.Join(c.App.SiteDir, "all_articles.json") }
func (c *Config) ArticlesDir() string    { return filepath.Join(c.App.SiteDir, "articles") }
func (c *Config) AudioDir() string       { return filepath.Join(c.App.SiteDir, "audio") }
