// Package config defines the courier configuration tree. Values are layered
// by viper: built-in defaults, then an optional config file, then COURIER_*
// environment variables, then command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/courier-cli/api/schemas"
)

// Config is the root configuration for the courier CLI.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Content   ContentConfig   `mapstructure:"content" yaml:"content"`
	Selectors SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
	Outreach  OutreachConfig  `mapstructure:"outreach" yaml:"outreach"`
	Data      DataConfig      `mapstructure:"data" yaml:"data"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to console colors.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// BrowserConfig controls the chromedp session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir       string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	CookiesFile       string        `mapstructure:"cookies_file" yaml:"cookies_file"`
	Stealth           bool          `mapstructure:"stealth" yaml:"stealth"`
	Humanoid          PacingConfig  `mapstructure:"humanoid" yaml:"humanoid"`
}

// PacingConfig tunes the human-like pauses between interactions.
type PacingConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	CognitiveMeanMs   float64 `mapstructure:"cognitive_mean_ms" yaml:"cognitive_mean_ms"`
	CognitiveStdDevMs float64 `mapstructure:"cognitive_stddev_ms" yaml:"cognitive_stddev_ms"`
	DriftAmplitudePx  float64 `mapstructure:"drift_amplitude_px" yaml:"drift_amplitude_px"`
	KeystrokeMeanMs   float64 `mapstructure:"keystroke_mean_ms" yaml:"keystroke_mean_ms"`
	KeystrokeStdDevMs float64 `mapstructure:"keystroke_stddev_ms" yaml:"keystroke_stddev_ms"`
}

// LLMConfig selects and tunes the remote generation backend.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// ContentConfig tunes message composition and validation.
type ContentConfig struct {
	MaxLength              int  `mapstructure:"max_length" yaml:"max_length"`
	RequirePersonalization bool `mapstructure:"require_personalization" yaml:"require_personalization"`
	AppendCallToAction     bool `mapstructure:"append_call_to_action" yaml:"append_call_to_action"`
}

// SelectorsConfig points at the strategy registry file. An empty path loads
// the embedded default registry.
type SelectorsConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// OutreachConfig governs batch pacing and rate-limit defense.
type OutreachConfig struct {
	MaxRequests                 int           `mapstructure:"max_requests" yaml:"max_requests"`
	MinDelay                    time.Duration `mapstructure:"min_delay" yaml:"min_delay"`
	MaxDelay                    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	RateLimitWaitMin            time.Duration `mapstructure:"rate_limit_wait_min" yaml:"rate_limit_wait_min"`
	RateLimitWaitMax            time.Duration `mapstructure:"rate_limit_wait_max" yaml:"rate_limit_wait_max"`
	ConsecutiveFailureThreshold int           `mapstructure:"consecutive_failure_threshold" yaml:"consecutive_failure_threshold"`
	RateLimitIndicators         []string      `mapstructure:"rate_limit_indicators" yaml:"rate_limit_indicators"`
	SendWithoutNote             bool          `mapstructure:"send_without_note" yaml:"send_without_note"`
	RefreshAfterRateLimit       bool          `mapstructure:"refresh_after_rate_limit" yaml:"refresh_after_rate_limit"`
	FeedURL                     string        `mapstructure:"feed_url" yaml:"feed_url"`
	DryRun                      bool          `mapstructure:"dry_run" yaml:"dry_run"`
}

// DataConfig names local input and artifact locations.
type DataConfig struct {
	Dir           string `mapstructure:"dir" yaml:"dir"`
	ProspectsFile string `mapstructure:"prospects_file" yaml:"prospects_file"`
}

// DatabaseConfig enables the optional Postgres history store when URL is set.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

var global atomic.Pointer[Config]

// Get returns the process-wide configuration, falling back to defaults when
// nothing has been stored yet.
func Get() *Config {
	if cfg := global.Load(); cfg != nil {
		return cfg
	}
	cfg := NewDefaultConfig()
	global.Store(cfg)
	return cfg
}

// Set stores the process-wide configuration.
func Set(cfg *Config) {
	global.Store(cfg)
}

// NewDefaultConfig builds a Config carrying only the built-in defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failure to unmarshal them is a programming error.
		panic(fmt.Sprintf("config: defaults do not unmarshal: %v", err))
	}
	return &cfg
}

// SetDefaults registers every default value on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "courier")
	v.SetDefault("logger.log_file", "courier.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 768)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.post_load_wait", "1500ms")
	v.SetDefault("browser.cookies_file", "cookies.json")
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.humanoid.enabled", true)
	v.SetDefault("browser.humanoid.cognitive_mean_ms", 900.0)
	v.SetDefault("browser.humanoid.cognitive_stddev_ms", 300.0)
	v.SetDefault("browser.humanoid.drift_amplitude_px", 4.0)
	v.SetDefault("browser.humanoid.keystroke_mean_ms", 120.0)
	v.SetDefault("browser.humanoid.keystroke_stddev_ms", 40.0)

	// -- LLM --
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.model", "llama-3.1-8b-instant")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.requests_per_minute", 20)

	// -- Content --
	v.SetDefault("content.max_length", 300)
	v.SetDefault("content.require_personalization", true)
	v.SetDefault("content.append_call_to_action", true)

	// -- Selectors --
	v.SetDefault("selectors.path", "")

	// -- Outreach --
	v.SetDefault("outreach.max_requests", 9)
	v.SetDefault("outreach.min_delay", "30s")
	v.SetDefault("outreach.max_delay", "120s")
	v.SetDefault("outreach.rate_limit_wait_min", "300s")
	v.SetDefault("outreach.rate_limit_wait_max", "900s")
	v.SetDefault("outreach.consecutive_failure_threshold", 3)
	v.SetDefault("outreach.rate_limit_indicators", []string{
		"rate limit",
		"too many requests",
		"temporarily blocked",
		"unusual activity",
		"verify your identity",
	})
	v.SetDefault("outreach.send_without_note", false)
	v.SetDefault("outreach.refresh_after_rate_limit", true)
	v.SetDefault("outreach.feed_url", "https://www.linkedin.com/feed/")
	v.SetDefault("outreach.dry_run", false)

	// -- Data --
	v.SetDefault("data.dir", ".data")
	v.SetDefault("data.prospects_file", "")

	// -- Database --
	v.SetDefault("database.url", "")
}

// NewConfigFromViper unmarshals, binds secrets from the environment, expands
// home-relative paths, and validates.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Secrets come from the environment, never the config file.
	_ = v.BindEnv("llm.api_key", "COURIER_LLM_API_KEY", "GROQ_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("database.url", "COURIER_DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		for _, name := range []string{"COURIER_LLM_API_KEY", "GROQ_API_KEY", "GEMINI_API_KEY"} {
			if val := os.Getenv(name); val != "" {
				cfg.LLM.APIKey = val
				break
			}
		}
	}

	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPaths resolves ~ in every user-supplied file path.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{
		&c.Browser.CookiesFile,
		&c.Selectors.Path,
		&c.Data.Dir,
		&c.Data.ProspectsFile,
		&c.Logger.LogFile,
	} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the whole tree and returns the first violation.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Content.Validate(); err != nil {
		return err
	}
	if err := c.Outreach.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks browser settings.
func (b *BrowserConfig) Validate() error {
	if b.ViewportWidth <= 0 || b.ViewportHeight <= 0 {
		return schemas.NewConfigError("browser", "viewport dimensions must be positive, got %dx%d", b.ViewportWidth, b.ViewportHeight)
	}
	if b.NavigationTimeout <= 0 {
		return schemas.NewConfigError("browser", "navigation_timeout must be positive, got %v", b.NavigationTimeout)
	}
	return nil
}

// Validate checks generation backend settings.
func (l *LLMConfig) Validate() error {
	switch strings.ToLower(l.Provider) {
	case "groq", "gemini":
	default:
		return schemas.NewConfigError("llm", "unknown provider %q (supported: groq, gemini)", l.Provider)
	}
	if l.Timeout <= 0 {
		return schemas.NewConfigError("llm", "timeout must be positive, got %v", l.Timeout)
	}
	if l.MaxTokens <= 0 {
		return schemas.NewConfigError("llm", "max_tokens must be positive, got %d", l.MaxTokens)
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return schemas.NewConfigError("llm", "temperature must be in [0, 2], got %v", l.Temperature)
	}
	if l.RequestsPerMinute <= 0 {
		return schemas.NewConfigError("llm", "requests_per_minute must be positive, got %d", l.RequestsPerMinute)
	}
	return nil
}

// Validate checks composition settings.
func (c *ContentConfig) Validate() error {
	if c.MaxLength <= 0 {
		return schemas.NewConfigError("content", "max_length must be positive, got %d", c.MaxLength)
	}
	return nil
}

// Validate checks pacing and rate-limit defense settings.
func (o *OutreachConfig) Validate() error {
	if o.MaxRequests < 1 {
		return schemas.NewConfigError("outreach", "max_requests must be >= 1, got %d", o.MaxRequests)
	}
	if o.MinDelay < 0 || o.MaxDelay < o.MinDelay {
		return schemas.NewConfigError("outreach", "delay window invalid: min %v, max %v", o.MinDelay, o.MaxDelay)
	}
	if o.RateLimitWaitMax < o.RateLimitWaitMin || o.RateLimitWaitMin <= 0 {
		return schemas.NewConfigError("outreach", "rate limit wait window invalid: min %v, max %v", o.RateLimitWaitMin, o.RateLimitWaitMax)
	}
	if o.ConsecutiveFailureThreshold < 1 {
		return schemas.NewConfigError("outreach", "consecutive_failure_threshold must be >= 1, got %d", o.ConsecutiveFailureThreshold)
	}
	if len(o.RateLimitIndicators) == 0 {
		return schemas.NewConfigError("outreach", "rate_limit_indicators must not be empty")
	}
	return nil
}
