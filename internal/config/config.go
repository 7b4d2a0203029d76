package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Backend    BackendConfig    `yaml:"backend" mapstructure:"backend"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Bridge     BridgeConfig     `yaml:"bridge" mapstructure:"bridge"`
	Status     StatusConfig     `yaml:"status" mapstructure:"status"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local state and mirror database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BackendConfig configures the bookmark backend API.
type BackendConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ClassifierConfig selects the category classifier.
type ClassifierConfig struct {
	// Provider is one of gemini, anthropic, openai or keyword.
	Provider         string `yaml:"provider" mapstructure:"provider"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// GeminiConfig holds Gemini API settings. APIKey is only a fallback;
// the key saved with "config set-key" takes precedence.
type GeminiConfig struct {
	APIKey            string   `yaml:"api_key" mapstructure:"api_key"`
	BaseURL           string   `yaml:"base_url" mapstructure:"base_url"`
	DefaultModel      string   `yaml:"default_model" mapstructure:"default_model"`
	PreferredModels   []string `yaml:"preferred_models" mapstructure:"preferred_models"`
	RequestsPerMinute int      `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ScrapeConfig tunes the scroll-scrape loop.
type ScrapeConfig struct {
	MaxCycles      int    `yaml:"max_cycles" mapstructure:"max_cycles"`
	StallThreshold int    `yaml:"stall_threshold" mapstructure:"stall_threshold"`
	ScrollDelayMs  int    `yaml:"scroll_delay_ms" mapstructure:"scroll_delay_ms"`
	ExpandDelayMs  int    `yaml:"expand_delay_ms" mapstructure:"expand_delay_ms"`
	SyncAttempts   int    `yaml:"sync_attempts" mapstructure:"sync_attempts"`
	SelectorsFile  string `yaml:"selectors_file" mapstructure:"selectors_file"`
	BookmarksURL   string `yaml:"bookmarks_url" mapstructure:"bookmarks_url"`
}

// BrowserConfig configures the Chromium instance driven in live mode.
type BrowserConfig struct {
	ControlURL  string `yaml:"control_url" mapstructure:"control_url"`
	Headless    bool   `yaml:"headless" mapstructure:"headless"`
	UserDataDir string `yaml:"user_data_dir" mapstructure:"user_data_dir"`
}

// RedisConfig configures the optional durable dedup mirror.
type RedisConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
	Key  string `yaml:"key" mapstructure:"key"`
}

// BridgeConfig configures the web dashboard bridge server.
type BridgeConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// StatusConfig configures transient status messages.
type StatusConfig struct {
	TTLSecs int `yaml:"ttl_secs" mapstructure:"ttl_secs"`
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
	v.AddConfigPath("$HOME/.bookmark-cli")

	// Environment
	v.SetEnvPrefix("BOOKMARKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "bookmarks.db")
	v.SetDefault("backend.base_url", "http://localhost:8080/api")
	v.SetDefault("backend.timeout_secs", 30)
	v.SetDefault("classifier.provider", "gemini")
	v.SetDefault("classifier.breaker_threshold", 5)
	v.SetDefault("classifier.breaker_reset_secs", 60)
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.default_model", "gemini-1.5-flash")
	v.SetDefault("gemini.preferred_models", []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-1.0-pro", "gemini-pro"})
	v.SetDefault("gemini.requests_per_minute", 60)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("scrape.max_cycles", 200)
	v.SetDefault("scrape.stall_threshold", 5)
	v.SetDefault("scrape.scroll_delay_ms", 2000)
	v.SetDefault("scrape.expand_delay_ms", 100)
	v.SetDefault("scrape.sync_attempts", 1)
	v.SetDefault("scrape.bookmarks_url", "https://x.com/i/bookmarks")
	v.SetDefault("browser.headless", false)
	v.SetDefault("redis.key", "bookmarks:seen")
	v.SetDefault("bridge.port", 8765)
	v.SetDefault("bridge.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("status.ttl_secs", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
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
