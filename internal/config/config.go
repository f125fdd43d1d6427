package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Import    ImportConfig    `yaml:"import" mapstructure:"import"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	Model           string `yaml:"model" mapstructure:"model"`
	VisionModel     string `yaml:"vision_model" mapstructure:"vision_model"`
	MaxTokens       int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	VisionMaxTokens int64  `yaml:"vision_max_tokens" mapstructure:"vision_max_tokens"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// CacheTTL is the prompt cache lifetime for system prompts ("5m" or "1h").
	CacheTTL string `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// ImportConfig tunes batching, pacing and retries of the import pipeline.
type ImportConfig struct {
	BusinessVertical string `yaml:"business_vertical" mapstructure:"business_vertical"`

	// ResponseRatio and ResponseOverhead predict response characters from
	// input characters: ratio*input + overhead.
	ResponseRatio    float64 `yaml:"response_ratio" mapstructure:"response_ratio"`
	ResponseOverhead int     `yaml:"response_overhead" mapstructure:"response_overhead"`
	BatchBudget      int     `yaml:"batch_budget" mapstructure:"batch_budget"`
	LargeThreshold   int     `yaml:"large_threshold" mapstructure:"large_threshold"`
	SampleRows       int     `yaml:"sample_rows" mapstructure:"sample_rows"`

	MaxConcurrency        int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	InterBatchDelayMs     int `yaml:"inter_batch_delay_ms" mapstructure:"inter_batch_delay_ms"`
	RetryAttempts         int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryInitialBackoffMs int `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs     int `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	MaxFileMB             int `yaml:"max_file_mb" mapstructure:"max_file_mb"`
}

// OCRConfig configures PDF text-layer extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MaxHintChars  int    `yaml:"max_hint_chars" mapstructure:"max_hint_chars"`
}

// ServerConfig configures the upload server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("ARQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "arqcashflow.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.vision_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.vision_max_tokens", 16384)
	v.SetDefault("anthropic.timeout_secs", 120)
	v.SetDefault("anthropic.cache_ttl", "5m")
	v.SetDefault("import.business_vertical", "architecture")
	v.SetDefault("import.response_ratio", 0.6)
	v.SetDefault("import.response_overhead", 500)
	v.SetDefault("import.batch_budget", 24000)
	v.SetDefault("import.large_threshold", 16000)
	v.SetDefault("import.sample_rows", 20)
	v.SetDefault("import.max_concurrency", 4)
	v.SetDefault("import.inter_batch_delay_ms", 1000)
	v.SetDefault("import.retry_attempts", 2)
	v.SetDefault("import.retry_initial_backoff_ms", 2000)
	v.SetDefault("import.retry_max_backoff_ms", 30000)
	v.SetDefault("import.max_file_mb", 25)
	v.SetDefault("ocr.provider", "textlayer")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.max_hint_chars", 20000)
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

// Validate checks the keys a command mode depends on. Modes: "import",
// "dry-run", "serve", "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string

	needStore := false
	needModel := false
	switch mode {
	case "import":
		needStore, needModel = true, true
	case "dry-run":
		needModel = true
	case "serve":
		needStore, needModel = true, true
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "migrate":
		needStore = true
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needStore {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}

	if needModel {
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		errs = append(errs, c.Import.validate()...)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (ic ImportConfig) validate() []string {
	var errs []string
	if ic.MaxConcurrency < 1 || ic.MaxConcurrency > 32 {
		errs = append(errs, "import.max_concurrency must be between 1 and 32")
	}
	if ic.ResponseRatio <= 0 {
		errs = append(errs, "import.response_ratio must be > 0")
	}
	if ic.BatchBudget <= 0 {
		errs = append(errs, "import.batch_budget must be > 0")
	}
	if ic.LargeThreshold <= 0 || ic.LargeThreshold > ic.BatchBudget {
		errs = append(errs, "import.large_threshold must be between 1 and import.batch_budget")
	}
	if ic.SampleRows < 1 {
		errs = append(errs, "import.sample_rows must be >= 1")
	}
	if ic.RetryAttempts < 1 {
		errs = append(errs, "import.retry_attempts must be >= 1")
	}
	return errs
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
