// Package config loads and validates sentinel configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	API       APIConfig       `mapstructure:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Zones     ZonesConfig     `mapstructure:"zones"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Geocode   GeocodeConfig   `mapstructure:"geocode"`
	Alert     AlertConfig     `mapstructure:"alert"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Progress  ProgressConfig  `mapstructure:"progress"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// APIConfig governs request handling. An empty Key disables authentication.
type APIConfig struct {
	Key            string        `mapstructure:"key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

// LoggingConfig toggles zap development features. Level overrides the
// mode's default level when set.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ZonesConfig points at an optional YAML catalogue replacing the built-in zones.
type ZonesConfig struct {
	File string `mapstructure:"file"`
}

// SearchConfig configures the news search provider.
type SearchConfig struct {
	Provider       string        `mapstructure:"provider"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Topic          string        `mapstructure:"topic"`
	MaxResults     int           `mapstructure:"max_results"`
	Depth          string        `mapstructure:"depth"`
	Country        string        `mapstructure:"country"`
	Days           int           `mapstructure:"days"`
	Keywords       []string      `mapstructure:"keywords"`
	ExcludeDomains []string      `mapstructure:"exclude_domains"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// FetcherConfig configures full-text dereferencing through the reader proxy.
type FetcherConfig struct {
	Dereference       bool          `mapstructure:"dereference"`
	ReaderURL         string        `mapstructure:"reader_url"`
	ReaderAPIKey      string        `mapstructure:"reader_api_key"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MinContentChars   int           `mapstructure:"min_content_chars"`
	MaxCharsPerSource int           `mapstructure:"max_chars_per_source"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// LLMConfig configures the structured extraction model.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GeocodeConfig selects and tunes the geocoding provider.
type GeocodeConfig struct {
	Provider          string        `mapstructure:"provider"`
	BaseURL           string        `mapstructure:"base_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	APIKey            string        `mapstructure:"api_key"`
	Country           string        `mapstructure:"country"`
	CountryCode       string        `mapstructure:"country_code"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	CacheSize         int           `mapstructure:"cache_size"`
}

// AlertConfig configures the messaging bot. Alerts are disabled unless both
// BotToken and ChatID are set.
type AlertConfig struct {
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether alert delivery is configured.
func (a AlertConfig) Enabled() bool {
	return a.BotToken != "" && a.ChatID != ""
}

// SweepConfig tunes the orchestrator.
type SweepConfig struct {
	ZonePause time.Duration `mapstructure:"zone_pause"`
	Archive   bool          `mapstructure:"archive"`
}

// SchedulerConfig controls timer-triggered sweeps.
type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Mode     string        `mapstructure:"mode"`
	Interval time.Duration `mapstructure:"interval"`
	DailyAt  string        `mapstructure:"daily_at"`
	Timezone string        `mapstructure:"timezone"`
}

// StorageConfig selects the sweep archive blob backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DatabaseConfig controls report persistence.
type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	URL         string `mapstructure:"url"`
	MaxConns    int32  `mapstructure:"max_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// PublisherConfig selects the event bus.
type PublisherConfig struct {
	Backend        string   `mapstructure:"backend"`
	NATSURL        string   `mapstructure:"nats_url"`
	KafkaBrokers   []string `mapstructure:"kafka_brokers"`
	ProjectID      string   `mapstructure:"project_id"`
	CompletedTopic string   `mapstructure:"completed_topic"`
	ProgressTopic  string   `mapstructure:"progress_topic"`
}

// ProgressConfig tunes the sweep progress hub.
type ProgressConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
	LogEvents      bool          `mapstructure:"log_events"`
	PublishEvents  bool          `mapstructure:"publish_events"`
}

// secretEnv lists well-known unprefixed variables accepted for secrets.
var secretEnv = map[string]string{
	"search.api_key":         "TAVILY_API_KEY",
	"llm.api_key":            "OPENAI_API_KEY",
	"alert.bot_token":        "TELEGRAM_BOT_TOKEN",
	"alert.chat_id":          "TELEGRAM_CHAT_ID",
	"database.url":           "DATABASE_URL",
	"geocode.api_key":        "GOOGLE_MAPS_API_KEY",
	"fetcher.reader_api_key": "JINA_API_KEY",
}

const envPrefix = "SENTINEL"

// Load builds a Config from .env files, an optional config file and the
// environment. Missing .env files are ignored.
func Load(path string, dotenvFiles ...string) (Config, error) {
	if err := loadDotEnv(dotenvFiles...); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, alias := range secretEnv {
		envKey := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, alias); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_header_timeout", "5s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("api.key", "")
	v.SetDefault("api.request_timeout", "10m")
	v.SetDefault("api.cors_origins", []string{"*"})
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("zones.file", "")

	v.SetDefault("search.provider", "tavily")
	v.SetDefault("search.base_url", "https://api.tavily.com")
	v.SetDefault("search.topic", "news")
	v.SetDefault("search.max_results", 3)
	v.SetDefault("search.depth", "advanced")
	v.SetDefault("search.country", "nigeria")
	v.SetDefault("search.days", 7)
	v.SetDefault("search.keywords", []string{})
	v.SetDefault("search.exclude_domains", []string{})
	v.SetDefault("search.timeout", "15s")

	v.SetDefault("fetcher.dereference", true)
	v.SetDefault("fetcher.reader_url", "https://r.jina.ai/")
	v.SetDefault("fetcher.user_agent", "cnii-sentinel/1.0")
	v.SetDefault("fetcher.timeout", "8s")
	v.SetDefault("fetcher.min_content_chars", 200)
	v.SetDefault("fetcher.max_chars_per_source", 4000)
	v.SetDefault("fetcher.requests_per_second", 2.0)

	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("geocode.provider", "nominatim")
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "cnii_sentinel_patrol")
	v.SetDefault("geocode.country", "Nigeria")
	v.SetDefault("geocode.country_code", "ng")
	v.SetDefault("geocode.timeout", "5s")
	v.SetDefault("geocode.requests_per_second", 1.0)
	v.SetDefault("geocode.cache_size", 512)

	v.SetDefault("alert.base_url", "https://api.telegram.org")
	v.SetDefault("alert.timeout", "10s")

	v.SetDefault("sweep.zone_pause", "0s")
	v.SetDefault("sweep.archive", true)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.mode", "daily")
	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.daily_at", "06:00")
	v.SetDefault("scheduler.timezone", "Africa/Lagos")

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.local_dir", "./data")
	v.SetDefault("storage.prefix", "reports")

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("publisher.backend", "none")
	v.SetDefault("publisher.nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("publisher.kafka_brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("publisher.completed_topic", "sweep.completed")
	v.SetDefault("publisher.progress_topic", "sweep.progress")

	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 100)
	v.SetDefault("progress.max_batch_wait", "500ms")
	v.SetDefault("progress.sink_timeout", "5s")
	v.SetDefault("progress.log_events", true)
	v.SetDefault("progress.publish_events", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Search.MaxResults < 1 || c.Search.MaxResults > 10 {
		return fmt.Errorf("search.max_results must be between 1 and 10")
	}
	if c.Search.Timeout <= 0 || c.Fetcher.Timeout <= 0 || c.LLM.Timeout <= 0 || c.Geocode.Timeout <= 0 {
		return fmt.Errorf("search, fetcher, llm and geocode timeouts must be > 0")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	switch c.Geocode.Provider {
	case "nominatim", "none":
	case "googlemaps":
		if c.Geocode.APIKey == "" {
			return fmt.Errorf("geocode.api_key is required for the googlemaps provider")
		}
	default:
		return fmt.Errorf("geocode.provider %q is not supported", c.Geocode.Provider)
	}
	if err := c.Scheduler.validate(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case "memory", "local", "none":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	switch c.Publisher.Backend {
	case "none", "memory", "nats":
	case "kafka":
		if len(c.Publisher.KafkaBrokers) == 0 {
			return fmt.Errorf("publisher.kafka_brokers is required for the kafka backend")
		}
	case "pubsub":
		if c.Publisher.ProjectID == "" {
			return fmt.Errorf("publisher.project_id is required for the pubsub backend")
		}
	default:
		return fmt.Errorf("publisher.backend %q is not supported", c.Publisher.Backend)
	}
	return nil
}

func (s SchedulerConfig) validate() error {
	if !s.Enabled {
		return nil
	}
	switch s.Mode {
	case "interval":
		if s.Interval <= 0 {
			return fmt.Errorf("scheduler.interval must be > 0 in interval mode")
		}
	case "daily":
		if _, err := time.Parse("15:04", s.DailyAt); err != nil {
			return fmt.Errorf("scheduler.daily_at must be HH:MM: %w", err)
		}
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	default:
		return fmt.Errorf("scheduler.mode %q is not supported", s.Mode)
	}
	return nil
}
