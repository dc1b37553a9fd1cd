// Package config loads and validates the engine configuration.
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"traderelay/internal/analyzer"
	"traderelay/internal/decision"
	"traderelay/internal/dispatch"
	"traderelay/internal/execution"
	"traderelay/internal/notifier"
	"traderelay/internal/supervisor"
	"traderelay/internal/venue/binance"
	"traderelay/internal/venue/bridge"
)

// RetryConfig tunes the venue retry loop.
type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
}

// VenueConfig selects and configures the execution venue.
type VenueConfig struct {
	Driver  string         `mapstructure:"driver"` // bridge or binance
	Bridge  bridge.Config  `mapstructure:"bridge"`
	Binance binance.Config `mapstructure:"binance"`
	Retry   RetryConfig    `mapstructure:"retry"`
}

// TPAssignConfig selects the take-profit assignment policy.
type TPAssignConfig struct {
	Mode    string `mapstructure:"mode"`
	Mapping []int  `mapstructure:"mapping"`
}

// IngestConfig tunes the message intake path.
type IngestConfig struct {
	DedupCapacity       int           `mapstructure:"dedup_capacity"`
	MarketCooldown      time.Duration `mapstructure:"market_cooldown"`
	RequireConfirmation bool          `mapstructure:"require_confirmation"`
	ConfirmTTL          time.Duration `mapstructure:"confirm_ttl"`
}

// JournalConfig locates the trade journal.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// AdminConfig exposes the local admin HTTP surface.
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// SummaryConfig schedules the daily performance summary.
type SummaryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	Hour         int  `mapstructure:"hour"`
	Minute       int  `mapstructure:"minute"`
	SkipWeekends bool `mapstructure:"skip_weekends"`
}

// SymbolsConfig locates the symbol specification overrides.
type SymbolsConfig struct {
	SpecsFile string `mapstructure:"specs_file"`
}

// Config is the full engine configuration.
type Config struct {
	LogLevel   string                  `mapstructure:"log_level"`
	LogFile    string                  `mapstructure:"log_file"`
	Venue      VenueConfig             `mapstructure:"venue"`
	Analyzer   analyzer.Config         `mapstructure:"analyzer"`
	Decision   decision.Config         `mapstructure:"decision"`
	Execution  execution.Config        `mapstructure:"execution"`
	TPAssign   TPAssignConfig          `mapstructure:"tp_assignment"`
	Supervisor supervisor.Config       `mapstructure:"supervisor"`
	Dispatch   dispatch.Config         `mapstructure:"dispatch"`
	Telegram   notifier.TelegramConfig `mapstructure:"telegram"`
	Journal    JournalConfig           `mapstructure:"journal"`
	Ingest     IngestConfig            `mapstructure:"ingest"`
	Admin      AdminConfig             `mapstructure:"admin"`
	Summary    SummaryConfig           `mapstructure:"summary"`
	Symbols    SymbolsConfig           `mapstructure:"symbols"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("venue.driver", "bridge")
	v.SetDefault("venue.retry.attempts", 3)
	v.SetDefault("venue.retry.delay", "500ms")
	v.SetDefault("venue.bridge.timeout", "15s")
	v.SetDefault("venue.bridge.max_failures", 5)
	v.SetDefault("venue.bridge.cooldown", "30s")
	v.SetDefault("analyzer.timeout", "30s")
	v.SetDefault("decision.threshold", 0.6)
	v.SetDefault("decision.use_sentiment", true)
	v.SetDefault("decision.max_entry_distance_pips", 500)
	v.SetDefault("decision.weights.price_action", 0.5)
	v.SetDefault("decision.weights.sentiment", 0.5)
	v.SetDefault("execution.strategy", "single")
	v.SetDefault("execution.legs", 3)
	v.SetDefault("execution.base_volume", 0.02)
	v.SetDefault("execution.entry_mode", "midpoint")
	v.SetDefault("execution.pending_offset_pips", 0)
	v.SetDefault("tp_assignment.mode", "none")
	v.SetDefault("supervisor.interval", "5s")
	v.SetDefault("supervisor.max_concurrent", 8)
	v.SetDefault("supervisor.partial_close_percent", 50)
	v.SetDefault("supervisor.awaiting_grace", "30s")
	v.SetDefault("supervisor.auto_stop.enabled", true)
	v.SetDefault("supervisor.auto_stop.pips", 300)
	v.SetDefault("supervisor.break_even.enabled", true)
	v.SetDefault("supervisor.break_even.activation_pips", 200)
	v.SetDefault("supervisor.break_even.offset_pips", 0)
	v.SetDefault("supervisor.trailing.enabled", false)
	v.SetDefault("supervisor.trailing.activation_pips", 300)
	v.SetDefault("supervisor.trailing.distance_pips", 150)
	v.SetDefault("dispatch.allow_stop_modify", true)
	v.SetDefault("dispatch.allow_close", true)
	v.SetDefault("dispatch.allow_cancel", true)
	v.SetDefault("dispatch.allow_entry_modify", true)
	v.SetDefault("dispatch.default_close_percent", 50)
	v.SetDefault("dispatch.break_even_offset_pips", 0)
	v.SetDefault("dispatch.awaiting_grace", "30s")
	v.SetDefault("journal.path", "traderelay.db")
	v.SetDefault("ingest.dedup_capacity", 512)
	v.SetDefault("ingest.market_cooldown", "60s")
	v.SetDefault("ingest.require_confirmation", false)
	v.SetDefault("ingest.confirm_ttl", "5m")
	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.listen", "127.0.0.1:8089")
	v.SetDefault("summary.enabled", true)
	v.SetDefault("summary.hour", 22)
	v.SetDefault("summary.minute", 0)
	v.SetDefault("summary.skip_weekends", true)
}

// Load reads, decodes and validates the configuration file at path.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Venue.Driver {
	case "bridge":
		if c.Venue.Bridge.BaseURL == "" {
			return fmt.Errorf("config: venue.bridge.base_url is required")
		}
	case "binance":
		if c.Venue.Binance.APIKey == "" || c.Venue.Binance.APISecret == "" {
			return fmt.Errorf("config: venue.binance credentials are required")
		}
	default:
		return fmt.Errorf("config: unknown venue driver %q", c.Venue.Driver)
	}
	if c.Analyzer.BaseURL == "" {
		return fmt.Errorf("config: analyzer.base_url is required")
	}
	if c.Execution.BaseVolume <= 0 {
		return fmt.Errorf("config: execution.base_volume must be positive")
	}
	if c.Execution.Legs < 1 {
		return fmt.Errorf("config: execution.legs must be at least 1")
	}
	if c.Decision.Threshold < 0 || c.Decision.Threshold > 1 {
		return fmt.Errorf("config: decision.threshold must be in [0, 1]")
	}
	if c.Supervisor.PartialClosePercent <= 0 || c.Supervisor.PartialClosePercent > 100 {
		return fmt.Errorf("config: supervisor.partial_close_percent must be in (0, 100]")
	}
	if c.Summary.Hour < 0 || c.Summary.Hour > 23 || c.Summary.Minute < 0 || c.Summary.Minute > 59 {
		return fmt.Errorf("config: summary time %d:%d out of range", c.Summary.Hour, c.Summary.Minute)
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("config: telegram enabled without bot_token and chat_id")
	}
	return nil
}
