package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	Discord struct {
		BotToken     string `koanf:"bot_token" yaml:"bot_token"`
		MessageCache int    `koanf:"message_cache" yaml:"message_cache"`
	} `koanf:"discord" yaml:"discord"`

	Commands struct {
		Prefix       string        `koanf:"prefix" yaml:"prefix"`
		MuteDuration time.Duration `koanf:"mute_duration" yaml:"mute_duration"`
	} `koanf:"commands" yaml:"commands"`

	Relay struct {
		AuditLogTimeout time.Duration `koanf:"audit_log_timeout" yaml:"audit_log_timeout"`
	} `koanf:"relay" yaml:"relay"`

	Store struct {
		Backend string `koanf:"backend" yaml:"backend"`
	} `koanf:"store" yaml:"store"`

	Database struct {
		// Path is the DuckDB file. Empty keeps the database in memory.
		Path string `koanf:"path" yaml:"path"`
	} `koanf:"database" yaml:"database"`

	Schedules struct {
		ChannelCheck string `koanf:"channel_check" yaml:"channel_check"`
	} `koanf:"schedules" yaml:"schedules"`

	Metrics struct {
		Address string `koanf:"address" yaml:"address"`
	} `koanf:"metrics" yaml:"metrics"`

	Log struct {
		Level    string `koanf:"level" yaml:"level"`
		Format   string `koanf:"format" yaml:"format"`
		TimeZone string `koanf:"timezone" yaml:"timezone"`
	} `koanf:"log" yaml:"log"`
}

// DefaultLocations are searched in order for a config file.
var DefaultLocations = []string{
	"/etc/modlog/config.yaml",         // Standard system location
	"/config/config.yaml",             // Docker mounted volume location
	filepath.Join(".", "config.yaml"), // Local file in current directory
}

// Global singleton config instance
var (
	cfg  *AppConfig
	once sync.Once
)

// Get returns the global AppConfig instance
func Get() *AppConfig {
	once.Do(func() {
		var err error
		cfg, err = Load(DefaultLocations)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
	})
	return cfg
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"discord.message_cache":   500,
		"commands.prefix":         "?",
		"commands.mute_duration":  "10m",
		"relay.audit_log_timeout": "5s",
		"store.backend":           "memory",
		"database.path":           "",
		"schedules.channel_check": "0 0 * * * *",
		"metrics.address":         "",
		"log.level":               "info",
		"log.format":              "pretty",
		"log.timezone":            "",
	}
}

// Load reads configuration from defaults, the first config file found in
// locations, and the environment, in that order of precedence.
func Load(locations []string) (*AppConfig, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	configLoaded := false
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			slog.Info("Loading configuration file", "path", loc)
			if err := k.Load(file.Provider(loc), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("error loading config file %s: %w", loc, err)
			}
			configLoaded = true
			break
		}
	}

	if !configLoaded {
		slog.Warn("No config file found in any of the expected locations",
			"searched_locations", locations)
	}

	// Bare TOKEN is accepted for the bot token; APP_ variables override it.
	tokenOnly := func(s string) string {
		if s == "TOKEN" {
			return "discord.bot_token"
		}
		return ""
	}
	if err := k.Load(env.Provider("TOKEN", ".", tokenOnly), nil); err != nil {
		return nil, fmt.Errorf("error loading TOKEN variable: %w", err)
	}

	if err := k.Load(env.Provider("APP_", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var out AppConfig
	decoderConfig := koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			WeaklyTypedInput: true,
			Result:           &out,
		},
	}

	if err := k.UnmarshalWithConf("", &out, decoderConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Log configuration details (with sensitive information redacted)
	slog.Debug("Configuration loaded",
		"bot_token_present", out.Discord.BotToken != "",
		"prefix", out.Commands.Prefix,
		"store_backend", out.Store.Backend,
		"database_path", out.Database.Path,
		"metrics_address", out.Metrics.Address)

	if err := out.validate(); err != nil {
		return nil, err
	}

	return &out, nil
}

// envKey converts APP_COMMANDS_MUTE_DURATION to commands.mute_duration.
// Only the first underscore after the prefix separates section from key.
func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), "app_")
	return strings.Replace(s, "_", ".", 1)
}

func (c *AppConfig) validate() error {
	if c.Discord.BotToken == "" {
		return fmt.Errorf("discord.bot_token is required")
	}
	if c.Commands.Prefix == "" {
		return fmt.Errorf("commands.prefix must not be empty")
	}
	if c.Commands.MuteDuration <= 0 {
		return fmt.Errorf("commands.mute_duration must be positive, got %s", c.Commands.MuteDuration)
	}
	switch c.Store.Backend {
	case "memory", "duckdb":
	default:
		return fmt.Errorf("store.backend must be memory or duckdb, got %q", c.Store.Backend)
	}
	return nil
}
