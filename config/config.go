// Package config loads process-level defaults for the scene runtime.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SCENES_FORMAT_DEFAULT.
const EnvPrefix = "SCENES"

// Config holds runtime defaults.
type Config struct {
	TimeZone string         `mapstructure:"time_zone"`
	Format   FormatConfig   `mapstructure:"format"`
	Interval IntervalConfig `mapstructure:"interval"`
	Query    QueryConfig    `mapstructure:"query"`
	Log      LogConfig      `mapstructure:"log"`
	Activity ActivityConfig `mapstructure:"activity"`
}

// FormatConfig holds interpolation settings.
type FormatConfig struct {
	Default string `mapstructure:"default"`
}

// IntervalConfig holds defaults for auto intervals.
type IntervalConfig struct {
	AutoStepCount   int    `mapstructure:"auto_step_count"`
	AutoMinInterval string `mapstructure:"auto_min_interval"`
}

// QueryConfig selects the evaluator used by query variables.
type QueryConfig struct {
	Engine string `mapstructure:"engine"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ActivityConfig holds activity emission settings.
type ActivityConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Channel string `mapstructure:"channel"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		TimeZone: "browser",
		Format:   FormatConfig{Default: "glob"},
		Interval: IntervalConfig{AutoStepCount: 30, AutoMinInterval: "10s"},
		Query:    QueryConfig{Engine: "expr"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Activity: ActivityConfig{Enabled: false, Channel: "scenes"},
	}
}

// Load reads configuration from the file named by SCENES_CONFIG, or
// $HOME/.config/scenes/config.toml when present, then applies SCENES_*
// environment overrides.
func Load() (Config, error) {
	path := os.Getenv(EnvPrefix + "_CONFIG")
	if path == "" {
		return load("", true)
	}
	return load(path, false)
}

// LoadFile reads configuration from path and applies environment overrides.
// A missing file is an error.
func LoadFile(path string) (Config, error) {
	return load(path, false)
}

func load(path string, optional bool) (Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "scenes"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !optional {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("time_zone", d.TimeZone)
	v.SetDefault("format.default", d.Format.Default)
	v.SetDefault("interval.auto_step_count", d.Interval.AutoStepCount)
	v.SetDefault("interval.auto_min_interval", d.Interval.AutoMinInterval)
	v.SetDefault("query.engine", d.Query.Engine)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("activity.enabled", d.Activity.Enabled)
	v.SetDefault("activity.channel", d.Activity.Channel)
}

// Validate checks values that cannot be repaired by defaults.
func (c Config) Validate() error {
	if c.Interval.AutoStepCount <= 0 {
		return fmt.Errorf("config: interval.auto_step_count must be positive, got %d", c.Interval.AutoStepCount)
	}
	switch strings.ToLower(c.Query.Engine) {
	case "expr", "cel", "js":
	default:
		return fmt.Errorf("config: unknown query.engine %q", c.Query.Engine)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}
