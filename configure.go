package scenes

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/goliatone/go-scenes/config"
)

type runtimeDefaults struct {
	timeZone        string
	format          string
	autoStepCount   int
	autoMinInterval string
	engine          string
}

var (
	defaultsMu sync.RWMutex
	defaults   = defaultsFromConfig(config.Defaults())
)

func defaultsFromConfig(cfg config.Config) runtimeDefaults {
	return runtimeDefaults{
		timeZone:        cfg.TimeZone,
		format:          cfg.Format.Default,
		autoStepCount:   cfg.Interval.AutoStepCount,
		autoMinInterval: cfg.Interval.AutoMinInterval,
		engine:          strings.ToLower(cfg.Query.Engine),
	}
}

// Configure applies process-wide runtime defaults and replaces the default
// logger with a slog logger built from cfg.Log.
func Configure(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := resolveLocation(cfg.TimeZone); err != nil {
		return fmt.Errorf("scenes: configure time zone: %w", err)
	}
	if _, err := intervalToMs(cfg.Interval.AutoMinInterval); err != nil {
		return fmt.Errorf("scenes: configure auto min interval: %w", err)
	}

	defaultsMu.Lock()
	defaults = defaultsFromConfig(cfg)
	defaultsMu.Unlock()

	SetDefaultLogger(NewSlogLogger(newSlog(cfg.Log.Level, cfg.Log.Format, os.Stderr)))
	return nil
}

func currentDefaults() runtimeDefaults {
	defaultsMu.RLock()
	defer defaultsMu.RUnlock()
	return defaults
}

// DefaultTimeZone returns the configured fallback time zone.
func DefaultTimeZone() string {
	if tz := currentDefaults().timeZone; tz != "" {
		return tz
	}
	return TimeZoneBrowser
}

func defaultFormat() string {
	if f := currentDefaults().format; f != "" {
		return f
	}
	return FormatGlob
}

// TimeZoneBrowser and TimeZoneUTC are the symbolic zone names.
const (
	TimeZoneBrowser = "browser"
	TimeZoneUTC     = "utc"
)

// resolveLocation maps a zone name to a location. "browser" is the process
// local zone.
func resolveLocation(tz string) (*time.Location, error) {
	switch strings.ToLower(strings.TrimSpace(tz)) {
	case "", TimeZoneBrowser:
		return time.Local, nil
	case TimeZoneUTC:
		return time.UTC, nil
	}
	return time.LoadLocation(tz)
}

// browserTimeZoneName returns an IANA name for the process local zone.
func browserTimeZoneName() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	if name := time.Local.String(); name != "Local" {
		return name
	}
	return "UTC"
}
