package scenes

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// LogLevel orders log events by severity.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLogLevel converts a level name, returning LogLevelInfo for unknown input.
func ParseLogLevel(value string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogEvent describes something worth recording about a scene object.
type LogEvent struct {
	Level   LogLevel
	Message string
	Key     string
	Kind    string
	Fields  map[string]any
	Err     error
}

// Logger records scene log events.
type Logger interface {
	Log(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// Log implements Logger.
func (f LoggerFunc) Log(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) Log(LogEvent) {}

// NopLogger returns a Logger that drops every event.
func NopLogger() Logger {
	return noopLogger{}
}

type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger forwards log events to a slog.Logger.
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return slogLogger{logger: logger}
}

func (l slogLogger) Log(event LogEvent) {
	attrs := make([]slog.Attr, 0, len(event.Fields)+3)
	if event.Key != "" {
		attrs = append(attrs, slog.String("key", event.Key))
	}
	if event.Kind != "" {
		attrs = append(attrs, slog.String("kind", event.Kind))
	}
	for name, value := range event.Fields {
		attrs = append(attrs, slog.Any(name, value))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.Any("error", event.Err))
	}
	l.logger.LogAttrs(context.Background(), slogLevel(event.Level), event.Message, attrs...)
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newSlog builds a text or JSON slog.Logger writing to out.
func newSlog(level, format string, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(ParseLogLevel(level))}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   Logger = NewSlogLogger(nil)
)

// SetDefaultLogger replaces the logger used by objects without a logger of
// their own or on any ancestor. A nil logger silences output.
func SetDefaultLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	defaultLoggerMu.Lock()
	defaultLogger = logger
	defaultLoggerMu.Unlock()
}

func processLogger() Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

func (o *Object) logEvent(level LogLevel, msg string, err error, fields map[string]any) {
	o.Logger().Log(LogEvent{
		Level:   level,
		Message: msg,
		Key:     o.Key(),
		Kind:    o.Kind(),
		Fields:  fields,
		Err:     err,
	})
}

func (o *Object) debug(msg string, fields map[string]any) {
	o.logEvent(LogLevelDebug, msg, nil, fields)
}

func (o *Object) warn(msg string, fields map[string]any) {
	o.logEvent(LogLevelWarn, msg, nil, fields)
}

func (o *Object) logError(msg string, err error, fields map[string]any) {
	o.logEvent(LogLevelError, msg, err, fields)
}
