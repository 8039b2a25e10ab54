package scenes

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"
)

func loadFixture[T any](t *testing.T, name string) T {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("unable to resolve caller for fixture %q", name)
	}
	path := filepath.Join(filepath.Dir(file), "testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %q: %v", path, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed to unmarshal fixture %q: %v", path, err)
	}
	return out
}

// logCapture collects log events emitted through a LoggerFunc.
type logCapture struct {
	mu     sync.Mutex
	events []LogEvent
}

func (c *logCapture) logger() Logger {
	return LoggerFunc(func(event LogEvent) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, event)
	})
}

func (c *logCapture) messages(level LogLevel) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, event := range c.events {
		if event.Level == level {
			out = append(out, event.Message)
		}
	}
	return out
}

func (c *logCapture) has(level LogLevel, message string) bool {
	for _, msg := range c.messages(level) {
		if msg == message {
			return true
		}
	}
	return false
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustActivate(t *testing.T, obj SceneObject) Deactivate {
	t.Helper()
	deactivate, err := obj.Base().Activate()
	if err != nil {
		t.Fatalf("activate %s: %v", obj.Base().Kind(), err)
	}
	return deactivate
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return parsed
}
