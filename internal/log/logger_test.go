package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_ComponentAttribute(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{
		Component: "worker",
		Handler:   slog.NewTextHandler(&buf, nil),
	})

	l.Info("hello")
	if got := buf.String(); !strings.Contains(got, "component=worker") {
		t.Errorf("log line missing component attribute: %q", got)
	}
}

func TestWithComponent(t *testing.T) {
	l := New(DefaultConfig())
	if l.Component() != "app" {
		t.Errorf("Component() = %q, want app", l.Component())
	}

	sub := l.WithComponent("http")
	if sub.Component() != "http" {
		t.Errorf("Component() = %q, want http", sub.Component())
	}
	if l.Component() != "app" {
		t.Error("WithComponent should not mutate the parent logger")
	}
}

func TestLevelFromEnv(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"junk":  slog.LevelInfo,
	}
	for value, want := range tests {
		t.Setenv("LOG_LEVEL", value)
		if got := levelFromEnv(); got != want {
			t.Errorf("LOG_LEVEL=%q: level = %v, want %v", value, got, want)
		}
	}
}
