package log

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{" warning ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestL_DefaultsWithoutInit(t *testing.T) {
	if L() == nil {
		t.Fatal("L() returned nil logger")
	}
	// Helpers must not panic on the default logger.
	Debug("debug line", "k", 1)
	With("component", "test").Info("with line")
}

func TestL_ConcurrentWithSetup(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Setup(Options{Level: "error"})
		}()
		go func() {
			defer wg.Done()
			if L() == nil {
				t.Error("L() returned nil logger")
			}
			Debug("concurrent line")
		}()
	}
	wg.Wait()
}

func TestUse(t *testing.T) {
	var buf bytes.Buffer
	prev := Use(slog.New(slog.NewTextHandler(&buf, nil)))
	defer Use(prev)

	if prev == nil {
		t.Fatal("Use() returned nil previous logger")
	}
	Info("captured line", "k", 1)
	if got := buf.String(); !strings.Contains(got, "captured line") || !strings.Contains(got, "k=1") {
		t.Errorf("log output = %q, want captured line with k=1", got)
	}
	if Use(nil) == nil {
		t.Error("Use(nil) returned nil logger")
	}
}
