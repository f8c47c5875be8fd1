package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "info", Format: "json"}, &buf)
	l.Info("hello", "stage", "extract")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "hello" || entry["stage"] != "extract" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "warn", Format: "text"}, &buf)
	l.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered at warn level, got %q", buf.String())
	}
}

func TestFromAttachesContextValues(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: "debug", Format: "text"}, &buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")
	ctx = context.WithValue(ctx, UsernameKey, "alice")
	ctx = WithContractID(ctx, "contract-9")

	From(ctx, base).Info("processing")

	out := buf.String()
	for _, want := range []string{"request_id=req-123", "username=alice", "contract_id=contract-9"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %q", want, out)
		}
	}
	if got := ContractID(ctx); got != "contract-9" {
		t.Errorf("Expected contract-9, got %s", got)
	}
}

func TestFromEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: "info", Format: "text"}, &buf)

	From(context.Background(), base).Info("plain")
	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("Expected no request_id attribute, got %q", buf.String())
	}
	if ContractID(context.Background()) != "" {
		t.Error("Expected empty contract id")
	}
}

func TestLogFunctions(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(New(&Config{Level: "debug", Format: "text"}, &buf))

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")

	logs := []struct {
		name string
		fn   func(context.Context, string, ...any)
	}{
		{"info", Info},
		{"debug", Debug},
		{"warn", Warn},
		{"error", Error},
	}
	for _, l := range logs {
		buf.Reset()
		l.fn(ctx, l.name+" message", "key", "value")
		if !strings.Contains(buf.String(), l.name+" message") || !strings.Contains(buf.String(), "req-123") {
			t.Errorf("Expected %s message with request id, got %q", l.name, buf.String())
		}
	}
}
