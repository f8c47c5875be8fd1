package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
	// UsernameKey is the context key for username
	UsernameKey ContextKey = "username"
	// ContractIDKey is the context key for the contract being processed
	ContractIDKey ContextKey = "contract_id"
)

var contextKeys = []ContextKey{RequestIDKey, UsernameKey, ContractIDKey}

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// New builds a logger writing to w.
func New(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Init initializes the global slog logger on stdout
func Init(cfg *Config) *slog.Logger {
	l := New(cfg, os.Stdout)
	slog.SetDefault(l)
	return l
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// WithContractID returns a context that tags log lines with the contract id.
func WithContractID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContractIDKey, id)
}

// ContractID returns the contract id stored on ctx, if any.
func ContractID(ctx context.Context) string {
	id, _ := ctx.Value(ContractIDKey).(string)
	return id
}

// WithContext returns the default logger with context values attached
func WithContext(ctx context.Context) *slog.Logger {
	return From(ctx, slog.Default())
}

// From attaches the context values known to this package to base.
func From(ctx context.Context, base *slog.Logger) *slog.Logger {
	l := base
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			l = l.With(string(key), v)
		}
	}
	return l
}

// Info logs at info level with context
func Info(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

// Debug logs at debug level with context
func Debug(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}

// Warn logs at warn level with context
func Warn(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

// Error logs at error level with context
func Error(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}
