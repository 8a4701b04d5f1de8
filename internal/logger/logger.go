package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	telegramIDKey contextKey = "telegram_id"
	purchaseIDKey contextKey = "purchase_id"
)

// Setup installs the process-wide logger. Dev environments get a text handler,
// everything else JSON.
func Setup(env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if env == "dev" || env == "development" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func WithTelegramID(ctx context.Context, telegramID int64) context.Context {
	return context.WithValue(ctx, telegramIDKey, telegramID)
}

func WithPurchaseID(ctx context.Context, purchaseID string) context.Context {
	return context.WithValue(ctx, purchaseIDKey, purchaseID)
}

// FromContext returns the default logger enriched with the identifiers stored in ctx.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if ctx == nil {
		return l
	}

	var fields []any
	if id, ok := ctx.Value(telegramIDKey).(int64); ok {
		fields = append(fields, "telegram_id", id)
	}
	if id, ok := ctx.Value(purchaseIDKey).(string); ok && id != "" {
		fields = append(fields, "purchase_id", id)
	}
	if len(fields) > 0 {
		l = l.With(fields...)
	}
	return l
}
