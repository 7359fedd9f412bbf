// Package logging provides the pipeline's context-scoped structured
// logger: Infof/Warnf/Errorf/Debugf taking a context.Context first, in the
// shape used throughout the audio/download pipelines this module is
// modeled on, backed by log/slog.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

type ctxKey struct{}

// WithFields returns a context carrying the given key/value pairs; any
// logging call made against the returned context includes them.
func WithFields(ctx context.Context, args ...any) context.Context {
	attrs := fieldsFrom(ctx)
	return context.WithValue(ctx, ctxKey{}, append(attrs, args...))
}

func fieldsFrom(ctx context.Context) []any {
	v, _ := ctx.Value(ctxKey{}).([]any)
	// defensive copy so children don't mutate a shared parent slice
	out := make([]any, len(v))
	copy(out, v)
	return out
}

var base = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetLevel adjusts the minimum emitted level for the default logger.
func SetLevel(level slog.Level) {
	base = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func Infof(ctx context.Context, format string, args ...any) {
	base.With(fieldsFrom(ctx)...).Info(sprintf(format, args...))
}

func Warnf(ctx context.Context, format string, args ...any) {
	base.With(fieldsFrom(ctx)...).Warn(sprintf(format, args...))
}

func Errorf(ctx context.Context, format string, args ...any) {
	base.With(fieldsFrom(ctx)...).Error(sprintf(format, args...))
}

func Debugf(ctx context.Context, format string, args ...any) {
	base.With(fieldsFrom(ctx)...).Debug(sprintf(format, args...))
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
