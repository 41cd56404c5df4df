// Package dlog wraps *slog.Logger with the attribute conventions used
// by the Sync Engine, the way
// the teacher's sync_bridge.go and daemon_event_loop.go use log/slog
// directly rather than a third-party logging library.
package dlog

import (
	"context"
	"log/slog"
)

// Logger is the structured logging handle injected through
// DatabaseOptions.Logger. The zero value is not usable; use New.
type Logger struct {
	base *slog.Logger
}

// New wraps base, defaulting to slog.Default() when base is nil.
func New(base *slog.Logger) *Logger {
	if base == nil {
		base = slog.Default()
	}
	return &Logger{base: base}
}

// With returns a Logger whose subsequent records all carry attrs.
func (l *Logger) With(attrs ...any) *Logger {
	return &Logger{base: l.base.With(attrs...)}
}

// Task logs a Task Queue lifecycle event with task_id/label attributes.
func (l *Logger) Task(ctx context.Context, level slog.Level, msg string, taskId, label string, attrs ...any) {
	full := append([]any{"task_id", taskId, "label", label}, attrs...)
	l.base.Log(ctx, level, msg, full...)
}

// Sync logs a Sync Engine event with remote_url/action attributes.
func (l *Logger) Sync(ctx context.Context, level slog.Level, msg string, remoteURL, action string, attrs ...any) {
	full := append([]any{"remote_url", remoteURL, "action", action}, attrs...)
	l.base.Log(ctx, level, msg, full...)
}

// Info, Warn, and Error are thin passthroughs for call sites that don't
// need the task/sync attribute conventions.
func (l *Logger) Info(ctx context.Context, msg string, attrs ...any)  { l.base.InfoContext(ctx, msg, attrs...) }
func (l *Logger) Warn(ctx context.Context, msg string, attrs ...any)  { l.base.WarnContext(ctx, msg, attrs...) }
func (l *Logger) Error(ctx context.Context, msg string, attrs ...any) { l.base.ErrorContext(ctx, msg, attrs...) }
