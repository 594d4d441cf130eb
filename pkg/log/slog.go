// Package log: log/slog-backed implementation of the Logger interface.
//
// SlogProvider routes library logs into an application's existing slog
// handler. The handler is wrapped with ErrFmtHandler so records carry the
// same stacktrace attribute the zerolog backend emits.

package log

import (
	"context"
	"log/slog"
)

// slogLogger adapts a slog.Logger to the Logger interface.
type slogLogger struct {
	sl    *slog.Logger
	level *slog.LevelVar
}

// Debug implements Logger.Debug.
func (s *slogLogger) Debug(msg string, fields ...any) {
	s.log(slog.LevelDebug, msg, fields)
}

// Info implements Logger.Info.
func (s *slogLogger) Info(msg string, fields ...any) {
	s.log(slog.LevelInfo, msg, fields)
}

// Warn implements Logger.Warn.
func (s *slogLogger) Warn(msg string, fields ...any) {
	s.log(slog.LevelWarn, msg, fields)
}

// Error implements Logger.Error. An error value passed as the first field
// becomes the error attribute, which ErrFmtHandler expands with a stack
// trace when one is available.
func (s *slogLogger) Error(msg string, fields ...any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			fields = append([]any{ErrAttr(err)}, fields[1:]...)
		}
	}
	s.log(slog.LevelError, msg, fields)
}

func (s *slogLogger) log(level slog.Level, msg string, fields []any) {
	if level < s.level.Level() {
		return
	}
	s.sl.Log(context.Background(), level, msg, fields...)
}

// With implements Logger.With.
func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{sl: s.sl.With(fields...), level: s.level}
}

// Enabled implements Logger.Enabled.
func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return slog.Level(level) >= s.level.Level() && s.sl.Enabled(ctx, slog.Level(level))
}

// SlogProvider is a LoggerProvider backed by log/slog. Level values are
// shared between slog and this package, so the provider level filters
// records before they reach the wrapped handler.
type SlogProvider struct {
	handler slog.Handler
	level   *slog.LevelVar
}

// NewSlogProvider wraps h for use as the global provider:
//
//	log.SetProvider(log.NewSlogProvider(slog.NewJSONHandler(os.Stderr, nil)))
//
// The initial level is Warn, matching the zerolog default.
func NewSlogProvider(h slog.Handler) *SlogProvider {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	return &SlogProvider{handler: WrapByErrFmtHandler(h), level: level}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *SlogProvider) GetLogger() Logger {
	return &slogLogger{sl: slog.New(p.handler), level: p.level}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *SlogProvider) GetLoggerWithName(name string) Logger {
	return &slogLogger{sl: slog.New(p.handler).With(ComponentKey, name), level: p.level}
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *SlogProvider) SetLevel(level Level) {
	p.level.Set(slog.Level(level))
}
