// Package logger provides the process-wide file logger.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	globalLogger *slog.Logger
	logFile      *os.File
	console      io.Writer  // set by InitWriter
	consoleLevel slog.Level // level for console
	mu           sync.Mutex
)

// Init initializes the global logger with the specified log file path.
// Until Init or InitWriter is called every log call is a no-op. A writer
// already set with InitWriter keeps receiving output.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = f
	rebuild()
	return nil
}

// InitWriter routes log output at level and above to w, in addition to the
// log file when one is open. Used by tests and by --verbose.
func InitWriter(w io.Writer, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()

	console = w
	consoleLevel = level
	rebuild()
}

// Close closes the log file and drops every sink.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	console = nil
	globalLogger = nil
}

// rebuild recreates globalLogger from the open sinks. Callers hold mu.
func rebuild() {
	var handlers []slog.Handler
	if logFile != nil {
		handlers = append(handlers, slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	if console != nil {
		handlers = append(handlers, slog.NewTextHandler(console, &slog.HandlerOptions{Level: consoleLevel}))
	}

	switch len(handlers) {
	case 0:
		globalLogger = nil
	case 1:
		globalLogger = slog.New(handlers[0])
	default:
		globalLogger = slog.New(fanout(handlers))
	}
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

func logf(level slog.Level, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.Log(context.Background(), level, fmt.Sprintf(format, v...))
	}
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	logf(slog.LevelInfo, format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	logf(slog.LevelDebug, format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	logf(slog.LevelError, format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	logf(slog.LevelWarn, format, v...)
}

// With returns a structured logger carrying attrs, for callers that log
// key/value pairs (flow name, step index). It discards output until Init.
func With(args ...any) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return globalLogger.With(args...)
}

// GetWriter returns a writer for raw driver process output. It writes to
// the log file and the console writer, whichever are set.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	switch {
	case logFile != nil && console != nil:
		return io.MultiWriter(logFile, console)
	case logFile != nil:
		return logFile
	case console != nil:
		return console
	default:
		return io.Discard
	}
}
