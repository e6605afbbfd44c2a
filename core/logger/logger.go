package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu       sync.RWMutex
	instance = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

// Options configures the process logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	Output io.Writer
}

// Init replaces the process logger. Safe to call more than once.
func Init(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	mu.Lock()
	instance = slog.New(handler)
	mu.Unlock()
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Get returns the underlying slog logger.
func Get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

// AsynqLogger adapts the process logger to asynq's Logger interface.
type AsynqLogger struct{}

func (AsynqLogger) Debug(args ...interface{}) { Debug(fmt.Sprint(args...), "component", "asynq") }
func (AsynqLogger) Info(args ...interface{})  { Info(fmt.Sprint(args...), "component", "asynq") }
func (AsynqLogger) Warn(args ...interface{})  { Warn(fmt.Sprint(args...), "component", "asynq") }
func (AsynqLogger) Error(args ...interface{}) { Error(fmt.Sprint(args...), "component", "asynq") }

func (AsynqLogger) Fatal(args ...interface{}) {
	Error(fmt.Sprint(args...), "component", "asynq", "fatal", true)
	os.Exit(1)
}
