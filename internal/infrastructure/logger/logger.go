// Package logger provides the structured logging facade used across the service.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Config controls log level, output format and optional Loki shipping.
type Config struct {
	Level   string
	Format  string // "json" or "console"
	LokiURL string
	Labels  map[string]string
}

// Logger wraps zerolog with the keys-and-values call shape used by every
// component in this codebase.
type Logger struct {
	zl zerolog.Logger
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(Config{Level: "info", Format: "console"})
)

// New creates a logger from the given configuration.
func New(cfg Config) *Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	if cfg.LokiURL != "" {
		out = zerolog.MultiLevelWriter(out, newLokiWriter(cfg.LokiURL, cfg.Labels))
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// SetDefault installs the process-wide default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default returns the process-wide default logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// With returns a child logger carrying the given fields on every line.
func (l *Logger) With(keysAndValues ...any) *Logger {
	ctx := l.zl.With()
	for k, v := range pairs(keysAndValues) {
		ctx = ctx.Interface(k, v)
	}
	child := ctx.Logger()
	return &Logger{zl: child}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.emit(l.zl.Debug(), msg, keysAndValues)
}

// Info logs at info level.
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.emit(l.zl.Info(), msg, keysAndValues)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.emit(l.zl.Warn(), msg, keysAndValues)
}

// Error logs at error level.
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.emit(l.zl.Error(), msg, keysAndValues)
}

func (l *Logger) emit(ev *zerolog.Event, msg string, keysAndValues []any) {
	for k, v := range pairs(keysAndValues) {
		if err, ok := v.(error); ok {
			ev = ev.AnErr(k, err)
			continue
		}
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

// pairs folds a keys-and-values slice into a map; a dangling key gets a
// placeholder value rather than being dropped.
func pairs(keysAndValues []any) map[string]any {
	if len(keysAndValues) == 0 {
		return nil
	}
	out := make(map[string]any, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		if i+1 < len(keysAndValues) {
			out[key] = keysAndValues[i+1]
		} else {
			out[key] = "(missing)"
		}
	}
	return out
}
