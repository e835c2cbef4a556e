package utils

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// LogLevel represents an enumeration of log levels
type LogLevel = log.Level

const (
	Fatal   LogLevel = log.FatalLevel
	Error   LogLevel = log.ErrorLevel
	Warning LogLevel = log.WarnLevel
	Info    LogLevel = log.InfoLevel
	Debug   LogLevel = log.DebugLevel
)

var (
	defaultLevel  = Info
	defaultOutput io.Writer = os.Stderr
	defaultsMu    sync.RWMutex
)

// Configure sets the level and destination used by loggers created afterwards.
// Unknown level names fall back to info.
func Configure(level string, output io.Writer) {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()

	defaultLevel = ParseLogLevel(level)
	if output != nil {
		defaultOutput = output
	}
}

// ParseLogLevel converts a level name (debug, info, warn, error, fatal) to a LogLevel.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warning
	case "error":
		return Error
	case "fatal":
		return Fatal
	default:
		return Info
	}
}

// Logger provides structured logging with a component prefix
type Logger struct {
	prefix string
	logger *log.Logger
}

// NewLogger creates a new logger with a given prefix
func NewLogger(prefix string, logLevel ...LogLevel) *Logger {
	defaultsMu.RLock()
	level, output := defaultLevel, defaultOutput
	defaultsMu.RUnlock()

	if len(logLevel) > 0 {
		level = logLevel[0]
	}

	return newLoggerTo(output, prefix, level)
}

func newLoggerTo(w io.Writer, prefix string, level LogLevel) *Logger {
	l := log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
		Level:           level,
	})
	return &Logger{prefix: prefix, logger: l}
}

// SetLogLevel sets the logging level
func (l *Logger) SetLogLevel(logLevel LogLevel) {
	l.logger.SetLevel(logLevel)
}

// With returns a child logger that always carries the given key-value pairs.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{prefix: l.prefix, logger: l.logger.With(keyvals...)}
}

// Info logs an informational message
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

// Error logs an error message
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}
