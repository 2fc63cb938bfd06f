// Package logging provides the leveled, field-based logger used across the
// service. Text output is the default for development; JSON is used in
// production.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Fields are structured key/value pairs attached to a log line.
type Fields = map[string]interface{}

// Logger writes structured log lines.
type Logger struct {
	l *logrus.Logger
}

var (
	mu            sync.RWMutex
	defaultLogger = New(os.Stdout, os.Getenv("LOG_LEVEL"), wantJSON(os.Getenv("LOG_FORMAT"), os.Getenv("APP_ENV")))
)

func wantJSON(format, env string) bool {
	return format == "json" || env == "production"
}

// New creates a Logger writing to out. Unknown levels fall back to info.
func New(out io.Writer, level string, json bool) *Logger {
	l := logrus.New()
	l.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if json {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	return &Logger{l: l}
}

// Configure replaces the package logger using format ("json" or "text"),
// level and environment name.
func Configure(format, level, env string) {
	SetDefault(New(os.Stdout, level, wantJSON(format, env)))
}

// SetDefault replaces the package logger.
func SetDefault(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// Default returns the package logger.
func Default() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func (l *Logger) entry(fields Fields) *logrus.Entry {
	return l.l.WithFields(logrus.Fields(fields))
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields Fields) {
	l.entry(fields).Debug(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields Fields) {
	l.entry(fields).Info(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields Fields) {
	l.entry(fields).Warn(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields Fields, err error) {
	e := l.entry(fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

// Debug logs a debug message on the package logger.
func Debug(msg string, fields Fields) { Default().Debug(msg, fields) }

// Info logs an info message on the package logger.
func Info(msg string, fields Fields) { Default().Info(msg, fields) }

// Warn logs a warning message on the package logger.
func Warn(msg string, fields Fields) { Default().Warn(msg, fields) }

// Error logs an error message on the package logger.
func Error(msg string, fields Fields, err error) { Default().Error(msg, fields, err) }
