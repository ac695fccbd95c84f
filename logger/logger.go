/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logger provides leveled logging for rowcache.
// The default implementation writes through logrus.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level defines log levels
type Level int

const (
	// DEBUG debug level, displays detailed debug information
	DEBUG Level = iota
	// INFO info level, displays general information
	INFO
	// WARN warning level, displays warning information
	WARN
	// ERROR error level, only displays error information
	ERROR
	// OFF disables logging
	OFF
)

// String returns string representation of log level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case OFF:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name such as "debug" or "warn" to a Level.
// Unknown names map to INFO.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error", "fatal", "panic":
		return ERROR
	case "off", "none":
		return OFF
	default:
		return INFO
	}
}

// Logger interface defines basic methods for logging
type Logger interface {
	// Debug records debug level logs
	Debug(format string, args ...interface{})
	// Info records info level logs
	Info(format string, args ...interface{})
	// Warn records warning level logs
	Warn(format string, args ...interface{})
	// Error records error level logs
	Error(format string, args ...interface{})
	// SetLevel sets the log level
	SetLevel(level Level)
}

// logrusLogger forwards to a logrus logger
type logrusLogger struct {
	mu    sync.RWMutex
	level Level
	entry *logrus.Entry
}

// NewLogger creates a new logger
// Parameters:
//   - level: log level
//   - output: output destination, such as os.Stdout, os.Stderr, or file
//
// Example:
//
//	log := NewLogger(INFO, os.Stderr)
//	log.Info("cache opened with %d slots", 500)
func NewLogger(level Level, output io.Writer) Logger {
	l := logrus.New()
	l.SetOutput(output)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return FromLogrus(l, level)
}

// FromLogrus wraps an existing logrus logger, e.g. the one owned by a CLI.
func FromLogrus(l *logrus.Logger, level Level) Logger {
	out := &logrusLogger{entry: logrus.NewEntry(l)}
	out.SetLevel(level)
	return out
}

// WithField returns a logger that adds a structured field to every line.
// Loggers not created by this package are returned unchanged.
func WithField(log Logger, key string, value interface{}) Logger {
	ll, ok := log.(*logrusLogger)
	if !ok {
		return log
	}
	ll.mu.RLock()
	defer ll.mu.RUnlock()
	return &logrusLogger{level: ll.level, entry: ll.entry.WithField(key, value)}
}

func (l *logrusLogger) enabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level != OFF && l.level <= level
}

func (l *logrusLogger) Debug(format string, args ...interface{}) {
	if l.enabled(DEBUG) {
		l.entry.Debugf(format, args...)
	}
}

func (l *logrusLogger) Info(format string, args ...interface{}) {
	if l.enabled(INFO) {
		l.entry.Infof(format, args...)
	}
}

func (l *logrusLogger) Warn(format string, args ...interface{}) {
	if l.enabled(WARN) {
		l.entry.Warnf(format, args...)
	}
}

func (l *logrusLogger) Error(format string, args ...interface{}) {
	if l.enabled(ERROR) {
		l.entry.Errorf(format, args...)
	}
}

// SetLevel also lowers the logrus threshold so that enabled lines are not
// dropped a second time by the backend.
func (l *logrusLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	switch level {
	case DEBUG:
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	case INFO:
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	case WARN:
		l.entry.Logger.SetLevel(logrus.WarnLevel)
	case ERROR:
		l.entry.Logger.SetLevel(logrus.ErrorLevel)
	}
}

// discardLogger is a logger that discards all log output
type discardLogger struct{}

// NewDiscardLogger creates a logger that discards all logs
func NewDiscardLogger() Logger {
	return &discardLogger{}
}

func (d *discardLogger) Debug(format string, args ...interface{}) {}
func (d *discardLogger) Info(format string, args ...interface{})  {}
func (d *discardLogger) Warn(format string, args ...interface{})  {}
func (d *discardLogger) Error(format string, args ...interface{}) {}
func (d *discardLogger) SetLevel(level Level)                     {}

var (
	defaultMu       sync.RWMutex
	defaultInstance = NewLogger(INFO, os.Stderr)
)

// SetDefault sets the global default logger
func SetDefault(logger Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultInstance = logger
}

// GetDefault gets the global default logger
func GetDefault() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultInstance
}

// Debug uses the default logger to record debug information
func Debug(format string, args ...interface{}) {
	GetDefault().Debug(format, args...)
}

// Info uses the default logger to record information
func Info(format string, args ...interface{}) {
	GetDefault().Info(format, args...)
}

// Warn uses the default logger to record warnings
func Warn(format string, args ...interface{}) {
	GetDefault().Warn(format, args...)
}

// Error uses the default logger to record errors
func Error(format string, args ...interface{}) {
	GetDefault().Error(format, args...)
}
