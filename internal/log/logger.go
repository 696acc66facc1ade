// SPDX-License-Identifier: MIT
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

// currentLevel holds the current global log level atomically.
var currentLevel atomic.Uint32

// output is the standard logger every Logger writes through, configured
// with date and time in microseconds.
var output atomic.Pointer[stdlog.Logger]

func init() {
	SetOutput(os.Stderr)
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all log output to w. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	output.Store(stdlog.New(w, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds))
}

// shouldLog checks if a message at the given level passes the global level.
func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

// Logger prefixes every message with a component name, e.g.
// "[INFO]  frontend: created (window 480, step 160)".
type Logger struct {
	name string
}

// std is the unnamed logger behind the package-level functions.
var std = &Logger{}

// Named returns a Logger whose messages are prefixed with name.
func Named(name string) *Logger {
	return &Logger{name: name}
}

func (l *Logger) print(level LogLevel, msg string) {
	if l.name != "" {
		msg = l.name + ": " + msg
	}
	pad := " "
	if len(level.String()) == 4 {
		pad = "  "
	}
	if level == LevelFatal {
		output.Load().Fatalf("[%s]%s%s", level, pad, msg)
		return
	}
	output.Load().Printf("[%s]%s%s", level, pad, msg)
}

// Debugf logs a formatted debug message if the level is appropriate.
func (l *Logger) Debugf(format string, v ...any) {
	if shouldLog(LevelDebug) {
		l.print(LevelDebug, fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted info message if the level is appropriate.
func (l *Logger) Infof(format string, v ...any) {
	if shouldLog(LevelInfo) {
		l.print(LevelInfo, fmt.Sprintf(format, v...))
	}
}

// Warnf logs a formatted warning message if the level is appropriate.
func (l *Logger) Warnf(format string, v ...any) {
	if shouldLog(LevelWarn) {
		l.print(LevelWarn, fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted error message if the level is appropriate.
func (l *Logger) Errorf(format string, v ...any) {
	if shouldLog(LevelError) {
		l.print(LevelError, fmt.Sprintf(format, v...))
	}
}

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func (l *Logger) Fatalf(format string, v ...any) {
	l.print(LevelFatal, fmt.Sprintf(format, v...))
}

// --- Package-level convenience functions ---

// Debugf logs a formatted debug message through the unnamed logger.
func Debugf(format string, v ...any) { std.Debugf(format, v...) }

// Infof logs a formatted info message through the unnamed logger.
func Infof(format string, v ...any) { std.Infof(format, v...) }

// Warnf logs a formatted warning message through the unnamed logger.
func Warnf(format string, v ...any) { std.Warnf(format, v...) }

// Errorf logs a formatted error message through the unnamed logger.
func Errorf(format string, v ...any) { std.Errorf(format, v...) }

// Fatalf logs a formatted fatal message and exits the application.
func Fatalf(format string, v ...any) { std.Fatalf(format, v...) }
