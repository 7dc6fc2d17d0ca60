// SPDX-License-Identifier: MIT
//
// Package log is a small leveled wrapper around the standard logger. Every
// package in the pipeline logs through it so a single level (set from config
// or the command line) controls the whole process.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

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

var currentLevel atomic.Uint32

// logger shows date and time with microseconds, frame timing problems are
// usually only visible at that resolution.
var logger = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

func init() {
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

// SetOutput redirects all log output. Tests use it to capture warnings.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Enabled reports whether a message at level would be written.
func Enabled(level LogLevel) bool {
	return level >= GetLevel()
}

func output(level LogLevel, msg string) {
	logger.Printf("[%s] %s", level, msg)
}

// logf formats only when the level is enabled, debug calls sit on hot paths.
func logf(level LogLevel, format string, v ...any) {
	if Enabled(level) {
		output(level, fmt.Sprintf(format, v...))
	}
}

func logs(level LogLevel, v ...any) {
	if Enabled(level) {
		output(level, fmt.Sprint(v...))
	}
}

// --- Public Logging Functions ---

func Debugf(format string, v ...any) { logf(LevelDebug, format, v...) }
func Infof(format string, v ...any)  { logf(LevelInfo, format, v...) }
func Warnf(format string, v ...any)  { logf(LevelWarn, format, v...) }
func Errorf(format string, v ...any) { logf(LevelError, format, v...) }

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...any) {
	logger.Fatalf("[%s] %s", LevelFatal, fmt.Sprintf(format, v...))
}

func Debug(v ...any) { logs(LevelDebug, v...) }
func Info(v ...any)  { logs(LevelInfo, v...) }
func Warn(v ...any)  { logs(LevelWarn, v...) }
func Error(v ...any) { logs(LevelError, v...) }

// Fatal logs a fatal message and exits the application.
func Fatal(v ...any) {
	logger.Fatalf("[%s] %s", LevelFatal, fmt.Sprint(v...))
}

// Throttle limits how often a recurring message is written. Render callbacks
// run once per display frame, so a condition that persists would otherwise
// produce sixty identical lines a second. The zero value is not usable, use
// NewThrottle.
type Throttle struct {
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	last       time.Time
	suppressed int
}

// NewThrottle returns a Throttle that lets at most one message through per interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, now: time.Now}
}

// Allow reports whether a message may be written now, and how many were
// swallowed since the last one that was allowed.
func (t *Throttle) Allow() (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		t.suppressed++
		return false, 0
	}
	skipped := t.suppressed
	t.last = now
	t.suppressed = 0
	return true, skipped
}

// Warnf logs a warning if the throttle allows it.
func (t *Throttle) Warnf(format string, v ...any) { t.logf(LevelWarn, format, v...) }

// Infof logs at info level if the throttle allows it.
func (t *Throttle) Infof(format string, v ...any) { t.logf(LevelInfo, format, v...) }

func (t *Throttle) logf(level LogLevel, format string, v ...any) {
	if !Enabled(level) {
		return
	}
	ok, skipped := t.Allow()
	if !ok {
		return
	}
	msg := fmt.Sprintf(format, v...)
	if skipped > 0 {
		msg = fmt.Sprintf("%s (%d similar suppressed)", msg, skipped)
	}
	output(level, msg)
}
