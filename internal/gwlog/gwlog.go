// Package gwlog provides a small leveled logger built on the standard log
// package.
//
// The gateway engine logs through here instead of fmt.Println so callers can
// dial verbosity up or down without needing an external logging framework;
// none of the wire-level work the engine does benefits from structured
// fields, so a thin level filter over log.Logger is enough.
package gwlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level is the verbosity threshold used by a Logger.
//
// Lower values are more verbose.
type Level int32

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	// LevelSilent disables all output.
	LevelSilent
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "SILENT"
	}
}

// ParseLevel parses a level name (case-insensitive). It defaults to
// LevelInfo for unrecognized input.
func ParseLevel(raw string) Level {
	switch strings.ToLower(raw) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "silent", "off":
		return LevelSilent
	default:
		return LevelInfo
	}
}

// Logger is a leveled wrapper around a standard log.Logger.
//
// A nil *Logger is valid and discards everything, so logging calls never
// need nil checks.
type Logger struct {
	std   *log.Logger
	level atomic.Int32
}

// New creates a Logger writing to w with the given prefix and level.
func New(w io.Writer, prefix string, level Level) *Logger {
	l := &Logger{std: log.New(w, prefix, log.LstdFlags)}
	l.level.Store(int32(level))
	return l
}

// Default returns a Logger writing to stderr at LevelInfo.
func Default() *Logger {
	return New(os.Stderr, "[gatewire] ", LevelInfo)
}

// SetLevel updates the verbosity threshold.
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.level.Store(int32(level))
}

// Enabled reports whether a level would be emitted.
func (l *Logger) Enabled(level Level) bool {
	if l == nil {
		return false
	}
	return level >= Level(l.level.Load())
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	l.std.Output(3, fmt.Sprintf("%s "+format, append([]any{level.String()}, args...)...))
}

func (l *Logger) Tracef(format string, args ...any) { l.logf(LevelTrace, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }
