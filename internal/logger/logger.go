// Package logger provides a lightweight, centralized logging facility
// with configurable verbosity levels, backed by zerolog.
//
// Design goals:
//   - Simple API (Errorf, Infof, Debugf, Tracef)
//   - Centralized verbosity control
//   - Zero formatting logic at call sites
//   - Structured, leveled output via zerolog
//
// Verbosity levels (in increasing order):
//
//	Error < Info < Debug < Trace
//
// Example usage:
//
//	logger.SetVerbosity(2) // Debug
//	logger.Infof("starting backtest")
//	logger.Debugf("instrument=%s bars=%d", code, n)
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only critical failures.
	Info               // Info logs high-level application progress.
	Debug              // Debug logs detailed diagnostic information.
	Trace              // Trace logs very fine-grained execution details.
)

// current holds the active verbosity level.
// Only messages with level <= current are logged.
var current Level = Info

// base is the underlying zerolog logger. It writes a human-readable
// console format to stderr by default; SetWriter redirects it.
var base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// SetVerbosity sets the global logging verbosity.
// Typically called once during application startup
// (e.g. after parsing CLI flags).
func SetVerbosity(v int) {
	current = Level(v)
}

// SetWriter redirects all log output to w, e.g. a file handle owned by the
// CLI driver.
func SetWriter(w zerolog.ConsoleWriter) {
	base = zerolog.New(w).With().Timestamp().Logger()
}

// Errorf logs an error-level message.
// Use this for failures that require attention.
func Errorf(format string, args ...any) {
	if current >= Error {
		base.Error().Msgf(format, args...)
	}
}

// Infof logs an informational message.
// Use this for major lifecycle events.
func Infof(format string, args ...any) {
	if current >= Info {
		base.Info().Msgf(format, args...)
	}
}

// Debugf logs debugging information.
// Use this for diagnostic output useful during development.
func Debugf(format string, args ...any) {
	if current >= Debug {
		base.Debug().Msgf(format, args...)
	}
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	if current >= Trace {
		base.Trace().Msgf(format, args...)
	}
}
