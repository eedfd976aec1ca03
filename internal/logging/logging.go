// Package logging wires the decred/slog backend to a per-subsystem tag
// convention, so every package in this module gets its own four-letter
// logger ("CRPT", "P2PK", "TOKN", "MINT", "LEDG", "SWAP", "BROK") without
// each one touching the backend directly.
package logging

import (
	"io"
	"os"

	"github.com/decred/slog"
)

// Logger is the subset of slog.Logger this module uses. Packages depend on
// this interface, not *slog.Logger, so tests can swap in Disabled().
type Logger interface {
	Tracef(format string, params ...interface{})
	Debugf(format string, params ...interface{})
	Infof(format string, params ...interface{})
	Warnf(format string, params ...interface{})
	Errorf(format string, params ...interface{})
	Criticalf(format string, params ...interface{})
}

// Backend is a process-wide slog backend. Construct one in main and derive a
// tagged Logger per package from it.
type Backend struct {
	b *slog.Backend
}

// NewBackend creates a Backend writing to w (typically os.Stdout, or an
// io.MultiWriter of stdout and a rotating log file).
func NewBackend(w io.Writer) *Backend {
	return &Backend{b: slog.NewBackend(w)}
}

// NewStdoutBackend is a convenience for the common case.
func NewStdoutBackend() *Backend {
	return NewBackend(os.Stdout)
}

// Logger derives a tagged logger at the given level: every package logs
// through its own subsystem tag, with the level configured once at
// startup.
func (b *Backend) Logger(subsystem string, level slog.Level) Logger {
	l := b.b.Logger(subsystem)
	l.SetLevel(level)
	return l
}

// LevelFromString parses a debug-level string, returning an error instead
// of calling log.Fatalf: a library has no business terminating the process
// on a bad config value.
func LevelFromString(s string) (slog.Level, error) {
	switch s {
	case "trace":
		return slog.LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "critical":
		return slog.LevelCritical, nil
	default:
		return slog.LevelInfo, &UnknownLevelError{Value: s}
	}
}

// UnknownLevelError is returned by LevelFromString for an unrecognised value.
type UnknownLevelError struct{ Value string }

func (e *UnknownLevelError) Error() string {
	return "logging: unknown debug level " + e.Value
}

type disabled struct{}

func (disabled) Tracef(string, ...interface{})    {}
func (disabled) Debugf(string, ...interface{})    {}
func (disabled) Infof(string, ...interface{})     {}
func (disabled) Warnf(string, ...interface{})     {}
func (disabled) Errorf(string, ...interface{})    {}
func (disabled) Criticalf(string, ...interface{}) {}

// Disabled returns a Logger that discards everything, for use as a default
// when a caller doesn't supply one (e.g. in unit tests).
func Disabled() Logger { return disabled{} }
