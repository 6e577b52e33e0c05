// Package logger defines the logging interface used by every go-instr package,
// so that front ends can plug in their preferred logging framework.
//
// The default implementation is backed by log/slog. Records are written to
// stderr, keeping stdout free for instrument data printed by command-line
// front ends.
//
// Log Levels:
//
//   - DebugLevel: protocol traces (RPC calls, chunk sizes, status bytes).
//   - InfoLevel:  verbose session I/O traces and lifecycle events.
//   - WarnLevel:  recoverable anomalies, e.g. firmware quirks or ignored settings.
//   - ErrorLevel: failures during teardown that cannot be reported to the caller.
//   - FatalLevel: logs and terminates the process; only front ends should use it.
package logger

// Level indicates the logging severity level.
type Level = int8

const (
	// DebugLevel logs are voluminous protocol traces, disabled by default.
	DebugLevel Level = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual
	// human review.
	WarnLevel
	// ErrorLevel logs are high-priority.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
)

// Logger defines a common interface for structured logging with key-value pairs.
type Logger interface {
	// Debug logs a message at DebugLevel.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel, then calls os.Exit(1).
	Fatal(msg string, keysAndValues ...any)
	// With creates a child logger with additional structured context.
	// Key-values added to the child don't affect the parent, and vice versa.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level for this logger.
	Level() Level
	// SetLevel sets the minimum enabled level for this logger.
	SetLevel(level Level)
}
