package valori

import (
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with engine-specific helpers so call sites log
// consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler uses a
// text handler to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger emitting JSON records at level.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NewTextLogger creates a Logger emitting human-readable records at level.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	}))}
}

// LogApply logs a committed or rejected command.
func (l *Logger) LogApply(cmdType string, err error) {
	if err != nil {
		l.Error("apply failed", "command", cmdType, "error", err)
	} else {
		l.Debug("apply committed", "command", cmdType)
	}
}

// LogBatch logs a batch commit.
func (l *Logger) LogBatch(count int, err error) {
	if err != nil {
		l.Error("batch rejected", "count", count, "error", err)
	} else {
		l.Debug("batch committed", "count", count)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(k, found int, err error) {
	if err != nil {
		l.Error("search failed", "k", k, "error", err)
	} else {
		l.Debug("search completed", "k", k, "results", found)
	}
}

// LogCheckpoint logs a checkpoint.
func (l *Logger) LogCheckpoint(took time.Duration, err error) {
	if err != nil {
		l.Error("checkpoint failed", "took", took, "error", err)
	} else {
		l.Info("checkpoint completed", "took", took)
	}
}

// LogRecovery logs the outcome of startup recovery.
func (l *Logger) LogRecovery(dir string, took time.Duration, err error) {
	if err != nil {
		l.Error("recovery failed", "dir", dir, "took", took, "error", err)
	} else {
		l.Info("recovery completed", "dir", dir, "took", took)
	}
}
