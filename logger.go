package seglog

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with seglog-specific helpers so call sites log
// rotation and finalization events with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler means a
// text handler to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger with human-readable output to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a Logger with JSON output to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	}))
}

// LogRotation logs a segment handoff.
func (l *Logger) LogRotation(fromIndex, toIndex uint64, rawBytes uint64) {
	l.Info("segment rotated",
		"from_index", fromIndex,
		"to_index", toIndex,
		"raw_bytes", rawBytes,
	)
}

// LogFinalize logs the outcome of a segment finalization.
func (l *Logger) LogFinalize(path string, index uint64, messages uint64, err error) {
	if err != nil {
		l.Error("segment finalize failed",
			"path", path,
			"file_index", index,
			"error", err,
		)
		return
	}
	l.Info("segment finalized",
		"path", path,
		"file_index", index,
		"messages", messages,
	)
}

// LogArchive logs the outcome of a record file upload.
func (l *Logger) LogArchive(name string, err error) {
	if err != nil {
		l.Error("archive upload failed", "name", name, "error", err)
		return
	}
	l.Info("archive upload completed", "name", name)
}
