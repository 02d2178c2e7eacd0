// Package log provides structured logging with worker context.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for the worker loop (high performance, structured fields)
//   - SugaredLogger: Printf-style logging for CLI/debug surfaces (convenience over performance)
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WorkerMeta identifies the worker process a Logger is bound to. Every log
// entry emitted through that Logger carries these fields, so a worker's
// messages can be traced back through shared log aggregation even when
// several workers share a queue and store.
type WorkerMeta struct {
	WorkerID string
	// Backend names the store/queue pairing this worker was started
	// against, e.g. "s3+redis" or "memory+memory".
	Backend string
}

// Logger provides structured logging with worker context.
//
// Use this for the worker loop where performance matters. For CLI/debug
// surfaces, use Sugar() to get a SugaredLogger.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger provides printf-style logging for CLI and debug surfaces.
// Wraps zap.SugaredLogger with worker context. It also satisfies
// runtime.Logger directly via zap's own Warnw/Errorw.
type SugaredLogger struct {
	*zap.SugaredLogger
}

// NewLogger creates a new logger with worker context. Output defaults to
// os.Stderr.
func NewLogger(meta WorkerMeta) *Logger {
	return newLoggerWithWriter(meta, os.Stderr)
}

// WithOutput returns a new logger with a different output writer.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
	return &Logger{zap: l.zap.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

// newLoggerWithWriter creates a logger writing to the specified writer.
func newLoggerWithWriter(meta WorkerMeta, w io.Writer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)

	contextFields := []zap.Field{
		zap.String("worker_id", meta.WorkerID),
	}
	if meta.Backend != "" {
		contextFields = append(contextFields, zap.String("backend", meta.Backend))
	}

	zapLogger := zap.New(core).With(contextFields...)
	return &Logger{zap: zapLogger}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sugar returns a SugaredLogger for printf-style logging and for passing as
// a runtime.Logger.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{SugaredLogger: l.zap.Sugar()}
}

// With returns a SugaredLogger with additional context fields, e.g.
// task_name/memo_key for a single task invocation.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{SugaredLogger: s.SugaredLogger.With(args...)}
}
