// Package rtlog wraps zap for the executor's statistics-dump-on-error
// behavior: a failed invocation logs its cost/frame-depth/fault counters
// alongside the returned error, without forcing every embedder to wire up
// its own structured logging.
package rtlog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger is this package's logging handle: a thin indirection over
// *zap.Logger so callers don't import zap just to pass one around.
type Logger struct {
	z *zap.Logger
}

// Default returns the process-wide logger, a no-op until SetGlobal installs
// a real one (e.g. the embedder's own zap.Logger).
func Default() *Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return &Logger{z: logger}
}

// SetGlobal installs z as the process-wide backing logger for Default.
func SetGlobal(z *zap.Logger) {
	loggerOnce.Do(func() {})
	logger = z
}

// New wraps an already-constructed zap.Logger, for an embedder that wants a
// distinct logger per Executor instead of the process-wide Default.
func New(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

// keyValues turns a flat key/value... argument list into zap.Field slice.
// A pair whose key is not a string is skipped, key and value together; a
// trailing element without a value is rendered as a single "extra" field.
// Either way the remaining pairs are still logged.
func keyValues(kv []any) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	if len(kv)%2 != 0 {
		fields = append(fields, zap.Any("extra", kv[len(kv)-1]))
	}
	return fields
}

// Error logs a failed invocation at error level.
func (l *Logger) Error(msg string, kv ...any) {
	if l == nil {
		return
	}
	l.z.Error(msg, keyValues(kv)...)
}

// Warn logs a recoverable anomaly (e.g. a cooperative stop-token poll that
// found a stale request) at warn level.
func (l *Logger) Warn(msg string, kv ...any) {
	if l == nil {
		return
	}
	l.z.Warn(msg, keyValues(kv)...)
}

// Debug logs per-invocation statistics (cost used, frame depth reached) at
// debug level, off by default since it runs once per guest call.
func (l *Logger) Debug(msg string, kv ...any) {
	if l == nil {
		return
	}
	l.z.Debug(msg, keyValues(kv)...)
}

// Sync flushes any buffered log entries, mirroring the convention of
// calling zap.Logger.Sync before process exit.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.z.Sync()
}
