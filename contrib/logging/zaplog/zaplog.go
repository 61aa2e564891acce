// Package zaplog adapts go.uber.org/zap to the vigil Logger interface.
//
// Example:
//
//	logger := zaplog.New(zapLogger.Named("vigil"))
//	client, _ := vigil.NewHAClient(discovery,
//	    vigil.WithLogger(logger),
//	)
package zaplog

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arloliu/vigil/types"
)

// Logger implements types.Logger on top of a zap.SugaredLogger.
//
// Key/value pairs are passed through as structured fields.
type Logger struct {
	sugar *zap.SugaredLogger
}

// Compile-time assertion that Logger implements types.Logger.
var _ types.Logger = (*Logger)(nil)

// New wraps an existing zap logger.
//
// Parameters:
//   - l: The zap logger; nil yields a no-op logger
//
// Returns:
//   - *Logger: A vigil logger
func New(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}

	// Skip the adapter frame so callers show up in the caller field.
	return &Logger{sugar: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// NewJSON builds a JSON logger writing to w at the given level.
//
// Parameters:
//   - level: Minimum enabled level
//   - w: Destination writer
//
// Returns:
//   - *Logger: A vigil logger
func NewJSON(level zapcore.Level, w io.Writer) *Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(w), level)

	return New(zap.New(core, zap.AddCaller()))
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
