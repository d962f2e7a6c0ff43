package jobs

import (
	"fmt"

	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// zapLogger adapts zap to the Temporal SDK logger.
type zapLogger struct {
	l *zap.Logger
}

var _ log.Logger = (*zapLogger)(nil)

func newLogger(l *zap.Logger) *zapLogger {
	return &zapLogger{l: l.WithOptions(zap.AddCallerSkip(1)).With(zap.String("component", "temporal"))}
}

func fields(keyvals []any) []zap.Field {
	out := make([]zap.Field, 0, len(keyvals)/2+1)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if i+1 == len(keyvals) {
			out = append(out, zap.Any("extra", keyvals[i]))
			break
		}
		out = append(out, zap.Any(key, keyvals[i+1]))
	}
	return out
}

func (z *zapLogger) Debug(msg string, keyvals ...any) { z.l.Debug(msg, fields(keyvals)...) }
func (z *zapLogger) Info(msg string, keyvals ...any)  { z.l.Info(msg, fields(keyvals)...) }
func (z *zapLogger) Warn(msg string, keyvals ...any)  { z.l.Warn(msg, fields(keyvals)...) }
func (z *zapLogger) Error(msg string, keyvals ...any) { z.l.Error(msg, fields(keyvals)...) }

// With implements log.WithLogger.
func (z *zapLogger) With(keyvals ...any) log.Logger {
	return &zapLogger{l: z.l.With(fields(keyvals)...)}
}
