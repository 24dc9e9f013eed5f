package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// watermillLogger adapts a zap logger to the watermill.LoggerAdapter interface
// so the bus and router log through the application logger.
type watermillLogger struct {
	l *zap.Logger
}

// NewWatermillLogger wraps l for use by watermill components. Trace output is
// mapped to zap's debug level.
func NewWatermillLogger(l *zap.Logger) watermill.LoggerAdapter {
	if l == nil {
		l = zap.NewNop()
	}
	return watermillLogger{l: l}
}

func (w watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.l.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (w watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.l.Info(msg, zapFields(fields)...)
}

func (w watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.l.Debug(msg, zapFields(fields)...)
}

func (w watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.l.Debug(msg, zapFields(fields)...)
}

func (w watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{l: w.l.With(zapFields(fields)...)}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
