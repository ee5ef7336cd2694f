package inprocess

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// zapAdapter routes watermill's logs through zap.
type zapAdapter struct {
	logger *zap.Logger
}

// NewZapAdapter wraps a zap logger for watermill.
func NewZapAdapter(logger *zap.Logger) watermill.LoggerAdapter {
	return &zapAdapter{logger: logger.With(zap.String("component", "watermill"))}
}

func fields(f watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (a *zapAdapter) Error(msg string, err error, f watermill.LogFields) {
	a.logger.Error(msg, append(fields(f), zap.Error(err))...)
}

func (a *zapAdapter) Info(msg string, f watermill.LogFields) {
	a.logger.Info(msg, fields(f)...)
}

func (a *zapAdapter) Debug(msg string, f watermill.LogFields) {
	a.logger.Debug(msg, fields(f)...)
}

// Trace is mapped to Debug; zap has no lower level.
func (a *zapAdapter) Trace(msg string, f watermill.LogFields) {
	a.logger.Debug(msg, fields(f)...)
}

func (a *zapAdapter) With(f watermill.LogFields) watermill.LoggerAdapter {
	return &zapAdapter{logger: a.logger.With(fields(f)...)}
}
