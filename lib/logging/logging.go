package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	contextKeyLogger contextKey = "logger"
)

type ContextData struct {
	Logger *zap.Logger
	Debug  bool
}

// New builds a development-style console logger at the named level.
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zapconfig := zap.NewDevelopmentConfig()
	zapconfig.Level = zap.NewAtomicLevelAt(lvl)
	zapconfig.DisableStacktrace = lvl > zapcore.DebugLevel

	return zapconfig.Build()
}

func NewContextWithLogger(ctx context.Context, logger *zap.Logger, debug bool) context.Context {
	return context.WithValue(ctx, contextKeyLogger, ContextData{Logger: logger, Debug: debug})
}

func FromContext(ctx context.Context) *zap.Logger {
	cdata, ok := ctx.Value(contextKeyLogger).(ContextData)
	if !ok {
		return zap.L()
	}
	return cdata.Logger
}

func DataFromContext(ctx context.Context) ContextData {
	cdata, ok := ctx.Value(contextKeyLogger).(ContextData)
	if !ok {
		return ContextData{
			Logger: zap.L(),
		}
	}
	return cdata
}
