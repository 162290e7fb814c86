// Package logging builds the zap logger shared by every component and the chi
// request-log formatter that writes access lines through it.
package logging

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/user/users-service/config"
)

// New returns a logger for the given environment. Production gets JSON output,
// everything else the human-friendly console encoder.
func New(cfg *config.LogConfig, env string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if env == config.EnvProduction {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build(zap.Fields(zap.String("env", env)))
}

// RequestLogger is a chi middleware that logs one line per request.
func RequestLogger(l *zap.Logger) func(next http.Handler) http.Handler {
	return middleware.RequestLogger(&zapLogFormatter{logger: l})
}

type zapLogFormatter struct {
	logger *zap.Logger
}

func (f *zapLogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &zapLogEntry{logger: f.logger.With(
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	)}
}

type zapLogEntry struct {
	logger *zap.Logger
}

func (e *zapLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	fields := []zap.Field{
		zap.Int("status", status),
		zap.Int("bytes", bytes),
		zap.Duration("elapsed", elapsed),
	}
	switch {
	case status >= http.StatusInternalServerError:
		e.logger.Error("request completed", fields...)
	case status >= http.StatusBadRequest:
		e.logger.Warn("request completed", fields...)
	default:
		e.logger.Info("request completed", fields...)
	}
}

func (e *zapLogEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error("request panicked", zap.Any("panic", v), zap.ByteString("stack", stack))
}
