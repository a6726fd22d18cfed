// Package logger provides structured logging for the relay. It wraps zap
// and exposes a small global facade so handlers can log without threading a
// logger through every call site.
package logger

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap logger together with its sugared form.
type Logger struct {
	zap   *zap.Logger
	sugar *zap.SugaredLogger
}

var (
	globalLogger *Logger
	globalMu     sync.Mutex
)

func init() {
	globalLogger = mustFromConfig(ConfigFromEnv())
}

// New creates a logger from the given configuration.
func New(cfg *Config) (*Logger, error) {
	var zc zap.Config

	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	switch cfg.Level {
	case "debug":
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zc.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zc.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	opts := []zap.Option{zap.AddCallerSkip(1)}
	if cfg.Caller {
		opts = append(opts, zap.AddCaller())
	}

	zl, err := zc.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}

	return &Logger{zap: zl, sugar: zl.Sugar()}, nil
}

// mustFromConfig builds a logger and falls back to a no-op logger on error,
// so the package-level facade is always usable.
func mustFromConfig(cfg *Config) *Logger {
	l, err := New(cfg)
	if err != nil {
		nop := zap.NewNop()
		return &Logger{zap: nop, sugar: nop.Sugar()}
	}
	return l
}

// SetLogger replaces the global logger.
func SetLogger(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetLogger returns the global logger.
func GetLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalLogger
}

// WithField returns a logger with one additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	zl := l.zap.With(zap.Any(key, value))
	return &Logger{zap: zl, sugar: zl.Sugar()}
}

// WithFields returns a logger with the given fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	zfs := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zfs = append(zfs, zap.Any(k, v))
	}
	zl := l.zap.With(zfs...)
	return &Logger{zap: zl, sugar: zl.Sugar()}
}

// WithError attaches error context to the logger.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	zl := l.zap.With(zap.Error(err), zap.String("error_type", fmt.Sprintf("%T", err)))
	return &Logger{zap: zl, sugar: zl.Sugar()}
}

// WithHTTPRequest attaches request context to the logger.
func (l *Logger) WithHTTPRequest(r *http.Request) *Logger {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	}
	if r.URL.RawQuery != "" {
		fields = append(fields, zap.String("query", r.URL.RawQuery))
	}
	zl := l.zap.With(fields...)
	return &Logger{zap: zl, sugar: zl.Sugar()}
}

// WithDuration attaches a duration field to the logger.
func (l *Logger) WithDuration(d time.Duration) *Logger {
	zl := l.zap.With(
		zap.Duration("duration", d),
		zap.Float64("duration_ms", float64(d.Nanoseconds())/1e6),
	)
	return &Logger{zap: zl, sugar: zl.Sugar()}
}

func (l *Logger) Debug(msg string)                          { l.zap.Debug(msg) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(msg string)                           { l.zap.Info(msg) }
func (l *Logger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(msg string)                           { l.zap.Warn(msg) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(msg string)                          { l.zap.Error(msg) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.zap.Sync() }

// Package-level convenience functions logging to the global logger.

func Debug(msg string)                          { GetLogger().Debug(msg) }
func Debugf(format string, args ...interface{}) { GetLogger().Debugf(format, args...) }
func Info(msg string)                           { GetLogger().Info(msg) }
func Infof(format string, args ...interface{})  { GetLogger().Infof(format, args...) }
func Warn(msg string)                           { GetLogger().Warn(msg) }
func Warnf(format string, args ...interface{})  { GetLogger().Warnf(format, args...) }
func Error(msg string)                          { GetLogger().Error(msg) }
func Errorf(format string, args ...interface{}) { GetLogger().Errorf(format, args...) }

// WithField returns the global logger with one field attached.
func WithField(key string, value interface{}) *Logger {
	return GetLogger().WithField(key, value)
}

// WithFields returns the global logger with fields attached.
func WithFields(fields map[string]interface{}) *Logger {
	return GetLogger().WithFields(fields)
}

// WithError returns the global logger with the error attached.
func WithError(err error) *Logger {
	return GetLogger().WithError(err)
}
