package logger

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger wraps zap.Logger to provide our logging interface
type ZapLogger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

func wrapZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{Logger: l, sugar: l.Sugar()}
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zap.DebugLevel
	case WarnLevel:
		return zap.WarnLevel
	case ErrorLevel:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// NewZapLogger creates a ZapLogger. Development mode uses the colored console
// encoder; otherwise entries are JSON.
func NewZapLogger(level Level, development bool) (*ZapLogger, error) {
	var config zap.Config

	if development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel(level))
	// Stack traces are opt-in via DOCFLOW_LOG_STACKTRACE
	config.DisableStacktrace = true
	config.DisableCaller = true

	logger, err := config.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}

	return wrapZap(logger), nil
}

// NewZapLoggerFromConfig builds a ZapLogger from a logger Config
func NewZapLoggerFromConfig(cfg *Config) (*ZapLogger, error) {
	logger, err := NewZapLogger(cfg.Level, cfg.IsDevelopment())
	if err != nil {
		return nil, err
	}

	if cfg.Caller {
		logger = wrapZap(logger.WithOptions(zap.AddCaller()))
	}

	if cfg.Stacktrace != "" {
		var lvl zapcore.Level
		switch strings.ToLower(cfg.Stacktrace) {
		case "warn":
			lvl = zap.WarnLevel
		case "error":
			lvl = zap.ErrorLevel
		case "panic":
			lvl = zap.PanicLevel
		default:
			lvl = zap.FatalLevel
		}
		logger = wrapZap(logger.WithOptions(zap.AddStacktrace(lvl)))
	}

	return logger, nil
}

// NewZapLoggerFromEnv creates a logger configured from DOCFLOW_LOG_* variables
func NewZapLoggerFromEnv() (*ZapLogger, error) {
	return NewZapLoggerFromConfig(ConfigFromEnv())
}

// WithRun adds run context to the logger
func (l *ZapLogger) WithRun(runID, remoteID string) *ZapLogger {
	fields := []zap.Field{zap.String("run_id", runID)}
	if remoteID != "" {
		fields = append(fields, zap.String("remote_id", remoteID))
	}
	return wrapZap(l.With(fields...))
}

// WithDuration adds a duration field to the logger
func (l *ZapLogger) WithDuration(duration time.Duration) *ZapLogger {
	return wrapZap(l.With(
		zap.Duration("duration", duration),
		zap.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
	))
}

// WithError adds error context to the logger
func (l *ZapLogger) WithError(err error) *ZapLogger {
	if err == nil {
		return l
	}
	return wrapZap(l.With(
		zap.Error(err),
		zap.String("error_type", fmt.Sprintf("%T", err)),
	))
}

// WithFields adds multiple fields to the logger context
func (l *ZapLogger) WithFields(fields map[string]interface{}) *Logger {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return &Logger{zap: wrapZap(l.With(zapFields...))}
}

// Timed creates a timed logger for measuring operation duration
func (l *ZapLogger) Timed(operation string) *TimedLogger {
	l.Logger.Debug("Operation started", zap.String("operation", operation))
	return &TimedLogger{
		logger: l,
		start:  time.Now(),
		op:     operation,
	}
}

// TimedLogger tracks the duration of an operation
type TimedLogger struct {
	logger *ZapLogger
	plain  *Logger
	start  time.Time
	op     string
}

// Done logs the completion of the timed operation
func (t *TimedLogger) Done() {
	duration := time.Since(t.start)
	if t.logger == nil {
		t.plain.WithDuration(duration).Debugf("Operation completed: %s", t.op)
		return
	}
	t.logger.Logger.Debug("Operation completed",
		zap.String("operation", t.op),
		zap.Duration("duration", duration),
		zap.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
	)
}

// DoneWithError logs the completion of the timed operation with an error
func (t *TimedLogger) DoneWithError(err error) {
	if err == nil {
		t.Done()
		return
	}
	duration := time.Since(t.start)
	if t.logger == nil {
		t.plain.WithError(err).WithDuration(duration).Errorf("Operation failed: %s", t.op)
		return
	}
	t.logger.Logger.Error("Operation failed",
		zap.String("operation", t.op),
		zap.Error(err),
		zap.Duration("duration", duration),
		zap.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
	)
}

func (l *ZapLogger) Debug(msg string) {
	l.Logger.Debug(msg)
}

func (l *ZapLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *ZapLogger) Info(msg string) {
	l.Logger.Info(msg)
}

func (l *ZapLogger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *ZapLogger) Warn(msg string) {
	l.Logger.Warn(msg)
}

func (l *ZapLogger) Warnf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *ZapLogger) Error(msg string) {
	l.Logger.Error(msg)
}

func (l *ZapLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Sync flushes any buffered log entries
func (l *ZapLogger) Sync() error {
	return l.Logger.Sync()
}
