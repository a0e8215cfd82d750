package logger

import (
	"os"
	"time"
)

// Initialize sets up the global logger for a CLI verbosity. An explicit
// DOCFLOW_LOG_LEVEL still takes precedence.
func Initialize(verbosity string) {
	cfg := ConfigFromEnv()
	if os.Getenv("DOCFLOW_LOG_LEVEL") == "" {
		cfg.Level = LevelForVerbosity(verbosity)
	}

	if zapLogger, err := NewZapLoggerFromConfig(cfg); err == nil {
		SetLogger(&Logger{zap: zapLogger})
	} else {
		SetLogger(New(cfg.Level))
	}
}

// Debug is a convenience function that logs to the global logger
func Debug(msg string) {
	GetLogger().Debug(msg)
}

// Debugf is a convenience function that logs to the global logger
func Debugf(format string, args ...interface{}) {
	GetLogger().Debugf(format, args...)
}

// Info is a convenience function that logs to the global logger
func Info(msg string) {
	GetLogger().Info(msg)
}

// Infof is a convenience function that logs to the global logger
func Infof(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

// Warn is a convenience function that logs to the global logger
func Warn(msg string) {
	GetLogger().Warn(msg)
}

// Warnf is a convenience function that logs to the global logger
func Warnf(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

// Error is a convenience function that logs to the global logger
func Error(msg string) {
	GetLogger().Error(msg)
}

// Errorf is a convenience function that logs to the global logger
func Errorf(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}

// WithField is a convenience function that returns a logger with a field
func WithField(key string, value interface{}) *Logger {
	return GetLogger().WithField(key, value)
}

// WithFields is a convenience function that returns a logger with fields
func WithFields(fields map[string]interface{}) *Logger {
	return GetLogger().WithFields(fields)
}

// WithError returns the global logger with error context
func WithError(err error) *Logger {
	return GetLogger().WithError(err)
}

// WithRun returns the global logger with run context
func WithRun(runID, remoteID string) *Logger {
	return GetLogger().WithRun(runID, remoteID)
}

// WithDuration returns the global logger with a duration field
func WithDuration(d time.Duration) *Logger {
	return GetLogger().WithDuration(d)
}

// Timed starts timing operation on the global logger
func Timed(operation string) *TimedLogger {
	l := GetLogger()
	if l.zap != nil {
		return l.zap.Timed(operation)
	}
	l.Debugf("Operation started: %s", operation)
	return &TimedLogger{plain: l, start: time.Now(), op: operation}
}

// Sync flushes the global logger
func Sync() error {
	return GetLogger().Sync()
}
