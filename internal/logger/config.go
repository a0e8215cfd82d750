package logger

import (
	"os"
	"strings"
)

// Config holds logger configuration
type Config struct {
	Level      Level
	Format     string // "console" or "json"
	Caller     bool   // Include caller information
	Stacktrace string // Level at which to include stack traces
}

// LevelForVerbosity maps a CLI verbosity to a log level. Normal verbosity
// keeps the terminal quiet apart from warnings.
func LevelForVerbosity(verbosity string) Level {
	switch strings.ToLower(verbosity) {
	case "debug":
		return DebugLevel
	case "verbose":
		return InfoLevel
	default:
		return WarnLevel
	}
}

// ConfigFromEnv creates a logger configuration from environment variables.
// DOCFLOW_LOG_LEVEL wins over DOCFLOW_VERBOSITY.
func ConfigFromEnv() *Config {
	cfg := &Config{
		Level:  LevelForVerbosity(os.Getenv("DOCFLOW_VERBOSITY")),
		Format: "console",
	}

	if levelStr := os.Getenv("DOCFLOW_LOG_LEVEL"); levelStr != "" {
		cfg.Level = LevelFromString(levelStr)
	}

	if format := os.Getenv("DOCFLOW_LOG_FORMAT"); format != "" {
		cfg.Format = strings.ToLower(format)
	}

	cfg.Caller = os.Getenv("DOCFLOW_LOG_CALLER") == "true"

	if stacktrace := os.Getenv("DOCFLOW_LOG_STACKTRACE"); stacktrace != "" {
		cfg.Stacktrace = strings.ToLower(stacktrace)
	}

	return cfg
}

// IsDevelopment returns true if the logger is configured for console output
func (c *Config) IsDevelopment() bool {
	return c.Format != "json"
}
