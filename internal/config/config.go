// Package config provides configuration management for docflow.
// Values start from defaults, are overlaid by an optional YAML file and then
// by DOCFLOW_* environment variables, and are validated last.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Backland-Labs/docflow/internal/notify"
	"github.com/Backland-Labs/docflow/internal/output"
	"github.com/Backland-Labs/docflow/internal/workflow"
)

// DefaultFile is loaded from the working directory when no path is given
const DefaultFile = "docflow.yaml"

// Verbosity represents the output verbosity level
type Verbosity string

const (
	// VerbosityNormal shows only essential output
	VerbosityNormal Verbosity = "normal"
	// VerbosityVerbose includes step descriptions and timing
	VerbosityVerbose Verbosity = "verbose"
	// VerbosityDebug provides full debug logging
	VerbosityDebug Verbosity = "debug"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// ServiceConfig locates the remote analysis service
type ServiceConfig struct {
	// BaseURL is the scheme and host of the service
	BaseURL string `yaml:"base_url"`

	// SubmitPath receives the multipart upload
	SubmitPath string `yaml:"submit_path"`

	// RetrievePath fetches a pending result; {id} is replaced by the upload id
	RetrievePath string `yaml:"retrieve_path"`

	// SummarizePath receives extracted text when summarize is enabled
	SummarizePath string `yaml:"summarize_path"`
}

// NotifyConfig holds the Redis run event settings
type NotifyConfig struct {
	Enabled   bool   `yaml:"enabled"`
	RedisAddr string `yaml:"redis_addr"`
	Channel   string `yaml:"channel"`
}

// MetricsConfig holds metrics export settings
type MetricsConfig struct {
	// Textfile receives the metrics after each analyze; empty disables it
	Textfile string `yaml:"textfile"`
}

// MockConfig holds the settings of `docflow serve-mock`
type MockConfig struct {
	Port    int   `yaml:"port"`
	Async   bool  `yaml:"async"`
	DelayMs int64 `yaml:"delay_ms"`
}

// Config holds all configuration for docflow
type Config struct {
	Service ServiceConfig `yaml:"service"`

	// TimeoutMs bounds a run from submission to its terminal state
	TimeoutMs int64 `yaml:"timeout_ms"`

	// AllowedMediaTypes lists the accepted file types; empty accepts any
	AllowedMediaTypes []string `yaml:"allowed_media_types"`

	// MaxFileSize is a human readable size such as "50MB"; empty disables the limit
	MaxFileSize string `yaml:"max_file_size"`

	// Policy is reject or supersede
	Policy string `yaml:"policy"`

	// Summarize chains the summarize step after text extraction
	Summarize bool `yaml:"summarize"`

	// Output is text, json or yaml
	Output string `yaml:"output"`

	Verbosity Verbosity `yaml:"verbosity"`

	Notify  NotifyConfig  `yaml:"notify"`
	Metrics MetricsConfig `yaml:"metrics"`
	Mock    MockConfig    `yaml:"mock"`

	// Source is the file the configuration was read from, if any
	Source string `yaml:"-"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL:       "http://127.0.0.1:5000",
			SubmitPath:    "/upload_regulation",
			RetrievePath:  "/get_latest_tasks/" + workflow.RemoteIDPlaceholder,
			SummarizePath: "/summarize",
		},
		TimeoutMs:         workflow.DefaultTimeout.Milliseconds(),
		AllowedMediaTypes: []string{"application/pdf"},
		MaxFileSize:       "50MB",
		Policy:            string(workflow.PolicyReject),
		Output:            string(output.FormatText),
		Verbosity:         VerbosityNormal,
		Notify: NotifyConfig{
			RedisAddr: "127.0.0.1:6379",
			Channel:   notify.DefaultChannel,
		},
		Mock: MockConfig{
			Port: 5000,
		},
	}
}

// Load builds the configuration. path names a YAML file that must exist;
// when empty, $DOCFLOW_CONFIG is used, then ./docflow.yaml if present.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := resolveFile(path)
	if err != nil {
		return nil, err
	}
	if file != "" {
		if err := cfg.loadFile(file); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveFile(path string) (string, error) {
	if path == "" {
		path = os.Getenv("DOCFLOW_CONFIG")
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file %s: %w", path, err)
		}
		return path, nil
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile, nil
	}
	return "", nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.Source = path
	return nil
}

// applyEnv overlays DOCFLOW_* environment variables
func (c *Config) applyEnv() error {
	setString(&c.Service.BaseURL, "DOCFLOW_BASE_URL")
	setString(&c.Service.SubmitPath, "DOCFLOW_SUBMIT_PATH")
	setString(&c.Service.RetrievePath, "DOCFLOW_RETRIEVE_PATH")
	setString(&c.Service.SummarizePath, "DOCFLOW_SUMMARIZE_PATH")
	setString(&c.MaxFileSize, "DOCFLOW_MAX_FILE_SIZE")
	setString(&c.Policy, "DOCFLOW_POLICY")
	setString(&c.Output, "DOCFLOW_OUTPUT")
	setString(&c.Notify.RedisAddr, "DOCFLOW_REDIS_ADDR")
	setString(&c.Notify.Channel, "DOCFLOW_NOTIFY_CHANNEL")
	setString(&c.Metrics.Textfile, "DOCFLOW_METRICS_TEXTFILE")

	if v := os.Getenv("DOCFLOW_VERBOSITY"); v != "" {
		c.Verbosity = Verbosity(v)
	}

	if v := os.Getenv("DOCFLOW_ALLOWED_MEDIA_TYPES"); v != "" {
		c.AllowedMediaTypes = splitList(v)
	}

	if v := os.Getenv("DOCFLOW_TIMEOUT_MS"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid DOCFLOW_TIMEOUT_MS: %w", err)
		}
		c.TimeoutMs = ms
	}

	var err error
	if c.Summarize, err = parseBoolEnv("DOCFLOW_SUMMARIZE", c.Summarize); err != nil {
		return err
	}
	if c.Notify.Enabled, err = parseBoolEnv("DOCFLOW_NOTIFY_ENABLED", c.Notify.Enabled); err != nil {
		return err
	}
	if c.Mock.Async, err = parseBoolEnv("DOCFLOW_MOCK_ASYNC", c.Mock.Async); err != nil {
		return err
	}

	if v := os.Getenv("DOCFLOW_MOCK_PORT"); v != "" {
		port, err := parsePort(v)
		if err != nil {
			return fmt.Errorf("DOCFLOW_MOCK_PORT %s", err)
		}
		c.Mock.Port = port
	}

	if v := os.Getenv("DOCFLOW_MOCK_DELAY_MS"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid DOCFLOW_MOCK_DELAY_MS: %w", err)
		}
		c.Mock.DelayMs = ms
	}

	return nil
}

// Validate checks every option and reports the first problem
func (c *Config) Validate() error {
	u, err := url.Parse(c.Service.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: service.base_url must be an http(s) URL, got: %q", ErrInvalid, c.Service.BaseURL)
	}
	for name, p := range map[string]string{
		"service.submit_path":   c.Service.SubmitPath,
		"service.retrieve_path": c.Service.RetrievePath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: %s must start with /, got: %q", ErrInvalid, name, p)
		}
	}
	if c.Summarize && !strings.HasPrefix(c.Service.SummarizePath, "/") {
		return fmt.Errorf("%w: service.summarize_path must start with / when summarize is enabled, got: %q", ErrInvalid, c.Service.SummarizePath)
	}

	if c.TimeoutMs <= 0 {
		return fmt.Errorf("%w: timeout_ms must be positive, got: %d", ErrInvalid, c.TimeoutMs)
	}

	if c.MaxFileSize != "" {
		if _, err := ParseBytes(c.MaxFileSize); err != nil {
			return fmt.Errorf("%w: max_file_size: %v", ErrInvalid, err)
		}
	}

	switch workflow.Policy(c.Policy) {
	case workflow.PolicyReject, workflow.PolicySupersede:
	default:
		return fmt.Errorf("%w: policy must be one of: reject, supersede; got: %s", ErrInvalid, c.Policy)
	}

	if _, err := output.ParseFormat(c.Output); err != nil {
		return fmt.Errorf("%w: output: %v", ErrInvalid, err)
	}

	switch c.Verbosity {
	case VerbosityNormal, VerbosityVerbose, VerbosityDebug:
	default:
		return fmt.Errorf("%w: verbosity must be one of: normal, verbose, debug; got: %s", ErrInvalid, c.Verbosity)
	}

	if c.Notify.Enabled && c.Notify.RedisAddr == "" {
		return fmt.Errorf("%w: notify.redis_addr is required when notify is enabled", ErrInvalid)
	}

	if c.Mock.Port < 1 || c.Mock.Port > 65535 {
		return fmt.Errorf("%w: mock.port must be between 1 and 65535, got: %d", ErrInvalid, c.Mock.Port)
	}
	if c.Mock.DelayMs < 0 {
		return fmt.Errorf("%w: mock.delay_ms must not be negative, got: %d", ErrInvalid, c.Mock.DelayMs)
	}

	return nil
}

// IsVerbose returns true if verbosity is verbose or debug
func (c *Config) IsVerbose() bool {
	return c.Verbosity == VerbosityVerbose || c.Verbosity == VerbosityDebug
}

// IsDebug returns true if verbosity is debug
func (c *Config) IsDebug() bool {
	return c.Verbosity == VerbosityDebug
}

// Timeout returns the run timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// MockDelay returns the mock service response delay
func (c *Config) MockDelay() time.Duration {
	return time.Duration(c.Mock.DelayMs) * time.Millisecond
}

// MaxFileSizeBytes returns the size limit in bytes, or 0 when unlimited
func (c *Config) MaxFileSizeBytes() int64 {
	if c.MaxFileSize == "" {
		return 0
	}
	n, err := ParseBytes(c.MaxFileSize)
	if err != nil {
		return 0
	}
	return n
}

// URL joins the service base URL and path
func (c *Config) URL(path string) string {
	return strings.TrimRight(c.Service.BaseURL, "/") + path
}

// WorkflowOptions translates the configuration for the workflow engine
func (c *Config) WorkflowOptions() workflow.Options {
	opts := workflow.Options{
		SubmitURL:         c.URL(c.Service.SubmitPath),
		RetrieveURL:       c.URL(c.Service.RetrievePath),
		Timeout:           c.Timeout(),
		AllowedMediaTypes: c.AllowedMediaTypes,
		MaxFileSize:       c.MaxFileSizeBytes(),
		Policy:            workflow.Policy(c.Policy),
	}
	if c.Summarize {
		opts.SummarizeURL = c.URL(c.Service.SummarizePath)
	}
	return opts
}

// YAML renders the configuration as it would appear in a config file
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	return out, nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseBoolEnv parses a boolean environment variable with a default value
func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	switch value {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%s must be true or false, got: %s", key, value)
	}
}

// parsePort parses and validates a port number string
func parsePort(portStr string) (int, error) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number: %s", portStr)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("must be between 1 and 65535, got: %d", port)
	}
	return port, nil
}
