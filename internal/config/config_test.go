package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Backland-Labs/docflow/internal/workflow"
)

var envVars = []string{
	"DOCFLOW_CONFIG",
	"DOCFLOW_BASE_URL",
	"DOCFLOW_SUBMIT_PATH",
	"DOCFLOW_RETRIEVE_PATH",
	"DOCFLOW_SUMMARIZE_PATH",
	"DOCFLOW_TIMEOUT_MS",
	"DOCFLOW_ALLOWED_MEDIA_TYPES",
	"DOCFLOW_MAX_FILE_SIZE",
	"DOCFLOW_POLICY",
	"DOCFLOW_SUMMARIZE",
	"DOCFLOW_OUTPUT",
	"DOCFLOW_VERBOSITY",
	"DOCFLOW_NOTIFY_ENABLED",
	"DOCFLOW_REDIS_ADDR",
	"DOCFLOW_NOTIFY_CHANNEL",
	"DOCFLOW_METRICS_TEXTFILE",
	"DOCFLOW_MOCK_PORT",
	"DOCFLOW_MOCK_ASYNC",
	"DOCFLOW_MOCK_DELAY_MS",
}

// clearEnv blanks every DOCFLOW_* variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:5000", cfg.Service.BaseURL)
	assert.Equal(t, "/upload_regulation", cfg.Service.SubmitPath)
	assert.Equal(t, "/get_latest_tasks/{id}", cfg.Service.RetrievePath)
	assert.Equal(t, 900*time.Second, cfg.Timeout())
	assert.Equal(t, []string{"application/pdf"}, cfg.AllowedMediaTypes)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxFileSizeBytes())
	assert.Equal(t, "reject", cfg.Policy)
	assert.Equal(t, "text", cfg.Output)
	assert.Equal(t, VerbosityNormal, cfg.Verbosity)
	assert.False(t, cfg.Summarize)
	assert.False(t, cfg.Notify.Enabled)
	assert.Equal(t, 5000, cfg.Mock.Port)
	assert.Empty(t, cfg.Source)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, `
service:
  base_url: https://analysis.example.com/
  submit_path: /upload
timeout_ms: 1500
summarize: true
policy: supersede
output: json
max_file_size: 10MB
mock:
  port: 8080
  async: true
  delay_ms: 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, "/upload", cfg.Service.SubmitPath)
	assert.Equal(t, "/summarize", cfg.Service.SummarizePath, "unset keys keep defaults")
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout())
	assert.Equal(t, 250*time.Millisecond, cfg.MockDelay())
	assert.True(t, cfg.Mock.Async)

	opts := cfg.WorkflowOptions()
	assert.Equal(t, "https://analysis.example.com/upload", opts.SubmitURL)
	assert.Equal(t, "https://analysis.example.com/get_latest_tasks/{id}", opts.RetrieveURL)
	assert.Equal(t, "https://analysis.example.com/summarize", opts.SummarizeURL)
	assert.Equal(t, workflow.PolicySupersede, opts.Policy)
	assert.Equal(t, int64(10*1024*1024), opts.MaxFileSize)
	assert.Equal(t, 1500*time.Millisecond, opts.Timeout)
}

func TestLoadFileFromEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "output: yaml\n")
	t.Setenv("DOCFLOW_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.Output)
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := Load(writeFile(t, "timeout: 5\n"))
		assert.ErrorContains(t, err, "failed to parse config file")
	})

	t.Run("empty file", func(t *testing.T) {
		cfg, err := Load(writeFile(t, ""))
		require.NoError(t, err)
		assert.Equal(t, "reject", cfg.Policy)
	})
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "timeout_ms: 1000\npolicy: supersede\n")

	t.Setenv("DOCFLOW_TIMEOUT_MS", "2000")
	t.Setenv("DOCFLOW_POLICY", "reject")
	t.Setenv("DOCFLOW_BASE_URL", "http://localhost:9999")
	t.Setenv("DOCFLOW_ALLOWED_MEDIA_TYPES", "application/pdf, text/plain")
	t.Setenv("DOCFLOW_SUMMARIZE", "true")
	t.Setenv("DOCFLOW_NOTIFY_ENABLED", "true")
	t.Setenv("DOCFLOW_REDIS_ADDR", "redis:6379")
	t.Setenv("DOCFLOW_MOCK_PORT", "7000")
	t.Setenv("DOCFLOW_VERBOSITY", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Timeout())
	assert.Equal(t, "reject", cfg.Policy)
	assert.Equal(t, "http://localhost:9999/upload_regulation", cfg.WorkflowOptions().SubmitURL)
	assert.Equal(t, []string{"application/pdf", "text/plain"}, cfg.AllowedMediaTypes)
	assert.True(t, cfg.Summarize)
	assert.True(t, cfg.Notify.Enabled)
	assert.Equal(t, "redis:6379", cfg.Notify.RedisAddr)
	assert.Equal(t, 7000, cfg.Mock.Port)
	assert.True(t, cfg.IsDebug())
	assert.True(t, cfg.IsVerbose())
}

func TestEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"bool must be exact", "DOCFLOW_SUMMARIZE", "yes", "DOCFLOW_SUMMARIZE must be true or false"},
		{"bool is case sensitive", "DOCFLOW_MOCK_ASYNC", "TRUE", "DOCFLOW_MOCK_ASYNC must be true or false"},
		{"timeout not a number", "DOCFLOW_TIMEOUT_MS", "soon", "invalid DOCFLOW_TIMEOUT_MS"},
		{"port out of range", "DOCFLOW_MOCK_PORT", "70000", "DOCFLOW_MOCK_PORT must be between 1 and 65535"},
		{"delay not a number", "DOCFLOW_MOCK_DELAY_MS", "1s", "invalid DOCFLOW_MOCK_DELAY_MS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load("")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"non-http base url", func(c *Config) { c.Service.BaseURL = "ftp://host" }, "service.base_url"},
		{"base url without host", func(c *Config) { c.Service.BaseURL = "http://" }, "service.base_url"},
		{"relative submit path", func(c *Config) { c.Service.SubmitPath = "upload" }, "service.submit_path"},
		{"empty retrieve path", func(c *Config) { c.Service.RetrievePath = "" }, "service.retrieve_path"},
		{"summarize without path", func(c *Config) { c.Summarize = true; c.Service.SummarizePath = "" }, "service.summarize_path"},
		{"zero timeout", func(c *Config) { c.TimeoutMs = 0 }, "timeout_ms must be positive"},
		{"negative timeout", func(c *Config) { c.TimeoutMs = -5 }, "timeout_ms must be positive"},
		{"bad size", func(c *Config) { c.MaxFileSize = "huge" }, "max_file_size"},
		{"unknown policy", func(c *Config) { c.Policy = "queue" }, "policy must be one of"},
		{"unknown output", func(c *Config) { c.Output = "xml" }, "output"},
		{"unknown verbosity", func(c *Config) { c.Verbosity = "loud" }, "verbosity must be one of"},
		{"notify without redis", func(c *Config) { c.Notify.Enabled = true; c.Notify.RedisAddr = "" }, "notify.redis_addr"},
		{"mock port", func(c *Config) { c.Mock.Port = 0 }, "mock.port"},
		{"negative delay", func(c *Config) { c.Mock.DelayMs = -1 }, "mock.delay_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestMaxFileSizeUnlimited(t *testing.T) {
	cfg := Default()
	cfg.MaxFileSize = ""
	assert.Zero(t, cfg.MaxFileSizeBytes())
	assert.Zero(t, cfg.WorkflowOptions().MaxFileSize)
}

func TestSummarizeURLOnlyWhenEnabled(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.WorkflowOptions().SummarizeURL)

	cfg.Summarize = true
	assert.Equal(t, "http://127.0.0.1:5000/summarize", cfg.WorkflowOptions().SummarizeURL)
}

func TestYAMLRoundTrip(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Policy = "supersede"

	data, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "source")

	loaded, err := Load(writeFile(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, "supersede", loaded.Policy)
	assert.Equal(t, cfg.Service, loaded.Service)
}
