package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Backland-Labs/docflow/internal/config"
)

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		wantErr        bool
		wantInOutput   []string
		wantExactMatch string
	}{
		{
			name: "help flag shows usage",
			args: []string{"--help"},
			wantInOutput: []string{
				"docflow - submit documents for compliance analysis",
				"Usage:",
				"analyze",
				"serve-mock",
				"watch",
				"--config",
				"--version",
			},
		},
		{
			name:         "no arguments shows help",
			args:         []string{},
			wantInOutput: []string{"Available Commands:"},
		},
		{
			name:           "version flag shows version",
			args:           []string{"--version"},
			wantExactMatch: "docflow version 0.1.0\n",
		},
		{
			name:           "short version flag shows version",
			args:           []string{"-v"},
			wantExactMatch: "docflow version 0.1.0\n",
		},
		{
			name:           "version command shows version",
			args:           []string{"version"},
			wantExactMatch: "docflow version 0.1.0\n",
		},
		{
			name:         "invalid flag shows error",
			args:         []string{"--invalid"},
			wantErr:      true,
			wantInOutput: []string{"unknown flag: --invalid"},
		},
		{
			name:         "stray argument is rejected",
			args:         []string{"regulation.pdf"},
			wantErr:      true,
			wantInOutput: []string{"unknown command"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, err := execute(context.Background(), testDeps(config.Default()), tt.args...)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			if tt.wantExactMatch != "" {
				assert.Equal(t, tt.wantExactMatch, stdout)
				return
			}
			for _, want := range tt.wantInOutput {
				assert.Contains(t, stdout+stderr, want)
			}
		})
	}
}

func TestConfigCommand(t *testing.T) {
	t.Run("prints effective configuration", func(t *testing.T) {
		cfg := config.Default()
		cfg.Source = "/etc/docflow.yaml"
		cfg.Service.BaseURL = "http://analysis.internal:8080"

		stdout, _, err := execute(context.Background(), testDeps(cfg), "config")
		require.NoError(t, err)

		assert.Contains(t, stdout, "# loaded from /etc/docflow.yaml\n")
		assert.Contains(t, stdout, "base_url: http://analysis.internal:8080")
		assert.Contains(t, stdout, "policy: reject")
	})

	t.Run("reports load failures", func(t *testing.T) {
		deps := testDeps(config.Default())
		deps.ConfigLoader = &stubConfigLoader{err: errors.New("boom")}

		_, _, err := execute(context.Background(), deps, "config")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load config: boom")
	})
}
