package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Backland-Labs/docflow/internal/config"
	"github.com/Backland-Labs/docflow/internal/document/pdftest"
	"github.com/Backland-Labs/docflow/internal/mockservice"
	"github.com/Backland-Labs/docflow/internal/transport"
)

// stubConfigLoader hands out copies of a fixed configuration
type stubConfigLoader struct {
	cfg *config.Config
	err error
}

func (s *stubConfigLoader) Load(path string) (*config.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	cfg := *s.cfg
	return &cfg, nil
}

// testDeps returns dependencies backed by cfg, with Redis disabled unless
// a test swaps ConnectRedis
func testDeps(cfg *config.Config) *Dependencies {
	return &Dependencies{
		ConfigLoader: &stubConfigLoader{cfg: cfg},
		Documents:    &RealDocumentLoader{},
		Sender:       transport.NewAdapter(),
		ConnectRedis: func(ctx context.Context, addr string) (*redis.Client, error) {
			return nil, errors.New("redis disabled in tests")
		},
	}
}

// execute runs the command tree and captures stdout and stderr separately
func execute(ctx context.Context, deps *Dependencies, args ...string) (string, string, error) {
	cmd := NewRootCommandWithDependencies(deps)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// startMock serves a mock analysis service for the duration of the test
func startMock(t *testing.T, opts mockservice.Options) string {
	t.Helper()
	srv := httptest.NewServer(mockservice.New(opts).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

// writePDF writes a PDF with the given number of pages into a temp dir
func writePDF(t *testing.T, name string, pages int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, pdftest.Build(pages), 0o644))
	return path
}
