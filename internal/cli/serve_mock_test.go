package cli

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Backland-Labs/docflow/internal/config"
	"github.com/Backland-Labs/docflow/internal/mockservice"
)

func TestServeMock_ServesUntilCanceled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveMock(ctx, ln, mockservice.New(mockservice.Options{}))
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["message"], "Compliance API running")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeMockOptions(t *testing.T) {
	parse := func(t *testing.T, cfg *config.Config, args ...string) (mockservice.Options, int, error) {
		t.Helper()
		flags := &serveMockFlags{}
		cmd := &cobra.Command{Use: "serve-mock"}
		cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "")
		cmd.Flags().BoolVar(&flags.async, "async", false, "")
		cmd.Flags().DurationVar(&flags.delay, "delay", 0, "")
		cmd.Flags().StringVar(&flags.fail, "fail", "", "")
		require.NoError(t, cmd.Flags().Parse(args))
		return flags.options(cmd, cfg)
	}

	t.Run("config values by default", func(t *testing.T) {
		cfg := config.Default()
		cfg.Mock.Async = true
		cfg.Mock.DelayMs = 250

		opts, port, err := parse(t, cfg)
		require.NoError(t, err)
		assert.Equal(t, 5000, port)
		assert.True(t, opts.Async)
		assert.Equal(t, 250*time.Millisecond, opts.Delay)
		assert.Equal(t, mockservice.FailNone, opts.Fail)
	})

	t.Run("flags override config", func(t *testing.T) {
		cfg := config.Default()
		cfg.Mock.Async = true

		opts, port, err := parse(t, cfg, "--port", "8081", "--async=false", "--delay", "1s", "--fail", "hang")
		require.NoError(t, err)
		assert.Equal(t, 8081, port)
		assert.False(t, opts.Async)
		assert.Equal(t, time.Second, opts.Delay)
		assert.Equal(t, mockservice.FailHang, opts.Fail)
	})

	t.Run("rejects bad values", func(t *testing.T) {
		for _, args := range [][]string{
			{"--port", "70000"},
			{"--port", "0"},
			{"--delay", "-1s"},
			{"--fail", "explode"},
		} {
			_, _, err := parse(t, config.Default(), args...)
			assert.Error(t, err, "args %v", args)
		}
	})
}
