package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Backland-Labs/docflow/internal/config"
	"github.com/Backland-Labs/docflow/internal/logger"
	"github.com/Backland-Labs/docflow/internal/mockservice"
)

// shutdownTimeout bounds the graceful shutdown of the mock service
const shutdownTimeout = 5 * time.Second

type serveMockFlags struct {
	port  int
	async bool
	delay time.Duration
	fail  string
}

func newServeMockCommand(deps *Dependencies, load func() (*config.Config, error)) *cobra.Command {
	flags := &serveMockFlags{}

	cmd := &cobra.Command{
		Use:   "serve-mock",
		Short: "Run a local emulation of the analysis service",
		Long: `Run a local emulation of the analysis service.

The mock answers /upload, /upload_regulation, /get_latest_tasks/{id},
/summarize and /extract_clauses. With --async, uploads are answered with an
upload id that must be fetched from the retrieval endpoint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger.Initialize(string(cfg.Verbosity))

			opts, port, err := flags.options(cmd, cfg)
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
			if err != nil {
				return fmt.Errorf("failed to listen on port %d: %w", port, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			printer := newPrinter(cmd, deps)
			printer.Success("Mock analysis service listening on http://%s", ln.Addr())
			return serveMock(ctx, ln, mockservice.New(opts))
		},
	}

	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "Port to listen on (overrides mock.port)")
	cmd.Flags().BoolVar(&flags.async, "async", false, "Answer uploads with an upload id only")
	cmd.Flags().DurationVar(&flags.delay, "delay", 0, "Delay before answering each upload")
	cmd.Flags().StringVar(&flags.fail, "fail", "", "Force uploads to fail: application, incomplete or hang")

	return cmd
}

// options merges the config and the flags that were set
func (f *serveMockFlags) options(cmd *cobra.Command, cfg *config.Config) (mockservice.Options, int, error) {
	opts := mockservice.Options{
		Async: cfg.Mock.Async,
		Delay: cfg.MockDelay(),
	}
	port := cfg.Mock.Port

	if cmd.Flags().Changed("port") {
		if f.port < 1 || f.port > 65535 {
			return opts, 0, fmt.Errorf("--port must be between 1 and 65535, got: %d", f.port)
		}
		port = f.port
	}
	if cmd.Flags().Changed("async") {
		opts.Async = f.async
	}
	if cmd.Flags().Changed("delay") {
		if f.delay < 0 {
			return opts, 0, fmt.Errorf("--delay must not be negative, got: %s", f.delay)
		}
		opts.Delay = f.delay
	}

	mode, err := mockservice.ParseFailMode(f.fail)
	if err != nil {
		return opts, 0, err
	}
	opts.Fail = mode

	return opts, port, nil
}

// serveMock serves svc on ln until ctx is done, then shuts down gracefully
func serveMock(ctx context.Context, ln net.Listener, svc *mockservice.Service) error {
	srv := &http.Server{
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Starting mock analysis service on %s", ln.Addr())
		serverErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutting down mock analysis service...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}
