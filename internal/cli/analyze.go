package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Backland-Labs/docflow/internal/config"
	"github.com/Backland-Labs/docflow/internal/document"
	"github.com/Backland-Labs/docflow/internal/logger"
	"github.com/Backland-Labs/docflow/internal/metrics"
	"github.com/Backland-Labs/docflow/internal/notify"
	"github.com/Backland-Labs/docflow/internal/output"
	"github.com/Backland-Labs/docflow/internal/workflow"
)

// ErrAnalysisFailed is returned when a run ends in any state but succeeded
var ErrAnalysisFailed = errors.New("analysis did not succeed")

type analyzeFlags struct {
	timeout   time.Duration
	summarize bool
	output    string
	baseURL   string
}

func newAnalyzeCommand(deps *Dependencies, load func() (*config.Config, error)) *cobra.Command {
	flags := &analyzeFlags{}

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Submit a document and print its compliance analysis",
		Long: `Submit a document to the analysis service and wait for the result.

The run times out after timeout_ms (15 minutes by default). Press Ctrl+C to
cancel a run in flight.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runAnalyze(ctx, cmd, deps, cfg, args[0])
		},
	}

	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Give up after this long (overrides timeout_ms)")
	cmd.Flags().BoolVar(&flags.summarize, "summarize", false, "Summarize extracted text with the summarize endpoint")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output format: text, json or yaml")
	cmd.Flags().StringVar(&flags.baseURL, "base-url", "", "Analysis service base URL")

	return cmd
}

// apply overlays the flags that were set on the command line
func (f *analyzeFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("timeout") {
		cfg.TimeoutMs = f.timeout.Milliseconds()
	}
	if cmd.Flags().Changed("summarize") {
		cfg.Summarize = f.summarize
	}
	if f.output != "" {
		cfg.Output = f.output
	}
	if f.baseURL != "" {
		cfg.Service.BaseURL = f.baseURL
	}
	return cfg.Validate()
}

func runAnalyze(ctx context.Context, cmd *cobra.Command, deps *Dependencies, cfg *config.Config, path string) error {
	logger.Initialize(string(cfg.Verbosity))
	printer := newPrinter(cmd, deps)

	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}

	file, err := deps.Documents.Load(path)
	if err != nil {
		if errors.Is(err, document.ErrNoFile) {
			printer.Error("Please select a file to upload.")
		}
		return err
	}

	collector := metrics.New()
	observers := []workflow.Observer{collector}
	if cfg.Notify.Enabled {
		client, err := deps.ConnectRedis(ctx, cfg.Notify.RedisAddr)
		if err != nil {
			printer.Warning("Run events will not be published: %v", err)
		} else {
			defer func() { _ = client.Close() }()
			observers = append(observers, notify.NewPublisher(client, cfg.Notify.Channel))
		}
	}

	engine := workflow.New(deps.Sender, cfg.WorkflowOptions(), observers...)

	run, err := engine.Start(ctx, file)
	if err != nil {
		var wfErr *workflow.Error
		if errors.As(err, &wfErr) {
			printer.Error("%s", wfErr.Message)
		}
		return err
	}

	logger.WithRun(run.ID(), "").Infof("Started analysis of %s (%s)", file.Name, config.FormatBytes(file.Size()))
	follow(run, printer, format == output.FormatText)

	snap, err := run.Wait(context.Background())
	if err != nil {
		return err
	}

	if err := collector.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		printer.Warning("%v", err)
	}

	if err := output.Render(printer, output.Project(snap), format); err != nil {
		return err
	}

	if snap.State != workflow.StateSucceeded {
		return fmt.Errorf("%w: %s", ErrAnalysisFailed, snap.State)
	}
	return nil
}

// follow consumes the run's transitions, driving a spinner when interactive
func follow(run *workflow.Run, printer *output.Printer, interactive bool) {
	events := run.Subscribe()
	if !interactive {
		for range events {
		}
		return
	}

	var progress *output.Progress
	for snap := range events {
		message := progressMessage(snap)
		if message == "" {
			continue
		}
		if progress == nil {
			progress = printer.StartProgress(message)
		} else {
			progress.UpdateMessage(message)
		}
	}
	if progress != nil {
		progress.Stop()
	}
}

func progressMessage(snap workflow.Snapshot) string {
	switch snap.State {
	case workflow.StateSubmitting:
		return fmt.Sprintf("Uploading %s", snap.File)
	case workflow.StateAwaitingResult:
		if snap.RemoteID != "" {
			return fmt.Sprintf("Waiting for analysis of upload %s", snap.RemoteID)
		}
		return "Waiting for analysis"
	default:
		return ""
	}
}
