// Package cli implements the docflow command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/Backland-Labs/docflow/internal/config"
	"github.com/Backland-Labs/docflow/internal/logger"
	"github.com/Backland-Labs/docflow/internal/output"
)

// version is overridden at build time with -ldflags "-X ...cli.version=..."
var version = "0.1.0"

// Execute runs the CLI
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return NewRootCommand().Execute()
}

// NewRootCommand creates the root command with production dependencies
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithDependencies(NewRealDependencies())
}

// NewRootCommandWithDependencies creates the root command
func NewRootCommandWithDependencies(deps *Dependencies) *cobra.Command {
	var (
		showVersion bool
		configPath  string
	)

	cmd := &cobra.Command{
		Use:   "docflow",
		Short: "docflow - submit documents for compliance analysis",
		Long: `docflow - submit documents for compliance analysis

docflow uploads a document to the analysis service, waits for the result
(following an upload id to the retrieval endpoint when the service answers
asynchronously), and prints the compliance tasks it found.

Examples:
  docflow analyze regulation.pdf
  docflow analyze regulation.pdf --output json --timeout 5m
  docflow serve-mock --async --delay 2s
  docflow watch`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return printVersion(cmd)
			}
			return cmd.Help()
		},
	}

	cmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default $DOCFLOW_CONFIG or ./docflow.yaml)")

	load := func() (*config.Config, error) {
		return deps.ConfigLoader.Load(configPath)
	}

	cmd.AddCommand(
		newAnalyzeCommand(deps, load),
		newServeMockCommand(deps, load),
		newWatchCommand(deps, load),
		newConfigCommand(load),
		newVersionCommand(),
	)

	return cmd
}

func newPrinter(cmd *cobra.Command, deps *Dependencies) *output.Printer {
	return output.NewPrinterWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr(), deps.Color)
}
