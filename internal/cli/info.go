package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Backland-Labs/docflow/internal/config"
)

func newConfigCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			data, err := cfg.YAML()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if cfg.Source != "" {
				if _, err := fmt.Fprintf(w, "# loaded from %s\n", cfg.Source); err != nil {
					return err
				}
			}
			_, err = w.Write(data)
			return err
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the docflow version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVersion(cmd)
		},
	}
}

func printVersion(cmd *cobra.Command) error {
	_, err := fmt.Fprintln(cmd.OutOrStdout(), "docflow version "+version)
	return err
}
