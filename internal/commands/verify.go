package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vaultea/teax/internal/config"
	"github.com/vaultea/teax/internal/logic"
)

// NewVerifyCommand creates a new cobra command for the verify subcommand.
func NewVerifyCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [flags] paths...",
		Short: "Check that artifacts decrypt with the password, without writing anything",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.Decrypt = true

			return preRun(cfg)(cmd, args)
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return logic.RunVerify(cfg)
		},
	}

	// Every worker holds one scrypt state (1 GiB at the default cost).
	cmd.Flags().IntP("parallel", "j", min(2, runtime.NumCPU()), "Number of artifacts verified concurrently")

	return cmd
}

// NewInspectCommand creates a new cobra command for the inspect subcommand.
func NewInspectCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:     "inspect paths...",
		Short:   "Print the header fields of artifacts",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: preRun(cfg),
		RunE: func(_ *cobra.Command, _ []string) error {
			return logic.RunInspect(cfg)
		},
	}
}
