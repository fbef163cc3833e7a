package commands

import (
	"github.com/spf13/cobra"

	"github.com/vaultea/teax/internal/config"
	"github.com/vaultea/teax/internal/logic"
)

// NewDecryptCommand creates a new cobra command for the decrypt subcommand.
func NewDecryptCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "decrypt [flags] paths...",
		Aliases: []string{"dec"},
		Short:   "Decrypt .teax artifacts",
		Long: `Decrypts artifacts, stripping the .teax extension.
Files that fail authentication (wrong password, corrupted data) are skipped and reported.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.Decrypt = true

			return preRun(cfg)(cmd, args)
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return logic.Run(cfg)
		},
	}

	outputFlags(cmd)

	return cmd
}
